package ws

const (
	// server - client
	MsgReady = "ready"
	MsgEvent = "event"
)

// envelope wraps every server message.
type envelope struct {
	Type  string `json:"type"`
	Event any    `json:"event,omitempty"`
}
