package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"taskmanager/internal/service"
	"taskmanager/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <email>",
	Short: "Stream task events from a running server",
	Long:  "Connects to /ws/tasks with a token issued for <email> and prints each event as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var (
	watchServer string
	watchCount  int
)

func init() {
	watchCmd.Flags().StringVar(&watchServer, "server", "http://localhost:8080", "server base URL")
	watchCmd.Flags().IntVarP(&watchCount, "count", "n", 0, "exit after this many events (0 = forever)")
	addServerFlagAliases(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func wsURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/tasks"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// isReady reports whether msg is the server's greeting rather than an event.
func isReady(msg []byte) bool {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		return false
	}
	return env.Type == ws.MsgReady
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	codec, err := service.NewTokenCodec([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}
	token, err := codec.Issue(args[0])
	if err != nil {
		return err
	}

	target, err := wsURL(watchServer, token)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", watchServer, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	out := cmd.OutOrStdout()
	seen := 0
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if isReady(msg) {
			continue
		}
		fmt.Fprintln(out, string(msg))
		seen++
		if watchCount > 0 && seen >= watchCount {
			return nil
		}
	}
}
