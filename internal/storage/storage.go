// Package storage wires the configured backend into the service-level
// store contracts.
package storage

import (
	"context"
	"fmt"

	"taskmanager/internal/config"
	"taskmanager/internal/db"
	"taskmanager/internal/logger"
	"taskmanager/internal/repository"
	"taskmanager/internal/repository/gormstore"
	"taskmanager/internal/repository/memory"
	"taskmanager/internal/service"
)

// Stores is one backend exposed through the service interfaces.
type Stores struct {
	Driver      string
	Users       service.UserStore
	Provisioner service.UserProvisioner
	Tasks       service.TaskStore
	Tx          service.Transactor

	ping  func(ctx context.Context) error
	close func()
}

func (s *Stores) Ping(ctx context.Context) error { return s.ping(ctx) }

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects the backend named by cfg.StorageDriver.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres, "":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		users := repository.NewUserRepository(pool)
		return &Stores{
			Driver:      config.DriverPostgres,
			Users:       users,
			Provisioner: users,
			Tasks:       repository.NewTaskRepository(pool),
			Tx:          repository.NewTxManager(pool),
			ping:        pool.Ping,
			close:       pool.Close,
		}, nil

	case config.DriverSQLite:
		st, err := gormstore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite store opened", "path", cfg.SQLitePath)
		return fromStore(config.DriverSQLite, st), nil

	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return fromStore(config.DriverMemory, memory.New()), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

type store interface {
	service.UserStore
	service.UserProvisioner
	service.TaskStore
	service.Transactor
	Ping(ctx context.Context) error
	Close()
}

func fromStore(driver string, st store) *Stores {
	return &Stores{
		Driver:      driver,
		Users:       st,
		Provisioner: st,
		Tasks:       st,
		Tx:          st,
		ping:        st.Ping,
		close:       st.Close,
	}
}
