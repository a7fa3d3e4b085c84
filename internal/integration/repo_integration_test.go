package integration

import (
	"testing"

	"taskmanager/internal/repository"
	"taskmanager/internal/repository/storetest"
)

type pgStore struct {
	*repository.UserRepository
	*repository.TaskRepository
	*repository.TxManager
}

func TestPostgresStoreContract(t *testing.T) {
	pool := connect(t)
	st := pgStore{
		UserRepository: repository.NewUserRepository(pool),
		TaskRepository: repository.NewTaskRepository(pool),
		TxManager:      repository.NewTxManager(pool),
	}
	storetest.Run(t, func(t *testing.T) storetest.Store { return st })
}
