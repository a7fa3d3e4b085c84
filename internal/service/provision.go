package service

import (
	"context"
	"fmt"

	"taskmanager/internal/domain"
	"taskmanager/internal/logger"
)

// DemoUserCount is the size of the pre-provisioned user set.
const DemoUserCount = 10

// DemoUsers returns user{i}@mail.com / password{i} for i in 1..DemoUserCount.
func DemoUsers() []domain.User {
	users := make([]domain.User, 0, DemoUserCount)
	for i := 1; i <= DemoUserCount; i++ {
		users = append(users, domain.User{
			Email:    fmt.Sprintf("user%d@mail.com", i),
			Password: fmt.Sprintf("password%d", i),
		})
	}
	return users
}

// ProvisionUsers stores users that do not exist yet. Credentials are
// prepared for the given mode before storing. It returns how many users were
// created.
func ProvisionUsers(ctx context.Context, tx Transactor, store UserProvisioner, mode CredentialMode, users []domain.User) (int, error) {
	created := 0
	err := tx.WithinTx(ctx, false, func(ctx context.Context) error {
		for _, u := range users {
			secret, err := HashCredential(mode, u.Password)
			if err != nil {
				return err
			}
			row := domain.User{Email: u.Email, Password: secret}
			ok, err := store.CreateUser(ctx, &row)
			if err != nil {
				return fmt.Errorf("create user %s: %w", u.Email, err)
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.Info("users provisioned", "created", created, "total", len(users))
	return created, nil
}
