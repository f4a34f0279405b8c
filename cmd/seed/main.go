package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/oksasatya/barterx-accounts/config"
	"github.com/oksasatya/barterx-accounts/internal/domain/entity"
	"github.com/oksasatya/barterx-accounts/internal/domain/repository"
	pginfra "github.com/oksasatya/barterx-accounts/internal/infrastructure/postgres"
	"github.com/oksasatya/barterx-accounts/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	email := flag.String("email", "demo@barterx.app", "account email")
	name := flag.String("name", "Demo User", "display name")
	password := flag.String("password", "password123", "plain password")
	flag.Parse()

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, pginfra.PoolConfig{DSN: cfg.PostgresDSN(), MaxConns: 2})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	a, err := seed(ctx, pginfra.NewAccountRepository(pool), *email, *name, *password, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("failed to seed account: %v", err)
	}
	fmt.Println(summary(a))
}

// seed upserts a verified account with the given credentials.
func seed(ctx context.Context, repo repository.AccountRepository, email, name, password string, cost int) (*entity.Account, error) {
	if len(password) > helpers.MaxPasswordBytes {
		return nil, fmt.Errorf("password longer than %d bytes", helpers.MaxPasswordBytes)
	}
	hash, err := helpers.HashPasswordCost(password, cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return repo.Mutate(ctx, email, func(cur *entity.Account) (*entity.Account, error) {
		if cur == nil {
			cur = &entity.Account{ID: uuid.NewString(), Profile: entity.Profile{UserType: entity.UserTypeIndividual}}
		}
		cur.PasswordHash = hash
		cur.IsVerified = true
		cur.Verification = nil
		cur.Reset = nil
		cur.Profile.Name = name
		return cur, nil
	})
}

func summary(a *entity.Account) string {
	return fmt.Sprintf("seeded verified account: id=%s email=%s name=%s", a.ID, a.Email, a.Profile.Name)
}
