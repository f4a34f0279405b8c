package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/barterx-accounts/internal/domain/entity"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// MutateFunc receives the current account (nil when none exists for the email)
// and returns the state to persist. Returning a nil account with a nil error
// leaves storage untouched.
type MutateFunc func(current *entity.Account) (*entity.Account, error)

// AccountRepository defines the credential store. Mutate runs fn while holding
// an exclusive per-email lock, so read-modify-write cycles on one account never
// interleave. Work on different emails proceeds independently.
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	// InsertOrReplace writes the whole record keyed by email.
	InsertOrReplace(ctx context.Context, a *entity.Account) error
	Mutate(ctx context.Context, email string, fn MutateFunc) (*entity.Account, error)
}
