package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/barterx-accounts/internal/domain/entity"
	"github.com/oksasatya/barterx-accounts/internal/domain/repository"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	pgUniqueViolation = "23505"
	pgInvalidText     = "22P02"
)

const accountColumns = `id, email, password_hash, is_verified,
		verification_code, verification_code_expires_at,
		reset_code, reset_code_expires_at,
		name, interests, modes, user_type, contact_number, city, state, country, profile_picture,
		created_at, updated_at`

const upsertAccountSQL = `
		INSERT INTO accounts (id, email, password_hash, is_verified,
			verification_code, verification_code_expires_at,
			reset_code, reset_code_expires_at,
			name, interests, modes, user_type, contact_number, city, state, country, profile_picture)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			is_verified = EXCLUDED.is_verified,
			verification_code = EXCLUDED.verification_code,
			verification_code_expires_at = EXCLUDED.verification_code_expires_at,
			reset_code = EXCLUDED.reset_code,
			reset_code_expires_at = EXCLUDED.reset_code_expires_at,
			name = EXCLUDED.name,
			interests = EXCLUDED.interests,
			modes = EXCLUDED.modes,
			user_type = EXCLUDED.user_type,
			contact_number = EXCLUDED.contact_number,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			country = EXCLUDED.country,
			profile_picture = EXCLUDED.profile_picture,
			updated_at = now()
		RETURNING id, created_at, updated_at`

type AccountRepository struct {
	db DB
}

func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *AccountRepository) InsertOrReplace(ctx context.Context, a *entity.Account) error {
	return upsert(ctx, r.db, a)
}

// Mutate runs fn inside a transaction holding a transaction-scoped advisory
// lock derived from the email. The lock covers the not-yet-existing row too,
// which FOR UPDATE alone cannot.
func (r *AccountRepository) Mutate(ctx context.Context, email string, fn repository.MutateFunc) (*entity.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	a, err := mutateTx(ctx, tx, email, fn)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

func mutateTx(ctx context.Context, tx pgx.Tx, email string, fn repository.MutateFunc) (*entity.Account, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, email); err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	row := tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1 FOR UPDATE`, email)
	current, err := scanAccount(row)
	if err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}
	next.Email = email
	if err := upsert(ctx, tx, next); err != nil {
		return nil, err
	}
	return next, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func upsert(ctx context.Context, q queryRower, a *entity.Account) error {
	vCode, vExp := pendingArgs(a.Verification)
	rCode, rExp := pendingArgs(a.Reset)
	p := a.Profile
	row := q.QueryRow(ctx, upsertAccountSQL,
		a.ID, a.Email, a.PasswordHash, a.IsVerified,
		vCode, vExp, rCode, rExp,
		p.Name, nonNil(p.Interests), nonNil(p.Modes), p.UserType,
		p.ContactNumber, p.City, p.State, p.Country, p.ProfilePicture,
	)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return repository.ErrAccountExists
		}
		return err
	}
	return nil
}

func scanAccount(row pgx.Row) (*entity.Account, error) {
	a := &entity.Account{}
	var (
		vCode, rCode *string
		vExp, rExp   *time.Time
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.IsVerified,
		&vCode, &vExp, &rCode, &rExp,
		&a.Profile.Name, &a.Profile.Interests, &a.Profile.Modes, &a.Profile.UserType,
		&a.Profile.ContactNumber, &a.Profile.City, &a.Profile.State, &a.Profile.Country,
		&a.Profile.ProfilePicture, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrAccountNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgInvalidText {
			return nil, repository.ErrAccountNotFound
		}
		return nil, err
	}
	a.Verification = pendingFrom(vCode, vExp)
	a.Reset = pendingFrom(rCode, rExp)
	return a, nil
}

func pendingArgs(p *entity.PendingCode) (*string, *time.Time) {
	if p == nil {
		return nil, nil
	}
	v, exp := p.Value, p.ExpiresAt
	return &v, &exp
}

func pendingFrom(code *string, exp *time.Time) *entity.PendingCode {
	if code == nil || exp == nil {
		return nil
	}
	return &entity.PendingCode{Value: *code, ExpiresAt: *exp}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
