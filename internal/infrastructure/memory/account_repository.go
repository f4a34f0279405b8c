package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oksasatya/barterx-accounts/internal/domain/entity"
	"github.com/oksasatya/barterx-accounts/internal/domain/repository"
)

// AccountRepository keeps accounts in process memory. It backs STORE_DRIVER=memory
// and the service tests.
type AccountRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*entity.Account

	locksMu sync.Mutex
	locks   map[string]*emailLock

	now func() time.Time
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byEmail: make(map[string]*entity.Account),
		locks:   make(map[string]*emailLock),
		now:     time.Now,
	}
}

// emailLock is dropped from the map once no goroutine holds or waits on it.
type emailLock struct {
	mu   sync.Mutex
	refs int
}

// lock serializes callers on one email and returns the matching unlock.
func (r *AccountRepository) lock(email string) func() {
	r.locksMu.Lock()
	l, ok := r.locks[email]
	if !ok {
		l = &emailLock{}
		r.locks[email] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, email)
		}
		r.locksMu.Unlock()
	}
}

func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (r *AccountRepository) GetByID(_ context.Context, id string) (*entity.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.byEmail {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (r *AccountRepository) InsertOrReplace(ctx context.Context, a *entity.Account) error {
	unlock := r.lock(a.Email)
	defer unlock()
	return r.put(a)
}

func (r *AccountRepository) Mutate(ctx context.Context, email string, fn repository.MutateFunc) (*entity.Account, error) {
	unlock := r.lock(email)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	current := r.byEmail[email].Clone()
	r.mu.RUnlock()

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}
	next.Email = email
	if err := r.put(next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// put stores a copy of a; callers hold the per-email lock.
func (r *AccountRepository) put(a *entity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, other := range r.byEmail {
		if other.ID == a.ID && email != a.Email {
			return repository.ErrAccountExists
		}
	}
	now := r.now()
	if prev, ok := r.byEmail[a.Email]; ok {
		a.CreatedAt = prev.CreatedAt
	} else if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	r.byEmail[a.Email] = a.Clone()
	return nil
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
