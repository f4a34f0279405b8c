package entity

import (
	"crypto/subtle"
	"errors"
	"time"
)

// Account is the aggregate root for a registered email.
// PasswordHash holds a bcrypt hash; the plaintext never reaches this type.
//
// Verification and Reset are nil unless a code of that kind is outstanding.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	IsVerified   bool

	Verification *PendingCode
	Reset        *PendingCode

	Profile Profile

	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	UserTypeIndividual = "individual"
	UserTypeSeller     = "seller"
)

// Profile holds the free-form onboarding fields.
type Profile struct {
	Name           string
	Interests      []string
	Modes          []string
	UserType       string
	ContactNumber  string
	City           string
	State          string
	Country        string
	ProfilePicture string
}

var (
	ErrCodeMismatch = errors.New("code mismatch")
	ErrCodeExpired  = errors.New("code expired")
)

// PendingCode is a one-time numeric code and the instant it stops being valid.
type PendingCode struct {
	Value     string
	ExpiresAt time.Time
}

// Check compares code against the pending value in constant time. A mismatch
// wins over expiry so that a wrong guess never learns whether the code is stale.
func (p *PendingCode) Check(code string, now time.Time) error {
	if subtle.ConstantTimeCompare([]byte(p.Value), []byte(code)) != 1 {
		return ErrCodeMismatch
	}
	if !now.Before(p.ExpiresAt) {
		return ErrCodeExpired
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Verification != nil {
		v := *a.Verification
		c.Verification = &v
	}
	if a.Reset != nil {
		r := *a.Reset
		c.Reset = &r
	}
	c.Profile.Interests = append([]string(nil), a.Profile.Interests...)
	c.Profile.Modes = append([]string(nil), a.Profile.Modes...)
	return &c
}
