package helpers

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"
)

const (
	// CodeTTL is how long a verification or reset code stays valid.
	CodeTTL = 10 * time.Minute

	codeMin = 100000
	codeMax = 999999
)

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// GenOTPCode draws a 6-digit code uniformly from 100000-999999 using r.
func GenOTPCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, codeSpan)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// CodeIssuer mints one-time codes with a fixed lifetime.
type CodeIssuer struct {
	Rand io.Reader
	Now  func() time.Time
	TTL  time.Duration
}

// NewCodeIssuer returns an issuer backed by crypto/rand and the wall clock.
func NewCodeIssuer() *CodeIssuer {
	return &CodeIssuer{Rand: rand.Reader, Now: time.Now, TTL: CodeTTL}
}

// Issue returns a fresh code and the instant it expires.
func (i *CodeIssuer) Issue() (string, time.Time, error) {
	code, err := GenOTPCode(i.Rand)
	if err != nil {
		return "", time.Time{}, err
	}
	return code, i.Now().Add(i.TTL), nil
}
