package application

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/barterx-accounts/internal/domain/entity"
	repo "github.com/oksasatya/barterx-accounts/internal/domain/repository"
	"github.com/oksasatya/barterx-accounts/pkg/helpers"
	mailtpl "github.com/oksasatya/barterx-accounts/pkg/mailer/templates"
)

// Metrics published under /debug/vars.
var metrics = expvar.NewMap("accounts")

const defaultNotifyTimeout = 15 * time.Second

// AccountService owns the credential state machine: verification
// (unverified -> verified) and password reset (idle -> pending -> idle).
// Each transition is a single repository Mutate, and notifications are sent
// only after the new code is durable and the account lock is released.
type AccountService struct {
	Repo          repo.AccountRepository
	Issuer        CodeIssuer
	Notifier      Notifier
	Index         ProfileIndex
	Logger        *logrus.Logger
	Brand         mailtpl.Brand
	Now           func() time.Time
	NewID         func() string
	NotifyTimeout time.Duration
	BcryptCost    int
}

func NewAccountService(r repo.AccountRepository, issuer CodeIssuer, notifier Notifier, index ProfileIndex, logger *logrus.Logger, brand mailtpl.Brand) *AccountService {
	return &AccountService{
		Repo:          r,
		Issuer:        issuer,
		Notifier:      notifier,
		Index:         index,
		Logger:        logger,
		Brand:         brand,
		Now:           time.Now,
		NewID:         uuid.NewString,
		NotifyTimeout: defaultNotifyTimeout,
	}
}

// Register creates an unverified account, or refreshes an abandoned unverified
// signup in place, and mails a fresh verification code.
func (s *AccountService) Register(ctx context.Context, email, name, password string) error {
	if err := requireFields(map[string]string{"email": email, "name": name, "password": password}); err != nil {
		return err
	}
	hash, err := s.hashPassword("password", password)
	if err != nil {
		return err
	}
	code, exp, err := s.Issuer.Issue()
	if err != nil {
		return dependency("issue code", err)
	}
	pending := &entity.PendingCode{Value: code, ExpiresAt: exp}

	a, err := s.Repo.Mutate(ctx, email, func(cur *entity.Account) (*entity.Account, error) {
		if cur == nil {
			return &entity.Account{
				ID:           s.NewID(),
				Email:        email,
				PasswordHash: hash,
				Verification: pending,
				Profile:      entity.Profile{Name: name, UserType: entity.UserTypeIndividual},
			}, nil
		}
		if cur.IsVerified {
			return nil, ErrConflict
		}
		cur.Profile.Name = name
		cur.PasswordHash = hash
		cur.Verification = pending
		return cur, nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrAccountExists) {
			return ErrConflict
		}
		return s.storeErr("register", err)
	}
	metrics.Add("codes_issued", 1)
	s.logInfo("account registered", logrus.Fields{"email": email})

	if err := s.sendCode(ctx, mailtpl.VerificationCode, a, code, exp); err != nil {
		s.logError("verification code delivery failed", err, logrus.Fields{"email": email})
		return dependency("deliver verification code", err)
	}
	return nil
}

// VerifyEmail consumes the pending verification code and marks the account verified.
func (s *AccountService) VerifyEmail(ctx context.Context, email, code string) error {
	if err := requireFields(map[string]string{"email": email, "code": code}); err != nil {
		return err
	}
	a, err := s.Repo.Mutate(ctx, email, func(cur *entity.Account) (*entity.Account, error) {
		if cur == nil {
			return nil, ErrNotFound
		}
		if cur.IsVerified {
			return nil, ErrAlreadyDone
		}
		if cur.Verification == nil {
			return nil, ErrExpired
		}
		if err := checkCode(cur.Verification, code, s.Now()); err != nil {
			return nil, err
		}
		cur.IsVerified = true
		cur.Verification = nil
		return cur, nil
	})
	if err != nil {
		return s.storeErr("verify email", err)
	}
	metrics.Add("verifications", 1)
	indexProfile(ctx, s.Index, s.Logger, a)
	return nil
}

// Login checks the password of a verified account and returns its snapshot.
// No session or token is issued.
func (s *AccountService) Login(ctx context.Context, email, password string) (*entity.Account, error) {
	if err := requireFields(map[string]string{"email": email, "password": password}); err != nil {
		return nil, err
	}
	a, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.storeErr("login", err)
	}
	if !a.IsVerified {
		return nil, ErrUnverified
	}
	if !helpers.CompareHashAndPassword(a.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// RequestPasswordReset issues a reset code when the account exists. Its result
// never reveals whether it does: unknown emails, store failures and delivery
// failures all return nil and are only logged.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	if err := requireFields(map[string]string{"email": email}); err != nil {
		return err
	}
	code, exp, err := s.Issuer.Issue()
	if err != nil {
		s.logError("issue reset code failed", err, logrus.Fields{"email": email})
		return nil
	}
	a, err := s.Repo.Mutate(ctx, email, func(cur *entity.Account) (*entity.Account, error) {
		if cur == nil {
			return nil, nil
		}
		cur.Reset = &entity.PendingCode{Value: code, ExpiresAt: exp}
		return cur, nil
	})
	if err != nil {
		s.logError("store reset code failed", err, logrus.Fields{"email": email})
		return nil
	}
	if a == nil {
		s.logInfo("password reset requested for unknown email", logrus.Fields{"email": email})
		return nil
	}
	metrics.Add("codes_issued", 1)

	if err := s.sendCode(ctx, mailtpl.PasswordReset, a, code, exp); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("email", email).Warn("reset code delivery failed")
		}
	}
	return nil
}

// VerifyResetCode reports whether code currently unlocks a reset. It does not
// consume the code.
func (s *AccountService) VerifyResetCode(ctx context.Context, email, code string) error {
	if err := requireFields(map[string]string{"email": email, "code": code}); err != nil {
		return err
	}
	a, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		return s.storeErr("verify reset code", err)
	}
	return checkReset(a, code, s.Now())
}

// CompletePasswordReset consumes the reset code and sets the new password.
func (s *AccountService) CompletePasswordReset(ctx context.Context, email, code, newPassword string) error {
	if err := requireFields(map[string]string{"email": email, "code": code, "newPassword": newPassword}); err != nil {
		return err
	}
	hash, err := s.hashPassword("newPassword", newPassword)
	if err != nil {
		return err
	}
	_, err = s.Repo.Mutate(ctx, email, func(cur *entity.Account) (*entity.Account, error) {
		if cur == nil {
			return nil, ErrNotFound
		}
		if err := checkReset(cur, code, s.Now()); err != nil {
			return nil, err
		}
		cur.PasswordHash = hash
		cur.Reset = nil
		return cur, nil
	})
	if err != nil {
		return s.storeErr("complete password reset", err)
	}
	metrics.Add("resets_completed", 1)
	s.logInfo("password reset completed", logrus.Fields{"email": email})
	return nil
}

// hashPassword rejects passwords bcrypt cannot take before hashing them.
func (s *AccountService) hashPassword(field, plain string) (string, error) {
	if len(plain) > helpers.MaxPasswordBytes {
		return "", &ValidationError{Fields: map[string]string{field: fmt.Sprintf("must be at most %d bytes long", helpers.MaxPasswordBytes)}}
	}
	hash, err := helpers.HashPasswordCost(plain, s.BcryptCost)
	if err != nil {
		return "", dependency("hash password", err)
	}
	return hash, nil
}

func checkReset(a *entity.Account, code string, now time.Time) error {
	if a.Reset == nil {
		return ErrInvalidCode
	}
	return checkCode(a.Reset, code, now)
}

func checkCode(p *entity.PendingCode, code string, now time.Time) error {
	switch err := p.Check(code, now); {
	case errors.Is(err, entity.ErrCodeMismatch):
		return ErrInvalidCode
	case errors.Is(err, entity.ErrCodeExpired):
		return ErrExpired
	default:
		return err
	}
}

func (s *AccountService) sendCode(ctx context.Context, kind string, a *entity.Account, code string, exp time.Time) error {
	data := mailtpl.NewCodeData(s.Brand, kind, a.Profile.Name, a.Email, code,
		mailtpl.WithTime(s.Now()),
		mailtpl.WithExpiresAt(exp),
	)
	subject, body, err := mailtpl.Render(kind, data)
	if err != nil {
		return err
	}
	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Notifier.Deliver(c, a.Email, subject, body); err != nil {
		metrics.Add("delivery_failures", 1)
		return err
	}
	return nil
}

// indexProfile refreshes the search copy; failures are logged, never returned.
func indexProfile(ctx context.Context, idx ProfileIndex, logger *logrus.Logger, a *entity.Account) {
	if idx == nil || a == nil {
		return
	}
	if err := idx.Index(ctx, a); err != nil && logger != nil {
		logger.WithError(err).WithField("account_id", a.ID).Warn("profile index failed")
	}
}

// storeErr passes business failures through and wraps everything else as a
// dependency failure.
func (s *AccountService) storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repo.ErrAccountNotFound):
		return ErrNotFound
	case isBusiness(err):
		return err
	}
	s.logError(op+" failed", err, nil)
	return dependency(op, err)
}

func isBusiness(err error) bool {
	for _, target := range []error{ErrNotFound, ErrConflict, ErrUnverified, ErrInvalidCredentials, ErrInvalidCode, ErrExpired, ErrAlreadyDone, ErrValidation} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *AccountService) logError(msg string, err error, fields logrus.Fields) {
	if s.Logger != nil {
		helpers.LogError(s.Logger, msg, err, fields)
	}
}

func (s *AccountService) logInfo(msg string, fields logrus.Fields) {
	if s.Logger != nil {
		helpers.LogInfo(s.Logger, msg, fields)
	}
}
