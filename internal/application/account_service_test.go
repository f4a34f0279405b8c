package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/barterx-accounts/internal/domain/entity"
	"github.com/oksasatya/barterx-accounts/pkg/helpers"
)

func TestRegister_CreatesUnverifiedAccountAndMailsCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Register(ctx, "ana@example.com", "Ana", "s3cret!"))

	a := f.account(t, "ana@example.com")
	assert.False(t, a.IsVerified)
	assert.Equal(t, "Ana", a.Profile.Name)
	assert.Equal(t, entity.UserTypeIndividual, a.Profile.UserType)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, "s3cret!", a.PasswordHash)
	assert.True(t, helpers.CompareHashAndPassword(a.PasswordHash, "s3cret!"))
	require.NotNil(t, a.Verification)
	assert.Equal(t, "100001", a.Verification.Value)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), a.Verification.ExpiresAt)
	assert.Nil(t, a.Reset)

	require.Equal(t, 1, f.notifier.count())
	msg := f.notifier.lastMessage()
	assert.Equal(t, "ana@example.com", msg.to)
	assert.Equal(t, "BarterX Email Verification Code", msg.subject)
	assert.Contains(t, msg.body, "100001")
	assert.Contains(t, msg.body, "Hello Ana")
}

func TestRegister_MissingFields(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Register(context.Background(), "", "Ana", " ")
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")
	assert.NotContains(t, verr.Fields, "name")
	assert.Zero(t, f.notifier.count())
}

func TestPasswordsOverBcryptLimitAreRejectedByBytes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("é", 37) // 37 runes, 74 bytes

	err := f.svc.Register(ctx, "ana@example.com", "Ana", long)
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must be at most 72 bytes long", verr.Fields["password"])
	assert.Zero(t, f.notifier.count())

	f.registerVerified(t, "ana@example.com", "Ana", "old-pass")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))
	code := f.issuer.last()
	err = f.svc.CompletePasswordReset(ctx, "ana@example.com", code, long)
	require.ErrorIs(t, err, ErrValidation)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "newPassword")
	assert.NotNil(t, f.account(t, "ana@example.com").Reset, "code is not consumed")

	require.NoError(t, f.svc.Register(ctx, "bo@example.com", "Bo", strings.Repeat("é", 36)))
}

func TestRegister_ReplacesAbandonedSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Register(ctx, "ana@example.com", "Ana", "first-pass"))
	first := f.account(t, "ana@example.com")

	require.NoError(t, f.svc.Register(ctx, "ana@example.com", "Ana Maria", "second-pass"))
	second := f.account(t, "ana@example.com")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ana Maria", second.Profile.Name)
	assert.True(t, helpers.CompareHashAndPassword(second.PasswordHash, "second-pass"))
	assert.Equal(t, "100002", second.Verification.Value)

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, "ana@example.com", "100001"), ErrInvalidCode)
	assert.NoError(t, f.svc.VerifyEmail(ctx, "ana@example.com", "100002"))
}

func TestRegister_VerifiedEmailConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "ana@example.com", "Ana", "original")
	before := f.account(t, "ana@example.com")
	sent := f.notifier.count()

	err := f.svc.Register(ctx, "ana@example.com", "Mallory", "takeover")
	assert.ErrorIs(t, err, ErrConflict)

	after := f.account(t, "ana@example.com")
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Equal(t, "Ana", after.Profile.Name)
	assert.True(t, after.IsVerified)
	assert.Equal(t, sent, f.notifier.count())
}

func TestRegister_DeliveryFailureIsDependencyButAccountPersists(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp: 421 try later")

	err := f.svc.Register(context.Background(), "ana@example.com", "Ana", "pw")
	assert.ErrorIs(t, err, ErrDependency)

	a := f.account(t, "ana@example.com")
	require.NotNil(t, a.Verification)
	assert.Equal(t, "100001", a.Verification.Value)

	entry := f.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "verification code delivery failed", entry.Message)
}

func TestRegister_IssuerFailure(t *testing.T) {
	f := newFixture(t)
	f.issuer.err = errors.New("entropy exhausted")

	err := f.svc.Register(context.Background(), "ana@example.com", "Ana", "pw")
	assert.ErrorIs(t, err, ErrDependency)

	_, getErr := f.repo.GetByEmail(context.Background(), "ana@example.com")
	assert.Error(t, getErr)
}

func TestRegister_CodeIsDurableBeforeDeliveryAndLockIsReleased(t *testing.T) {
	f := newFixture(t)
	var (
		seen    *entity.Account
		mutated bool
	)
	f.notifier.onDeliver = func(ctx context.Context, to string) {
		seen, _ = f.repo.GetByEmail(ctx, to)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = f.repo.Mutate(context.Background(), to, func(*entity.Account) (*entity.Account, error) {
				return nil, nil
			})
		}()
		select {
		case <-done:
			mutated = true
		case <-time.After(time.Second):
		}
	}

	require.NoError(t, f.svc.Register(context.Background(), "ana@example.com", "Ana", "pw"))

	require.NotNil(t, seen)
	require.NotNil(t, seen.Verification)
	assert.Equal(t, "100001", seen.Verification.Value)
	assert.True(t, mutated, "account lock held during delivery")
}

func TestRegister_DeliveryGetsDeadline(t *testing.T) {
	f := newFixture(t)
	f.svc.NotifyTimeout = 2 * time.Second
	var deadline time.Time
	f.notifier.onDeliver = func(ctx context.Context, _ string) {
		deadline, _ = ctx.Deadline()
	}

	start := time.Now()
	require.NoError(t, f.svc.Register(context.Background(), "ana@example.com", "Ana", "pw"))

	require.False(t, deadline.IsZero())
	assert.WithinDuration(t, start.Add(2*time.Second), deadline, time.Second)
}

func TestVerifyEmail(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		email   string
		code    string
		wantErr error
	}{
		{
			name:    "unknown email",
			email:   "ghost@example.com",
			code:    "123456",
			wantErr: ErrNotFound,
		},
		{
			name:    "wrong code",
			email:   "ana@example.com",
			code:    "999999",
			wantErr: ErrInvalidCode,
		},
		{
			name:    "expired at exactly the deadline",
			setup:   func(f *fixture) { f.clock.Advance(10 * time.Minute) },
			email:   "ana@example.com",
			code:    "100001",
			wantErr: ErrExpired,
		},
		{
			name:    "wrong code after expiry is still invalid",
			setup:   func(f *fixture) { f.clock.Advance(time.Hour) },
			email:   "ana@example.com",
			code:    "999999",
			wantErr: ErrInvalidCode,
		},
		{
			name:  "just before deadline",
			setup: func(f *fixture) { f.clock.Advance(10*time.Minute - time.Nanosecond) },
			email: "ana@example.com",
			code:  "100001",
		},
		{
			name:    "missing code",
			email:   "ana@example.com",
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.svc.Register(ctx, "ana@example.com", "Ana", "pw"))
			if tt.setup != nil {
				tt.setup(f)
			}

			err := f.svc.VerifyEmail(ctx, tt.email, tt.code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				if a, getErr := f.repo.GetByEmail(ctx, "ana@example.com"); getErr == nil {
					assert.False(t, a.IsVerified)
				}
				return
			}
			require.NoError(t, err)
			a := f.account(t, "ana@example.com")
			assert.True(t, a.IsVerified)
			assert.Nil(t, a.Verification)
		})
	}
}

func TestVerifyEmail_SecondAttemptIsAlreadyDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "ana@example.com", "Ana", "pw")

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, "ana@example.com", "100001"), ErrAlreadyDone)
}

func TestVerifyEmail_NoPendingCodeIsExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.InsertOrReplace(ctx, &entity.Account{ID: "a-1", Email: "ana@example.com"}))

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, "ana@example.com", "100001"), ErrExpired)
}

func TestVerifyEmail_IndexesProfile(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "ana@example.com", "Ana", "pw")

	require.Len(t, f.index.indexed, 1)
	assert.Equal(t, "ana@example.com", f.index.indexed[0].Email)
	assert.True(t, f.index.indexed[0].IsVerified)
}

func TestVerifyEmail_IndexFailureIsOnlyLogged(t *testing.T) {
	f := newFixture(t)
	f.index.err = errors.New("es down")

	f.registerVerified(t, "ana@example.com", "Ana", "pw")

	entry := f.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "profile index failed", entry.Message)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "ana@example.com", "Ana", "correct horse")
	require.NoError(t, f.svc.Register(ctx, "bob@example.com", "Bob", "pw"))

	a, err := f.svc.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "Ana", a.Profile.Name)

	_, err = f.svc.Login(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "bob@example.com", "pw")
	assert.ErrorIs(t, err, ErrUnverified)

	_, err = f.svc.Login(ctx, "ghost@example.com", "pw")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Login(ctx, "ana@example.com", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRequestPasswordReset_UnknownEmailLooksLikeSuccess(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@example.com"))

	assert.Zero(t, f.notifier.count())
	_, err := f.repo.GetByEmail(context.Background(), "ghost@example.com")
	assert.Error(t, err, "no account may be created")
}

func TestRequestPasswordReset_StoresAndMailsCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "ana@example.com", "Ana", "pw")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))

	a := f.account(t, "ana@example.com")
	require.NotNil(t, a.Reset)
	assert.Equal(t, "100002", a.Reset.Value)

	msg := f.notifier.lastMessage()
	assert.Equal(t, "BarterX Password Reset Code", msg.subject)
	assert.Contains(t, msg.body, "100002")
}

func TestRequestPasswordReset_DeliveryFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "ana@example.com", "Ana", "pw")
	f.notifier.err = errors.New("mailgun: 500")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))

	assert.NotNil(t, f.account(t, "ana@example.com").Reset)
	entry := f.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "reset code delivery failed", entry.Message)
}

func TestRequestPasswordReset_StoreFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.svc.Repo = brokenRepo{}

	assert.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ana@example.com"))
	assert.Zero(t, f.notifier.count())
}

func TestRequestPasswordReset_NewCodeSupersedesOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "ana@example.com", "Ana", "pw")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))

	assert.ErrorIs(t, f.svc.VerifyResetCode(ctx, "ana@example.com", "100002"), ErrInvalidCode)
	assert.NoError(t, f.svc.VerifyResetCode(ctx, "ana@example.com", "100003"))
}

func TestRequestPasswordReset_ConcurrentRequestsKeepOneConsistentCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "ana@example.com", "Ana", "pw")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.svc.RequestPasswordReset(ctx, "ana@example.com")
		}()
	}
	wg.Wait()

	a := f.account(t, "ana@example.com")
	require.NotNil(t, a.Reset)
	exp, ok := f.issuer.issued[a.Reset.Value]
	require.True(t, ok, "stored code %q was never issued", a.Reset.Value)
	assert.Equal(t, exp, a.Reset.ExpiresAt)
}

func TestVerifyResetCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "ana@example.com", "Ana", "pw")

	assert.ErrorIs(t, f.svc.VerifyResetCode(ctx, "ana@example.com", "100001"), ErrInvalidCode, "no pending reset")
	assert.ErrorIs(t, f.svc.VerifyResetCode(ctx, "ghost@example.com", "100001"), ErrNotFound)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))

	// Checking does not consume.
	assert.NoError(t, f.svc.VerifyResetCode(ctx, "ana@example.com", "100002"))
	assert.NoError(t, f.svc.VerifyResetCode(ctx, "ana@example.com", "100002"))
	assert.ErrorIs(t, f.svc.VerifyResetCode(ctx, "ana@example.com", "000000"), ErrInvalidCode)

	f.clock.Advance(10 * time.Minute)
	assert.ErrorIs(t, f.svc.VerifyResetCode(ctx, "ana@example.com", "100002"), ErrExpired)
}

func TestCompletePasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "ana@example.com", "Ana", "old-pass")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))

	require.NoError(t, f.svc.CompletePasswordReset(ctx, "ana@example.com", "100002", "new-pass"))

	assert.Nil(t, f.account(t, "ana@example.com").Reset)
	_, err := f.svc.Login(ctx, "ana@example.com", "old-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "ana@example.com", "new-pass")
	assert.NoError(t, err)

	err = f.svc.CompletePasswordReset(ctx, "ana@example.com", "100002", "again")
	assert.ErrorIs(t, err, ErrInvalidCode, "code is single use")
}

func TestCompletePasswordReset_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "ana@example.com", "Ana", "old-pass")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))

	assert.ErrorIs(t, f.svc.CompletePasswordReset(ctx, "ghost@example.com", "100002", "x"), ErrNotFound)
	assert.ErrorIs(t, f.svc.CompletePasswordReset(ctx, "ana@example.com", "100002", ""), ErrValidation)
	assert.ErrorIs(t, f.svc.CompletePasswordReset(ctx, "ana@example.com", "111111", "x"), ErrInvalidCode)

	f.clock.Advance(11 * time.Minute)
	assert.ErrorIs(t, f.svc.CompletePasswordReset(ctx, "ana@example.com", "100002", "x"), ErrExpired)

	_, err := f.svc.Login(ctx, "ana@example.com", "old-pass")
	assert.NoError(t, err, "failed attempts leave the password alone")
}

func TestStoreFailuresAreDependencyErrors(t *testing.T) {
	f := newFixture(t)
	f.svc.Repo = brokenRepo{}
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Register(ctx, "ana@example.com", "Ana", "pw"), ErrDependency)
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, "ana@example.com", "100001"), ErrDependency)
	_, err := f.svc.Login(ctx, "ana@example.com", "pw")
	assert.ErrorIs(t, err, ErrDependency)
	assert.ErrorIs(t, f.svc.VerifyResetCode(ctx, "ana@example.com", "100001"), ErrDependency)
	assert.ErrorIs(t, f.svc.CompletePasswordReset(ctx, "ana@example.com", "100001", "x"), ErrDependency)
}

func TestFullLifecycleWithRealIssuer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issuer := helpers.NewCodeIssuer()
	issuer.Now = f.clock.Now
	f.svc.Issuer = issuer

	require.NoError(t, f.svc.Register(ctx, "ana@example.com", "Ana", "pw-1"))
	code := f.account(t, "ana@example.com").Verification.Value
	assert.Len(t, code, 6)
	assert.True(t, strings.Contains(f.notifier.lastMessage().body, code))

	require.NoError(t, f.svc.VerifyEmail(ctx, "ana@example.com", code))
	_, err := f.svc.Login(ctx, "ana@example.com", "pw-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))
	reset := f.account(t, "ana@example.com").Reset.Value
	require.NoError(t, f.svc.VerifyResetCode(ctx, "ana@example.com", reset))
	require.NoError(t, f.svc.CompletePasswordReset(ctx, "ana@example.com", reset, "pw-2"))

	_, err = f.svc.Login(ctx, "ana@example.com", "pw-2")
	assert.NoError(t, err)
}
