package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/barterx-accounts/internal/domain/entity"
	repo "github.com/oksasatya/barterx-accounts/internal/domain/repository"
	"github.com/oksasatya/barterx-accounts/internal/infrastructure/memory"
	mailtpl "github.com/oksasatya/barterx-accounts/pkg/mailer/templates"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// seqIssuer hands out 100001, 100002, ... and remembers each expiry.
type seqIssuer struct {
	mu     sync.Mutex
	n      int
	clock  *clock
	issued map[string]time.Time
	err    error
}

func (i *seqIssuer) Issue() (string, time.Time, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return "", time.Time{}, i.err
	}
	i.n++
	code := fmt.Sprintf("%06d", 100000+i.n)
	exp := i.clock.Now().Add(10 * time.Minute)
	i.issued[code] = exp
	return code, exp, nil
}

func (i *seqIssuer) last() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return fmt.Sprintf("%06d", 100000+i.n)
}

type message struct {
	to, subject, body string
}

type fakeNotifier struct {
	mu        sync.Mutex
	sent      []message
	err       error
	onDeliver func(ctx context.Context, to string)
}

func (n *fakeNotifier) Deliver(ctx context.Context, to, subject, body string) error {
	if n.onDeliver != nil {
		n.onDeliver(ctx, to)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, message{to, subject, body})
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *fakeNotifier) lastMessage() message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type fakeIndex struct {
	mu      sync.Mutex
	indexed []*entity.Account
	err     error
	results []map[string]any
	size    int
}

func (f *fakeIndex) Index(_ context.Context, a *entity.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, a.Clone())
	return f.err
}

func (f *fakeIndex) Search(_ context.Context, _ string, size int) ([]map[string]any, error) {
	f.size = size
	return f.results, f.err
}

type fakePictures struct {
	path, contentType string
	body              []byte
	err               error
}

func (f *fakePictures) Upload(_ context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.path, f.contentType = objectPath, contentType
	f.body, _ = io.ReadAll(r)
	return "https://cdn.example/" + objectPath, nil
}

// brokenRepo fails every call, standing in for an unreachable database.
type brokenRepo struct{}

var errDBDown = errors.New("connection refused")

func (brokenRepo) GetByEmail(context.Context, string) (*entity.Account, error) { return nil, errDBDown }
func (brokenRepo) GetByID(context.Context, string) (*entity.Account, error)    { return nil, errDBDown }
func (brokenRepo) InsertOrReplace(context.Context, *entity.Account) error      { return errDBDown }
func (brokenRepo) Mutate(context.Context, string, repo.MutateFunc) (*entity.Account, error) {
	return nil, errDBDown
}

type fixture struct {
	svc      *AccountService
	repo     *memory.AccountRepository
	clock    *clock
	issuer   *seqIssuer
	notifier *fakeNotifier
	index    *fakeIndex
	logs     *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := newClock()
	r := memory.NewAccountRepository()
	iss := &seqIssuer{clock: clk, issued: map[string]time.Time{}}
	n := &fakeNotifier{}
	idx := &fakeIndex{}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	svc := NewAccountService(r, iss, n, idx, logger, mailtpl.Brand{CompanyName: "BarterX"})
	svc.Now = clk.Now
	svc.BcryptCost = bcrypt.MinCost
	return &fixture{svc: svc, repo: r, clock: clk, issuer: iss, notifier: n, index: idx, logs: hook}
}

func (f *fixture) account(t *testing.T, email string) *entity.Account {
	t.Helper()
	a, err := f.repo.GetByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("GetByEmail(%q): %v", email, err)
	}
	return a
}

// registerVerified registers and verifies email with password pw.
func (f *fixture) registerVerified(t *testing.T, email, name, pw string) {
	t.Helper()
	ctx := context.Background()
	if err := f.svc.Register(ctx, email, name, pw); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := f.svc.VerifyEmail(ctx, email, f.issuer.last()); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
}
