package application

import (
	"context"
	"io"
	"time"

	"github.com/oksasatya/barterx-accounts/internal/domain/entity"
)

// Notifier delivers a rendered message to an email address.
type Notifier interface {
	Deliver(ctx context.Context, to, subject, body string) error
}

// CodeIssuer mints a one-time code and its expiry.
type CodeIssuer interface {
	Issue() (code string, expiresAt time.Time, err error)
}

// ProfileIndex keeps a searchable copy of public profile fields.
type ProfileIndex interface {
	Index(ctx context.Context, a *entity.Account) error
	Search(ctx context.Context, query string, size int) ([]map[string]any, error)
}

// PictureStore uploads a profile picture and returns its public URL.
type PictureStore interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
}
