package templates

import (
	"time"

	"github.com/oksasatya/barterx-accounts/config"
)

// Brand is the company identity printed in every mail.
type Brand struct {
	AppName        string
	CompanyName    string
	CompanyAddress string
	LogoURL        string
	SupportURL     string
}

func BrandFromConfig(cfg *config.Config) Brand {
	return Brand{
		AppName:        cfg.AppName,
		CompanyName:    cfg.CompanyName,
		CompanyAddress: cfg.CompanyAddress,
		LogoURL:        cfg.LogoURL,
		SupportURL:     cfg.SupportURL,
	}
}

// Option pattern
type Option func(*EmailData)

const timeLayout = "02 January 2006, 15:04 MST"

func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.TimeAt = utc
		d.Time = utc.Format(timeLayout)
	}
}

// WithExpiresAt must follow WithTime when ValidMinutes should be filled.
func WithExpiresAt(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format(timeLayout)
		if !d.TimeAt.IsZero() {
			d.ValidMinutes = int(utc.Sub(d.TimeAt).Round(time.Minute) / time.Minute)
		}
	}
}

// NewCodeData fills the fields shared by the verification and reset mails.
func NewCodeData(b Brand, typ, name, email, code string, opts ...Option) EmailData {
	d := EmailData{
		Name:  name,
		Email: email,
		Type:  typ,
		Code:  code,

		AppName:        b.AppName,
		CompanyName:    b.CompanyName,
		CompanyAddress: b.CompanyAddress,
		LogoURL:        b.LogoURL,
		SupportURL:     b.SupportURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}
