package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/barterx-accounts/config"
)

func TestRender_VerificationCode(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	data := NewCodeData(Brand{CompanyName: "BarterX"}, VerificationCode, "Ann", "a@x.com", "123456",
		WithTime(now), WithExpiresAt(now.Add(10*time.Minute)))

	subject, html, err := Render(VerificationCode, data)
	require.NoError(t, err)
	assert.Equal(t, "BarterX Email Verification Code", subject)
	assert.Contains(t, html, "Hello Ann,")
	assert.Contains(t, html, "123456")
	assert.Contains(t, html, "valid for 10 minutes")
	assert.Contains(t, html, "04 March 2026, 10:10 UTC")
}

func TestRender_PasswordResetDefaults(t *testing.T) {
	data := NewCodeData(Brand{}, PasswordReset, "", "a@x.com", "654321")

	subject, html, err := Render(PasswordReset, data)
	require.NoError(t, err)
	assert.Equal(t, "BarterX Password Reset Code", subject)
	assert.Contains(t, html, "Hello User,")
	assert.Contains(t, html, "654321")
	assert.NotContains(t, html, "Contact support")
}

func TestRender_EscapesHTML(t *testing.T) {
	data := NewCodeData(Brand{}, VerificationCode, "<script>x</script>", "a@x.com", "111111")
	_, html, err := Render(VerificationCode, data)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRender_MapData(t *testing.T) {
	m := ToMap(NewCodeData(Brand{CompanyName: "Acme"}, PasswordReset, "Bo", "b@x.com", "222222"))
	subject, html, err := Render(PasswordReset, m)
	require.NoError(t, err)
	assert.Equal(t, "Acme Password Reset Code", subject)
	assert.Contains(t, html, "222222")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, _, err := Render("nope", EmailData{})
	assert.Error(t, err)
}

func TestBrandFromConfig(t *testing.T) {
	b := BrandFromConfig(&config.Config{AppName: "app", CompanyName: "co", SupportURL: "https://help"})
	assert.Equal(t, Brand{AppName: "app", CompanyName: "co", SupportURL: "https://help"}, b)
}
