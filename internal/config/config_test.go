package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
site:
  title: "Acme"
  base_url: "https://acme.example.com"
  notification_email: "noreply@acme.example.com"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, EmailsEnabled, cfg.Site.EmailsDisabled)
	assert.Equal(t, 2803, cfg.Site.ShortEmailThresholdBytes)
	assert.Equal(t, "https://api.sparkpost.com/api/v1", cfg.Transport.SparkPost.BaseURL)
	assert.Equal(t, "mailroom:queue:outbound", cfg.Worker.Queue)
	assert.Equal(t, 4, cfg.Worker.NumWorkers)
}

func TestLoadInvalidDisabledMode(t *testing.T) {
	path := writeConfig(t, `
site:
  emails_disabled: "maybe"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emails_disabled")
}

func TestLoadUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
transport:
  provider: "pigeon"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider")
}

func TestSiteHost(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"https url", "https://acme.example.com", "acme.example.com"},
		{"with path", "https://acme.example.com/forum", "acme.example.com"},
		{"with port", "http://localhost:3000", "localhost"},
		{"bare host", "acme.example.com", "acme.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := SiteConfig{BaseURL: tt.baseURL}
			assert.Equal(t, tt.want, site.Host())
		})
	}
}

func TestBounceAddress(t *testing.T) {
	site := SiteConfig{NotificationEmail: "noreply@acme.example.com"}
	assert.Equal(t, "noreply+verp-abc123@acme.example.com", site.BounceAddress("abc123"))
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
transport:
  provider: "sparkpost"
  sparkpost:
    api_key: "file-key"
`)

	t.Setenv("SPARKPOST_API_KEY", "env-key")
	t.Setenv("MAIL_PROVIDER", "mailjet")
	t.Setenv("DATABASE_URL", "postgres://mailroom@localhost/mailroom")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Transport.SparkPost.APIKey)
	assert.Equal(t, ProviderMailjet, cfg.Transport.Provider)
	assert.Equal(t, "postgres://mailroom@localhost/mailroom", cfg.Database.URL)
}
