package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passengerlk/owner-session/internal/config"
	"github.com/passengerlk/owner-session/pkg/credential"
)

const sampleConfig = `
application:
  name: owner-session
  environment: test
backend:
  baseURL: https://api.passenger.lk
  loginPath: /bus-owners/web/login-or-register/
  timeout: 15s
credentials:
  store: valkey
  accessTTL: 1h
  refreshTTL: 24h
  pendingLoginTTL: 5m
valkey:
  host:
    source: embedded
    value: localhost:6379
  prefix: owners
client:
  type: default
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleConfig), 0o600))

	var cfg config.Config
	require.NoError(t, commoncfg.LoadConfig(&cfg, map[string]any{}, dir))

	assert.Equal(t, "https://api.passenger.lk", cfg.Backend.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, config.StoreValKey, cfg.Credentials.Store)
	assert.Equal(t, 5*time.Minute, cfg.Credentials.PendingLoginTTL)
	assert.Equal(t, "owners", cfg.ValKey.Prefix)
	assert.Equal(t, "localhost:6379", cfg.ValKey.Host.Value)
	assert.Equal(t, config.ClientDefault, cfg.Client.Type)

	assert.Equal(t, credential.Policy{AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour}, cfg.Credentials.Policy())
}

func TestBackendLoginURL(t *testing.T) {
	tests := []struct {
		name    string
		backend config.Backend
		want    string
		wantErr bool
	}{
		{
			name:    "joins base and path",
			backend: config.Backend{BaseURL: "https://api.passenger.lk", LoginPath: "/bus-owners/web/login-or-register/"},
			want:    "https://api.passenger.lk/bus-owners/web/login-or-register/",
		},
		{
			name:    "base with trailing slash",
			backend: config.Backend{BaseURL: "https://api.passenger.lk/", LoginPath: "login/"},
			want:    "https://api.passenger.lk/login/",
		},
		{
			name:    "invalid base",
			backend: config.Backend{BaseURL: "://nope", LoginPath: "/login/"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.backend.LoginURL()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
