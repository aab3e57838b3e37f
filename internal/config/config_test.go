package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN", "token")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Gateway.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, "notification", cfg.Push.Event)
	assert.True(t, cfg.Session.ResyncOnJoin)
	assert.Zero(t, cfg.Session.ResyncInterval)
	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.App.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN", "token")
	t.Setenv("GATEWAY_BASE_URL", "https://api.example.com/")
	t.Setenv("PUSH_URL", "wss://push.example.com/socket")
	t.Setenv("SESSION_RESYNC_INTERVAL", "5m")
	t.Setenv("SESSION_RESYNC_ON_JOIN", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.Gateway.BaseURL)
	assert.Equal(t, "wss://push.example.com/socket", cfg.Push.URL)
	assert.Equal(t, 5*time.Minute, cfg.Session.ResyncInterval)
	assert.False(t, cfg.Session.ResyncOnJoin)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.App.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing token":    {},
		"bad duration":     {"ACCESS_TOKEN": "t", "GATEWAY_TIMEOUT": "soon"},
		"http push url":    {"ACCESS_TOKEN": "t", "PUSH_URL": "http://push.example.com"},
		"bad port":         {"ACCESS_TOKEN": "t", "APP_PORT": "abc"},
		"inverted backoff": {"ACCESS_TOKEN": "t", "PUSH_RECONNECT_MIN": "1m", "PUSH_RECONNECT_MAX": "1s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("ACCESS_TOKEN", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
