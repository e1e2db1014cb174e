package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "fr", cfg.Languages.Base)
	assert.Equal(t, "Europe/Paris", cfg.Show.Timezone)
	assert.Equal(t, 5*time.Second, cfg.Translation.Timeout)
	assert.Equal(t, CacheMemory, cfg.Translation.Cache.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Translation.Cache.TTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.Len(t, cfg.ICE.Servers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICE.Servers[0].URLs)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	yaml := `
port: 9000
languages:
  base: en
  supported: [en, es]
translation:
  url: http://translate.local
  cache:
    size: 50
ice:
  servers:
    - urls: ["turn:turn.local:3478"]
      username: u
      credential: p
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TRANSLATE_API_KEY", "k")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "en", cfg.Languages.Base)
	assert.Equal(t, []string{"en", "es"}, cfg.Languages.Supported)
	assert.Equal(t, "http://translate.local", cfg.Translation.URL)
	assert.Equal(t, "k", cfg.Translation.APIKey)
	assert.Equal(t, 50, cfg.Translation.Cache.Size)

	ice := cfg.ICEServers()
	require.Len(t, ice, 1)
	assert.Equal(t, "u", ice[0].Username)
	assert.Equal(t, "p", ice[0].Credential)
	assert.Equal(t, webrtc.ICECredentialTypePassword, ice[0].CredentialType)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	bad := *cfg
	bad.Port = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Show.Timezone = "Mars/Olympus"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Translation.Cache.Driver = CacheRedis
	bad.Redis.Address = ""
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Signal.Backpressure = "ignore"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.AllowedOrigins = []string{"show.example"}
	assert.Error(t, bad.Validate())
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("TRANSLATE_CACHE", "memcached")
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
