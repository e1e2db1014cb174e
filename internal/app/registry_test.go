package app

import (
	"testing"

	"github.com/dkeye/liveshow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLanguages(t *testing.T) *domain.Languages {
	t.Helper()
	langs, err := domain.NewLanguages("fr", []string{"en", "es", "de"})
	require.NoError(t, err)
	return langs
}

func TestRegistryConnectDefaults(t *testing.T) {
	r := NewRegistry(newLanguages(t))
	s := r.OnConnect("a")

	assert.Equal(t, domain.RoleUnset, s.Role)
	assert.Equal(t, "fr", s.Language)
	assert.Equal(t, domain.AnonymousName, s.DisplayName)
	assert.Equal(t, 1, r.Count())

	// reconnecting with a live id keeps the session
	_, err := r.SetLanguage("a", "es")
	require.NoError(t, err)
	assert.Equal(t, "es", r.OnConnect("a").Language)
}

func TestRegistrySetLanguage(t *testing.T) {
	r := NewRegistry(newLanguages(t))
	r.OnConnect("a")

	lang, err := r.SetLanguage("a", "EN-us")
	require.NoError(t, err)
	assert.Equal(t, "en", lang)

	_, err = r.SetLanguage("a", "ja")
	assert.ErrorIs(t, err, domain.ErrUnsupportedLanguage)
	s, _ := r.Get("a")
	assert.Equal(t, "en", s.Language)

	_, err = r.SetLanguage("nobody", "es")
	assert.ErrorIs(t, err, domain.ErrUnknownSession)
}

func TestRegistryDisconnectSnapshot(t *testing.T) {
	r := NewRegistry(newLanguages(t))
	r.OnConnect("a")
	r.SetDisplayName("a", "Ana")
	r.SetRole("a", domain.RoleViewer)
	r.SetRoom("a", "public-1")

	s, ok := r.OnDisconnect("a")
	require.True(t, ok)
	assert.Equal(t, "Ana", s.DisplayName)
	assert.Equal(t, domain.RoomKey("public-1"), s.Room)
	assert.Equal(t, domain.RoleViewer, s.Role)

	_, ok = r.Get("a")
	assert.False(t, ok)
	_, ok = r.OnDisconnect("a")
	assert.False(t, ok)
}

func TestRegistryClearRoomOnlyCurrent(t *testing.T) {
	r := NewRegistry(newLanguages(t))
	r.OnConnect("a")
	r.SetRoom("a", "public-2")

	r.ClearRoom("a", "public-1")
	s, _ := r.Get("a")
	assert.Equal(t, domain.RoomKey("public-2"), s.Room)

	r.ClearRoom("a", "public-2")
	s, _ = r.Get("a")
	assert.Empty(t, s.Room)
}

func TestRegistrySnapshotSkipsUnknown(t *testing.T) {
	r := NewRegistry(newLanguages(t))
	r.OnConnect("a")
	r.OnConnect("b")

	snap := r.Snapshot([]domain.SessionID{"a", "ghost"})
	assert.Len(t, snap, 1)
	assert.Contains(t, snap, domain.SessionID("a"))
	assert.ElementsMatch(t, []domain.SessionID{"a", "b"}, r.IDs())
}
