package app

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/liveshow/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry is the Session Registry: per-connection ephemeral state.
// It never calls other components; callers act on the snapshots it returns.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
	langs    *domain.Languages
	now      func() time.Time
}

func NewRegistry(langs *domain.Languages) *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*domain.Session),
		langs:    langs,
		now:      time.Now,
	}
}

func (r *Registry) Languages() *domain.Languages { return r.langs }

// OnConnect creates a session with the base language and an unset role.
// Reconnecting with a live id returns the existing session untouched.
func (r *Registry) OnConnect(sid domain.SessionID) domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sid]; ok {
		return *s
	}
	s := &domain.Session{
		ID:          sid,
		Role:        domain.RoleUnset,
		DisplayName: domain.AnonymousName,
		Language:    r.langs.Base(),
		ConnectedAt: r.now(),
	}
	r.sessions[sid] = s
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session created")
	return *s
}

func (r *Registry) Get(sid domain.SessionID) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	if !ok {
		return domain.Session{}, false
	}
	return *s, true
}

// SetLanguage stores lang in its normalized form. Codes outside the
// supported set fail with domain.ErrUnsupportedLanguage and change nothing.
func (r *Registry) SetLanguage(sid domain.SessionID, lang string) (string, error) {
	n, ok := r.langs.Supported(lang)
	if !ok {
		return "", domain.ErrUnsupportedLanguage
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return "", domain.ErrUnknownSession
	}
	s.Language = n
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("language", n).Msg("updated language")
	return n, nil
}

func (r *Registry) SetDisplayName(sid domain.SessionID, name string) string {
	name = domain.NormalizeDisplayName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sid]; ok {
		s.DisplayName = name
	}
	return name
}

func (r *Registry) SetRole(sid domain.SessionID, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sid]; ok {
		s.Role = role
	}
}

// SetRoom records the room the session last joined; empty clears it.
func (r *Registry) SetRoom(sid domain.SessionID, room domain.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sid]; ok {
		s.Room = room
	}
}

// ClearRoom forgets room only if it is still the session's current room.
func (r *Registry) ClearRoom(sid domain.SessionID, room domain.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sid]; ok && s.Room == room {
		s.Room = ""
	}
}

// Snapshot copies the given sessions; unknown ids are left out.
func (r *Registry) Snapshot(sids []domain.SessionID) map[domain.SessionID]domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.SessionID]domain.Session, len(sids))
	for _, sid := range sids {
		if s, ok := r.sessions[sid]; ok {
			out[sid] = *s
		}
	}
	return out
}

func (r *Registry) IDs() []domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Collect(maps.Keys(r.sessions))
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// OnDisconnect removes the session and returns what it looked like.
func (r *Registry) OnDisconnect(sid domain.SessionID) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return domain.Session{}, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session removed")
	return *s, true
}
