package signal

import (
	"errors"
	"sync"

	"github.com/dkeye/liveshow/internal/core"
	"github.com/dkeye/liveshow/internal/domain"
	"github.com/rs/zerolog/log"
)

// Hub maps live sessions to their connections and implements core.Outbound.
type Hub struct {
	mu     sync.RWMutex
	conns  map[domain.SessionID]core.SignalConnection
	policy Policy
}

func NewHub(policy Policy) *Hub {
	if policy == nil {
		policy = DropPolicy{}
	}
	return &Hub{
		conns:  make(map[domain.SessionID]core.SignalConnection),
		policy: policy,
	}
}

func (h *Hub) Register(sid domain.SessionID, c core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[sid] = c
}

// Unregister forgets sid only while it still maps to c.
func (h *Hub) Unregister(sid domain.SessionID, c core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[sid]; ok && cur == c {
		delete(h.conns, sid)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Emit sends to one session. Unknown sessions are skipped silently.
func (h *Hub) Emit(sid domain.SessionID, event string, payload any) bool {
	h.mu.RLock()
	c, ok := h.conns[sid]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	frame, err := Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("event", event).Msg("encode")
		return false
	}
	return h.deliver(sid, c, frame)
}

func (h *Hub) EmitAll(event string, payload any, except domain.SessionID) {
	frame, err := Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("event", event).Msg("encode")
		return
	}
	h.mu.RLock()
	targets := make(map[domain.SessionID]core.SignalConnection, len(h.conns))
	for sid, c := range h.conns {
		if sid != except {
			targets[sid] = c
		}
	}
	h.mu.RUnlock()

	for sid, c := range targets {
		h.deliver(sid, c, frame)
	}
}

func (h *Hub) deliver(sid domain.SessionID, c core.SignalConnection, frame core.Frame) bool {
	err := c.TrySend(frame)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrBackpressure) {
		return false
	}
	switch h.policy.OnBackPressure(sid) {
	case KickConnection:
		log.Warn().Str("module", "signal.hub").Str("sid", string(sid)).Msg("slow consumer kicked")
		c.Close()
	case DropFrame:
		log.Debug().Str("module", "signal.hub").Str("sid", string(sid)).Msg("frame dropped")
	}
	return false
}

// CloseAll closes every registered connection; their read pumps then report
// the disconnects.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]core.SignalConnection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.Close()
	}
}
