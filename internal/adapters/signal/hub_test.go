package signal

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/liveshow/internal/core"
	"github.com/dkeye/liveshow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.full {
		return ErrBackpressure
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) envelopes(t *testing.T) []Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.frames))
	for _, fr := range f.frames {
		var env Envelope
		require.NoError(t, json.Unmarshal(fr, &env))
		out = append(out, env)
	}
	return out
}

func TestHubEmit(t *testing.T) {
	h := NewHub(nil)
	a := &fakeConn{}
	h.Register("a", a)

	assert.True(t, h.Emit("a", domain.EventPong, map[string]int{"time": 1}))
	assert.False(t, h.Emit("missing", domain.EventPong, nil))

	envs := a.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, domain.EventPong, envs[0].Event)
	assert.JSONEq(t, `{"time":1}`, string(envs[0].Data))
}

func TestHubEmitAllExcept(t *testing.T) {
	h := NewHub(nil)
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	h.Register("a", a)
	h.Register("b", b)
	h.Register("c", c)

	h.EmitAll(domain.EventPrivateShowStarted, domain.PrivateShowMessage{OwnerID: "a", Room: "public"}, "a")
	assert.Empty(t, a.envelopes(t))
	assert.Len(t, b.envelopes(t), 1)
	assert.Len(t, c.envelopes(t), 1)
}

func TestHubUnregisterOnlySameConn(t *testing.T) {
	h := NewHub(nil)
	old, cur := &fakeConn{}, &fakeConn{}
	h.Register("a", old)
	h.Register("a", cur)
	h.Unregister("a", old)
	assert.Equal(t, 1, h.Count())
	h.Unregister("a", cur)
	assert.Zero(t, h.Count())
}

func TestHubBackpressurePolicies(t *testing.T) {
	drop := NewHub(PolicyByName("drop"))
	slow := &fakeConn{full: true}
	drop.Register("s", slow)
	assert.False(t, drop.Emit("s", domain.EventPong, nil))
	assert.False(t, slow.closed)

	kick := NewHub(PolicyByName("kick"))
	slow = &fakeConn{full: true}
	kick.Register("s", slow)
	assert.False(t, kick.Emit("s", domain.EventPong, nil))
	assert.True(t, slow.closed)
}

func TestHubCloseAll(t *testing.T) {
	h := NewHub(nil)
	a, b := &fakeConn{}, &fakeConn{}
	h.Register("a", a)
	h.Register("b", b)
	h.CloseAll()
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, rl.Allow("a"))

	rl.Forget("a")
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))

	unlimited := NewRateLimiter(0, time.Second)
	for range 100 {
		require.True(t, unlimited.Allow("a"))
	}
}
