package app

import (
	"sync"
	"testing"
	"time"

	"github.com/dkeye/liveshow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	to      domain.SessionID
	event   string
	payload any
}

type fakeOut struct {
	mu       sync.Mutex
	sessions *Registry
	log      []emitted
}

func (f *fakeOut) Emit(sid domain.SessionID, event string, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, emitted{sid, event, payload})
	return true
}

func (f *fakeOut) EmitAll(event string, payload any, except domain.SessionID) {
	for _, sid := range f.sessions.IDs() {
		if sid != except {
			f.Emit(sid, event, payload)
		}
	}
}

func (f *fakeOut) got(sid domain.SessionID, event string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, e := range f.log {
		if e.to == sid && e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func newRooms(t *testing.T, sids ...domain.SessionID) (*RoomRegistry, *Registry, *fakeOut) {
	t.Helper()
	reg := NewRegistry(newLanguages(t))
	out := &fakeOut{sessions: reg}
	for _, sid := range sids {
		reg.OnConnect(sid)
	}
	return NewRoomRegistry(reg, out, time.UTC), reg, out
}

func TestSetBroadcasterNotifiesOthers(t *testing.T) {
	rooms, reg, out := newRooms(t, "b", "v", "b2")
	_, err := rooms.JoinAsViewer("public-1", "v", "Vic", "es")
	require.NoError(t, err)

	rooms.SetBroadcaster("public-1", "b")
	assert.Len(t, out.got("v", domain.EventBroadcaster), 1)
	assert.Empty(t, out.got("b", domain.EventBroadcaster))

	s, _ := reg.Get("b")
	assert.Equal(t, domain.RoleBroadcaster, s.Role)
	assert.Equal(t, domain.RoomKey("public-1"), s.Room)

	rooms.SetBroadcaster("public-1", "b2")
	b, _ := rooms.BroadcasterOf("public-1")
	assert.Equal(t, domain.SessionID("b2"), b)
	// the replaced broadcaster is not evicted
	assert.True(t, rooms.IsMember("public-1", "b"))
}

func TestJoinAsViewerMovesRooms(t *testing.T) {
	rooms, reg, _ := newRooms(t, "b", "v")
	rooms.SetBroadcaster("public-2", "b")

	_, err := rooms.JoinAsViewer("public-1", "v", "", "")
	require.NoError(t, err)
	b, err := rooms.JoinAsViewer("public-2", "v", "Vic", "de")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("b"), b)

	assert.False(t, rooms.Exists("public-1"))
	assert.True(t, rooms.IsMember("public-2", "v"))
	p, ok := rooms.Viewer("v")
	require.True(t, ok)
	assert.Equal(t, "de", p.Language)
	s, _ := reg.Get("v")
	assert.Equal(t, domain.RoleViewer, s.Role)
	assert.Equal(t, "Vic", s.DisplayName)
}

func TestViewerMoveNotifiesPreviousRoom(t *testing.T) {
	rooms, _, out := newRooms(t, "b1", "b2", "v", "w")
	require.NoError(t, rooms.SetBroadcaster("public-1", "b1"))
	require.NoError(t, rooms.SetBroadcaster("public-2", "b2"))
	_, _ = rooms.JoinAsViewer("public-1", "v", "Vic", "")
	_, _ = rooms.JoinAsViewer("public-1", "w", "Wan", "")

	_, err := rooms.JoinAsViewer("public-2", "v", "Vic", "")
	require.NoError(t, err)

	peers := out.got("b1", domain.EventDisconnectPeer)
	require.Len(t, peers, 1)
	assert.Equal(t, domain.SessionID("v"), peers[0].(domain.PeerMessage).SocketID)
	assert.Len(t, out.got("w", domain.EventViewerDisconnected), 1)
	assert.Empty(t, out.got("b2", domain.EventDisconnectPeer))
	assert.False(t, rooms.IsMember("public-1", "v"))

	// rejoining the same room is not a move
	_, err = rooms.JoinAsViewer("public-2", "v", "Vic", "")
	require.NoError(t, err)
	assert.Empty(t, out.got("b2", domain.EventDisconnectPeer))
}

func TestViewerBecomingBroadcasterLeavesViewerRoom(t *testing.T) {
	rooms, _, out := newRooms(t, "b1", "v")
	require.NoError(t, rooms.SetBroadcaster("public-1", "b1"))
	_, _ = rooms.JoinAsViewer("public-1", "v", "Vic", "")

	require.NoError(t, rooms.SetBroadcaster("public-3", "v"))
	assert.Len(t, out.got("b1", domain.EventDisconnectPeer), 1)
	assert.False(t, rooms.IsMember("public-1", "v"))
}

func TestSetBroadcasterRespectsPrivateGate(t *testing.T) {
	rooms, _, _ := newRooms(t, "b", "x")
	require.NoError(t, rooms.SetBroadcaster(domain.PublicRoom, "b"))
	rooms.SwitchToPrivate("b", "Star")

	err := rooms.SetBroadcaster(domain.PublicRoom, "x")
	assert.ErrorIs(t, err, domain.ErrPrivateShowBlocked)
	b, _ := rooms.BroadcasterOf(domain.PublicRoom)
	assert.Equal(t, domain.SessionID("b"), b)
	assert.False(t, rooms.IsMember(domain.PublicRoom, "x"))

	// other rooms stay open and the owner may re-announce
	assert.NoError(t, rooms.SetBroadcaster("public-5", "x"))
	assert.NoError(t, rooms.SetBroadcaster(domain.PublicRoom, "b"))
}

func TestJoinAsViewerKeepsLanguageOnUnsupported(t *testing.T) {
	rooms, reg, _ := newRooms(t, "v")
	_, err := rooms.JoinAsViewer("public", "v", "", "klingon")
	require.NoError(t, err)
	s, _ := reg.Get("v")
	assert.Equal(t, "fr", s.Language)
}

func TestScheduleShow(t *testing.T) {
	rooms, _, out := newRooms(t, "b", "v")
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	rooms.now = func() time.Time { return now }
	rooms.SetBroadcaster("public-1", "b")
	_, err := rooms.JoinAsViewer("public-1", "v", "", "")
	require.NoError(t, err)

	st, err := rooms.ScheduleShow("public-1", "2026-03-01", "20:00", "01:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC), st.End)

	got := out.got("v", domain.EventShowTime)
	require.Len(t, got, 1)
	assert.Equal(t, int64(6*3600), got[0].(domain.ShowTimeMessage).RemainingSeconds)
	assert.Len(t, out.got("b", domain.EventShowTime), 1)

	_, err = rooms.ScheduleShow("public-1", "2026-03-01", "10:00", "12:00")
	assert.ErrorIs(t, err, domain.ErrShowEnded)
	_, err = rooms.ScheduleShow("public-1", "03/01/2026", "10:00", "12:00")
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	assert.Len(t, out.got("v", domain.EventShowTime), 1)
}

func TestSwitchAndCancelPrivate(t *testing.T) {
	rooms, _, out := newRooms(t, "b", "v", "x")
	rooms.SetBroadcaster("public-7", "b")
	_, err := rooms.JoinAsViewer("public-7", "v", "", "")
	require.NoError(t, err)

	ps := rooms.SwitchToPrivate("b", "Star")
	assert.True(t, ps.Active)
	assert.Equal(t, domain.RoomKey("public-7"), ps.Room)
	assert.Len(t, out.got("v", domain.EventRedirectToDashboard), 1)
	assert.Equal(t, []domain.SessionID{"b"}, rooms.Members("public-7"))
	_, ok := rooms.Viewer("v")
	assert.False(t, ok)
	assert.Len(t, out.got("x", domain.EventPrivateShowStarted), 1)

	_, err = rooms.JoinAsViewer("public-7", "v", "", "")
	assert.ErrorIs(t, err, domain.ErrPrivateShowBlocked)
	_, err = rooms.JoinAsViewer("public-8", "v", "", "")
	assert.NoError(t, err)

	assert.False(t, rooms.CancelPrivate("x", ""))
	assert.True(t, rooms.CancelPrivate("b", ""))
	msgs := out.got("x", domain.EventPrivateShowCancelled)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Star", msgs[0].(domain.PrivateShowMessage).Pseudo)
	assert.True(t, rooms.IsMember("public-7", "b"))
}

func TestOnSessionRemoved(t *testing.T) {
	rooms, _, out := newRooms(t, "b", "v", "w")
	rooms.SetBroadcaster("public-1", "b")
	rooms.SetBroadcaster("prive-9", "b")
	_, _ = rooms.JoinAsViewer("public-1", "v", "V", "")
	_, _ = rooms.JoinAsViewer("prive-9", "w", "W", "")

	d := rooms.OnSessionRemoved("b")
	assert.ElementsMatch(t, []domain.RoomKey{"prive-9", "public-1"}, d.BroadcasterOf)
	assert.Len(t, out.got("v", domain.EventBroadcasterLeft), 1)
	assert.Len(t, out.got("w", domain.EventBroadcasterLeft), 1)
	assert.Empty(t, rooms.RoomsOf("b"))

	d = rooms.OnSessionRemoved("v")
	assert.True(t, d.WasViewer)
	assert.Equal(t, domain.RoomKey("public-1"), d.ViewerOf)
	assert.False(t, rooms.Exists("public-1"))

	rooms.OnSessionRemoved("w")
	assert.Empty(t, rooms.List())
	assert.NotPanics(t, func() { rooms.OnSessionRemoved("nobody") })
}

func TestListAndViewers(t *testing.T) {
	rooms, _, _ := newRooms(t, "b", "v")
	rooms.SetBroadcaster("public-1", "b")
	_, _ = rooms.JoinAsViewer("public-1", "v", "Vic", "")

	list := rooms.List()
	require.Len(t, list, 1)
	assert.Equal(t, domain.RoomKey("public-1"), list[0].Key)
	assert.True(t, list[0].HasBroadcaster)
	assert.Equal(t, 2, list[0].MemberCount)
	assert.Equal(t, map[domain.SessionID]string{"v": "Vic"}, rooms.Viewers("public-1"))
}
