package app

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/liveshow/internal/core"
	"github.com/dkeye/liveshow/internal/domain"
	"github.com/rs/zerolog/log"
)

type roomEntry struct {
	broadcaster domain.SessionID
	members     map[domain.SessionID]struct{}
}

func (e *roomEntry) empty() bool { return e.broadcaster == "" && len(e.members) == 0 }

func (e *roomEntry) others(sid domain.SessionID) []domain.SessionID {
	out := make([]domain.SessionID, 0, len(e.members))
	for m := range e.members {
		if m != sid {
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return out
}

// Departure describes what OnSessionRemoved cleaned up.
type Departure struct {
	BroadcasterOf  []domain.RoomKey
	ViewerOf       domain.RoomKey
	WasViewer      bool
	PrivateCleared bool
}

type notice struct {
	to      []domain.SessionID
	event   string
	payload any
}

// RoomRegistry maps room keys to membership and the current broadcaster,
// keeps viewer profiles and the private-show gate.
// Rooms exist while they have a member or a broadcaster and are dropped
// as soon as both are gone.
type RoomRegistry struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomKey]*roomEntry
	viewers map[domain.SessionID]domain.ViewerProfile
	private domain.PrivateShow

	sessions *Registry
	out      core.Outbound
	loc      *time.Location
	now      func() time.Time
}

func NewRoomRegistry(sessions *Registry, out core.Outbound, loc *time.Location) *RoomRegistry {
	if loc == nil {
		loc = time.Local
	}
	return &RoomRegistry{
		rooms:    make(map[domain.RoomKey]*roomEntry),
		viewers:  make(map[domain.SessionID]domain.ViewerProfile),
		sessions: sessions,
		out:      out,
		loc:      loc,
		now:      time.Now,
	}
}

func (r *RoomRegistry) entry(room domain.RoomKey) *roomEntry {
	e, ok := r.rooms[room]
	if !ok {
		e = &roomEntry{members: make(map[domain.SessionID]struct{})}
		r.rooms[room] = e
	}
	return e
}

func (r *RoomRegistry) join(room domain.RoomKey, sid domain.SessionID) {
	r.entry(room).members[sid] = struct{}{}
}

func (r *RoomRegistry) leave(room domain.RoomKey, sid domain.SessionID) {
	e, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(e.members, sid)
	r.gc(room, e)
}

func (r *RoomRegistry) gc(room domain.RoomKey, e *roomEntry) {
	if e.empty() {
		delete(r.rooms, room)
		log.Debug().Str("module", "app.rooms").Str("room", string(room)).Msg("room dropped")
	}
}

func (r *RoomRegistry) send(notices []notice) {
	for _, n := range notices {
		for _, sid := range n.to {
			r.out.Emit(sid, n.event, n.payload)
		}
	}
}

// SetBroadcaster makes sid the broadcaster of room. The previous broadcaster,
// if any, is replaced without a check and stays a plain member. A room gated
// by another session's private show fails with domain.ErrPrivateShowBlocked.
func (r *RoomRegistry) SetBroadcaster(room domain.RoomKey, sid domain.SessionID) error {
	sess, _ := r.sessions.Get(sid)

	r.mu.Lock()
	if r.private.Blocks(sid, room) {
		r.mu.Unlock()
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("sid", string(sid)).Msg("broadcaster blocked by private show")
		return domain.ErrPrivateShowBlocked
	}
	var notices []notice
	if p, ok := r.viewers[sid]; ok {
		delete(r.viewers, sid)
		if p.Room != room {
			r.leave(p.Room, sid)
			notices = r.viewerLeftNotices(sid, p)
		}
	}
	e := r.entry(room)
	prev := e.broadcaster
	e.broadcaster = sid
	e.members[sid] = struct{}{}
	others := e.others(sid)
	r.mu.Unlock()

	r.sessions.SetRole(sid, domain.RoleBroadcaster)
	r.sessions.SetRoom(sid, room)

	l := log.With().Str("module", "app.rooms").Str("room", string(room)).Str("sid", string(sid)).Logger()
	if prev != "" && prev != sid {
		l.Warn().Str("previous", string(prev)).Msg("broadcaster replaced")
	} else {
		l.Info().Msg("broadcaster set")
	}

	r.send(append(notices, notice{
		to:      others,
		event:   domain.EventBroadcaster,
		payload: domain.PeerMessage{SocketID: sid, Pseudo: sess.DisplayName, Room: room},
	}))
	return nil
}

// ScheduleShow announces the end of the show to the room. Malformed input
// fails with domain.ErrInvalidSchedule; an end already in the past is logged
// and reported as domain.ErrShowEnded without notifying anyone.
func (r *RoomRegistry) ScheduleShow(room domain.RoomKey, date, start, end string) (domain.ShowTime, error) {
	st, err := domain.ParseSchedule(date, start, end, r.loc)
	if err != nil {
		return domain.ShowTime{}, err
	}
	now := r.now()
	if !st.End.After(now) {
		log.Warn().Str("module", "app.rooms").Str("room", string(room)).Time("end", st.End).Msg("show end already passed, not announcing")
		return st, domain.ErrShowEnded
	}

	r.mu.RLock()
	var members []domain.SessionID
	if e, ok := r.rooms[room]; ok {
		members = e.others("")
	}
	r.mu.RUnlock()

	r.send([]notice{{
		to:    members,
		event: domain.EventShowTime,
		payload: domain.ShowTimeMessage{
			Room:             room,
			StartTimestamp:   st.Start.UnixMilli(),
			EndTimestamp:     st.End.UnixMilli(),
			RemainingSeconds: int64(st.Remaining(now).Seconds()),
		},
	}})
	return st, nil
}

// JoinAsViewer registers sid as a viewer of room and returns the room's
// broadcaster, if any. A viewer moving rooms leaves its previous room first,
// and that room hears about it as if it had left.
func (r *RoomRegistry) JoinAsViewer(room domain.RoomKey, sid domain.SessionID, name, lang string) (domain.SessionID, error) {
	r.mu.Lock()
	if r.private.Blocks(sid, room) {
		r.mu.Unlock()
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("sid", string(sid)).Msg("join blocked by private show")
		return "", domain.ErrPrivateShowBlocked
	}
	var notices []notice
	if p, ok := r.viewers[sid]; ok && p.Room != room {
		r.leave(p.Room, sid)
		notices = r.viewerLeftNotices(sid, p)
	}
	name = domain.NormalizeDisplayName(name)
	if _, err := r.sessions.SetLanguage(sid, lang); err != nil && lang != "" {
		log.Debug().Str("module", "app.rooms").Str("sid", string(sid)).Str("language", lang).Msg("ignoring unsupported viewer language")
	}
	sess, _ := r.sessions.Get(sid)
	r.viewers[sid] = domain.ViewerProfile{
		Room:        room,
		DisplayName: name,
		Language:    sess.Language,
		JoinedAt:    r.now(),
	}
	e := r.entry(room)
	e.members[sid] = struct{}{}
	b := e.broadcaster
	r.mu.Unlock()

	r.send(notices)
	r.sessions.SetDisplayName(sid, name)
	if b != sid {
		r.sessions.SetRole(sid, domain.RoleViewer)
	}
	r.sessions.SetRoom(sid, room)
	log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("sid", string(sid)).Str("pseudo", name).Msg("viewer joined")
	return b, nil
}

// LeaveAsViewer drops the viewer profile and membership of sid, tells the
// room and its broadcaster. It reports false when sid was not a viewer.
func (r *RoomRegistry) LeaveAsViewer(sid domain.SessionID) (domain.ViewerProfile, bool) {
	r.mu.Lock()
	p, ok := r.viewers[sid]
	if !ok {
		r.mu.Unlock()
		return domain.ViewerProfile{}, false
	}
	delete(r.viewers, sid)
	r.leave(p.Room, sid)
	notices := r.viewerLeftNotices(sid, p)
	r.mu.Unlock()

	r.sessions.ClearRoom(sid, p.Room)
	r.sessions.SetRole(sid, domain.RoleUnset)
	r.send(notices)
	return p, true
}

func (r *RoomRegistry) viewerLeftNotices(sid domain.SessionID, p domain.ViewerProfile) []notice {
	e, ok := r.rooms[p.Room]
	if !ok {
		return nil
	}
	msg := domain.PeerMessage{SocketID: sid, Pseudo: p.DisplayName, Room: p.Room}
	notices := []notice{{to: e.others(sid), event: domain.EventViewerDisconnected, payload: msg}}
	if e.broadcaster != "" && e.broadcaster != sid {
		notices = append(notices, notice{to: []domain.SessionID{e.broadcaster}, event: domain.EventDisconnectPeer, payload: msg})
	}
	return notices
}

// SwitchToPrivate gates the room the owner broadcasts in (the shared public
// room when it broadcasts nowhere), evicts everybody else from it and tells
// every connection a private show started.
func (r *RoomRegistry) SwitchToPrivate(owner domain.SessionID, name string) domain.PrivateShow {
	name = domain.NormalizeDisplayName(name)
	sess, _ := r.sessions.Get(owner)

	r.mu.Lock()
	room := r.broadcastRoomOf(owner, sess.Room)
	if r.private.Active && r.private.Owner != owner {
		log.Warn().Str("module", "app.rooms").Str("previous_owner", string(r.private.Owner)).Str("owner", string(owner)).Msg("private show taken over")
	}
	r.private = domain.PrivateShow{Active: true, Owner: owner, OwnerName: name, Room: room, Since: r.now()}
	ps := r.private

	var evicted []domain.SessionID
	if e, ok := r.rooms[room]; ok {
		evicted = e.others(owner)
		for _, sid := range evicted {
			delete(e.members, sid)
			if p, ok := r.viewers[sid]; ok && p.Room == room {
				delete(r.viewers, sid)
			}
			if e.broadcaster == sid {
				e.broadcaster = ""
			}
		}
		r.gc(room, e)
	}
	r.mu.Unlock()

	for _, sid := range evicted {
		r.sessions.ClearRoom(sid, room)
		r.sessions.SetRole(sid, domain.RoleUnset)
		r.out.Emit(sid, domain.EventRedirectToDashboard, domain.RedirectMessage{Reason: "private_show", Room: room})
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("owner", string(owner)).Int("evicted", len(evicted)).Msg("private show started")
	r.out.EmitAll(domain.EventPrivateShowStarted, domain.PrivateShowMessage{OwnerID: owner, Pseudo: name, Room: room}, "")
	return ps
}

// broadcastRoomOf must be called with r.mu held.
func (r *RoomRegistry) broadcastRoomOf(sid domain.SessionID, current domain.RoomKey) domain.RoomKey {
	if e, ok := r.rooms[current]; ok && e.broadcaster == sid {
		return current
	}
	keys := slices.Sorted(maps.Keys(r.rooms))
	for _, k := range keys {
		if r.rooms[k].broadcaster == sid {
			return k
		}
	}
	return domain.PublicRoom
}

// CancelPrivate lifts the gate. Only the session that raised it can.
func (r *RoomRegistry) CancelPrivate(owner domain.SessionID, name string) bool {
	r.mu.Lock()
	if !r.private.Active || r.private.Owner != owner {
		r.mu.Unlock()
		log.Info().Str("module", "app.rooms").Str("sid", string(owner)).Msg("cancel-private ignored, not the owner")
		return false
	}
	room := r.private.Room
	if name == "" {
		name = r.private.OwnerName
	}
	r.private = domain.PrivateShow{}
	r.join(room, owner)
	r.mu.Unlock()

	r.sessions.SetRoom(owner, room)
	log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("owner", string(owner)).Msg("private show cancelled")
	r.out.EmitAll(domain.EventPrivateShowCancelled, domain.PrivateShowMessage{OwnerID: owner, Pseudo: domain.NormalizeDisplayName(name), Room: room}, "")
	return true
}

// OnSessionRemoved purges every reference to sid: broadcaster mappings,
// memberships, viewer profile and a private-show gate it owned.
func (r *RoomRegistry) OnSessionRemoved(sid domain.SessionID) Departure {
	var (
		d       Departure
		notices []notice
	)

	r.mu.Lock()
	keys := slices.Sorted(maps.Keys(r.rooms))
	for _, k := range keys {
		e := r.rooms[k]
		if e.broadcaster != sid {
			continue
		}
		e.broadcaster = ""
		d.BroadcasterOf = append(d.BroadcasterOf, k)
		notices = append(notices, notice{
			to:      e.others(sid),
			event:   domain.EventBroadcasterLeft,
			payload: domain.PeerMessage{SocketID: sid, Room: k},
		})
	}

	p, wasViewer := r.viewers[sid]
	delete(r.viewers, sid)

	for _, k := range keys {
		e := r.rooms[k]
		delete(e.members, sid)
		r.gc(k, e)
	}

	if wasViewer {
		d.WasViewer = true
		d.ViewerOf = p.Room
		notices = append(notices, r.viewerLeftNotices(sid, p)...)
	}

	var ps domain.PrivateShow
	if r.private.Active && r.private.Owner == sid {
		ps = r.private
		r.private = domain.PrivateShow{}
		d.PrivateCleared = true
	}
	r.mu.Unlock()

	r.send(notices)
	if d.PrivateCleared {
		log.Info().Str("module", "app.rooms").Str("room", string(ps.Room)).Str("owner", string(sid)).Msg("private show owner left, gate lifted")
		r.out.EmitAll(domain.EventPrivateShowCancelled, domain.PrivateShowMessage{OwnerID: sid, Pseudo: ps.OwnerName, Room: ps.Room}, sid)
	}
	return d
}

func (r *RoomRegistry) BroadcasterOf(room domain.RoomKey) (domain.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[room]
	if !ok || e.broadcaster == "" {
		return "", false
	}
	return e.broadcaster, true
}

// Members returns a sorted snapshot of the room's membership.
func (r *RoomRegistry) Members(room domain.RoomKey) []domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.rooms[room]; ok {
		return e.others("")
	}
	return nil
}

func (r *RoomRegistry) IsMember(room domain.RoomKey, sid domain.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[room]
	if !ok {
		return false
	}
	_, ok = e.members[sid]
	return ok
}

func (r *RoomRegistry) Exists(room domain.RoomKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room]
	return ok
}

// RoomsOf lists every room sid is a member or broadcaster of.
func (r *RoomRegistry) RoomsOf(sid domain.SessionID) []domain.RoomKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.RoomKey
	for k, e := range r.rooms {
		if _, ok := e.members[sid]; ok || e.broadcaster == sid {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func (r *RoomRegistry) Viewer(sid domain.SessionID) (domain.ViewerProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.viewers[sid]
	return p, ok
}

// Viewers maps each viewer of room to its display name.
func (r *RoomRegistry) Viewers(room domain.RoomKey) map[domain.SessionID]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.SessionID]string)
	for sid, p := range r.viewers {
		if p.Room == room {
			out[sid] = p.DisplayName
		}
	}
	return out
}

func (r *RoomRegistry) Private() domain.PrivateShow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.private
}

func (r *RoomRegistry) List() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for _, k := range slices.Sorted(maps.Keys(r.rooms)) {
		e := r.rooms[k]
		out = append(out, core.RoomInfo{
			Key:            k,
			Broadcaster:    e.broadcaster,
			HasBroadcaster: e.broadcaster != "",
			MemberCount:    len(e.members),
			Gated:          r.private.Active && r.private.Room == k,
		})
	}
	return out
}
