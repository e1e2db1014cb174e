package orch

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/liveshow/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) onBroadcaster(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.BroadcasterPayload](data)
	if err != nil {
		return err
	}
	room := domain.ComputeRoomKey(p.Selector)
	if p.Pseudo != "" {
		o.Sessions.SetDisplayName(sid, p.Pseudo)
	}
	if err := o.Rooms.SetBroadcaster(room, sid); err != nil {
		if errors.Is(err, domain.ErrPrivateShowBlocked) {
			o.Out.Emit(sid, domain.EventRedirectToDashboard, domain.RedirectMessage{Reason: "private_show", Room: room})
			return nil
		}
		return err
	}

	if !p.HasSchedule() {
		return nil
	}
	if _, err := o.Rooms.ScheduleShow(room, p.Date, p.StartTime, p.EndTime); err != nil {
		// the broadcaster is set either way
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).
			Str("date", p.Date).Str("start", p.StartTime).Str("end", p.EndTime).Msg("show not scheduled")
	}
	return nil
}

func (o *Orchestrator) onWatcher(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.WatcherPayload](data)
	if err != nil {
		return err
	}
	o.joinViewer(domain.ComputeRoomKey(p.Selector), sid, p.Pseudo, p.Language)
	return nil
}

func (o *Orchestrator) onJoinPublic(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.WatcherPayload](data)
	if err != nil {
		return err
	}
	room := domain.PublicRoomKey(p.Selector)
	b, ok := o.joinViewer(room, sid, p.Pseudo, p.Language)
	if ok {
		o.Out.Emit(sid, domain.EventPublicJoined, domain.PublicJoinedMessage{Room: room, Broadcaster: b})
	}
	return nil
}

// joinViewer puts sid in room as a viewer, or redirects it when a private
// show gates the room. The broadcaster hears "watcher", everyone else
// "viewer-connected".
func (o *Orchestrator) joinViewer(room domain.RoomKey, sid domain.SessionID, pseudo, lang string) (domain.SessionID, bool) {
	s, _ := o.Sessions.Get(sid)
	if pseudo == "" {
		pseudo = s.DisplayName
	}

	b, err := o.Rooms.JoinAsViewer(room, sid, pseudo, lang)
	if errors.Is(err, domain.ErrPrivateShowBlocked) {
		o.Out.Emit(sid, domain.EventRedirectToDashboard, domain.RedirectMessage{Reason: "private_show", Room: room})
		return "", false
	}

	s, _ = o.Sessions.Get(sid)
	msg := domain.PeerMessage{SocketID: sid, Pseudo: s.DisplayName, Room: room}
	if b != "" && b != sid {
		o.Out.Emit(b, domain.EventWatcher, msg)
	}
	for _, m := range o.Rooms.Members(room) {
		if m != sid && m != b {
			o.Out.Emit(m, domain.EventViewerConnected, msg)
		}
	}
	return b, true
}

func (o *Orchestrator) onSwitchToPrivate(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.PrivacyPayload](data)
	if err != nil {
		return err
	}
	s, _ := o.Sessions.Get(sid)
	if s.Role != domain.RoleBroadcaster {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("switch-to-private from a non-broadcaster ignored")
		return nil
	}
	if p.Pseudo == "" {
		p.Pseudo = s.DisplayName
	}
	o.Rooms.SwitchToPrivate(sid, p.Pseudo)
	return nil
}

func (o *Orchestrator) onCancelPrivate(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.PrivacyPayload](data)
	if err != nil {
		return err
	}
	o.Rooms.CancelPrivate(sid, p.Pseudo)
	return nil
}

func (o *Orchestrator) onRequestViewers(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.RoomPayload](data)
	if err != nil {
		return err
	}
	room := domain.ResolveRoom(p.ToRoom, p.Selector)
	o.Out.Emit(sid, domain.EventCurrentViewers, domain.ViewersMessage{Room: room, Viewers: o.Rooms.Viewers(room)})
	return nil
}
