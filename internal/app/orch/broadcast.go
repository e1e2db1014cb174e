package orch

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/dkeye/liveshow/internal/app/translate"
	"github.com/dkeye/liveshow/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

func (o *Orchestrator) translating() bool {
	return o.Translator != nil && o.Translator.Enabled()
}

// fanOut runs tasks off the dispatch goroutine. Tasks from every message
// share the same slots, so at most MaxParallel translations run at once.
// Each task owns exactly one delivery.
func (o *Orchestrator) fanOut(tasks []func()) {
	for _, t := range tasks {
		o.fanout.Go(func() { o.runTask(t) })
	}
}

func (o *Orchestrator) runTask(task func()) {
	// a cancelled orchestrator still delivers, untranslated and unthrottled
	if err := o.slots.Acquire(o.ctx, 1); err == nil {
		defer o.slots.Release(1)
	}
	if r := panics.Try(task); r != nil {
		log.Error().Str("module", "orch.broadcast").Str("panic", r.String()).Msg("fan-out task panicked")
	}
}

func (o *Orchestrator) displayName(sid domain.SessionID, claimed string) string {
	if strings.TrimSpace(claimed) != "" {
		return domain.NormalizeDisplayName(claimed)
	}
	s, _ := o.Sessions.Get(sid)
	return s.DisplayName
}

// onChatMessage delivers one chat-message per recipient. Recipients and
// their languages are fixed when the event arrives; copies that need a
// translation are sent whenever it completes, the rest right away.
func (o *Orchestrator) onChatMessage(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.ChatPayload](data)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.Message) == "" {
		return nil
	}
	room := domain.ComputeRoomKey(p.Selector)
	sender, _ := o.Sessions.Get(sid)

	recipients := o.Rooms.Members(room)
	if !slices.Contains(recipients, sid) {
		recipients = append(recipients, sid)
	}

	msg := domain.ChatMessage{
		SenderID: sid,
		Pseudo:   o.displayName(sid, p.Pseudo),
		Message:  p.Message,
		IsModel:  p.IsModel || sender.Role == domain.RoleBroadcaster,
		IsSystem: p.IsSystem,
		Room:     room,
		SentAt:   o.now().UnixMilli(),
	}

	if p.IsSystem || !o.translating() {
		for _, r := range recipients {
			o.Out.Emit(r, domain.EventChatMessage, msg)
		}
		return nil
	}

	from := translate.Party{Role: sender.Role, Language: sender.Language}
	if msg.IsModel {
		from.Role = domain.RoleBroadcaster
	}
	base := o.Sessions.Languages().Base()
	snapshot := o.Sessions.Snapshot(recipients)

	var tasks []func()
	for _, r := range recipients {
		rs, ok := snapshot[r]
		if !ok {
			continue
		}
		to := translate.Party{Role: rs.Role, Language: rs.Language}
		self := r == sid
		if !translate.ForRecipient(base, from, to, self).Translate {
			o.Out.Emit(r, domain.EventChatMessage, msg)
			continue
		}
		tasks = append(tasks, func() {
			d := o.Translator.ForRecipient(o.ctx, p.Message, from, to, self)
			out := msg
			out.SourceLanguage = d.Plan.Source
			out.TargetLanguage = d.Plan.Target
			if d.Translated {
				out.Message = d.Text
				out.OriginalMessage = p.Message
				out.Translated = true
			}
			if !o.emitLive(r, domain.EventChatMessage, out) {
				log.Debug().Str("module", "orch.broadcast").Str("sid", string(r)).Msg("recipient left before translation finished")
			}
		})
	}
	o.fanOut(tasks)
	return nil
}

// paidAction broadcasts the raw event to the room, then sends a translated
// label to every member reading another language than the base one.
func (o *Orchestrator) paidAction(event, translatedEvent string) handlerFunc {
	return func(sid domain.SessionID, data json.RawMessage) error {
		p, err := decode[domain.PaidActionPayload](data)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			data = json.RawMessage("{}")
		}
		room := domain.ComputeRoomKey(p.Selector)
		members := o.Rooms.Members(room)
		for _, m := range members {
			o.Out.Emit(m, event, data)
		}

		label := strings.TrimSpace(p.Name)
		if label == "" || !o.translating() {
			return nil
		}
		base := o.Sessions.Languages().Base()
		author := translate.Party{Role: domain.RoleBroadcaster}
		pseudo := o.displayName(sid, p.Pseudo)

		var tasks []func()
		for m, rs := range o.Sessions.Snapshot(members) {
			plan := translate.ForRecipient(base, author, translate.Party{Role: rs.Role, Language: rs.Language}, false)
			if !plan.Translate {
				continue
			}
			tasks = append(tasks, func() {
				out := o.Translator.Translate(o.ctx, label, plan.Target, plan.Source)
				if out == label {
					return
				}
				o.emitLive(m, translatedEvent, domain.PaidActionTranslation{
					SenderID:       sid,
					Pseudo:         pseudo,
					Name:           label,
					TranslatedName: out,
					Emoji:          p.Emoji,
					Language:       plan.Target,
					Room:           room,
				})
			})
		}
		o.fanOut(tasks)
		return nil
	}
}

func (o *Orchestrator) onTyping(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.TypingPayload](data)
	if err != nil {
		return err
	}
	room := domain.ComputeRoomKey(p.Selector)
	pseudo := o.displayName(sid, p.Pseudo)

	o.typingMu.Lock()
	prev, had := o.typing[sid]
	o.typing[sid] = typingState{Room: room, Pseudo: pseudo}
	o.typingMu.Unlock()

	if had && prev.Room != room {
		o.emitRoom(prev.Room, sid, domain.EventStopTyping, domain.StopTypingMessage{SocketID: sid, Room: prev.Room})
	}
	o.emitRoom(room, sid, domain.EventTyping, domain.PeerMessage{SocketID: sid, Pseudo: pseudo, Room: room})
	return nil
}

func (o *Orchestrator) onStopTyping(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.TypingPayload](data)
	if err != nil {
		return err
	}
	room := domain.ComputeRoomKey(p.Selector)
	if t, ok := o.takeTyping(sid); ok {
		room = t.Room
	}
	o.emitRoom(room, sid, domain.EventStopTyping, domain.StopTypingMessage{SocketID: sid, Room: room})
	return nil
}

func (o *Orchestrator) takeTyping(sid domain.SessionID) (typingState, bool) {
	o.typingMu.Lock()
	defer o.typingMu.Unlock()
	t, ok := o.typing[sid]
	delete(o.typing, sid)
	return t, ok
}

// Typing reports the room sid is typing in.
func (o *Orchestrator) Typing(sid domain.SessionID) (domain.RoomKey, bool) {
	o.typingMu.Lock()
	defer o.typingMu.Unlock()
	t, ok := o.typing[sid]
	return t.Room, ok
}
