package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/liveshow/internal/app"
	"github.com/dkeye/liveshow/internal/app/translate"
	"github.com/dkeye/liveshow/internal/core"
	"github.com/dkeye/liveshow/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/semaphore"
)

const (
	defaultInboxSize   = 1024
	defaultMaxParallel = 16
)

type Options struct {
	ICEServers  []webrtc.ICEServer
	MaxParallel int
	InboxSize   int
}

type handlerFunc func(sid domain.SessionID, data json.RawMessage) error

// Orchestrator owns event dispatch. Everything that mutates room or session
// state runs on the goroutine calling Handle; only translation fan-out runs
// elsewhere.
type Orchestrator struct {
	Sessions   *app.Registry
	Rooms      *app.RoomRegistry
	Translator *translate.Dispatcher
	Out        core.Outbound

	ice      []webrtc.ICEServer
	handlers map[string]handlerFunc

	typingMu sync.Mutex
	typing   map[domain.SessionID]typingState

	inbox  chan core.Inbound
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	fanout conc.WaitGroup
	slots  *semaphore.Weighted
	now    func() time.Time
}

type typingState struct {
	Room   domain.RoomKey
	Pseudo string
}

// ConnectedMessage greets a new connection.
type ConnectedMessage struct {
	ID           domain.SessionID   `json:"id"`
	Language     string             `json:"language"`
	BaseLanguage string             `json:"baseLanguage"`
	Languages    []string           `json:"languages"`
	Pseudo       string             `json:"pseudo"`
	ICEServers   []webrtc.ICEServer `json:"iceServers"`
}

type PongMessage struct {
	Time int64 `json:"time"`
}

func New(sessions *app.Registry, rooms *app.RoomRegistry, tr *translate.Dispatcher, out core.Outbound, opts Options) *Orchestrator {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = defaultMaxParallel
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		Sessions:   sessions,
		Rooms:      rooms,
		Translator: tr,
		Out:        out,
		ice:        opts.ICEServers,
		typing:     make(map[domain.SessionID]typingState),
		inbox:      make(chan core.Inbound, opts.InboxSize),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		slots:      semaphore.NewWeighted(int64(opts.MaxParallel)),
		now:        time.Now,
	}
	o.handlers = map[string]handlerFunc{
		domain.EventBroadcaster:         o.onBroadcaster,
		domain.EventWatcher:             o.onWatcher,
		domain.EventSwitchToPrivate:     o.onSwitchToPrivate,
		domain.EventCancelPrivate:       o.onCancelPrivate,
		domain.EventJoinPublic:          o.onJoinPublic,
		domain.EventOffer:               o.relayTo(domain.EventOffer),
		domain.EventAnswer:              o.relayTo(domain.EventAnswer),
		domain.EventCandidate:           o.relayTo(domain.EventCandidate),
		domain.EventClientOffer:         o.onClientOffer,
		domain.EventClientAnswer:        o.onClientAnswer,
		domain.EventClientCandidate:     o.onClientCandidate,
		domain.EventClientStop:          o.onClientStop,
		domain.EventWatcherDisconnected: o.onWatcherDisconnected,
		domain.EventChatMessage:         o.onChatMessage,
		domain.EventJetonSent:           o.paidAction(domain.EventJetonSent, domain.EventJetonTranslated),
		domain.EventSurpriseSent:        o.paidAction(domain.EventSurpriseSent, domain.EventSurpriseTranslated),
		domain.EventTyping:              o.onTyping,
		domain.EventStopTyping:          o.onStopTyping,
		domain.EventRequestViewers:      o.onRequestViewers,
		domain.EventSetLanguage:         o.onSetLanguage,
		domain.EventPing:                o.onPing,
	}
	return o
}

// Run handles queued items one at a time until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.done)
	log.Info().Str("module", "orch").Msg("dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("dispatch loop stopped")
			return
		case in := <-o.inbox:
			o.Handle(in)
		}
	}
}

// Done is closed once Run has returned.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Submit queues in for Run. It reports false once the loop is gone or ctx
// expires first.
func (o *Orchestrator) Submit(ctx context.Context, in core.Inbound) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.inbox <- in:
		return true
	case <-o.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Handle processes one item synchronously. A panicking handler drops the
// event and leaves every other piece of state alone.
func (o *Orchestrator) Handle(in core.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "orch").Str("sid", string(in.SID)).Str("event", in.Event).
				Interface("panic", r).Msg("handler panicked")
		}
	}()

	switch in.Kind {
	case core.InboundConnect:
		o.connect(in.SID, in.Prefs)
	case core.InboundDisconnect:
		o.disconnect(in.SID)
	default:
		o.dispatch(in.SID, in.Event, in.Data)
	}
}

// Drain waits for translation fan-outs still in flight. It must not race
// with Handle: call it from the goroutine driving Handle, or after Run has
// returned.
func (o *Orchestrator) Drain() {
	o.fanout.Wait()
}

// Close cancels pending translations and waits for their deliveries. The
// same ordering rule as Drain applies.
func (o *Orchestrator) Close() {
	o.cancel()
	o.Drain()
}

func (o *Orchestrator) dispatch(sid domain.SessionID, event string, data json.RawMessage) {
	h, ok := o.handlers[event]
	if !ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("event", event).Msg("unknown event")
		o.Out.Emit(sid, domain.EventError, domain.NewErrorMessage(domain.ErrCodeUnknownEvent, "unknown event "+event))
		return
	}
	if _, ok := o.Sessions.Get(sid); !ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("event", event).Msg("event from unknown session dropped")
		return
	}

	err := h(sid, data)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrBadPayload):
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("event", event).Msg("bad payload")
		o.Out.Emit(sid, domain.EventError, domain.NewErrorMessage(domain.ErrCodeBadRequest, err.Error()))
	default:
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("event", event).Msg("event dropped")
	}
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		if errors.Is(err, domain.ErrBadPayload) {
			return v, err
		}
		return v, errors.Join(domain.ErrBadPayload, err)
	}
	return v, nil
}

func (o *Orchestrator) connect(sid domain.SessionID, prefs core.Preferences) {
	s := o.Sessions.OnConnect(sid)
	if prefs.Language != "" {
		if lang, err := o.Sessions.SetLanguage(sid, prefs.Language); err == nil {
			s.Language = lang
		}
	}
	if prefs.Pseudo != "" {
		s.DisplayName = o.Sessions.SetDisplayName(sid, prefs.Pseudo)
	}

	langs := o.Sessions.Languages()
	o.Out.Emit(sid, domain.EventConnected, ConnectedMessage{
		ID:           sid,
		Language:     s.Language,
		BaseLanguage: langs.Base(),
		Languages:    langs.List(),
		Pseudo:       s.DisplayName,
		ICEServers:   o.ice,
	})
}

// disconnect purges sid from every structure before returning.
func (o *Orchestrator) disconnect(sid domain.SessionID) {
	if t, ok := o.takeTyping(sid); ok {
		o.emitRoom(t.Room, sid, domain.EventStopTyping, domain.StopTypingMessage{SocketID: sid, Room: t.Room})
	}

	d := o.Rooms.OnSessionRemoved(sid)
	s, ok := o.Sessions.OnDisconnect(sid)
	if !ok {
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("role", s.Role.String()).
		Int("broadcast_rooms", len(d.BroadcasterOf)).Bool("viewer", d.WasViewer).
		Bool("private_cleared", d.PrivateCleared).Msg("session disconnected")
}

// emitLive delivers only to sessions that are still registered.
func (o *Orchestrator) emitLive(sid domain.SessionID, event string, payload any) bool {
	if _, ok := o.Sessions.Get(sid); !ok {
		return false
	}
	return o.Out.Emit(sid, event, payload)
}

// emitRoom sends to every member of room except the given session.
func (o *Orchestrator) emitRoom(room domain.RoomKey, except domain.SessionID, event string, payload any) {
	for _, m := range o.Rooms.Members(room) {
		if m != except {
			o.Out.Emit(m, event, payload)
		}
	}
}

func (o *Orchestrator) onSetLanguage(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.SetLanguagePayload](data)
	if err != nil {
		return err
	}
	lang, err := o.Sessions.SetLanguage(sid, p.Language)
	if err != nil {
		o.Out.Emit(sid, domain.EventLanguageUpdated, domain.LanguageAck{
			Error:     domain.ErrCodeUnsupportedLanguage,
			Supported: o.Sessions.Languages().List(),
		})
		return nil
	}
	o.Out.Emit(sid, domain.EventLanguageUpdated, domain.LanguageAck{Success: true, Language: lang})
	return nil
}

func (o *Orchestrator) onPing(sid domain.SessionID, _ json.RawMessage) error {
	o.Out.Emit(sid, domain.EventPong, PongMessage{Time: o.now().UnixMilli()})
	return nil
}
