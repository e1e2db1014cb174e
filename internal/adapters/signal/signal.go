package signal

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/liveshow/internal/core"
	"github.com/dkeye/liveshow/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

type Options struct {
	AllowedOrigins []string
	ReadLimit      int64
	PingPeriod     time.Duration
	SendBuffer     int
	RateLimit      int
	RateInterval   time.Duration
}

// rateLimited are the events a client can spam at other people.
var rateLimited = map[string]struct{}{
	domain.EventChatMessage:  {},
	domain.EventJetonSent:    {},
	domain.EventSurpriseSent: {},
	domain.EventTyping:       {},
}

// SignalWSController upgrades HTTP requests and pumps envelopes between the
// socket and the dispatch loop.
type SignalWSController struct {
	Hub     *Hub
	Sink    core.Sink
	Limiter *RateLimiter

	upgrader   websocket.Upgrader
	readLimit  int64
	pingPeriod time.Duration
	pongWait   time.Duration
	sendBuffer int
}

func NewSignalWSController(hub *Hub, sink core.Sink, opts Options) *SignalWSController {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 64 << 10
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 25 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &SignalWSController{
		Hub:     hub,
		Sink:    sink,
		Limiter: NewRateLimiter(opts.RateLimit, opts.RateInterval),
		upgrader: websocket.Upgrader{
			CheckOrigin: OriginChecker(opts.AllowedOrigins),
		},
		readLimit:  opts.ReadLimit,
		pingPeriod: opts.PingPeriod,
		pongWait:   opts.PingPeriod * 10 / 9,
		sendBuffer: opts.SendBuffer,
	}
}

// OriginChecker accepts requests without an Origin header, any origin when
// the list holds "*", and otherwise exact scheme://host matches.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[strings.TrimRight(strings.ToLower(a), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, prefs core.Preferences) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := domain.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("remote", c.ClientIP()).Msg("new WS connection")

	conn := newWsSignalConn(ws, ctl.sendBuffer)
	ctl.Hub.Register(sid, conn)
	if !ctl.Sink.Submit(ctx, core.Inbound{SID: sid, Kind: core.InboundConnect, Prefs: prefs}) {
		ctl.Hub.Unregister(sid, conn)
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, sid, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
