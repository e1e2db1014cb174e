package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/liveshow/internal/core"
	"github.com/dkeye/liveshow/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// Envelope is the wire form of every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func Encode(event string, payload any) (core.Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func (ctl *SignalWSController) writePump(ctx context.Context, sid domain.SessionID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("ping failed")
				return
			}
		}
	}
}

// readPump owns the connection lifetime: when it returns the session is
// unregistered and its disconnect is queued.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid domain.SessionID, c *WsSignalConn) {
	defer func() {
		cancel()
		ctl.Hub.Unregister(sid, c)
		ctl.Limiter.Forget(sid)
		c.Close()
		ctl.Sink.Submit(context.Background(), core.Inbound{SID: sid, Kind: core.InboundDisconnect})
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("connection closed")
	}()

	c.conn.SetReadLimit(ctl.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
		if !ctl.handleSignal(ctx, sid, data) {
			return
		}
	}
}

// handleSignal decodes one envelope and queues it. It reports false when
// the dispatch loop is gone.
func (ctl *SignalWSController) handleSignal(ctx context.Context, sid domain.SessionID, data []byte) bool {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad envelope")
		ctl.Hub.Emit(sid, domain.EventError, domain.NewErrorMessage(domain.ErrCodeBadRequest, "expected {\"event\": ..., \"data\": ...}"))
		return true
	}
	if _, limited := rateLimited[env.Event]; limited && !ctl.Limiter.Allow(sid) {
		log.Debug().Err(domain.ErrRateLimited).Str("module", "signal").Str("sid", string(sid)).Str("event", env.Event).Msg("dropped")
		ctl.Hub.Emit(sid, domain.EventError, domain.NewErrorMessage(domain.ErrCodeRateLimited, "slow down"))
		return true
	}
	return ctl.Sink.Submit(ctx, core.Inbound{SID: sid, Kind: core.InboundEvent, Event: env.Event, Data: env.Data})
}
