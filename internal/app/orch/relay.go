package orch

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/liveshow/internal/domain"
	"github.com/rs/zerolog/log"
)

// Relay handlers never interpret SDP or ICE payloads and never report a
// missing peer back to the sender; negotiation above retries on its own.

func (o *Orchestrator) relayTo(event string) handlerFunc {
	return func(sid domain.SessionID, data json.RawMessage) error {
		p, err := decode[domain.RelayPayload](data)
		if err != nil {
			return err
		}
		if p.Target == "" {
			return errors.Join(domain.ErrBadPayload, errors.New("missing target"))
		}
		o.forward(sid, p.Target, event, domain.RelayedMessage{From: sid, Message: p.Message})
		return nil
	}
}

func (o *Orchestrator) forward(from, to domain.SessionID, event string, payload any) {
	if o.emitLive(to, event, payload) {
		return
	}
	log.Debug().Err(domain.ErrRelayTargetMissing).Str("module", "orch.relay").
		Str("from", string(from)).Str("to", string(to)).Str("event", event).Msg("dropped")
}

func (o *Orchestrator) onClientOffer(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.ClientOfferPayload](data)
	if err != nil {
		return err
	}
	room := domain.ResolveRoom(p.ToRoom, p.Selector)
	b, ok := o.Rooms.BroadcasterOf(room)
	if !ok {
		log.Info().Str("module", "orch.relay").Str("sid", string(sid)).Str("room", string(room)).Msg("client-offer to a room without broadcaster")
		return nil
	}
	o.forward(sid, b, domain.EventClientOffer, domain.ClientOfferMessage{From: sid, Offer: p.Offer})
	return nil
}

func (o *Orchestrator) onClientAnswer(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.ClientAnswerPayload](data)
	if err != nil {
		return err
	}
	if p.ToClientSocketID == "" {
		return errors.Join(domain.ErrBadPayload, errors.New("missing toClientSocketId"))
	}
	o.forward(sid, p.ToClientSocketID, domain.EventClientAnswer, domain.ClientAnswerMessage{From: sid, Description: p.Description})
	return nil
}

// onClientCandidate goes to the addressed session, else to the broadcaster of
// the selected room.
func (o *Orchestrator) onClientCandidate(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.ClientCandidatePayload](data)
	if err != nil {
		return err
	}
	target := p.Target()
	if target == "" {
		room := domain.ResolveRoom(p.ToRoom, p.Selector)
		b, ok := o.Rooms.BroadcasterOf(room)
		if !ok {
			log.Debug().Str("module", "orch.relay").Str("sid", string(sid)).Str("room", string(room)).Msg("client-candidate to a room without broadcaster")
			return nil
		}
		target = b
	}
	o.forward(sid, target, domain.EventClientCandidate, domain.ClientCandidateMessage{From: sid, Candidate: p.Candidate})
	return nil
}

// onClientStop tells the broadcaster the viewer is hanging up.
func (o *Orchestrator) onClientStop(sid domain.SessionID, data json.RawMessage) error {
	p, err := decode[domain.ClientStopPayload](data)
	if err != nil {
		return err
	}
	room := domain.ResolveRoom(p.ToRoom, p.Selector)
	b, ok := o.Rooms.BroadcasterOf(room)
	if !ok || b == sid {
		return nil
	}
	s, _ := o.Sessions.Get(sid)
	o.forward(sid, b, domain.EventClientDisconnecting, domain.DisconnectingMessage{From: sid, Pseudo: s.DisplayName, Room: room})
	return nil
}

func (o *Orchestrator) onWatcherDisconnected(sid domain.SessionID, _ json.RawMessage) error {
	if p, ok := o.Rooms.LeaveAsViewer(sid); ok {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(p.Room)).Msg("viewer left")
	}
	return nil
}
