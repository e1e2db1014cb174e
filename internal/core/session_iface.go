package core

import (
	"context"
	"encoding/json"

	"github.com/dkeye/liveshow/internal/domain"
)

// Outbound is the delivery half of the transport as the core sees it.
// Emit to a session that is gone is a silent no-op and reports false.
type Outbound interface {
	Emit(sid domain.SessionID, event string, payload any) bool
	EmitAll(event string, payload any, except domain.SessionID)
}

// RoomInfo is a read-only view for APIs.
type RoomInfo struct {
	Key            domain.RoomKey   `json:"key"`
	Broadcaster    domain.SessionID `json:"broadcaster,omitempty"`
	HasBroadcaster bool             `json:"has_broadcaster"`
	MemberCount    int              `json:"member_count"`
	Gated          bool             `json:"gated"`
}

type InboundKind uint8

const (
	InboundEvent InboundKind = iota
	InboundConnect
	InboundDisconnect
)

// Preferences seed a new session from what the client stored earlier.
type Preferences struct {
	Language string
	Pseudo   string
}

// Inbound is one item on the dispatch queue: a connection opened, closed,
// or delivered an event.
type Inbound struct {
	SID   domain.SessionID
	Kind  InboundKind
	Event string
	Data  json.RawMessage
	Prefs Preferences
}

// Sink accepts inbound items for sequential handling.
type Sink interface {
	Submit(ctx context.Context, in Inbound) bool
}
