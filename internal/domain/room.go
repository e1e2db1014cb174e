package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RoomKey identifies a logical broadcast room.
type RoomKey string

const (
	PublicRoom    RoomKey = "public"
	privatePrefix         = "prive-"
	publicPrefix          = "public-"
)

func (k RoomKey) IsPrivate() bool { return strings.HasPrefix(string(k), privatePrefix) }

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// FlexID is an id that clients send either as a JSON string or number.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		*f = FlexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: id must be a string or a number", ErrBadPayload)
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) wellFormed() bool { return validID.MatchString(string(f)) }

// Selector is the room-addressing part shared by most inbound payloads.
type Selector struct {
	ShowPriveID FlexID `json:"showPriveId,omitempty"`
	ModeleID    FlexID `json:"modeleId,omitempty"`
}

// ComputeRoomKey is a pure function of the selector: a well-formed private
// show id wins over the broadcaster id, which wins over the bare public room.
func ComputeRoomKey(sel Selector) RoomKey {
	if sel.ShowPriveID.wellFormed() {
		return RoomKey(privatePrefix + string(sel.ShowPriveID))
	}
	if sel.ModeleID.wellFormed() {
		return RoomKey(publicPrefix + string(sel.ModeleID))
	}
	return PublicRoom
}

// PublicRoomKey ignores the private show id: the broadcaster's public room,
// or the shared one.
func PublicRoomKey(sel Selector) RoomKey {
	return ComputeRoomKey(Selector{ModeleID: sel.ModeleID})
}

// ResolveRoom prefers an explicit, already computed key over the selector.
func ResolveRoom(explicit RoomKey, sel Selector) RoomKey {
	if k := RoomKey(strings.TrimSpace(string(explicit))); k != "" {
		return k
	}
	return ComputeRoomKey(sel)
}

// PrivateShow is the process-wide gate on a public room.
type PrivateShow struct {
	Active    bool
	Owner     SessionID
	OwnerName string
	Room      RoomKey
	Since     time.Time
}

// Blocks reports whether sid may not enter room while the gate is up.
func (p PrivateShow) Blocks(sid SessionID, room RoomKey) bool {
	return p.Active && room == p.Room && sid != p.Owner
}
