// Package domain holds the relay entities and the pure rules over them:
// room keys, schedules, display names and language codes.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxDisplayNameLen = 36
	AnonymousName     = "Anonyme"
)

// SessionID is assigned by the transport, one per live connection.
type SessionID string

type Role int

const (
	RoleUnset Role = iota
	RoleBroadcaster
	RoleViewer
)

func (r Role) String() string {
	switch r {
	case RoleBroadcaster:
		return "broadcaster"
	case RoleViewer:
		return "viewer"
	default:
		return "unset"
	}
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Session is the ephemeral state of one connection.
type Session struct {
	ID          SessionID `json:"id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"pseudo"`
	Language    string    `json:"language"`
	Room        RoomKey   `json:"room,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// NormalizeDisplayName trims the name, caps it at MaxDisplayNameLen runes
// and falls back to AnonymousName.
func NormalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return AnonymousName
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		name = string([]rune(name)[:MaxDisplayNameLen])
	}
	return name
}
