package domain

import "time"

// ViewerProfile is what the room registry keeps about a watching session.
// No transport or lifecycle logic here.
type ViewerProfile struct {
	Room        RoomKey
	DisplayName string
	Language    string
	JoinedAt    time.Time
}
