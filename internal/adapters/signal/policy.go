package signal

import "github.com/dkeye/liveshow/internal/domain"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickConnection
)

// Policy decides what happens to a session whose send buffer is full.
type Policy interface {
	OnBackPressure(sid domain.SessionID) BackpressureAction
}

type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.SessionID) BackpressureAction { return DropFrame }

type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.SessionID) BackpressureAction { return KickConnection }

// PolicyByName maps the signal.backpressure setting to a Policy.
func PolicyByName(name string) Policy {
	if name == "kick" {
		return KickPolicy{}
	}
	return DropPolicy{}
}
