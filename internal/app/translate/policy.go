package translate

import (
	"context"

	"github.com/dkeye/liveshow/internal/domain"
)

// Party is one side of a chat delivery.
type Party struct {
	Role     domain.Role
	Language string
}

// Plan says how one recipient's copy of a message is produced.
type Plan struct {
	Translate bool
	Source    string
	Target    string
}

// ForRecipient picks source and target for a single delivery. Broadcasters
// speak and read the base language; viewers speak and read their own. The
// sender always gets its own message untouched.
func ForRecipient(base string, sender, recipient Party, self bool) Plan {
	if self {
		return Plan{}
	}
	p := Plan{Source: speaks(base, sender), Target: speaks(base, recipient)}
	p.Translate = p.Source != p.Target
	return p
}

func speaks(base string, p Party) string {
	if p.Role == domain.RoleBroadcaster || p.Language == "" {
		return base
	}
	return p.Language
}

// Delivery is the text one recipient gets and how it was produced.
type Delivery struct {
	Text       string
	Translated bool
	Plan       Plan
}

// ForRecipient applies the routing plan for one recipient.
func (d *Dispatcher) ForRecipient(ctx context.Context, message string, sender, recipient Party, self bool) Delivery {
	plan := ForRecipient(d.langs.Base(), sender, recipient, self)
	if !plan.Translate {
		return Delivery{Text: message, Plan: plan}
	}
	out := d.Translate(ctx, message, plan.Target, plan.Source)
	return Delivery{Text: out, Translated: out != message, Plan: plan}
}
