package scraper

import (
	"context"
	"time"
)

// Timings holds every navigation timeout, element wait and settle delay the
// strategies use. Tests run with NoWaitTimings.
type Timings struct {
	BaseNavigation     time.Duration
	ProductNavigation  time.Duration
	NamedNavigation    time.Duration
	SteeringStep       time.Duration
	TriggerWait        time.Duration
	PostalInputWait    time.Duration
	StoreButtonWait    time.Duration
	SteeringSettle     time.Duration
	SelectorWait       time.Duration
	ConfigSettle       time.Duration
	UniversalSettle    time.Duration
	GenericSettle      time.Duration
	GenericFieldSettle time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		BaseNavigation:     20 * time.Second,
		ProductNavigation:  45 * time.Second,
		NamedNavigation:    30 * time.Second,
		SteeringStep:       8 * time.Second,
		TriggerWait:        3 * time.Second,
		PostalInputWait:    3 * time.Second,
		StoreButtonWait:    5 * time.Second,
		SteeringSettle:     2 * time.Second,
		SelectorWait:       8 * time.Second,
		ConfigSettle:       1500 * time.Millisecond,
		UniversalSettle:    time.Second,
		GenericSettle:      1200 * time.Millisecond,
		GenericFieldSettle: 800 * time.Millisecond,
	}
}

// NoWaitTimings keeps navigation and element timeouts short and drops every
// settle delay.
func NoWaitTimings() Timings {
	return Timings{
		BaseNavigation:    time.Second,
		ProductNavigation: time.Second,
		NamedNavigation:   time.Second,
		SteeringStep:      10 * time.Millisecond,
		TriggerWait:       10 * time.Millisecond,
		PostalInputWait:   10 * time.Millisecond,
		StoreButtonWait:   10 * time.Millisecond,
		SelectorWait:      10 * time.Millisecond,
	}
}

// settle pauses for d so late scripts can render, returning early on
// cancellation.
func settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
