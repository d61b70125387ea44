// Package retention defines the ordered retention tiers and the calendar
// windows used to pick one representative artifact per tier.
package retention

import (
	"errors"
	"fmt"
	"time"

	"github.com/kebairia/bacli/internal/config"
)

const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
	Yearly  = "yearly"
)

// ErrInvalidPolicy is returned when a sequence of periods is not strictly
// coarser from one period to the next.
var ErrInvalidPolicy = errors.New("invalid retention policy")

// Period is one retention tier. An artifact must leave the tier once it is
// older than MaxAge. Keep is advisory only: rotation is driven by age.
type Period struct {
	Name        string
	MaxAge      time.Duration
	Keep        int
	Granularity Granularity
}

// Window returns the calendar bucket of t at this period's granularity.
func (p Period) Window(t time.Time) Window {
	return WindowOf(t, p.Granularity)
}

// Policy is an immutable, ordered list of periods, finest first.
type Policy struct {
	periods []Period
}

// DefaultPolicy returns the fixed daily/weekly/monthly/yearly sequence.
// The thresholds approximate calendar periods with fixed second counts.
func DefaultPolicy() *Policy {
	return &Policy{periods: []Period{
		{Name: Daily, MaxAge: 14 * 86400 * time.Second, Keep: 14, Granularity: Day},
		{Name: Weekly, MaxAge: 5 * 604800 * time.Second, Keep: 5, Granularity: Week},
		{Name: Monthly, MaxAge: 13 * 2419200 * time.Second, Keep: 13, Granularity: Month},
		{Name: Yearly, MaxAge: 4 * 31536000 * time.Second, Keep: 4, Granularity: Year},
	}}
}

// NewPolicy validates and freezes a custom sequence of periods.
func NewPolicy(periods ...Period) (*Policy, error) {
	if len(periods) == 0 {
		return nil, fmt.Errorf("%w: no periods", ErrInvalidPolicy)
	}
	seen := make(map[string]bool, len(periods))
	for i, p := range periods {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: period %d has no name", ErrInvalidPolicy, i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: period %q declared twice", ErrInvalidPolicy, p.Name)
		}
		seen[p.Name] = true
		if p.MaxAge <= 0 {
			return nil, fmt.Errorf("%w: period %q has no max age", ErrInvalidPolicy, p.Name)
		}
		if i > 0 {
			prev := periods[i-1]
			if p.MaxAge <= prev.MaxAge || p.Granularity <= prev.Granularity {
				return nil, fmt.Errorf("%w: period %q is not coarser than %q", ErrInvalidPolicy, p.Name, prev.Name)
			}
		}
	}
	return &Policy{periods: append([]Period(nil), periods...)}, nil
}

// FromConfig builds the standard four-tier policy with thresholds taken from
// the configuration.
func FromConfig(cfg config.RetentionConfig) (*Policy, error) {
	return NewPolicy(
		Period{Name: Daily, MaxAge: cfg.Daily.MaxAge, Keep: cfg.Daily.Keep, Granularity: Day},
		Period{Name: Weekly, MaxAge: cfg.Weekly.MaxAge, Keep: cfg.Weekly.Keep, Granularity: Week},
		Period{Name: Monthly, MaxAge: cfg.Monthly.MaxAge, Keep: cfg.Monthly.Keep, Granularity: Month},
		Period{Name: Yearly, MaxAge: cfg.Yearly.MaxAge, Keep: cfg.Yearly.Keep, Granularity: Year},
	)
}

// Sequence returns a copy of the periods, finest first.
func (p *Policy) Sequence() []Period {
	return append([]Period(nil), p.periods...)
}

// Next returns the period following cur, or false when cur is the last one
// or not part of the policy.
func (p *Policy) Next(cur Period) (Period, bool) {
	for i, period := range p.periods {
		if period.Name == cur.Name {
			if i+1 < len(p.periods) {
				return p.periods[i+1], true
			}
			return Period{}, false
		}
	}
	return Period{}, false
}

// Finest returns the tier new artifacts are written into.
func (p *Policy) Finest() Period {
	return p.periods[0]
}

// Names lists the period directory names in sequence order.
func (p *Policy) Names() []string {
	names := make([]string, len(p.periods))
	for i, period := range p.periods {
		names[i] = period.Name
	}
	return names
}
