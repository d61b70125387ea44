package retention

import (
	"fmt"
	"time"
)

// Granularity is the calendar unit a period groups artifacts by.
type Granularity int

const (
	Day Granularity = iota
	Week
	Month
	Year
)

func (g Granularity) String() string {
	switch g {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return fmt.Sprintf("granularity(%d)", int(g))
	}
}

// Window identifies one calendar bucket. For weeks Year is the ISO year,
// which differs from the calendar year around new year.
type Window struct {
	Granularity Granularity
	Year        int
	Index       int // day of year, ISO week, month; zero for Year
}

// WindowOf returns the bucket containing t, in t's location.
func WindowOf(t time.Time, g Granularity) Window {
	switch g {
	case Day:
		return Window{Granularity: g, Year: t.Year(), Index: t.YearDay()}
	case Week:
		y, w := t.ISOWeek()
		return Window{Granularity: g, Year: y, Index: w}
	case Month:
		return Window{Granularity: g, Year: t.Year(), Index: int(t.Month())}
	default:
		return Window{Granularity: Year, Year: t.Year()}
	}
}

// Contains reports whether t falls in the window.
func (w Window) Contains(t time.Time) bool {
	return WindowOf(t, w.Granularity) == w
}

func (w Window) String() string {
	switch w.Granularity {
	case Day:
		return fmt.Sprintf("%04d-D%03d", w.Year, w.Index)
	case Week:
		return fmt.Sprintf("%04d-W%02d", w.Year, w.Index)
	case Month:
		return fmt.Sprintf("%04d-%02d", w.Year, w.Index)
	default:
		return fmt.Sprintf("%04d", w.Year)
	}
}
