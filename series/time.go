package series

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day abstraction (no time of day, always UTC)
// =============================================================================

// DateLayout is the ISO calendar date layout used on the wire and in storage.
const DateLayout = "2006-01-02"

// Date is a calendar date. The zero value means "absent".
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day of t, keeping its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO date ("2024-01-31").
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// MustParseDate is ParseDate for literals in tests and presets.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.Time.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// MarshalText encodes the date as ISO; the zero date encodes as "".
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts ISO dates and "" (absent).
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// GRANULARITY - Calendar unit used to size buckets
// =============================================================================

type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// DefaultGranularity is used when the caller does not name one.
const DefaultGranularity = Monthly

// ParseGranularity maps a query value to a Granularity. Empty falls back to Monthly.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return DefaultGranularity, nil
	case Daily, Weekly, Monthly:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
}

func (g Granularity) Valid() bool {
	return g == Daily || g == Weekly || g == Monthly
}

// =============================================================================
// CALENDAR ROUNDING
// =============================================================================
// Weeks are ISO-8601: Monday is the first day, Sunday the last. This does not
// depend on any locale setting.

// StartOf rounds d down to the first day of its granularity unit.
func StartOf(g Granularity, d Date) Date {
	switch g {
	case Weekly:
		return d.AddDays(-isoWeekdayOffset(d.Weekday()))
	case Monthly:
		return NewDate(d.Year(), d.Month(), 1)
	default:
		return d
	}
}

// EndOf rounds d up to the last day of its granularity unit.
func EndOf(g Granularity, d Date) Date {
	switch g {
	case Weekly:
		return StartOf(Weekly, d).AddDays(6)
	case Monthly:
		return NewDate(d.Year(), d.Month()+1, 1).AddDays(-1)
	default:
		return d
	}
}

// isoWeekdayOffset returns days since Monday (Monday=0 ... Sunday=6).
func isoWeekdayOffset(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// DaysBetween counts calendar days from -> to (negative if to is earlier).
func DaysBetween(from, to Date) int { return int(to.Time.Sub(from.Time).Hours() / 24) }
