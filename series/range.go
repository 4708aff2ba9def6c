package series

import (
	"fmt"
	"strings"
)

// =============================================================================
// RANGE - Requested inclusive date range
// =============================================================================

// Range is an inclusive calendar range [Start, End].
type Range struct {
	Start Date
	End   Date
}

// NewRange builds a range, rejecting Start > End.
func NewRange(start, end Date) (Range, error) {
	r := Range{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// ParseRange parses the comma-joined "START,END" form used in URL search params.
func ParseRange(s string) (Range, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: expected \"START,END\", got %q", ErrInvalidRange, s)
	}
	start, err := ParseDate(parts[0])
	if err != nil {
		return Range{}, err
	}
	end, err := ParseDate(parts[1])
	if err != nil {
		return Range{}, err
	}
	return NewRange(start, end)
}

// Validate fails fast on an inverted or half-empty range.
func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if r.Start.After(r.End) {
		return &RangeError{Start: r.Start, End: r.End}
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (r Range) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Rounded widens the range to whole granularity units.
func (r Range) Rounded(g Granularity) Range {
	return Range{Start: StartOf(g, r.Start), End: EndOf(g, r.End)}
}

// String returns the "START,END" form accepted by ParseRange.
func (r Range) String() string {
	return r.Start.String() + "," + r.End.String()
}
