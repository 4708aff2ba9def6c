/*
Package series provides the period series densifier.

PURPOSE:
  Charts need one point per period, but the data behind them is sparse:
  storage only returns periods that actually had usage or revenue. This
  package turns a sparse list of period aggregates into a complete, ordered,
  gap-free series over a requested range, and projects it into chart points.

KEY CONCEPTS IN THIS FILE (types.go):
  - Aggregate: one period's value plus arbitrary caller-defined fields
  - Series: the dense result, buckets and items side by side
  - Query / Source: how domain packages feed sparse data in

PIPELINE:
  Range + Granularity -> Enumerate -> Buckets
  Buckets + sparse []Aggregate   -> Densify -> Series
  Series + Formatter             -> Project -> []ChartPoint

DESIGN PRINCIPLES:
  1. Pure: no I/O, no clock, no global settings. Same inputs, same output.
  2. Precision: values are decimal.Decimal (minor currency units or units)
  3. Explicit weeks: ISO Monday-start, never locale-dependent

SEE ALSO:
  - bucket.go: Enumeration and weekly label trim
  - densify.go: Sparse-to-dense merge
  - projection.go: Chart value projection
  - registry.go: Source registry
*/
package series

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AGGREGATE - One period's value (sparse input, dense output)
// =============================================================================

// JSON keys reserved by Aggregate. Everything else lands in Fields.
const (
	KeyStartOfPeriod = "start_of_period"
	KeyEndOfPeriod   = "end_of_period"
	KeyValue         = "value"
)

// Aggregate is a value for the period starting at StartOfPeriod.
// EndOfPeriod may be zero on input. Fields carries caller-defined extras
// and is passed through untouched.
type Aggregate struct {
	StartOfPeriod Date
	EndOfPeriod   Date
	Value         decimal.Decimal
	Fields        map[string]any
}

// Field returns an extra field, or nil.
func (a Aggregate) Field(key string) any {
	if a.Fields == nil {
		return nil
	}
	return a.Fields[key]
}

// MarshalJSON flattens Fields next to the reserved keys.
func (a Aggregate) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Fields)+3)
	for k, v := range a.Fields {
		out[k] = v
	}
	out[KeyStartOfPeriod] = a.StartOfPeriod.String()
	out[KeyEndOfPeriod] = a.EndOfPeriod.String()
	out[KeyValue] = json.Number(a.Value.String())
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat object. A missing value means zero.
func (a *Aggregate) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	var out Aggregate
	var err error
	if out.StartOfPeriod, err = dateField(raw, KeyStartOfPeriod); err != nil {
		return err
	}
	if out.EndOfPeriod, err = dateField(raw, KeyEndOfPeriod); err != nil {
		return err
	}
	out.Value = decimal.Zero
	if v, ok := raw[KeyValue]; ok && v != nil {
		if out.Value, err = decimal.NewFromString(fmt.Sprint(v)); err != nil {
			return fmt.Errorf("invalid %s: %w", KeyValue, err)
		}
	}

	delete(raw, KeyStartOfPeriod)
	delete(raw, KeyEndOfPeriod)
	delete(raw, KeyValue)
	if len(raw) > 0 {
		out.Fields = raw
	}
	*a = out
	return nil
}

func dateField(raw map[string]any, key string) (Date, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return Date{}, nil
	}
	s, ok := v.(string)
	if !ok {
		return Date{}, fmt.Errorf("%w: %s must be a string", ErrInvalidDate, key)
	}
	if s == "" {
		return Date{}, nil
	}
	return ParseDate(s)
}

// =============================================================================
// SERIES - Dense result
// =============================================================================

// Series is a dense series: Items[i] belongs to Buckets[i].
// Dropped holds sparse entries that matched no bucket start, or lost to an
// earlier entry with the same start.
type Series[T any] struct {
	Granularity Granularity
	Range       Range
	Buckets     []Bucket
	Items       []T
	Dropped     []T
}

// Len returns the number of buckets.
func (s Series[T]) Len() int { return len(s.Buckets) }

// =============================================================================
// QUERY / SOURCE - Sparse data providers
// =============================================================================

// Query describes what a Source should aggregate.
type Query struct {
	Range       Range
	Granularity Granularity
	Currency    string
	Filters     map[string]string
}

// Filter returns a filter value or "".
func (q Query) Filter(key string) string {
	if q.Filters == nil {
		return ""
	}
	return q.Filters[key]
}

// Source yields sparse aggregates keyed by bucket start.
// Domain packages implement this:
//
//	// In usage/source.go
//	func (s *UsageSource) ID() string     { return "usage" }
//	func (s *UsageSource) Domain() string { return "usage" }
type Source interface {
	ID() string
	Domain() string
	Sparse(ctx context.Context, q Query) ([]Aggregate, error)
}
