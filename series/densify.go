/*
densify.go - Sparse-to-dense merge

PURPOSE:
  Emits exactly one item per enumerated bucket. A sparse entry is used when
  its start equals the bucket start exactly (first match wins); any other
  bucket is filled with a synthesized zero-value item.

MATCHING:
  Matching is by exact date equality, never range containment. An entry that
  starts mid-bucket (e.g. an off-by-one upstream date) matches nothing. Such
  entries are not emitted; they are returned in Series.Dropped so the caller
  can log them.

USAGE:
  d := series.Densifier[row]{
      Key:  func(r row) series.Date { return r.Start },
      Fill: func(b series.Bucket) row { return row{Start: b.Start} },
  }
  s, err := d.Densify(rows, rng, series.Weekly)

SEE ALSO:
  - bucket.go: Enumerate
  - types.go: Aggregate, Series
*/
package series

import "github.com/shopspring/decimal"

// Densifier merges sparse items of any shape onto buckets.
type Densifier[T any] struct {
	// Key returns the item's period start (the join key).
	Key func(T) Date

	// Fill synthesizes the item for a bucket with no data.
	Fill func(Bucket) T
}

// Densify returns the dense series for sparse over r at granularity g.
func (d Densifier[T]) Densify(sparse []T, r Range, g Granularity) (Series[T], error) {
	buckets, err := Enumerate(r, g)
	if err != nil {
		return Series[T]{}, err
	}

	byStart := make(map[string]int, len(sparse))
	for i, item := range sparse {
		key := d.Key(item).String()
		if _, exists := byStart[key]; !exists {
			byStart[key] = i
		}
	}

	items := make([]T, len(buckets))
	matched := make([]bool, len(sparse))
	for i, b := range buckets {
		if idx, ok := byStart[b.Start.String()]; ok {
			items[i] = sparse[idx]
			matched[idx] = true
			continue
		}
		items[i] = d.Fill(b)
	}

	var dropped []T
	for i, ok := range matched {
		if !ok {
			dropped = append(dropped, sparse[i])
		}
	}

	return Series[T]{
		Granularity: g,
		Range:       r,
		Buckets:     buckets,
		Items:       items,
		Dropped:     dropped,
	}, nil
}

// =============================================================================
// AGGREGATE DENSIFICATION
// =============================================================================

// DensifyAggregates densifies Aggregates.
//
// With no template, empty buckets become {Start, DisplayEnd, 0}. With a
// template, they carry the template's Value and Fields, with the period dates
// set to the bucket's own boundaries. The template's Fields map is shared by
// every synthesized bucket, so callers must treat it as read-only.
func DensifyAggregates(sparse []Aggregate, r Range, g Granularity, template *Aggregate) (Series[Aggregate], error) {
	d := Densifier[Aggregate]{
		Key:  func(a Aggregate) Date { return a.StartOfPeriod },
		Fill: EmptyAggregate(template),
	}
	return d.Densify(sparse, r, g)
}

// EmptyAggregate returns the fill function used for buckets without data.
func EmptyAggregate(template *Aggregate) func(Bucket) Aggregate {
	if template == nil {
		return func(b Bucket) Aggregate {
			return Aggregate{StartOfPeriod: b.Start, EndOfPeriod: b.DisplayEnd, Value: decimal.Zero}
		}
	}
	return func(b Bucket) Aggregate {
		out := *template
		out.StartOfPeriod = b.Start
		out.EndOfPeriod = b.DisplayEnd
		return out
	}
}
