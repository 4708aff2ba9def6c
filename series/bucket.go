/*
bucket.go - Bucket enumeration and display boundaries

PURPOSE:
  Splits a requested range into one bucket per calendar unit (day, ISO week,
  month) with no gaps and no overlaps. This is the skeleton every dense series
  is built on: the merger fills it, the projector labels it.

BOUNDARIES:
  Start       first day of the unit (the join key for sparse data)
  End         last calendar day of the unit
  RawEnd      boundary as produced by the split. Weekly splitting walks in
              7-day strides, so every non-final week shares its boundary day
              with the next week's start. Daily and monthly use End.
  DisplayEnd  the end shown to users (see DisplayEnd below)

EXAMPLE:
  2024-01-01..2024-01-20 weekly:
    [01-01, 01-07] raw 01-08 display 01-07
    [01-08, 01-14] raw 01-15 display 01-14
    [01-15, 01-21] raw 01-21 display 01-21   (last bucket keeps its raw end)

SEE ALSO:
  - time.go: StartOf / EndOf rounding
  - densify.go: Merges sparse data onto these buckets
*/
package series

// MaxBuckets caps a single enumeration (10 000 days is ~27 years).
const MaxBuckets = 10000

// Bucket is one fixed-size time slot of a dense series.
type Bucket struct {
	Index      int  `json:"index"`
	Start      Date `json:"start"`
	End        Date `json:"end"`
	RawEnd     Date `json:"raw_end"`
	DisplayEnd Date `json:"display_end"`
}

// Enumerate returns the ordered buckets covering r at granularity g.
// The result always has at least one bucket.
func Enumerate(r Range, g Granularity) ([]Bucket, error) {
	if !g.Valid() {
		return nil, ErrInvalidGranularity
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	bounds := r.Rounded(g)
	var buckets []Bucket
	for current := bounds.Start; current.BeforeOrEqual(bounds.End); {
		if len(buckets) == MaxBuckets {
			return nil, ErrRangeTooLarge
		}
		end := EndOf(g, current)
		buckets = append(buckets, Bucket{
			Index:  len(buckets),
			Start:  current,
			End:    end,
			RawEnd: rawEnd(g, end, bounds.End),
		})
		current = end.AddDays(1)
	}

	for i := range buckets {
		buckets[i].DisplayEnd = DisplayEnd(buckets[i].RawEnd, i, len(buckets), g)
	}
	return buckets, nil
}

func rawEnd(g Granularity, end, last Date) Date {
	if g == Weekly && end.Before(last) {
		return end.AddDays(1)
	}
	return end
}

// DisplayEnd computes the end date shown for a bucket. Weekly buckets other
// than the last one show their raw end minus one day, so a boundary day is
// never shown as both the end of one week and the start of the next.
// It never changes the bucket's Start, which is the join key.
func DisplayEnd(raw Date, index, total int, g Granularity) Date {
	if g == Weekly && index != total-1 {
		return raw.AddDays(-1)
	}
	return raw
}
