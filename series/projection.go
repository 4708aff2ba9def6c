/*
projection.go - Chart value projection

PURPOSE:
  Maps a dense series into the minimal shape a chart consumes: a tooltip
  label per period, a formatted value, and an axis tick name.

AXIS LABELS:
  The first tick is anchored on the first bucket's start; every later tick
  on its bucket's display end, so the axis reads as the range start followed
  by the close of each period.

FAILURES:
  A formatter error blanks that single cell and is collected. Projection
  always returns one point per bucket; the joined error tells the caller
  which cells could not be rendered.

SEE ALSO:
  - format/format.go: Formatter implementation
  - densify.go: Produces the Series
*/
package series

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Formatter renders labels and values. Implemented by format.Formatter.
type Formatter interface {
	PeriodLabel(b Bucket, g Granularity) (string, error)
	AxisLabel(d Date, g Granularity) (string, error)
	Amount(value decimal.Decimal, currency string) (string, error)
}

// ChartPoint is one projected cell.
type ChartPoint struct {
	TooltipLabel string          `json:"tooltip_label"`
	Value        string          `json:"value"`
	AxisName     string          `json:"axis_name"`
	Raw          decimal.Decimal `json:"raw_value"`
}

// Project builds one ChartPoint per bucket of s.
func Project(s Series[Aggregate], currency string, f Formatter) ([]ChartPoint, error) {
	if len(s.Items) != len(s.Buckets) {
		return nil, fmt.Errorf("series has %d items for %d buckets", len(s.Items), len(s.Buckets))
	}

	points := make([]ChartPoint, len(s.Buckets))
	var errs []error
	for i, b := range s.Buckets {
		item := s.Items[i]
		point := ChartPoint{Raw: item.Value}

		label, err := f.PeriodLabel(b, s.Granularity)
		if err != nil {
			errs = append(errs, fmt.Errorf("bucket %d label: %w", i, err))
		}
		point.TooltipLabel = label

		value, err := f.Amount(item.Value, currency)
		if err != nil {
			errs = append(errs, fmt.Errorf("bucket %d value: %w", i, err))
		}
		point.Value = value

		axisDate := b.DisplayEnd
		if i == 0 {
			axisDate = b.Start
		}
		axis, err := f.AxisLabel(axisDate, s.Granularity)
		if err != nil {
			errs = append(errs, fmt.Errorf("bucket %d axis: %w", i, err))
		}
		point.AxisName = axis

		points[i] = point
	}
	return points, errors.Join(errs...)
}
