package format_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getlago/analytics-engine/format"
	"github.com/getlago/analytics-engine/series"
)

func bucketsFor(t *testing.T, start, end string, g series.Granularity) []series.Bucket {
	t.Helper()
	r, err := series.NewRange(series.MustParseDate(start), series.MustParseDate(end))
	require.NoError(t, err)
	buckets, err := series.Enumerate(r, g)
	require.NoError(t, err)
	return buckets
}

// =============================================================================
// CURRENCY
// =============================================================================

func TestCurrency_MinorUnitsPerCurrency(t *testing.T) {
	s, err := format.Currency(decimal.NewFromInt(123450), "USD", "en")
	require.NoError(t, err)
	assert.Equal(t, "$1,234.50", s)

	s, err = format.Currency(decimal.NewFromInt(1200), "jpy", "en")
	require.NoError(t, err)
	assert.Equal(t, "¥1,200", s, "JPY has no minor unit")

	s, err = format.Currency(decimal.NewFromInt(-500), "USD", "en")
	require.NoError(t, err)
	assert.Equal(t, "-$5.00", s)

	s, err = format.Currency(decimal.Zero, "EUR", "")
	require.NoError(t, err)
	assert.Equal(t, "€0.00", s)
}

func TestCurrency_UnknownCode(t *testing.T) {
	_, err := format.Currency(decimal.NewFromInt(1), "XYZW", "en")
	assert.ErrorIs(t, err, format.ErrUnknownCurrency)
}

func TestExponent(t *testing.T) {
	exp, err := format.Exponent("EUR")
	require.NoError(t, err)
	assert.Equal(t, 2, exp)

	exp, err = format.Exponent("JPY")
	require.NoError(t, err)
	assert.Equal(t, 0, exp)
}

func TestSymbol_FallsBackToCode(t *testing.T) {
	assert.Equal(t, "£", format.Symbol("gbp"))
	assert.Equal(t, "SEK ", format.Symbol("SEK"))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "1,500", format.Number(decimal.NewFromInt(1500), 2, "en"))
	assert.Equal(t, "2.5", format.Number(decimal.RequireFromString("2.5"), 2, "en"))
}

func TestCurrency_LargeAmountsKeepEveryDigit(t *testing.T) {
	// 2^53 + 1 is the first integer float64 cannot hold.
	s, err := format.Currency(decimal.RequireFromString("900719925474099301"), "USD", "en")
	require.NoError(t, err)
	assert.Equal(t, "$9,007,199,254,740,993.01", s)

	s, err = format.Currency(decimal.RequireFromString("-900719925474099399"), "USD", "de")
	require.NoError(t, err)
	assert.Equal(t, "-$9.007.199.254.740.993,99", s)

	assert.Equal(t, "9,007,199,254,740,993", format.Number(decimal.RequireFromString("9007199254740993"), 4, "en"))
	assert.Equal(t, "-12.25", format.Number(decimal.RequireFromString("-12.25"), 4, "en"))
	assert.Equal(t, "0", format.Number(decimal.RequireFromString("-0.00001"), 4, "en"))
}

// =============================================================================
// LABELS
// =============================================================================

func TestPeriodLabel(t *testing.T) {
	daily := bucketsFor(t, "2024-01-02", "2024-01-02", series.Daily)
	label, err := format.PeriodLabel(daily[0], series.Daily)
	require.NoError(t, err)
	assert.Equal(t, "Jan 2, 2024", label)

	weekly := bucketsFor(t, "2024-01-01", "2024-01-20", series.Weekly)
	label, err = format.PeriodLabel(weekly[0], series.Weekly)
	require.NoError(t, err)
	assert.Equal(t, "Jan 1 - Jan 7, 2024", label, "uses the display end")

	monthly := bucketsFor(t, "2024-03-10", "2024-03-10", series.Monthly)
	label, err = format.PeriodLabel(monthly[0], series.Monthly)
	require.NoError(t, err)
	assert.Equal(t, "Mar 2024", label)
}

func TestPeriodLabel_WeekAcrossYears(t *testing.T) {
	weekly := bucketsFor(t, "2024-12-31", "2024-12-31", series.Weekly)
	label, err := format.PeriodLabel(weekly[0], series.Weekly)
	require.NoError(t, err)
	assert.Equal(t, "Dec 30, 2024 - Jan 5, 2025", label)
}

func TestFormatter_ProjectSeries(t *testing.T) {
	// GIVEN: monthly usage with a gap in February
	r, err := series.NewRange(series.MustParseDate("2024-01-01"), series.MustParseDate("2024-03-31"))
	require.NoError(t, err)
	sparse := []series.Aggregate{
		{StartOfPeriod: series.MustParseDate("2024-01-01"), Value: decimal.NewFromInt(1000)},
		{StartOfPeriod: series.MustParseDate("2024-03-01"), Value: decimal.NewFromInt(250)},
	}
	s, err := series.DensifyAggregates(sparse, r, series.Monthly, nil)
	require.NoError(t, err)

	// WHEN
	points, err := series.Project(s, "USD", format.New("en"))
	require.NoError(t, err)

	// THEN
	require.Len(t, points, 3)
	assert.Equal(t, "Jan 2024", points[0].TooltipLabel)
	assert.Equal(t, "$10.00", points[0].Value)
	assert.Equal(t, "$0.00", points[1].Value)
	assert.Equal(t, "$2.50", points[2].Value)
	assert.Equal(t, "Jan 2024", points[0].AxisName)
	assert.Equal(t, "Feb 2024", points[1].AxisName)
}

func TestFormatter_UnknownCurrencyFailsEachCell(t *testing.T) {
	r, _ := series.NewRange(series.MustParseDate("2024-01-01"), series.MustParseDate("2024-01-02"))
	s, err := series.DensifyAggregates(nil, r, series.Daily, nil)
	require.NoError(t, err)

	points, err := series.Project(s, "NOPE", format.New("en"))
	assert.ErrorIs(t, err, format.ErrUnknownCurrency)
	require.Len(t, points, 2)
	assert.Equal(t, "Jan 1, 2024", points[0].TooltipLabel, "labels still render")
	assert.Empty(t, points[0].Value)
}

func TestQuantityFormatter_IgnoresCurrency(t *testing.T) {
	f := format.NewQuantity("en")

	got, err := f.Amount(decimal.NewFromInt(12345), "")
	require.NoError(t, err)
	assert.Equal(t, "12,345", got)

	got, err = f.Amount(decimal.RequireFromString("0.25"), "NOPE")
	require.NoError(t, err)
	assert.Equal(t, "0.25", got)
}
