/*
Package format renders chart labels and amounts.

PURPOSE:
  Implements series.Formatter: period labels for tooltips, axis tick names,
  and locale-aware currency strings from minor-unit amounts.

AMOUNTS:
  Stored amounts are integers in the currency's minor unit (cents for USD,
  none for JPY). The exponent comes from the ISO 4217 standard rounding in
  golang.org/x/text/currency; grouping and decimal separators come from the
  requested locale through golang.org/x/text/message.

  USD 123450 in "en" -> "$1,234.50"
  EUR 123450 in "de" -> "€1.234,50"
  JPY 1200   in "en" -> "¥1,200"

LABELS:
  daily    Jan 2, 2024
  weekly   Jan 1 - Jan 7, 2024   (uses the bucket's display end)
  monthly  Jan 2024

SEE ALSO:
  - series/projection.go: Consumer of Formatter
*/
package format

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/getlago/analytics-engine/series"
)

// ErrUnknownCurrency is returned for codes that are not ISO 4217.
var ErrUnknownCurrency = errors.New("unknown currency")

// DefaultLocale is used when a locale is empty or unparsable.
const DefaultLocale = "en"

// =============================================================================
// FORMATTER
// =============================================================================

// Formatter implements series.Formatter for one locale.
// With Quantity set, values are plain numbers and the currency is ignored.
type Formatter struct {
	Locale   string
	Quantity bool
}

var _ series.Formatter = Formatter{}

func New(locale string) Formatter {
	return Formatter{Locale: locale}
}

// NewQuantity returns a Formatter for counts and units.
func NewQuantity(locale string) Formatter {
	return Formatter{Locale: locale, Quantity: true}
}

// PeriodLabel renders the tooltip label of a bucket.
func (f Formatter) PeriodLabel(b series.Bucket, g series.Granularity) (string, error) {
	return PeriodLabel(b, g)
}

// AxisLabel renders an axis tick.
func (f Formatter) AxisLabel(d series.Date, g series.Granularity) (string, error) {
	if d.IsZero() {
		return "", errors.New("axis date is empty")
	}
	if g == series.Monthly {
		return d.Time.Format("Jan 2006"), nil
	}
	return d.Time.Format("Jan 2"), nil
}

// Amount renders a minor-unit amount in the formatter's locale.
func (f Formatter) Amount(value decimal.Decimal, code string) (string, error) {
	if f.Quantity {
		return Number(value, 4, f.Locale), nil
	}
	return Currency(value, code, f.Locale)
}

// =============================================================================
// CURRENCY / NUMBERS
// =============================================================================

// Exponent returns the number of minor-unit digits of an ISO currency.
func Exponent(code string) (int, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale, nil
}

// Currency formats a minor-unit amount, e.g. 123450 USD -> "$1,234.50".
func Currency(minor decimal.Decimal, code, locale string) (string, error) {
	exp, err := Exponent(code)
	if err != nil {
		return "", err
	}
	major := minor.Shift(int32(-exp))

	sign := ""
	if major.IsNegative() {
		sign = "-"
		major = major.Abs()
	}
	digits := grouped(printer(locale), major, exp, number.Scale(exp))
	return sign + Symbol(code) + digits, nil
}

// Number formats a plain quantity with up to scale fractional digits.
func Number(value decimal.Decimal, scale int, locale string) string {
	sign := ""
	if value.Round(int32(scale)).IsNegative() {
		sign = "-"
		value = value.Abs()
	}
	return sign + grouped(printer(locale), value, scale, number.MaxFractionDigits(scale))
}

// grouped renders a non-negative v rounded to scale fractional digits.
// The integer part is printed as an int64 so every digit survives; only the
// fraction goes through float64. Integer parts beyond int64 lose precision.
func grouped(p *message.Printer, v decimal.Decimal, scale int, frac number.Option) string {
	v = v.Round(int32(scale))
	whole := v.Truncate(0)
	if !whole.BigInt().IsInt64() {
		f, _ := v.Float64()
		return p.Sprint(number.Decimal(f, frac))
	}

	out := p.Sprint(number.Decimal(whole.IntPart()))
	if scale <= 0 {
		return out
	}
	rest, _ := v.Sub(whole).Float64()
	// rest prints as "0", "0.5" or "0,50"; keep what follows the leading zero.
	s := p.Sprint(number.Decimal(rest, frac))
	_, size := utf8.DecodeRuneInString(s)
	return out + s[size:]
}

// Symbol returns the display prefix for a currency code.
func Symbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if s, ok := symbols[code]; ok {
		return s
	}
	return code + " "
}

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"KRW": "₩",
	"BRL": "R$",
	"CAD": "CA$",
	"AUD": "A$",
}

func printer(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.MustParse(DefaultLocale)
	}
	return message.NewPrinter(tag)
}

// =============================================================================
// PERIOD LABELS
// =============================================================================

// PeriodLabel renders the human-readable period of a bucket.
func PeriodLabel(b series.Bucket, g series.Granularity) (string, error) {
	switch g {
	case series.Daily:
		return b.Start.Time.Format("Jan 2, 2006"), nil
	case series.Weekly:
		start, end := b.Start.Time, b.DisplayEnd.Time
		if start.Year() != end.Year() {
			return start.Format("Jan 2, 2006") + " - " + end.Format("Jan 2, 2006"), nil
		}
		return start.Format("Jan 2") + " - " + end.Format("Jan 2, 2006"), nil
	case series.Monthly:
		return b.Start.Time.Format("Jan 2006"), nil
	default:
		return "", series.ErrInvalidGranularity
	}
}
