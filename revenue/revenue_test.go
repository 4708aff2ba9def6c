package revenue_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getlago/analytics-engine/revenue"
	"github.com/getlago/analytics-engine/series"
	"github.com/getlago/analytics-engine/store/memory"
)

var now = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func invoice(t *testing.T, day string, cents int64, status revenue.Status) revenue.Invoice {
	t.Helper()
	inv, err := revenue.Prepare(revenue.Invoice{
		CustomerID:  "cus_acme",
		IssuedOn:    series.MustParseDate(day),
		Currency:    "usd",
		AmountCents: decimal.NewFromInt(cents),
		Status:      status,
	}, now)
	require.NoError(t, err)
	return inv
}

func TestPrepare_Defaults(t *testing.T) {
	inv := invoice(t, "2024-01-05", 1000, "")

	assert.Equal(t, revenue.StatusFinalized, inv.Status)
	assert.Equal(t, "USD", inv.Currency)
	assert.Len(t, inv.ID, 26)
	assert.Equal(t, "INV-"+inv.ID[18:], inv.Number)
	assert.Equal(t, now, inv.CreatedAt)
}

func TestPrepare_Validation(t *testing.T) {
	base := revenue.Invoice{CustomerID: "c", IssuedOn: series.MustParseDate("2024-01-01"), Currency: "USD"}

	tests := []struct {
		name   string
		mutate func(*revenue.Invoice)
	}{
		{"missing customer", func(i *revenue.Invoice) { i.CustomerID = "" }},
		{"missing date", func(i *revenue.Invoice) { i.IssuedOn = series.Date{} }},
		{"missing currency", func(i *revenue.Invoice) { i.Currency = "" }},
		{"negative amount", func(i *revenue.Invoice) { i.AmountCents = decimal.NewFromInt(-5) }},
		{"bad status", func(i *revenue.Invoice) { i.Status = "paid" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := base
			tt.mutate(&inv)
			_, err := revenue.Prepare(inv, now)
			assert.ErrorIs(t, err, revenue.ErrInvalidInvoice)
		})
	}
}

func TestSources_OnlyFinalizedInvoicesCount(t *testing.T) {
	// GIVEN: Finalized invoices in January and March, plus a draft and a voided one
	// WHEN: Gross revenue is densified monthly over Q1
	// THEN: February is zero-filled and non-finalized invoices are ignored

	store := memory.New()
	ctx := context.Background()
	for _, inv := range []revenue.Invoice{
		invoice(t, "2024-01-05", 1000, revenue.StatusFinalized),
		invoice(t, "2024-01-25", 500, revenue.StatusFinalized),
		invoice(t, "2024-02-10", 9999, revenue.StatusDraft),
		invoice(t, "2024-03-02", 250, revenue.StatusFinalized),
		invoice(t, "2024-03-03", 7777, revenue.StatusVoided),
	} {
		require.NoError(t, store.SaveInvoice(ctx, inv))
	}

	rng := series.Range{Start: series.MustParseDate("2024-01-01"), End: series.MustParseDate("2024-03-31")}
	q := series.Query{Range: rng, Granularity: series.Monthly, Currency: "USD"}

	gross, err := revenue.NewGrossRevenueSource(store).Sparse(ctx, q)
	require.NoError(t, err)
	s, err := series.DensifyAggregates(gross, rng, series.Monthly, nil)
	require.NoError(t, err)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, "1500", s.Items[0].Value.String())
	assert.Equal(t, 2, s.Items[0].Field(revenue.FieldInvoicesCount))
	assert.True(t, s.Items[1].Value.IsZero())
	assert.Equal(t, "250", s.Items[2].Value.String())

	counts, err := revenue.NewInvoiceCountSource(store).Sparse(ctx, q)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "2", counts[0].Value.String())
	assert.Equal(t, "1", counts[1].Value.String())
}

func TestSources_CurrencyFilter(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	eur := invoice(t, "2024-01-05", 1000, revenue.StatusFinalized)
	eur.Currency = "EUR"
	require.NoError(t, store.SaveInvoice(ctx, eur))
	require.NoError(t, store.SaveInvoice(ctx, invoice(t, "2024-01-06", 300, revenue.StatusFinalized)))

	rng := series.Range{Start: series.MustParseDate("2024-01-01"), End: series.MustParseDate("2024-01-31")}
	out, err := revenue.NewGrossRevenueSource(store).Sparse(ctx, series.Query{Range: rng, Granularity: series.Monthly, Currency: "USD"})

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "300", out[0].Value.String())
}
