package revenue

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/getlago/analytics-engine/series"
)

const (
	SourceGrossRevenue = "gross_revenue"
	SourceInvoiceCount = "invoice_count"
	Domain             = "revenue"

	FilterCustomerID   = "customer_id"
	FieldInvoicesCount = "invoices_count"
	FieldAmountCents   = "amount_cents"
)

// GrossRevenueSource yields finalized invoice amounts per bucket.
type GrossRevenueSource struct{ store Store }

func NewGrossRevenueSource(store Store) *GrossRevenueSource { return &GrossRevenueSource{store: store} }

func (s *GrossRevenueSource) ID() string     { return SourceGrossRevenue }
func (s *GrossRevenueSource) Domain() string { return Domain }

func (s *GrossRevenueSource) Sparse(ctx context.Context, q series.Query) ([]series.Aggregate, error) {
	return sparse(ctx, s.store, q, func(p PeriodRevenue) series.Aggregate {
		return series.Aggregate{
			StartOfPeriod: p.Start,
			Value:         p.AmountCents,
			Fields:        map[string]any{FieldInvoicesCount: p.InvoicesCount},
		}
	})
}

// InvoiceCountSource yields the number of finalized invoices per bucket.
type InvoiceCountSource struct{ store Store }

func NewInvoiceCountSource(store Store) *InvoiceCountSource { return &InvoiceCountSource{store: store} }

func (s *InvoiceCountSource) ID() string     { return SourceInvoiceCount }
func (s *InvoiceCountSource) Domain() string { return Domain }

func (s *InvoiceCountSource) Sparse(ctx context.Context, q series.Query) ([]series.Aggregate, error) {
	return sparse(ctx, s.store, q, func(p PeriodRevenue) series.Aggregate {
		return series.Aggregate{
			StartOfPeriod: p.Start,
			Value:         decimal.NewFromInt(int64(p.InvoicesCount)),
			Fields:        map[string]any{FieldAmountCents: p.AmountCents.String()},
		}
	})
}

func sparse(ctx context.Context, store Store, q series.Query, conv func(PeriodRevenue) series.Aggregate) ([]series.Aggregate, error) {
	rows, err := store.SparseRevenue(ctx, Filter{
		CustomerID:  q.Filter(FilterCustomerID),
		Currency:    q.Currency,
		Range:       q.Range.Rounded(q.Granularity),
		Granularity: q.Granularity,
	})
	if err != nil {
		return nil, err
	}
	out := make([]series.Aggregate, 0, len(rows))
	for _, r := range rows {
		out = append(out, conv(r))
	}
	return out, nil
}
