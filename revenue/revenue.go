// Package revenue exposes invoiced revenue to the series engine.
package revenue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/getlago/analytics-engine/series"
)

// Status of an invoice. Only finalized invoices count as revenue.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
	StatusVoided    Status = "voided"
)

func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusFinalized || s == StatusVoided
}

type Invoice struct {
	ID          string          `json:"id"`
	Number      string          `json:"number"`
	CustomerID  string          `json:"customer_id"`
	IssuedOn    series.Date     `json:"issued_on"`
	Currency    string          `json:"currency"`
	AmountCents decimal.Decimal `json:"amount_cents"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

var (
	ErrInvalidInvoice  = errors.New("invalid invoice")
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrDuplicateNumber = errors.New("duplicate invoice number")
)

// Prepare validates inv, fills defaults, and assigns an ID when missing.
func Prepare(inv Invoice, now time.Time) (Invoice, error) {
	if inv.CustomerID == "" {
		return inv, fmt.Errorf("%w: customer_id is required", ErrInvalidInvoice)
	}
	if inv.IssuedOn.IsZero() {
		return inv, fmt.Errorf("%w: issued_on is required", ErrInvalidInvoice)
	}
	if inv.Currency == "" {
		return inv, fmt.Errorf("%w: currency is required", ErrInvalidInvoice)
	}
	if inv.AmountCents.IsNegative() {
		return inv, fmt.Errorf("%w: amount_cents must not be negative", ErrInvalidInvoice)
	}
	if inv.Status == "" {
		inv.Status = StatusFinalized
	}
	if !inv.Status.Valid() {
		return inv, fmt.Errorf("%w: unknown status %q", ErrInvalidInvoice, inv.Status)
	}
	if inv.ID == "" {
		inv.ID = ulid.Make().String()
	}
	if inv.Number == "" {
		inv.Number = "INV-" + inv.ID[len(inv.ID)-8:]
	}
	inv.Currency = strings.ToUpper(inv.Currency)
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now.UTC()
	}
	return inv, nil
}

// =============================================================================
// STORE
// =============================================================================

// Filter narrows a revenue query. Empty fields match everything.
type Filter struct {
	CustomerID  string
	Currency    string
	Range       series.Range
	Granularity series.Granularity
}

// PeriodRevenue is a sparse, bucketed revenue total.
type PeriodRevenue struct {
	Start         series.Date
	AmountCents   decimal.Decimal
	InvoicesCount int
}

type Store interface {
	SaveInvoice(ctx context.Context, inv Invoice) error
	ListInvoices(ctx context.Context, customerID string) ([]Invoice, error)

	// SparseRevenue sums finalized invoices per bucket start, ordered by Start.
	SparseRevenue(ctx context.Context, f Filter) ([]PeriodRevenue, error)
}
