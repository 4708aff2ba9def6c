package factory

import "fmt"

// =============================================================================
// PRESETS - Built-in dashboard charts
// =============================================================================

// CustomerUsageJSON charts one customer's billed usage per month.
func CustomerUsageJSON(id, name, customerID string) string {
	return fmt.Sprintf(`{
	"id": %q,
	"name": %q,
	"source": "usage",
	"granularity": "monthly",
	"value_kind": "amount",
	"filters": {"customer_id": %q},
	"empty_item": {"value": 0, "units": "0", "events_count": 0}
}`, id, name, customerID)
}

// MetricUsageJSON charts one billable metric's units per week.
func MetricUsageJSON(id, name, metricCode string) string {
	return fmt.Sprintf(`{
	"id": %q,
	"name": %q,
	"source": "usage_by_metric",
	"granularity": "weekly",
	"value_kind": "count",
	"filters": {"metric_code": %q, "value": "units"}
}`, id, name, metricCode)
}

// GrossRevenueJSON charts finalized invoice totals per month in currency.
func GrossRevenueJSON(id, name, currency string) string {
	return fmt.Sprintf(`{
	"id": %q,
	"name": %q,
	"source": "gross_revenue",
	"granularity": "monthly",
	"currency": %q,
	"value_kind": "amount",
	"empty_item": {"value": 0, "invoices_count": 0}
}`, id, name, currency)
}

// InvoiceCountJSON charts finalized invoices per month.
func InvoiceCountJSON(id, name string) string {
	return fmt.Sprintf(`{
	"id": %q,
	"name": %q,
	"source": "invoice_count",
	"granularity": "monthly",
	"value_kind": "count"
}`, id, name)
}
