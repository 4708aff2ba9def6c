package series_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getlago/analytics-engine/series"
)

type staticSource struct {
	id, domain string
	data       []series.Aggregate
}

func (s staticSource) ID() string     { return s.id }
func (s staticSource) Domain() string { return s.domain }
func (s staticSource) Sparse(context.Context, series.Query) ([]series.Aggregate, error) {
	return s.data, nil
}

func TestRegistry_LookupAndList(t *testing.T) {
	reg := series.NewRegistry()
	reg.Register(staticSource{id: "usage", domain: "usage"})
	reg.Register(staticSource{id: "gross_revenue", domain: "revenue"})
	reg.Register(staticSource{id: "invoice_count", domain: "revenue"})

	src, err := reg.Lookup("usage")
	require.NoError(t, err)
	assert.Equal(t, "usage", src.Domain())

	_, err = reg.Lookup("mrr")
	assert.ErrorIs(t, err, series.ErrSourceNotFound)
	assert.True(t, series.IsNotFound(err))
	assert.False(t, reg.Has("mrr"))

	ids := []string{}
	for _, s := range reg.List() {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []string{"gross_revenue", "invoice_count", "usage"}, ids)
	assert.Len(t, reg.ListByDomain("revenue"), 2)
}
