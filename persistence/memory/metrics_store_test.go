package memory

import (
	"testing"

	"github.com/JacLight/mintflow-sub008/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usage(tenantId string, date string, requests, tokens int64, modelName string) *model.UsageMetric {
	return &model.UsageMetric{
		TenantId:        tenantId,
		Period:          model.PERIOD_DAILY,
		Date:            date,
		TotalRequests:   requests,
		TotalTokens:     tokens,
		RequestsByModel: map[string]int64{modelName: requests},
		TokensByModel:   map[string]int64{modelName: tokens},
	}
}

func TestMergeUsageIsAdditive(t *testing.T) {
	store := NewMetricsStore()
	require.NoError(t, store.MergeUsage(usage("t1", "2024-03-14", 2, 100, "gpt-4")))
	require.NoError(t, store.MergeUsage(usage("t1", "2024-03-14", 3, 50, "gpt-4")))
	require.NoError(t, store.MergeUsage(usage("t1", "2024-03-14", 1, 10, "claude")))

	got, err := store.ListUsageByPeriod("t1", model.PERIOD_DAILY)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(6), got[0].TotalRequests)
	assert.Equal(t, int64(160), got[0].TotalTokens)
	assert.Equal(t, int64(5), got[0].RequestsByModel["gpt-4"])
	assert.Equal(t, int64(1), got[0].RequestsByModel["claude"])
	assert.Equal(t, int64(150), got[0].TokensByModel["gpt-4"])
}

func TestMergeCostIsAdditive(t *testing.T) {
	store := NewMetricsStore()
	merge := func(cost float64, ws string) {
		require.NoError(t, store.MergeCost(&model.CostMetric{
			TenantId:        "t1",
			Period:          model.PERIOD_WEEKLY,
			Date:            "2024-03-11",
			TotalCost:       cost,
			CostByModel:     map[string]float64{"gpt-4": cost},
			CostByWorkspace: map[string]float64{ws: cost},
		}))
	}
	merge(0.5, "ws1")
	merge(0.25, "ws2")

	got, err := store.ListCostByPeriod("t1", model.PERIOD_WEEKLY)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.75, got[0].TotalCost, 1e-9)
	assert.InDelta(t, 0.75, got[0].CostByModel["gpt-4"], 1e-9)
	assert.InDelta(t, 0.5, got[0].CostByWorkspace["ws1"], 1e-9)
	assert.InDelta(t, 0.25, got[0].CostByWorkspace["ws2"], 1e-9)
}

func TestListUsageSortedAndIsolated(t *testing.T) {
	store := NewMetricsStore()
	require.NoError(t, store.MergeUsage(usage("t1", "2024-03-15", 1, 1, "m")))
	require.NoError(t, store.MergeUsage(usage("t1", "2024-03-13", 1, 1, "m")))
	require.NoError(t, store.MergeUsage(usage("t1", "2024-03-14", 1, 1, "m")))
	require.NoError(t, store.MergeUsage(usage("other", "2024-01-01", 9, 9, "m")))

	got, err := store.ListUsage("t1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-03-13", got[0].Date)
	assert.Equal(t, "2024-03-14", got[1].Date)
	assert.Equal(t, "2024-03-15", got[2].Date)
}

func TestListUsageUnknownTenantIsEmpty(t *testing.T) {
	store := NewMetricsStore()
	got, err := store.ListUsage("ghost")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestListReturnsCopies(t *testing.T) {
	store := NewMetricsStore()
	require.NoError(t, store.MergeUsage(usage("t1", "2024-03-14", 1, 1, "m")))

	got, err := store.ListUsage("t1")
	require.NoError(t, err)
	got[0].RequestsByModel["m"] = 999

	fresh, err := store.ListUsage("t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh[0].RequestsByModel["m"])
}
