package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/JacLight/mintflow-sub008/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// thursday 2024-03-14; its week bucket is 2024-03-11, month bucket 2024-03-01
var fixedNow = time.Date(2024, 3, 14, 10, 30, 0, 0, time.UTC)

func newTestService() *Service {
	return NewServiceWithClock(memory.NewMetricsStore(), func() time.Time { return fixedNow })
}

func TestRecordUsageFillsAllPeriods(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.RecordUsage("t1", "gpt-4", 1, 100))

	daily, err := svc.GetUsageMetricsByPeriod("t1", "daily")
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, "2024-03-14", daily[0].Date)

	weekly, err := svc.GetUsageMetricsByPeriod("t1", "weekly")
	require.NoError(t, err)
	require.Len(t, weekly, 1)
	assert.Equal(t, "2024-03-11", weekly[0].Date)

	monthly, err := svc.GetUsageMetricsByPeriod("t1", "monthly")
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, "2024-03-01", monthly[0].Date)
}

func TestRecordUsageMergesAcrossEvents(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.RecordUsage("t1", "gpt-4", 1, 100))
	require.NoError(t, svc.RecordUsage("t1", "gpt-4", 2, 50))
	require.NoError(t, svc.RecordUsage("t1", "claude", 1, 10))

	daily, err := svc.GetUsageMetricsByPeriod("t1", "daily")
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, int64(4), daily[0].TotalRequests)
	assert.Equal(t, int64(160), daily[0].TotalTokens)
	assert.Equal(t, int64(3), daily[0].RequestsByModel["gpt-4"])
	assert.Equal(t, int64(1), daily[0].RequestsByModel["claude"])
}

func TestRecordCost(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.RecordCost("t1", "gpt-4", "ws1", 0.5))
	require.NoError(t, svc.RecordCost("t1", "gpt-4", "ws2", 0.25))
	require.NoError(t, svc.RecordCost("t1", "claude", "", 0.1))

	daily, err := svc.GetCostMetricsByPeriod("t1", "daily")
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.InDelta(t, 0.85, daily[0].TotalCost, 1e-9)
	assert.InDelta(t, 0.75, daily[0].CostByModel["gpt-4"], 1e-9)
	assert.InDelta(t, 0.5, daily[0].CostByWorkspace["ws1"], 1e-9)
	// empty workspace is not attributed
	_, ok := daily[0].CostByWorkspace[""]
	assert.False(t, ok)
}

func TestInvalidPeriod(t *testing.T) {
	svc := newTestService()
	_, err := svc.GetUsageMetricsByPeriod("t1", "yearly")
	require.Error(t, err)
	var invalid ErrInvalidPeriod
	assert.True(t, errors.As(err, &invalid))
	assert.Equal(t, "yearly", invalid.Period)

	_, err = svc.GetCostMetricsByPeriod("t1", "hourly")
	assert.True(t, errors.As(err, &invalid))
}

func TestUnknownTenantIsEmptyNotError(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.RecordUsage("t1", "gpt-4", 1, 1))

	data, err := svc.GetUsageMetricsByPeriod("ghost", "daily")
	require.NoError(t, err)
	assert.Empty(t, data)

	all, err := svc.GetUsageMetrics("ghost")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTenantIsolation(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.RecordUsage("t1", "gpt-4", 5, 500))
	require.NoError(t, svc.RecordUsage("t2", "gpt-4", 1, 1))

	t1, err := svc.UsageTotals("t1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), t1.TotalRequests)

	t2, err := svc.UsageTotals("t2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), t2.TotalRequests)
}

func TestUsageTotalsSumsDailyBuckets(t *testing.T) {
	store := memory.NewMetricsStore()
	day := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	clock := day
	svc := NewServiceWithClock(store, func() time.Time { return clock })

	require.NoError(t, svc.RecordUsage("t1", "gpt-4", 1, 10))
	clock = day.AddDate(0, 0, 1)
	require.NoError(t, svc.RecordUsage("t1", "gpt-4", 2, 20))

	daily, err := svc.GetUsageMetricsByPeriod("t1", "daily")
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.True(t, daily[0].Date < daily[1].Date)

	totals, err := svc.UsageTotals("t1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.TotalRequests)
	assert.Equal(t, int64(30), totals.TotalTokens)
}

func TestRecordRequiresTenant(t *testing.T) {
	svc := newTestService()
	assert.Error(t, svc.RecordUsage("", "gpt-4", 1, 1))
	assert.Error(t, svc.RecordCost("", "gpt-4", "", 0.1))
}
