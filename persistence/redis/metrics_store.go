package redis

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
)

const USAGE_KEY string = "USAGE"
const COST_KEY string = "COST"
const BUCKET_IDX_SUFFIX string = "IDX"

const fieldTotalRequests = "totalRequests"
const fieldTotalTokens = "totalTokens"
const fieldTotalCost = "totalCost"

var _ persistence.MetricsStore = new(redisMetricsStore)

// redisMetricsStore merges counters with HINCRBY/HINCRBYFLOAT so concurrent
// writers stay additive without a read-modify-write cycle. A per-tenant index
// set tracks which (period, date) buckets exist for listing.
type redisMetricsStore struct {
	baseDao
}

func NewRedisMetricsStore(conf Config) *redisMetricsStore {
	return &redisMetricsStore{
		baseDao: *newBaseDao(conf),
	}
}

func (rm *redisMetricsStore) bucketKey(kind string, tenantId string, period model.Period, date string) string {
	return rm.getNamespaceKey(kind, tenantId, string(period), date)
}

func (rm *redisMetricsStore) indexKey(kind string, tenantId string) string {
	return rm.getNamespaceKey(kind, BUCKET_IDX_SUFFIX, tenantId)
}

func (rm *redisMetricsStore) MergeUsage(metric *model.UsageMetric) error {
	ctx := context.Background()
	key := rm.bucketKey(USAGE_KEY, metric.TenantId, metric.Period, metric.Date)
	pipe := rm.redisClient.TxPipeline()
	pipe.HIncrBy(ctx, key, fieldTotalRequests, metric.TotalRequests)
	pipe.HIncrBy(ctx, key, fieldTotalTokens, metric.TotalTokens)
	for m, v := range metric.RequestsByModel {
		pipe.HIncrBy(ctx, key, "req:"+m, v)
	}
	for m, v := range metric.TokensByModel {
		pipe.HIncrBy(ctx, key, "tok:"+m, v)
	}
	pipe.SAdd(ctx, rm.indexKey(USAGE_KEY, metric.TenantId), string(metric.Period)+"|"+metric.Date)
	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rm *redisMetricsStore) MergeCost(metric *model.CostMetric) error {
	ctx := context.Background()
	key := rm.bucketKey(COST_KEY, metric.TenantId, metric.Period, metric.Date)
	pipe := rm.redisClient.TxPipeline()
	pipe.HIncrByFloat(ctx, key, fieldTotalCost, metric.TotalCost)
	for m, v := range metric.CostByModel {
		pipe.HIncrByFloat(ctx, key, "model:"+m, v)
	}
	for w, v := range metric.CostByWorkspace {
		pipe.HIncrByFloat(ctx, key, "ws:"+w, v)
	}
	pipe.SAdd(ctx, rm.indexKey(COST_KEY, metric.TenantId), string(metric.Period)+"|"+metric.Date)
	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rm *redisMetricsStore) listBuckets(kind string, tenantId string) ([]model.Period, []string, error) {
	ctx := context.Background()
	members, err := rm.redisClient.SMembers(ctx, rm.indexKey(kind, tenantId)).Result()
	if err != nil {
		return nil, nil, persistence.StorageLayerError{Message: err.Error()}
	}
	periods := make([]model.Period, 0, len(members))
	dates := make([]string, 0, len(members))
	for _, member := range members {
		parts := strings.SplitN(member, "|", 2)
		if len(parts) != 2 {
			continue
		}
		periods = append(periods, model.Period(parts[0]))
		dates = append(dates, parts[1])
	}
	return periods, dates, nil
}

func (rm *redisMetricsStore) readUsage(tenantId string, period model.Period, date string) (*model.UsageMetric, error) {
	ctx := context.Background()
	fields, err := rm.redisClient.HGetAll(ctx, rm.bucketKey(USAGE_KEY, tenantId, period, date)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	metric := &model.UsageMetric{
		TenantId:        tenantId,
		Period:          period,
		Date:            date,
		RequestsByModel: make(map[string]int64),
		TokensByModel:   make(map[string]int64),
	}
	for field, raw := range fields {
		switch {
		case field == fieldTotalRequests:
			metric.TotalRequests, _ = strconv.ParseInt(raw, 10, 64)
		case field == fieldTotalTokens:
			metric.TotalTokens, _ = strconv.ParseInt(raw, 10, 64)
		case strings.HasPrefix(field, "req:"):
			metric.RequestsByModel[strings.TrimPrefix(field, "req:")], _ = strconv.ParseInt(raw, 10, 64)
		case strings.HasPrefix(field, "tok:"):
			metric.TokensByModel[strings.TrimPrefix(field, "tok:")], _ = strconv.ParseInt(raw, 10, 64)
		}
	}
	return metric, nil
}

func (rm *redisMetricsStore) readCost(tenantId string, period model.Period, date string) (*model.CostMetric, error) {
	ctx := context.Background()
	fields, err := rm.redisClient.HGetAll(ctx, rm.bucketKey(COST_KEY, tenantId, period, date)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	metric := &model.CostMetric{
		TenantId:        tenantId,
		Period:          period,
		Date:            date,
		CostByModel:     make(map[string]float64),
		CostByWorkspace: make(map[string]float64),
	}
	for field, raw := range fields {
		switch {
		case field == fieldTotalCost:
			metric.TotalCost, _ = strconv.ParseFloat(raw, 64)
		case strings.HasPrefix(field, "model:"):
			metric.CostByModel[strings.TrimPrefix(field, "model:")], _ = strconv.ParseFloat(raw, 64)
		case strings.HasPrefix(field, "ws:"):
			metric.CostByWorkspace[strings.TrimPrefix(field, "ws:")], _ = strconv.ParseFloat(raw, 64)
		}
	}
	return metric, nil
}

func (rm *redisMetricsStore) ListUsage(tenantId string) ([]*model.UsageMetric, error) {
	return rm.listUsageFiltered(tenantId, "")
}

func (rm *redisMetricsStore) ListUsageByPeriod(tenantId string, period model.Period) ([]*model.UsageMetric, error) {
	return rm.listUsageFiltered(tenantId, period)
}

func (rm *redisMetricsStore) listUsageFiltered(tenantId string, period model.Period) ([]*model.UsageMetric, error) {
	periods, dates, err := rm.listBuckets(USAGE_KEY, tenantId)
	if err != nil {
		return nil, err
	}
	out := make([]*model.UsageMetric, 0, len(dates))
	for i := range dates {
		if period != "" && periods[i] != period {
			continue
		}
		metric, err := rm.readUsage(tenantId, periods[i], dates[i])
		if err != nil {
			return nil, err
		}
		out = append(out, metric)
	}
	sortUsage(out)
	return out, nil
}

func (rm *redisMetricsStore) ListCost(tenantId string) ([]*model.CostMetric, error) {
	return rm.listCostFiltered(tenantId, "")
}

func (rm *redisMetricsStore) ListCostByPeriod(tenantId string, period model.Period) ([]*model.CostMetric, error) {
	return rm.listCostFiltered(tenantId, period)
}

func (rm *redisMetricsStore) listCostFiltered(tenantId string, period model.Period) ([]*model.CostMetric, error) {
	periods, dates, err := rm.listBuckets(COST_KEY, tenantId)
	if err != nil {
		return nil, err
	}
	out := make([]*model.CostMetric, 0, len(dates))
	for i := range dates {
		if period != "" && periods[i] != period {
			continue
		}
		metric, err := rm.readCost(tenantId, periods[i], dates[i])
		if err != nil {
			return nil, err
		}
		out = append(out, metric)
	}
	sortCost(out)
	return out, nil
}

func sortUsage(metrics []*model.UsageMetric) {
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Date < metrics[j].Date })
}

func sortCost(metrics []*model.CostMetric) {
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Date < metrics[j].Date })
}
