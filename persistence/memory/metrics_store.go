package memory

import (
	"sort"
	"sync"

	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
)

var _ persistence.MetricsStore = new(MetricsStore)

type MetricsStore struct {
	mu    sync.RWMutex
	usage map[string]*model.UsageMetric
	cost  map[string]*model.CostMetric
}

func NewMetricsStore() *MetricsStore {
	return &MetricsStore{
		usage: make(map[string]*model.UsageMetric),
		cost:  make(map[string]*model.CostMetric),
	}
}

func bucketKey(tenantId string, period model.Period, date string) string {
	return tenantId + ":" + string(period) + ":" + date
}

func (s *MetricsStore) MergeUsage(metric *model.UsageMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucketKey(metric.TenantId, metric.Period, metric.Date)
	existing, ok := s.usage[key]
	if !ok {
		existing = &model.UsageMetric{
			TenantId:        metric.TenantId,
			Period:          metric.Period,
			Date:            metric.Date,
			RequestsByModel: make(map[string]int64),
			TokensByModel:   make(map[string]int64),
		}
		s.usage[key] = existing
	}
	existing.TotalRequests += metric.TotalRequests
	existing.TotalTokens += metric.TotalTokens
	for m, v := range metric.RequestsByModel {
		existing.RequestsByModel[m] += v
	}
	for m, v := range metric.TokensByModel {
		existing.TokensByModel[m] += v
	}
	return nil
}

func (s *MetricsStore) MergeCost(metric *model.CostMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucketKey(metric.TenantId, metric.Period, metric.Date)
	existing, ok := s.cost[key]
	if !ok {
		existing = &model.CostMetric{
			TenantId:        metric.TenantId,
			Period:          metric.Period,
			Date:            metric.Date,
			CostByModel:     make(map[string]float64),
			CostByWorkspace: make(map[string]float64),
		}
		s.cost[key] = existing
	}
	existing.TotalCost += metric.TotalCost
	for m, v := range metric.CostByModel {
		existing.CostByModel[m] += v
	}
	for w, v := range metric.CostByWorkspace {
		existing.CostByWorkspace[w] += v
	}
	return nil
}

func (s *MetricsStore) ListUsage(tenantId string) ([]*model.UsageMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.UsageMetric, 0)
	for _, m := range s.usage {
		if m.TenantId == tenantId {
			out = append(out, copyUsage(m))
		}
	}
	sortUsage(out)
	return out, nil
}

func (s *MetricsStore) ListUsageByPeriod(tenantId string, period model.Period) ([]*model.UsageMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.UsageMetric, 0)
	for _, m := range s.usage {
		if m.TenantId == tenantId && m.Period == period {
			out = append(out, copyUsage(m))
		}
	}
	sortUsage(out)
	return out, nil
}

func (s *MetricsStore) ListCost(tenantId string) ([]*model.CostMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.CostMetric, 0)
	for _, m := range s.cost {
		if m.TenantId == tenantId {
			out = append(out, copyCost(m))
		}
	}
	sortCost(out)
	return out, nil
}

func (s *MetricsStore) ListCostByPeriod(tenantId string, period model.Period) ([]*model.CostMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.CostMetric, 0)
	for _, m := range s.cost {
		if m.TenantId == tenantId && m.Period == period {
			out = append(out, copyCost(m))
		}
	}
	sortCost(out)
	return out, nil
}

func sortUsage(metrics []*model.UsageMetric) {
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Date != metrics[j].Date {
			return metrics[i].Date < metrics[j].Date
		}
		return metrics[i].Period < metrics[j].Period
	})
}

func sortCost(metrics []*model.CostMetric) {
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Date != metrics[j].Date {
			return metrics[i].Date < metrics[j].Date
		}
		return metrics[i].Period < metrics[j].Period
	})
}

func copyUsage(m *model.UsageMetric) *model.UsageMetric {
	c := *m
	c.RequestsByModel = copyCounts(m.RequestsByModel)
	c.TokensByModel = copyCounts(m.TokensByModel)
	return &c
}

func copyCost(m *model.CostMetric) *model.CostMetric {
	c := *m
	c.CostByModel = copyAmounts(m.CostByModel)
	c.CostByWorkspace = copyAmounts(m.CostByWorkspace)
	return &c
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyAmounts(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
