package metrics

import (
	"fmt"
	"time"

	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
	"go.uber.org/zap"
)

// ErrInvalidPeriod marks a bad period parameter so callers can map it to a
// validation failure instead of a server error.
type ErrInvalidPeriod struct {
	Period string
}

func (e ErrInvalidPeriod) Error() string {
	return fmt.Sprintf("invalid period: %s, must be one of: daily, weekly, monthly", e.Period)
}

var allPeriods = []model.Period{model.PERIOD_DAILY, model.PERIOD_WEEKLY, model.PERIOD_MONTHLY}

// Service aggregates usage and cost counters per tenant. Every recorded
// event merges additively into the daily, weekly and monthly buckets of the
// event's date. Query operations on an unknown tenant return empty
// sequences, never an error.
type Service struct {
	store persistence.MetricsStore
	now   func() time.Time
}

func NewService(store persistence.MetricsStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// NewServiceWithClock pins the bucketing clock; used by tests.
func NewServiceWithClock(store persistence.MetricsStore, now func() time.Time) *Service {
	return &Service{
		store: store,
		now:   now,
	}
}

func (s *Service) RecordUsage(tenantId string, modelName string, requests int64, tokens int64) error {
	if tenantId == "" {
		return fmt.Errorf("tenantId is required")
	}
	at := s.now()
	for _, period := range allPeriods {
		metric := &model.UsageMetric{
			TenantId:        tenantId,
			Period:          period,
			Date:            model.BucketDate(at, period),
			TotalRequests:   requests,
			TotalTokens:     tokens,
			RequestsByModel: map[string]int64{modelName: requests},
			TokensByModel:   map[string]int64{modelName: tokens},
		}
		if err := s.store.MergeUsage(metric); err != nil {
			logger.Error("error merging usage metrics", zap.String("tenantId", tenantId), zap.Error(err))
			return err
		}
	}
	return nil
}

func (s *Service) RecordCost(tenantId string, modelName string, workspaceId string, cost float64) error {
	if tenantId == "" {
		return fmt.Errorf("tenantId is required")
	}
	at := s.now()
	for _, period := range allPeriods {
		metric := &model.CostMetric{
			TenantId:    tenantId,
			Period:      period,
			Date:        model.BucketDate(at, period),
			TotalCost:   cost,
			CostByModel: map[string]float64{modelName: cost},
		}
		if workspaceId != "" {
			metric.CostByWorkspace = map[string]float64{workspaceId: cost}
		}
		if err := s.store.MergeCost(metric); err != nil {
			logger.Error("error merging cost metrics", zap.String("tenantId", tenantId), zap.Error(err))
			return err
		}
	}
	return nil
}

func (s *Service) GetUsageMetrics(tenantId string) ([]*model.UsageMetric, error) {
	return s.store.ListUsage(tenantId)
}

func (s *Service) GetUsageMetricsByPeriod(tenantId string, period string) ([]*model.UsageMetric, error) {
	if !model.ValidPeriod(period) {
		return nil, ErrInvalidPeriod{Period: period}
	}
	return s.store.ListUsageByPeriod(tenantId, model.Period(period))
}

func (s *Service) GetCostMetrics(tenantId string) ([]*model.CostMetric, error) {
	return s.store.ListCost(tenantId)
}

func (s *Service) GetCostMetricsByPeriod(tenantId string, period string) ([]*model.CostMetric, error) {
	if !model.ValidPeriod(period) {
		return nil, ErrInvalidPeriod{Period: period}
	}
	return s.store.ListCostByPeriod(tenantId, model.Period(period))
}

// UsageTotals sums a tenant's daily buckets into the aggregate view served
// by the usage query endpoint.
func (s *Service) UsageTotals(tenantId string) (*model.UsageMetric, error) {
	metrics, err := s.store.ListUsageByPeriod(tenantId, model.PERIOD_DAILY)
	if err != nil {
		return nil, err
	}
	total := &model.UsageMetric{
		TenantId:        tenantId,
		RequestsByModel: make(map[string]int64),
		TokensByModel:   make(map[string]int64),
	}
	for _, m := range metrics {
		total.TotalRequests += m.TotalRequests
		total.TotalTokens += m.TotalTokens
		for k, v := range m.RequestsByModel {
			total.RequestsByModel[k] += v
		}
		for k, v := range m.TokensByModel {
			total.TokensByModel[k] += v
		}
	}
	return total, nil
}

// CostTotals is the cost counterpart of UsageTotals.
func (s *Service) CostTotals(tenantId string) (*model.CostMetric, error) {
	metrics, err := s.store.ListCostByPeriod(tenantId, model.PERIOD_DAILY)
	if err != nil {
		return nil, err
	}
	total := &model.CostMetric{
		TenantId:        tenantId,
		CostByModel:     make(map[string]float64),
		CostByWorkspace: make(map[string]float64),
	}
	for _, m := range metrics {
		total.TotalCost += m.TotalCost
		for k, v := range m.CostByModel {
			total.CostByModel[k] += v
		}
		for k, v := range m.CostByWorkspace {
			total.CostByWorkspace[k] += v
		}
	}
	return total, nil
}
