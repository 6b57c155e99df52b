package persistence

import (
	"errors"
	"fmt"

	"github.com/JacLight/mintflow-sub008/model"
)

// ErrNotFound is returned when a flow record or definition does not exist.
// Callers distinguish it from validation and storage failures.
var ErrNotFound = errors.New("not found")

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

// FlowStore persists flow records per tenant. SaveFlow is an upsert; the
// engine serializes its own writes per flow, so last-write-wins is enough.
// No transactional multi-flow guarantees are required of implementations.
type FlowStore interface {
	GetFlow(tenantId string, flowId string) (*model.FlowRecord, error)
	SaveFlow(record *model.FlowRecord) error
	ListFlows(tenantId string) ([]*model.FlowRecord, error)
	DeleteFlow(tenantId string, flowId string) error
}

// MetricsStore persists usage/cost buckets. Merge operations are additive,
// keyed by (tenantId, period, date); buckets are created lazily and never
// deleted by the engine.
type MetricsStore interface {
	MergeUsage(metric *model.UsageMetric) error
	MergeCost(metric *model.CostMetric) error
	ListUsage(tenantId string) ([]*model.UsageMetric, error)
	ListUsageByPeriod(tenantId string, period model.Period) ([]*model.UsageMetric, error)
	ListCost(tenantId string) ([]*model.CostMetric, error)
	ListCostByPeriod(tenantId string, period model.Period) ([]*model.CostMetric, error)
}
