package memory

import (
	"sort"
	"sync"

	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
)

var _ persistence.FlowStore = new(FlowStore)

// FlowStore keeps flow records in process memory, partitioned by tenant.
// It is the default backend and the one the test suite runs against.
type FlowStore struct {
	mu      sync.RWMutex
	tenants map[string]map[string]*model.FlowRecord
}

func NewFlowStore() *FlowStore {
	return &FlowStore{
		tenants: make(map[string]map[string]*model.FlowRecord),
	}
}

func (s *FlowStore) GetFlow(tenantId string, flowId string) (*model.FlowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flows, ok := s.tenants[tenantId]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	record, ok := flows[flowId]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return copyRecord(record), nil
}

func (s *FlowStore) SaveFlow(record *model.FlowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flows, ok := s.tenants[record.TenantId]
	if !ok {
		flows = make(map[string]*model.FlowRecord)
		s.tenants[record.TenantId] = flows
	}
	flows[record.FlowId] = copyRecord(record)
	return nil
}

func (s *FlowStore) ListFlows(tenantId string) ([]*model.FlowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flows := s.tenants[tenantId]
	out := make([]*model.FlowRecord, 0, len(flows))
	for _, record := range flows {
		out = append(out, copyRecord(record))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FlowId < out[j].FlowId })
	return out, nil
}

func (s *FlowStore) DeleteFlow(tenantId string, flowId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flows, ok := s.tenants[tenantId]
	if !ok {
		return persistence.ErrNotFound
	}
	if _, ok := flows[flowId]; !ok {
		return persistence.ErrNotFound
	}
	delete(flows, flowId)
	return nil
}

// copyRecord isolates stored state from caller mutation; the engine mutates
// its working copy freely between saves.
func copyRecord(r *model.FlowRecord) *model.FlowRecord {
	c := *r
	c.NodeStates = make([]model.NodeState, len(r.NodeStates))
	copy(c.NodeStates, r.NodeStates)
	if r.Data != nil {
		c.Data = make(map[string]any, len(r.Data))
		for k, v := range r.Data {
			c.Data[k] = v
		}
	}
	return &c
}
