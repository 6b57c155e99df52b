package metadata

import (
	"sort"
	"sync"

	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
)

var _ Storage = new(inMemStorage)

type inMemStorage struct {
	mu   sync.RWMutex
	defs map[string]model.FlowDefinition
}

func NewInMemStorage() *inMemStorage {
	return &inMemStorage{
		defs: make(map[string]model.FlowDefinition),
	}
}

func (s *inMemStorage) SaveFlowDefinition(def model.FlowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[model.FlowKey(def.TenantId, def.FlowId)] = def
	return nil
}

func (s *inMemStorage) DeleteFlowDefinition(tenantId string, flowId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.FlowKey(tenantId, flowId)
	if _, ok := s.defs[key]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.defs, key)
	return nil
}

func (s *inMemStorage) GetFlowDefinition(tenantId string, flowId string) (*model.FlowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[model.FlowKey(tenantId, flowId)]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return &def, nil
}

func (s *inMemStorage) ListFlowDefinitions(tenantId string) ([]*model.FlowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.FlowDefinition, 0)
	for _, def := range s.defs {
		if def.TenantId == tenantId {
			d := def
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FlowId < out[j].FlowId })
	return out, nil
}
