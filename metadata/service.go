package metadata

import (
	"fmt"
	"time"

	"github.com/JacLight/mintflow-sub008/action"
	"github.com/JacLight/mintflow-sub008/model"
	c "github.com/patrickmn/go-cache"
)

type Service interface {
	GetFlowDefinition(tenantId string, flowId string) (*model.FlowDefinition, error)
	SaveFlowDefinition(def model.FlowDefinition) error
	ListFlowDefinitions(tenantId string) ([]*model.FlowDefinition, error)
	ValidateFlowDefinition(def model.FlowDefinition) error
}

type serviceImpl struct {
	storage Storage
	actions *action.Registry
	cache   *c.Cache
}

// NewService wraps a definition Storage with a read-through cache; saves
// invalidate the cached entry so the engine always sees the latest graph.
func NewService(storage Storage, actions *action.Registry) Service {
	return &serviceImpl{
		storage: storage,
		actions: actions,
		cache:   c.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *serviceImpl) GetFlowDefinition(tenantId string, flowId string) (*model.FlowDefinition, error) {
	key := model.FlowKey(tenantId, flowId)
	if cached, found := s.cache.Get(key); found {
		def := cached.(model.FlowDefinition)
		return &def, nil
	}
	def, err := s.storage.GetFlowDefinition(tenantId, flowId)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, *def, c.DefaultExpiration)
	return def, nil
}

func (s *serviceImpl) SaveFlowDefinition(def model.FlowDefinition) error {
	if err := s.ValidateFlowDefinition(def); err != nil {
		return err
	}
	if err := s.storage.SaveFlowDefinition(def); err != nil {
		return err
	}
	s.cache.Delete(model.FlowKey(def.TenantId, def.FlowId))
	return nil
}

func (s *serviceImpl) ListFlowDefinitions(tenantId string) ([]*model.FlowDefinition, error) {
	return s.storage.ListFlowDefinitions(tenantId)
}

// ValidateFlowDefinition rejects graphs the scheduler cannot drive: empty or
// duplicate node ids, unknown actions, dangling dependencies and cycles.
func (s *serviceImpl) ValidateFlowDefinition(def model.FlowDefinition) error {
	if def.TenantId == "" {
		return fmt.Errorf("tenantId is required")
	}
	if def.FlowId == "" {
		return fmt.Errorf("flowId is required")
	}
	if len(def.Nodes) == 0 {
		return fmt.Errorf("flow %s has no nodes", def.FlowId)
	}
	seen := make(map[string]bool, len(def.Nodes))
	for _, node := range def.Nodes {
		if node.NodeId == "" {
			return fmt.Errorf("flow %s has a node with empty nodeId", def.FlowId)
		}
		if seen[node.NodeId] {
			return fmt.Errorf("node id %s is duplicate", node.NodeId)
		}
		seen[node.NodeId] = true
		if s.actions != nil && !s.actions.Has(node.Action) {
			return fmt.Errorf("nodeId=%s, action %s not registered", node.NodeId, node.Action)
		}
	}
	for _, node := range def.Nodes {
		for _, dep := range node.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("nodeId=%s, dependency %s not defined", node.NodeId, dep)
			}
			if dep == node.NodeId {
				return fmt.Errorf("nodeId=%s depends on itself", node.NodeId)
			}
		}
	}
	return checkAcyclic(def)
}

func checkAcyclic(def model.FlowDefinition) error {
	const white, grey, black = 0, 1, 2
	color := make(map[string]int, len(def.Nodes))
	var visit func(nodeId string) error
	visit = func(nodeId string) error {
		color[nodeId] = grey
		for _, dep := range def.Node(nodeId).DependsOn {
			switch color[dep] {
			case grey:
				return fmt.Errorf("dependency cycle through node %s", dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[nodeId] = black
		return nil
	}
	for _, node := range def.Nodes {
		if color[node.NodeId] == white {
			if err := visit(node.NodeId); err != nil {
				return err
			}
		}
	}
	return nil
}
