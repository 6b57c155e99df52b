package metadata

import "github.com/JacLight/mintflow-sub008/model"

type Storage interface {
	SaveFlowDefinition(def model.FlowDefinition) error
	DeleteFlowDefinition(tenantId string, flowId string) error
	GetFlowDefinition(tenantId string, flowId string) (*model.FlowDefinition, error)
	ListFlowDefinitions(tenantId string) ([]*model.FlowDefinition, error)
}
