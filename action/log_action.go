package action

import (
	"github.com/JacLight/mintflow-sub008/logger"
	"go.uber.org/zap"
)

var _ Action = new(logAction)

type logAction struct{}

func NewLogAction() *logAction {
	return &logAction{}
}

func (a *logAction) Name() string {
	return "log"
}

func (a *logAction) Execute(input map[string]any, config map[string]any, ctx *Context) (map[string]any, error) {
	logger.Info("log action", zap.String("tenantId", ctx.TenantId), zap.String("flowId", ctx.FlowId), zap.String("nodeId", ctx.NodeId), zap.Any("input", input))
	return input, nil
}
