package action

import (
	"github.com/JacLight/mintflow-sub008/util"
)

var _ Action = new(jsonMapAction)

// jsonMapAction reshapes flow data into a new output map by resolving the
// node's input params, which may reference prior node outputs with
// {$...} jsonpath tokens.
type jsonMapAction struct{}

func NewJsonMapAction() *jsonMapAction {
	return &jsonMapAction{}
}

func (a *jsonMapAction) Name() string {
	return "jsonmap"
}

func (a *jsonMapAction) Execute(input map[string]any, config map[string]any, ctx *Context) (map[string]any, error) {
	return util.ResolveInputParams(ctx.Data, input), nil
}
