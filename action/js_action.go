package action

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
)

var _ Action = new(jsAction)

// jsAction evaluates a javascript expression from node config against $,
// the flow data with the node's resolved input under $.input.
type jsAction struct{}

func NewJsAction() *jsAction {
	return &jsAction{}
}

func (a *jsAction) Name() string {
	return "javascript"
}

func (a *jsAction) Execute(input map[string]any, config map[string]any, ctx *Context) (map[string]any, error) {
	expression, _ := config["expression"].(string)
	if len(expression) == 0 {
		return nil, fmt.Errorf("nodeId=%s, expression can not be empty", ctx.NodeId)
	}
	scope := make(map[string]any, len(ctx.Data)+1)
	for k, v := range ctx.Data {
		scope[k] = v
	}
	scope["input"] = input
	data, _ := json.Marshal(scope)
	script := fmt.Sprintf("var $ = %s;\n", data)
	script = script + expression
	vm := goja.New()
	if _, err := vm.RunString(script); err != nil {
		return nil, fmt.Errorf("error executing javascript %w", err)
	}
	val, err := vm.RunString("$")
	if err != nil {
		return nil, fmt.Errorf("error executing javascript %w", err)
	}
	res, err := json.Marshal(val.Export())
	if err != nil {
		return nil, err
	}
	var output map[string]any
	json.Unmarshal(res, &output)
	return output, nil
}
