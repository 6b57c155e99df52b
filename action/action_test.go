package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"javascript", "jsonmap", "log", ACTION_WAIT, ACTION_MANUAL, ACTION_DELAY} {
		assert.True(t, r.Has(name), "expected %s to be registered", name)
	}
	assert.False(t, r.Has("nope"))

	_, err := r.Get("nope")
	assert.Error(t, err)
}

func TestMarkerActionsRefuseDirectExecution(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{ACTION_WAIT, ACTION_MANUAL, ACTION_DELAY} {
		a, err := r.Get(name)
		require.NoError(t, err)
		_, err = a.Execute(nil, nil, &Context{NodeId: "n"})
		assert.Error(t, err)
	}
}

func TestRegisterFuncOverrides(t *testing.T) {
	r := NewRegistry()
	r.RegisterFunc("custom", func(input map[string]any, config map[string]any, ctx *Context) (map[string]any, error) {
		return map[string]any{"from": ctx.NodeId}, nil
	})
	a, err := r.Get("custom")
	require.NoError(t, err)
	out, err := a.Execute(nil, nil, &Context{NodeId: "n1"})
	require.NoError(t, err)
	assert.Equal(t, "n1", out["from"])
}

func TestJsActionEvaluatesExpression(t *testing.T) {
	a := NewJsAction()
	ctx := &Context{
		NodeId: "calc",
		Data: map[string]any{
			"fetch": map[string]any{"temp": 21.0},
		},
	}
	out, err := a.Execute(
		map[string]any{"offset": 2.0},
		map[string]any{"expression": "$.result = $.fetch.temp + $.input.offset;"},
		ctx,
	)
	require.NoError(t, err)
	assert.Equal(t, float64(23), out["result"])
	// prior data remains visible in the produced scope
	assert.Contains(t, out, "fetch")
}

func TestJsActionRequiresExpression(t *testing.T) {
	a := NewJsAction()
	_, err := a.Execute(nil, map[string]any{}, &Context{NodeId: "calc"})
	assert.Error(t, err)
}

func TestJsActionBadScript(t *testing.T) {
	a := NewJsAction()
	_, err := a.Execute(nil, map[string]any{"expression": "this is not js ("}, &Context{NodeId: "calc"})
	assert.Error(t, err)
}

func TestJsonMapActionResolvesAgainstFlowData(t *testing.T) {
	a := NewJsonMapAction()
	ctx := &Context{
		Data: map[string]any{
			"input": map[string]any{"city": "berlin"},
		},
	}
	out, err := a.Execute(map[string]any{"where": "{$.input.city}"}, nil, ctx)
	require.NoError(t, err)
	assert.Equal(t, "berlin", out["where"])
}

func TestLogActionEchoesInput(t *testing.T) {
	a := NewLogAction()
	out, err := a.Execute(map[string]any{"k": "v"}, nil, &Context{TenantId: "t1", FlowId: "f1", NodeId: "n1"})
	require.NoError(t, err)
	assert.Equal(t, "v", out["k"])
}
