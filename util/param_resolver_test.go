package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveInputParams(t *testing.T) {
	flowData := map[string]any{
		"input": map[string]any{"city": "berlin"},
		"fetch": map[string]any{"temp": 21.5},
	}
	params := map[string]any{
		"greeting": "weather in {$.input.city}",
		"temp":     "{$.fetch.temp}",
		"static":   42,
		"nested": map[string]any{
			"city": "{$.input.city}",
		},
		"list": []any{"{$.input.city}", "plain"},
	}

	out := ResolveInputParams(flowData, params)
	assert.Equal(t, "weather in berlin", out["greeting"])
	assert.Equal(t, "21.5", out["temp"])
	assert.Equal(t, 42, out["static"])
	assert.Equal(t, map[string]any{"city": "berlin"}, out["nested"])
	assert.Equal(t, []any{"berlin", "plain"}, out["list"])
}

func TestResolveInputParamsNonPathTokensUntouched(t *testing.T) {
	out := ResolveInputParams(map[string]any{}, map[string]any{
		"tmpl": "braces {notapath} stay",
	})
	assert.Equal(t, "braces {notapath} stay", out["tmpl"])
}

func TestResolveInputParamsMissingPath(t *testing.T) {
	out := ResolveInputParams(map[string]any{}, map[string]any{
		"v": "{$.missing.key}",
	})
	assert.Equal(t, "<nil>", out["v"])
}
