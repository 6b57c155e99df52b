package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenRe = regexp.MustCompile("{(.*?)}")

// ResolveInputParams substitutes {$...} jsonpath tokens in a node's input
// params against the flow's accumulated data (initial input plus prior node
// outputs). Unresolvable tokens become "<nil>", matching lookup failure.
func ResolveInputParams(flowData map[string]any, inputParams map[string]any) map[string]any {
	data := make(map[string]any)
	resolveParams(flowData, inputParams, data)
	return data
}

func resolveParams(flowData map[string]any, params map[string]any, output map[string]any) {
	for k, v := range params {
		switch val := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			output[k] = out
			resolveParams(flowData, val, out)
		case string:
			output[k] = resolveString(flowData, val)
		case []any:
			output[k] = resolveList(flowData, val)
		default:
			output[k] = v
		}
	}
}

func resolveList(flowData map[string]any, list []any) []any {
	var output []any
	for _, v := range list {
		switch val := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			resolveParams(flowData, val, out)
			output = append(output, out)
		case string:
			output = append(output, resolveString(flowData, val))
		case []any:
			output = append(output, resolveList(flowData, val)...)
		default:
			output = append(output, v)
		}
	}
	return output
}

func resolveString(flowData map[string]any, s string) string {
	tokens := tokenRe.FindAllString(s, -1)
	for _, token := range tokens {
		tmatch := strings.ReplaceAll(token, "{", "")
		tmatch = strings.ReplaceAll(tmatch, "}", "")
		if !strings.HasPrefix(tmatch, "$") {
			continue
		}
		value, _ := jsonpath.JsonPathLookup(flowData, tmatch)
		s = strings.ReplaceAll(s, token, fmt.Sprintf("%v", value))
	}
	return s
}
