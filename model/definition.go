package model

// NodeDef describes one node of a flow graph. DependsOn names the node's
// predecessors; a node becomes runnable only after all of them complete.
type NodeDef struct {
	NodeId    string         `json:"nodeId"`
	Action    string         `json:"action"`
	Input     map[string]any `json:"input,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
	DependsOn []string       `json:"dependsOn,omitempty"`
}

type FlowDefinition struct {
	TenantId string         `json:"tenantId"`
	FlowId   string         `json:"flowId"`
	Nodes    []NodeDef      `json:"nodes"`
	Input    map[string]any `json:"input,omitempty"`
}

func (d *FlowDefinition) Node(nodeId string) *NodeDef {
	for i := range d.Nodes {
		if d.Nodes[i].NodeId == nodeId {
			return &d.Nodes[i]
		}
	}
	return nil
}
