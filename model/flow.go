package model

import "time"

type FlowStatus string

const FLOW_STATUS_PENDING FlowStatus = "pending"
const FLOW_STATUS_RUNNING FlowStatus = "running"
const FLOW_STATUS_WAITING FlowStatus = "waiting"
const FLOW_STATUS_MANUAL_WAIT FlowStatus = "manual_wait"
const FLOW_STATUS_COMPLETED FlowStatus = "completed"
const FLOW_STATUS_FAILED FlowStatus = "failed"

func (s FlowStatus) IsTerminal() bool {
	return s == FLOW_STATUS_COMPLETED || s == FLOW_STATUS_FAILED
}

// NodeState tracks the execution status of one node within a flow run.
// A terminal status (completed/failed) is sticky; FinishedAt is set only on
// a terminal transition and implies StartedAt is set.
type NodeState struct {
	NodeId     string     `json:"nodeId"`
	Status     FlowStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// FlowRecord is one execution instance of a flow definition for a tenant.
// Identity is (TenantId, FlowId) and is immutable after creation. Data holds
// the initial input plus one "<nodeId>" entry per completed node so downstream
// nodes can resolve their input params against prior outputs.
type FlowRecord struct {
	TenantId   string         `json:"tenantId"`
	FlowId     string         `json:"flowId"`
	Status     FlowStatus     `json:"status"`
	NodeStates []NodeState    `json:"nodeStates"`
	Data       map[string]any `json:"data,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func FlowKey(tenantId string, flowId string) string {
	return tenantId + ":" + flowId
}

func (r *FlowRecord) Key() string {
	return FlowKey(r.TenantId, r.FlowId)
}

func (r *FlowRecord) NodeState(nodeId string) *NodeState {
	for i := range r.NodeStates {
		if r.NodeStates[i].NodeId == nodeId {
			return &r.NodeStates[i]
		}
	}
	return nil
}

// DeriveStatus computes the flow status as a pure function of node states:
// failed wins over everything, completed requires every node completed, and
// otherwise the most blocked active node decides.
func DeriveStatus(nodes []NodeState) FlowStatus {
	if len(nodes) == 0 {
		return FLOW_STATUS_PENDING
	}
	allCompleted := true
	anyStarted := false
	var manual, waiting, running bool
	for _, n := range nodes {
		if n.Status == FLOW_STATUS_FAILED {
			return FLOW_STATUS_FAILED
		}
		if n.Status != FLOW_STATUS_COMPLETED {
			allCompleted = false
		}
		if n.Status != FLOW_STATUS_PENDING {
			anyStarted = true
		}
		switch n.Status {
		case FLOW_STATUS_MANUAL_WAIT:
			manual = true
		case FLOW_STATUS_WAITING:
			waiting = true
		case FLOW_STATUS_RUNNING:
			running = true
		}
	}
	if allCompleted {
		return FLOW_STATUS_COMPLETED
	}
	if manual {
		return FLOW_STATUS_MANUAL_WAIT
	}
	if waiting {
		return FLOW_STATUS_WAITING
	}
	if running || anyStarted {
		return FLOW_STATUS_RUNNING
	}
	return FLOW_STATUS_PENDING
}
