package model

import "time"

// StateDelta is published to flow rooms after every node transition.
type StateDelta struct {
	TenantId   string     `json:"tenantId"`
	FlowId     string     `json:"flowId"`
	NodeId     string     `json:"nodeId,omitempty"`
	NodeStatus FlowStatus `json:"nodeStatus,omitempty"`
	FlowStatus FlowStatus `json:"flowStatus"`
	Error      string     `json:"error,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// RoomMessage is the envelope delivered to observers of a room.
type RoomMessage struct {
	RoomKey   string    `json:"roomKey"`
	Payload   any       `json:"payload"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

type FlowRunRequest struct {
	Input map[string]any `json:"input,omitempty"`
}

type ResumeRequest struct {
	NodeId string         `json:"nodeId"`
	Output map[string]any `json:"output,omitempty"`
}
