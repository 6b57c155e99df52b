package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JacLight/mintflow-sub008/action"
	"github.com/JacLight/mintflow-sub008/broadcast"
	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/JacLight/mintflow-sub008/metadata"
	"github.com/JacLight/mintflow-sub008/metrics"
	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
	"github.com/JacLight/mintflow-sub008/util"
	"go.uber.org/zap"
)

// ErrFlowConflict is returned when RunFlow is invoked on a flow that is
// already executing or persisted in a non-terminal status. Re-entrant runs
// are rejected, never queued or restarted.
var ErrFlowConflict = errors.New("flow is already running")

// ErrNodeNotResumable is returned when ResumeNode targets a node that is not
// parked in waiting or manual_wait.
var ErrNodeNotResumable = errors.New("node is not waiting for resumption")

// FlowEngine drives flow graphs to completion. Flows for different
// (tenantId, flowId) pairs execute independently; within one flow a single
// run loop goroutine owns the record and serializes all transitions, so the
// store never sees concurrent writers for the same flow.
type FlowEngine struct {
	store    persistence.FlowStore
	metadata metadata.Service
	actions  *action.Registry
	hub      *broadcast.Hub
	metrics  *metrics.Service
	delays   *delayScheduler
	wg       *sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*flowRun

	pool     []*util.Worker
	nextWork int
	poolMu   sync.Mutex
}

type Config struct {
	Store            persistence.FlowStore
	Metadata         metadata.Service
	Actions          *action.Registry
	Hub              *broadcast.Hub
	Metrics          *metrics.Service
	ExecutorCapacity int
	DelayPollSeconds int
}

func NewFlowEngine(conf Config, wg *sync.WaitGroup) *FlowEngine {
	capacity := conf.ExecutorCapacity
	if capacity <= 0 {
		capacity = 8
	}
	pollSeconds := conf.DelayPollSeconds
	if pollSeconds <= 0 {
		pollSeconds = 1
	}
	e := &FlowEngine{
		store:    conf.Store,
		metadata: conf.Metadata,
		actions:  conf.Actions,
		hub:      conf.Hub,
		metrics:  conf.Metrics,
		wg:       wg,
		runs:     make(map[string]*flowRun),
	}
	for i := 0; i < capacity; i++ {
		name := fmt.Sprintf("node-executor-%d", i)
		e.pool = append(e.pool, util.NewWorker(name, wg, e.executeNodeTask, 64))
	}
	e.delays = newDelayScheduler(e, pollSeconds, wg)
	return e
}

func (e *FlowEngine) Start() {
	for _, w := range e.pool {
		w.Start()
	}
	e.delays.Start()
}

func (e *FlowEngine) Stop() error {
	e.delays.Stop()
	for _, w := range e.pool {
		w.Stop()
	}
	return nil
}

// RunFlow starts executing the flow's node graph for a tenant. The flow
// definition must exist; a live run loop or a persisted non-terminal record
// yields ErrFlowConflict. A terminal record is re-run from scratch.
func (e *FlowEngine) RunFlow(tenantId string, flowId string) error {
	return e.RunFlowWithInput(tenantId, flowId, nil)
}

func (e *FlowEngine) RunFlowWithInput(tenantId string, flowId string, input map[string]any) error {
	def, err := e.metadata.GetFlowDefinition(tenantId, flowId)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	key := model.FlowKey(tenantId, flowId)
	if _, live := e.runs[key]; live {
		return ErrFlowConflict
	}

	now := time.Now()
	record, err := e.store.GetFlow(tenantId, flowId)
	switch {
	case err == nil:
		if !record.Status.IsTerminal() && record.Status != model.FLOW_STATUS_PENDING {
			return ErrFlowConflict
		}
	case errors.Is(err, persistence.ErrNotFound):
		record = &model.FlowRecord{
			TenantId:  tenantId,
			FlowId:    flowId,
			CreatedAt: now,
		}
	default:
		return err
	}

	record.Status = model.FLOW_STATUS_RUNNING
	record.UpdatedAt = now
	record.NodeStates = make([]model.NodeState, 0, len(def.Nodes))
	for _, node := range def.Nodes {
		record.NodeStates = append(record.NodeStates, model.NodeState{
			NodeId: node.NodeId,
			Status: model.FLOW_STATUS_PENDING,
		})
	}
	data := make(map[string]any)
	if def.Input != nil {
		data["input"] = def.Input
	}
	if input != nil {
		data["input"] = input
	}
	record.Data = data

	if err := e.store.SaveFlow(record); err != nil {
		return err
	}

	run := newFlowRun(e, def, record)
	e.runs[key] = run
	e.wg.Add(1)
	go run.loop()
	logger.Info("flow started", zap.String("tenantId", tenantId), zap.String("flowId", flowId))
	return nil
}

// ResumeNode moves a waiting or manual_wait node back into the lifecycle,
// recording output as the node's result. If the flow's run loop has drained
// it is restarted to continue scheduling dependents. A live loop validates
// the node's status before acking, so resuming a node that is not parked
// fails the same way whether the loop is running or drained.
func (e *FlowEngine) ResumeNode(tenantId string, flowId string, nodeId string, output map[string]any) error {
	e.mu.Lock()
	key := model.FlowKey(tenantId, flowId)
	if run, live := e.runs[key]; live {
		ev := nodeEvent{kind: eventResume, nodeId: nodeId, output: output, reply: make(chan error, 1)}
		run.events <- ev
		// the reply wait must not hold e.mu: the loop takes it in detach
		e.mu.Unlock()
		return <-ev.reply
	}
	defer e.mu.Unlock()
	return e.resumeParked(tenantId, flowId, nodeId, output)
}

func (e *FlowEngine) resumeParked(tenantId string, flowId string, nodeId string, output map[string]any) error {
	def, err := e.metadata.GetFlowDefinition(tenantId, flowId)
	if err != nil {
		return err
	}
	record, err := e.store.GetFlow(tenantId, flowId)
	if err != nil {
		return err
	}
	state := record.NodeState(nodeId)
	if state == nil {
		return fmt.Errorf("node %s: %w", nodeId, persistence.ErrNotFound)
	}
	if state.Status != model.FLOW_STATUS_WAITING && state.Status != model.FLOW_STATUS_MANUAL_WAIT {
		return ErrNodeNotResumable
	}

	run := newFlowRun(e, def, record)
	run.events <- nodeEvent{kind: eventResume, nodeId: nodeId, output: output}
	e.runs[model.FlowKey(tenantId, flowId)] = run
	e.wg.Add(1)
	go run.loop()
	return nil
}

// CancelFlow stops scheduling new node starts and fails every node still
// pending, waiting or manual_wait with reason "cancelled". Nodes already
// running are left to finish; their completions are recorded but schedule
// nothing further.
func (e *FlowEngine) CancelFlow(tenantId string, flowId string) error {
	e.mu.Lock()
	key := model.FlowKey(tenantId, flowId)
	if run, live := e.runs[key]; live {
		run.events <- nodeEvent{kind: eventCancel}
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	record, err := e.store.GetFlow(tenantId, flowId)
	if err != nil {
		return err
	}
	if record.Status.IsTerminal() {
		return nil
	}
	now := time.Now()
	for i := range record.NodeStates {
		st := &record.NodeStates[i]
		switch st.Status {
		case model.FLOW_STATUS_PENDING, model.FLOW_STATUS_WAITING, model.FLOW_STATUS_MANUAL_WAIT:
			if st.StartedAt == nil {
				st.StartedAt = &now
			}
			st.Status = model.FLOW_STATUS_FAILED
			st.Error = "cancelled"
			st.FinishedAt = &now
		}
	}
	record.Status = model.DeriveStatus(record.NodeStates)
	record.UpdatedAt = now
	if err := e.store.SaveFlow(record); err != nil {
		return err
	}
	e.publishDelta(record, "", "cancelled")
	return nil
}

func (e *FlowEngine) GetFlow(tenantId string, flowId string) (*model.FlowRecord, error) {
	return e.store.GetFlow(tenantId, flowId)
}

func (e *FlowEngine) ListFlows(tenantId string) ([]*model.FlowRecord, error) {
	return e.store.ListFlows(tenantId)
}

// FlowSnapshot serves the hub's join-time full-state push for flow rooms.
func (e *FlowEngine) FlowSnapshot(roomKey string) (any, bool) {
	tenantId, flowId, ok := splitFlowRoom(roomKey)
	if !ok {
		return nil, false
	}
	record, err := e.store.GetFlow(tenantId, flowId)
	if err != nil {
		return nil, false
	}
	return record, true
}

func splitFlowRoom(roomKey string) (string, string, bool) {
	for i := 0; i < len(roomKey); i++ {
		if roomKey[i] == ':' {
			return roomKey[:i], roomKey[i+1:], i > 0 && i < len(roomKey)-1
		}
	}
	return "", "", false
}

// detach removes a drained run loop from the registry. If an event raced in
// while the loop was deciding to park, the loop keeps running instead.
func (e *FlowEngine) detach(run *flowRun) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(run.events) > 0 {
		return false
	}
	delete(e.runs, run.record.Key())
	return true
}

func (e *FlowEngine) submit(task *nodeTask) {
	e.poolMu.Lock()
	worker := e.pool[e.nextWork%len(e.pool)]
	e.nextWork++
	e.poolMu.Unlock()
	worker.Sender() <- task
}

// executeNodeTask runs one node action on a pool worker and reports the
// outcome back to the owning run loop. An action error is a node failure,
// never a worker failure.
func (e *FlowEngine) executeNodeTask(t util.Task) error {
	task := t.(*nodeTask)
	output, err := task.act.Execute(task.input, task.node.Config, task.ctx)
	if err != nil {
		task.run.events <- nodeEvent{kind: eventFailed, nodeId: task.node.NodeId, err: err}
		return nil
	}
	task.run.events <- nodeEvent{kind: eventCompleted, nodeId: task.node.NodeId, output: output}
	return nil
}

func (e *FlowEngine) publishDelta(record *model.FlowRecord, nodeId string, errMsg string) {
	if e.hub == nil {
		return
	}
	delta := model.StateDelta{
		TenantId:   record.TenantId,
		FlowId:     record.FlowId,
		NodeId:     nodeId,
		FlowStatus: record.Status,
		Error:      errMsg,
		UpdatedAt:  record.UpdatedAt,
	}
	if nodeId != "" {
		if state := record.NodeState(nodeId); state != nil {
			delta.NodeStatus = state.Status
		}
	}
	e.hub.Publish(broadcast.FlowRoom(record.TenantId, record.FlowId), delta)
}

// recordNodeMetrics treats well-known output keys as usage/cost signals:
// "model", "tokens", "cost", "workspace". Every completed node counts as one
// request against the model (the action name when the output names none).
func (e *FlowEngine) recordNodeMetrics(record *model.FlowRecord, node *model.NodeDef, output map[string]any) {
	if e.metrics == nil {
		return
	}
	modelName := node.Action
	if m, ok := output["model"].(string); ok && m != "" {
		modelName = m
	}
	var tokens int64
	if t, ok := asFloat(output["tokens"]); ok {
		tokens = int64(t)
	}
	if err := e.metrics.RecordUsage(record.TenantId, modelName, 1, tokens); err != nil {
		logger.Error("error recording usage", zap.String("tenantId", record.TenantId), zap.Error(err))
	}
	if cost, ok := asFloat(output["cost"]); ok {
		workspace, _ := output["workspace"].(string)
		if err := e.metrics.RecordCost(record.TenantId, modelName, workspace, cost); err != nil {
			logger.Error("error recording cost", zap.String("tenantId", record.TenantId), zap.Error(err))
		}
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
