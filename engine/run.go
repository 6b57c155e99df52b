package engine

import (
	"fmt"
	"time"

	"github.com/JacLight/mintflow-sub008/action"
	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
	"github.com/JacLight/mintflow-sub008/util"
	"go.uber.org/zap"
)

type eventKind int

const (
	eventCompleted eventKind = iota
	eventFailed
	eventResume
	eventCancel
)

type nodeEvent struct {
	kind   eventKind
	nodeId string
	output map[string]any
	err    error
	reply  chan error
}

func (ev nodeEvent) ack(err error) {
	if ev.reply != nil {
		ev.reply <- err
	}
}

type nodeTask struct {
	run   *flowRun
	node  *model.NodeDef
	act   action.Action
	input map[string]any
	ctx   *action.Context
}

// flowRun is the single-goroutine owner of one flow execution. All record
// mutation, persistence and broadcasting for the flow happens on its loop;
// pool workers and API callers only send it events.
type flowRun struct {
	engine    *FlowEngine
	def       *model.FlowDefinition
	record    *model.FlowRecord
	events    chan nodeEvent
	inFlight  int
	cancelled bool
	// aborted marks a run whose record the store rejected mid-flow. The
	// in-memory attempt is abandoned: nothing further is scheduled,
	// persisted or broadcast, and the last saved record stays the source
	// of truth.
	aborted bool
}

func newFlowRun(e *FlowEngine, def *model.FlowDefinition, record *model.FlowRecord) *flowRun {
	// a record reloaded through a JSON codec comes back with a nil Data map
	// when the flow started without input
	if record.Data == nil {
		record.Data = make(map[string]any)
	}
	return &flowRun{
		engine: e,
		def:    def,
		record: record,
		events: make(chan nodeEvent, len(def.Nodes)*2+8),
	}
}

func (r *flowRun) loop() {
	defer r.engine.wg.Done()
	for {
		if !r.cancelled && !r.aborted {
			r.scheduleReady()
		}
		if r.inFlight == 0 {
			if r.parkOrFinish() {
				return
			}
			// an event raced in while detaching, keep consuming
		}
		ev := <-r.events
		r.handle(ev)
	}
}

// scheduleReady starts every pending node whose dependencies have all
// completed. A failed dependency keeps its dependents pending forever;
// independent branches are unaffected.
func (r *flowRun) scheduleReady() {
	for i := range r.def.Nodes {
		node := &r.def.Nodes[i]
		state := r.record.NodeState(node.NodeId)
		if state == nil || state.Status != model.FLOW_STATUS_PENDING {
			continue
		}
		if !r.depsCompleted(node) {
			continue
		}
		r.startNode(node, state)
	}
}

func (r *flowRun) depsCompleted(node *model.NodeDef) bool {
	for _, dep := range node.DependsOn {
		depState := r.record.NodeState(dep)
		if depState == nil || depState.Status != model.FLOW_STATUS_COMPLETED {
			return false
		}
	}
	return true
}

func (r *flowRun) startNode(node *model.NodeDef, state *model.NodeState) {
	now := time.Now()
	state.StartedAt = &now

	switch node.Action {
	case action.ACTION_WAIT:
		state.Status = model.FLOW_STATUS_WAITING
		r.persistAndPublish(node.NodeId, "")
		return
	case action.ACTION_MANUAL:
		state.Status = model.FLOW_STATUS_MANUAL_WAIT
		r.persistAndPublish(node.NodeId, "")
		return
	case action.ACTION_DELAY:
		state.Status = model.FLOW_STATUS_WAITING
		r.persistAndPublish(node.NodeId, "")
		r.engine.delays.schedule(r.record.TenantId, r.record.FlowId, node.NodeId, delaySeconds(node))
		return
	}

	act, err := r.engine.actions.Get(node.Action)
	if err != nil {
		r.failNode(state, node.NodeId, err.Error())
		return
	}

	state.Status = model.FLOW_STATUS_RUNNING
	r.persistAndPublish(node.NodeId, "")
	r.inFlight++
	r.engine.submit(&nodeTask{
		run:   r,
		node:  node,
		act:   act,
		input: util.ResolveInputParams(r.record.Data, node.Input),
		ctx: &action.Context{
			TenantId: r.record.TenantId,
			FlowId:   r.record.FlowId,
			NodeId:   node.NodeId,
			Data:     r.record.Data,
		},
	})
}

func delaySeconds(node *model.NodeDef) int {
	if node.Config == nil {
		return 0
	}
	if v, ok := asFloat(node.Config["delaySeconds"]); ok {
		return int(v)
	}
	return 0
}

func (r *flowRun) handle(ev nodeEvent) {
	switch ev.kind {
	case eventCompleted:
		r.inFlight--
		r.completeNode(ev.nodeId, ev.output)
	case eventFailed:
		r.inFlight--
		state := r.record.NodeState(ev.nodeId)
		r.failNode(state, ev.nodeId, ev.err.Error())
	case eventResume:
		r.resumeNode(ev)
	case eventCancel:
		r.cancel()
	}
}

func (r *flowRun) completeNode(nodeId string, output map[string]any) {
	state := r.record.NodeState(nodeId)
	if state == nil {
		return
	}
	now := time.Now()
	state.Status = model.FLOW_STATUS_COMPLETED
	state.FinishedAt = &now
	if output != nil {
		r.record.Data[nodeId] = output
	}
	r.persistAndPublish(nodeId, "")
	if node := r.def.Node(nodeId); node != nil {
		r.engine.recordNodeMetrics(r.record, node, output)
	}
}

func (r *flowRun) failNode(state *model.NodeState, nodeId string, reason string) {
	if state == nil {
		return
	}
	now := time.Now()
	state.Status = model.FLOW_STATUS_FAILED
	state.Error = reason
	state.FinishedAt = &now
	r.persistAndPublish(nodeId, reason)
	logger.Warn("node failed",
		zap.String("tenantId", r.record.TenantId),
		zap.String("flowId", r.record.FlowId),
		zap.String("nodeId", nodeId),
		zap.String("error", reason))
}

// resumeNode completes a parked node with the caller-supplied output and
// acks the outcome to the caller, so a live flow rejects a resume of a
// non-waiting node the same way a parked one does.
func (r *flowRun) resumeNode(ev nodeEvent) {
	if r.aborted {
		ev.ack(ErrNodeNotResumable)
		return
	}
	state := r.record.NodeState(ev.nodeId)
	if state == nil {
		ev.ack(fmt.Errorf("node %s: %w", ev.nodeId, persistence.ErrNotFound))
		return
	}
	if state.Status != model.FLOW_STATUS_WAITING && state.Status != model.FLOW_STATUS_MANUAL_WAIT {
		logger.Debug("rejecting resume of non-waiting node",
			zap.String("flowId", r.record.FlowId),
			zap.String("nodeId", ev.nodeId),
			zap.String("status", string(state.Status)))
		ev.ack(ErrNodeNotResumable)
		return
	}
	r.completeNode(ev.nodeId, ev.output)
	ev.ack(nil)
}

func (r *flowRun) cancel() {
	r.cancelled = true
	now := time.Now()
	for i := range r.record.NodeStates {
		state := &r.record.NodeStates[i]
		switch state.Status {
		case model.FLOW_STATUS_PENDING, model.FLOW_STATUS_WAITING, model.FLOW_STATUS_MANUAL_WAIT:
			if state.StartedAt == nil {
				state.StartedAt = &now
			}
			state.Status = model.FLOW_STATUS_FAILED
			state.Error = "cancelled"
			state.FinishedAt = &now
		}
	}
	r.persistAndPublish("", "cancelled")
}

// parkOrFinish runs when no node is in flight and nothing is schedulable.
// Waiting or manual_wait nodes park the flow: the loop drains and a later
// resume restarts it. Otherwise the derived status is terminal and the run
// is done. Returns false when detach lost a race with an incoming event.
func (r *flowRun) parkOrFinish() bool {
	if !r.engine.detach(r) {
		return false
	}
	if r.aborted {
		logger.Warn("flow run abandoned after store failure",
			zap.String("tenantId", r.record.TenantId),
			zap.String("flowId", r.record.FlowId))
		return true
	}
	status := r.record.Status
	logger.Info("flow run drained",
		zap.String("tenantId", r.record.TenantId),
		zap.String("flowId", r.record.FlowId),
		zap.String("status", string(status)))
	return true
}

// persistAndPublish recomputes the derived flow status, saves the record and
// broadcasts a delta for nodeId. A store failure aborts the run: the record
// that was never saved is not broadcast either, and the loop drains without
// starting more nodes.
func (r *flowRun) persistAndPublish(nodeId string, errMsg string) {
	if r.aborted {
		return
	}
	r.record.Status = model.DeriveStatus(r.record.NodeStates)
	r.record.UpdatedAt = time.Now()
	if err := r.engine.store.SaveFlow(r.record); err != nil {
		r.aborted = true
		logger.Error("abandoning flow run, store rejected record",
			zap.String("tenantId", r.record.TenantId),
			zap.String("flowId", r.record.FlowId),
			zap.Error(err))
		return
	}
	r.engine.publishDelta(r.record, nodeId, errMsg)
}
