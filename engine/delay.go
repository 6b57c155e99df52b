package engine

import (
	"sync"
	"time"

	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/JacLight/mintflow-sub008/util"
	"go.uber.org/zap"
)

type delayedResume struct {
	tenantId string
	flowId   string
	nodeId   string
	fireAt   time.Time
}

// delayScheduler resumes delay nodes after their configured interval. A tick
// worker polls the pending list; firing resolution is the poll interval, not
// wall-clock exact.
type delayScheduler struct {
	engine  *FlowEngine
	ticker  *util.TickWorker
	mu      sync.Mutex
	pending []delayedResume
}

func newDelayScheduler(e *FlowEngine, pollSeconds int, wg *sync.WaitGroup) *delayScheduler {
	s := &delayScheduler{engine: e}
	s.ticker = util.NewTickWorker("delay-scheduler", pollSeconds, s.fireDue, wg)
	return s
}

func (s *delayScheduler) Start() {
	s.ticker.Start()
}

func (s *delayScheduler) Stop() {
	s.ticker.Stop()
}

func (s *delayScheduler) schedule(tenantId string, flowId string, nodeId string, seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, delayedResume{
		tenantId: tenantId,
		flowId:   flowId,
		nodeId:   nodeId,
		fireAt:   time.Now().Add(time.Duration(seconds) * time.Second),
	})
}

func (s *delayScheduler) fireDue() {
	now := time.Now()
	s.mu.Lock()
	var due []delayedResume
	var rest []delayedResume
	for _, d := range s.pending {
		if d.fireAt.After(now) {
			rest = append(rest, d)
		} else {
			due = append(due, d)
		}
	}
	s.pending = rest
	s.mu.Unlock()

	for _, d := range due {
		if err := s.engine.ResumeNode(d.tenantId, d.flowId, d.nodeId, nil); err != nil {
			logger.Error("error resuming delayed node",
				zap.String("tenantId", d.tenantId),
				zap.String("flowId", d.flowId),
				zap.String("nodeId", d.nodeId),
				zap.Error(err))
		}
	}
}
