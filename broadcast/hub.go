package broadcast

import (
	"strings"
	"sync"
	"time"

	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/JacLight/mintflow-sub008/model"
	"go.uber.org/zap"
)

// FlowRoom is the room key for one flow's deltas.
func FlowRoom(tenantId string, flowId string) string {
	return tenantId + ":" + flowId
}

// WorkspaceRoom is the room key for a collaborative workspace.
func WorkspaceRoom(workspaceId string) string {
	return "workspace:" + workspaceId
}

func IsWorkspaceRoom(roomKey string) (string, bool) {
	return strings.CutPrefix(roomKey, "workspace:")
}

// SnapshotFunc produces the current full state of a room, pushed to an
// observer on join so mid-execution joiners are not blind until the next
// delta.
type SnapshotFunc func(roomKey string) (any, bool)

// Observer is one room member. Messages arrive on C; delivery is
// best-effort at-most-once - when the buffer is full the message is dropped
// for that observer, never queued or replayed.
type Observer struct {
	Id   string
	Room string
	ch   chan model.RoomMessage
}

func (o *Observer) C() <-chan model.RoomMessage {
	return o.ch
}

// Hub fans state deltas out to room members. The engine publishes without
// knowing the transport; websocket handlers and the console monitor join as
// observers.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*Observer
	snapshot SnapshotFunc
	buffer   int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		rooms:  make(map[string]map[string]*Observer),
		buffer: buffer,
	}
}

// SetSnapshot installs the snapshot provider. Set once during wiring, before
// any observer joins.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.snapshot = fn
}

func (h *Hub) Join(roomKey string, observerId string) *Observer {
	observer := &Observer{
		Id:   observerId,
		Room: roomKey,
		ch:   make(chan model.RoomMessage, h.buffer),
	}
	// snapshot is taken before the observer is registered and pushed under
	// the lock: a concurrent Leave can only close the channel once the
	// observer is in the room, and then only while holding the lock
	var snap *model.RoomMessage
	if h.snapshot != nil {
		if state, ok := h.snapshot(roomKey); ok {
			snap = &model.RoomMessage{
				RoomKey:   roomKey,
				Payload:   state,
				UpdatedAt: time.Now(),
				UpdatedBy: "system",
			}
		}
	}
	h.mu.Lock()
	room, ok := h.rooms[roomKey]
	if !ok {
		room = make(map[string]*Observer)
		h.rooms[roomKey] = room
	}
	if prev, ok := room[observerId]; ok {
		close(prev.ch)
	}
	room[observerId] = observer
	if snap != nil {
		observer.ch <- *snap
	}
	h.mu.Unlock()

	logger.Debug("observer joined room", zap.String("room", roomKey), zap.String("observer", observerId))
	return observer
}

func (h *Hub) Leave(roomKey string, observerId string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[roomKey]
	if !ok {
		return
	}
	observer, ok := room[observerId]
	if !ok {
		return
	}
	delete(room, observerId)
	close(observer.ch)
	if len(room) == 0 {
		delete(h.rooms, roomKey)
	}
}

func (h *Hub) Publish(roomKey string, payload any) {
	h.PublishAs(roomKey, payload, "system")
}

// PublishAs delivers to every current member of the room. A slow observer
// loses the message rather than blocking the publisher.
func (h *Hub) PublishAs(roomKey string, payload any, updatedBy string) {
	msg := model.RoomMessage{
		RoomKey:   roomKey,
		Payload:   payload,
		UpdatedAt: time.Now(),
		UpdatedBy: updatedBy,
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, observer := range h.rooms[roomKey] {
		select {
		case observer.ch <- msg:
		default:
			logger.Debug("dropping message for slow observer", zap.String("room", roomKey), zap.String("observer", observer.Id))
		}
	}
}

func (h *Hub) RoomSize(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}
