package broadcast

import (
	"testing"

	"github.com/JacLight/mintflow-sub008/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, observer *Observer) model.RoomMessage {
	t.Helper()
	select {
	case msg, ok := <-observer.C():
		require.True(t, ok, "observer channel closed")
		return msg
	default:
		t.Fatal("no message available")
	}
	return model.RoomMessage{}
}

func TestPublishReachesRoomMembersOnly(t *testing.T) {
	hub := NewHub(4)
	a := hub.Join("t1:f1", "a")
	b := hub.Join("t1:f1", "b")
	other := hub.Join("t1:f2", "c")

	hub.Publish("t1:f1", "hello")

	assert.Equal(t, "hello", receive(t, a).Payload)
	assert.Equal(t, "hello", receive(t, b).Payload)
	assert.Len(t, other.C(), 0)
}

func TestPublishPreservesOrder(t *testing.T) {
	hub := NewHub(8)
	obs := hub.Join("room", "a")
	for i := 0; i < 5; i++ {
		hub.Publish("room", i)
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, receive(t, obs).Payload)
	}
}

func TestSlowObserverDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(2)
	obs := hub.Join("room", "slow")

	// nobody drains; the third publish must not block
	hub.Publish("room", 1)
	hub.Publish("room", 2)
	hub.Publish("room", 3)

	assert.Equal(t, 1, receive(t, obs).Payload)
	assert.Equal(t, 2, receive(t, obs).Payload)
	assert.Len(t, obs.C(), 0)
}

func TestSnapshotOnJoin(t *testing.T) {
	hub := NewHub(4)
	hub.SetSnapshot(func(roomKey string) (any, bool) {
		if roomKey == "known" {
			return map[string]any{"state": "current"}, true
		}
		return nil, false
	})

	obs := hub.Join("known", "a")
	msg := receive(t, obs)
	assert.Equal(t, "system", msg.UpdatedBy)
	assert.Equal(t, map[string]any{"state": "current"}, msg.Payload)

	blind := hub.Join("unknown", "b")
	assert.Len(t, blind.C(), 0)
}

func TestLeaveClosesChannelAndCleansRoom(t *testing.T) {
	hub := NewHub(4)
	obs := hub.Join("room", "a")
	assert.Equal(t, 1, hub.RoomSize("room"))

	hub.Leave("room", "a")
	_, open := <-obs.C()
	assert.False(t, open)
	assert.Equal(t, 0, hub.RoomSize("room"))

	// leaving twice is harmless
	hub.Leave("room", "a")
	hub.Leave("missing", "x")
}

func TestRejoinReplacesObserver(t *testing.T) {
	hub := NewHub(4)
	first := hub.Join("room", "a")
	second := hub.Join("room", "a")

	_, open := <-first.C()
	assert.False(t, open)
	assert.Equal(t, 1, hub.RoomSize("room"))

	hub.Publish("room", "msg")
	assert.Equal(t, "msg", receive(t, second).Payload)
}

func TestRoomKeys(t *testing.T) {
	assert.Equal(t, "t1:f1", FlowRoom("t1", "f1"))
	assert.Equal(t, "workspace:w1", WorkspaceRoom("w1"))

	id, ok := IsWorkspaceRoom("workspace:w1")
	assert.True(t, ok)
	assert.Equal(t, "w1", id)

	_, ok = IsWorkspaceRoom("t1:f1")
	assert.False(t, ok)
}

func TestLeaveDuringSnapshotDoesNotDisturbJoin(t *testing.T) {
	hub := NewHub(4)
	hub.SetSnapshot(func(roomKey string) (any, bool) {
		// a leave for the joining observer landing while the snapshot is
		// computed must not close the channel the snapshot is pushed to
		hub.Leave(roomKey, "a")
		return map[string]any{"state": "current"}, true
	})

	obs := hub.Join("t1:f1", "a")
	msg := receive(t, obs)
	payload := msg.Payload.(map[string]any)
	assert.Equal(t, "current", payload["state"])
	assert.Equal(t, 1, hub.RoomSize("t1:f1"))

	hub.Leave("t1:f1", "a")
	assert.Equal(t, 0, hub.RoomSize("t1:f1"))
}
