package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(observer *Observer) []map[string]any {
	var out []map[string]any
	for {
		select {
		case msg := <-observer.C():
			if payload, ok := msg.Payload.(map[string]any); ok {
				out = append(out, payload)
			}
		default:
			return out
		}
	}
}

func TestWorkspaceJoinLifecycle(t *testing.T) {
	hub := NewHub(16)
	workspaces := NewWorkspaces(hub)

	snapshot := workspaces.Join("w1", "u1", "Ada", "c1")
	assert.Equal(t, "w1", snapshot.Id)
	require.Len(t, snapshot.Users, 1)
	assert.Equal(t, "Ada", snapshot.Users[0].UserName)
	assert.Equal(t, 1, workspaces.Size())

	snapshot = workspaces.Join("w1", "u2", "Grace", "c2")
	assert.Len(t, snapshot.Users, 2)

	workspaces.Leave("w1", "c1")
	current, ok := workspaces.Snapshot("w1")
	require.True(t, ok)
	require.Len(t, current.Users, 1)
	assert.Equal(t, "u2", current.Users[0].UserId)

	// session is removed when the last connection leaves
	workspaces.Leave("w1", "c2")
	_, ok = workspaces.Snapshot("w1")
	assert.False(t, ok)
	assert.Equal(t, 0, workspaces.Size())
}

func TestWorkspaceJoinDefaults(t *testing.T) {
	workspaces := NewWorkspaces(NewHub(4))
	snapshot := workspaces.Join("w1", "", "", "conn-9")
	require.Len(t, snapshot.Users, 1)
	assert.Equal(t, "Anonymous", snapshot.Users[0].UserName)
	assert.Equal(t, "conn-9", snapshot.Users[0].UserId)
}

func TestWorkspaceUpdateMergeAndReplace(t *testing.T) {
	workspaces := NewWorkspaces(NewHub(16))
	workspaces.Join("w1", "u1", "Ada", "c1")

	ok := workspaces.Update("w1", map[string]any{"a": 1, "b": 2}, true, "u1")
	require.True(t, ok)
	ok = workspaces.Update("w1", map[string]any{"b": 3, "c": 4}, true, "u1")
	require.True(t, ok)

	snapshot, found := workspaces.Snapshot("w1")
	require.True(t, found)
	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, snapshot.State)

	ok = workspaces.Update("w1", map[string]any{"only": "this"}, false, "u1")
	require.True(t, ok)
	snapshot, _ = workspaces.Snapshot("w1")
	assert.Equal(t, map[string]any{"only": "this"}, snapshot.State)
}

func TestWorkspaceUpdateUnknownSession(t *testing.T) {
	workspaces := NewWorkspaces(NewHub(4))
	assert.False(t, workspaces.Update("nope", map[string]any{"a": 1}, true, "u1"))
}

func TestWorkspaceEventsReachRoom(t *testing.T) {
	hub := NewHub(16)
	workspaces := NewWorkspaces(hub)
	observer := hub.Join(WorkspaceRoom("w1"), "watcher")

	workspaces.Join("w1", "u1", "Ada", "c1")
	workspaces.Update("w1", map[string]any{"k": "v"}, true, "u1")
	workspaces.Leave("w1", "c1")

	events := drain(observer)
	require.Len(t, events, 3)
	assert.Equal(t, "user_joined", events[0]["event"])
	assert.Equal(t, "workspace_updated", events[1]["event"])
	assert.Equal(t, "user_left", events[2]["event"])
}

func TestWorkspaceSnapshotIsACopy(t *testing.T) {
	workspaces := NewWorkspaces(NewHub(4))
	workspaces.Join("w1", "u1", "Ada", "c1")
	workspaces.Update("w1", map[string]any{"k": "v"}, true, "u1")

	snapshot, _ := workspaces.Snapshot("w1")
	snapshot.State["k"] = "mutated"
	snapshot.Users[0].UserName = "changed"

	fresh, _ := workspaces.Snapshot("w1")
	assert.Equal(t, "v", fresh.State["k"])
	assert.Equal(t, "Ada", fresh.Users[0].UserName)
}
