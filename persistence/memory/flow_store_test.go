package memory

import (
	"testing"
	"time"

	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(tenantId, flowId string) *model.FlowRecord {
	return &model.FlowRecord{
		TenantId:   tenantId,
		FlowId:     flowId,
		Status:     model.FLOW_STATUS_PENDING,
		NodeStates: []model.NodeState{{NodeId: "a", Status: model.FLOW_STATUS_PENDING}},
		Data:       map[string]any{"k": "v"},
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func TestFlowStoreRoundTrip(t *testing.T) {
	store := NewFlowStore()
	require.NoError(t, store.SaveFlow(record("t1", "f1")))

	got, err := store.GetFlow("t1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "f1", got.FlowId)
	assert.Equal(t, "v", got.Data["k"])
}

func TestFlowStoreNotFound(t *testing.T) {
	store := NewFlowStore()
	_, err := store.GetFlow("t1", "nope")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, store.SaveFlow(record("t1", "f1")))
	_, err = store.GetFlow("t2", "f1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestFlowStoreTenantIsolation(t *testing.T) {
	store := NewFlowStore()
	require.NoError(t, store.SaveFlow(record("t1", "f1")))
	require.NoError(t, store.SaveFlow(record("t2", "f1")))
	require.NoError(t, store.SaveFlow(record("t2", "f2")))

	t1, err := store.ListFlows("t1")
	require.NoError(t, err)
	assert.Len(t, t1, 1)

	t2, err := store.ListFlows("t2")
	require.NoError(t, err)
	assert.Len(t, t2, 2)
	assert.Equal(t, "f1", t2[0].FlowId)
	assert.Equal(t, "f2", t2[1].FlowId)
}

func TestFlowStoreCopiesOnReadAndWrite(t *testing.T) {
	store := NewFlowStore()
	original := record("t1", "f1")
	require.NoError(t, store.SaveFlow(original))

	// mutating the saved record must not leak into the store
	original.NodeStates[0].Status = model.FLOW_STATUS_FAILED
	original.Data["k"] = "changed"

	got, err := store.GetFlow("t1", "f1")
	require.NoError(t, err)
	assert.Equal(t, model.FLOW_STATUS_PENDING, got.NodeStates[0].Status)
	assert.Equal(t, "v", got.Data["k"])

	// nor must mutating a read copy
	got.Data["k"] = "again"
	fresh, err := store.GetFlow("t1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "v", fresh.Data["k"])
}

func TestFlowStoreDelete(t *testing.T) {
	store := NewFlowStore()
	require.NoError(t, store.SaveFlow(record("t1", "f1")))
	require.NoError(t, store.DeleteFlow("t1", "f1"))
	_, err := store.GetFlow("t1", "f1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.ErrorIs(t, store.DeleteFlow("t1", "f1"), persistence.ErrNotFound)
}
