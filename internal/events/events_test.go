package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	before := time.Now().UTC()
	ev, err := New(KindTaskStatus, map[string]string{"status": "running"})
	require.NoError(t, err)

	assert.Equal(t, KindTaskStatus, ev.Kind)
	assert.False(t, ev.Timestamp.Before(before))

	var payload map[string]string
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, "running", payload["status"])
}

func TestNewEventUnmarshallablePayload(t *testing.T) {
	_, err := New(KindTaskStatus, make(chan int))
	assert.Error(t, err)
}

func TestEventWireFormat(t *testing.T) {
	// One JSON object per message: kind, payload, timestamp.
	ev, err := TaskProgressPayload{
		TaskID:     uuid.New(),
		StepIndex:  1,
		TotalSteps: 4,
		StepName:   "building_prompt",
	}.Event()
	require.NoError(t, err)

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var wire struct {
		Kind      string          `json:"kind"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp time.Time       `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, string(KindTaskProgress), wire.Kind)
	assert.NotEmpty(t, wire.Payload)
	assert.False(t, wire.Timestamp.IsZero())
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("task_progress")
	assert.True(t, ok)
	assert.Equal(t, KindTaskProgress, k)

	_, ok = ParseKind("not_a_kind")
	assert.False(t, ok)

	_, ok = ParseKind("")
	assert.False(t, ok)
}

func TestAlwaysBroadcastKinds(t *testing.T) {
	broadcast := []Kind{KindConnectionEstablished, KindHeartbeatAck, KindNotification}
	for _, k := range broadcast {
		assert.True(t, k.AlwaysBroadcast(), "expected %s to always broadcast", k)
	}

	filtered := []Kind{
		KindTaskStatus, KindTaskProgress, KindStreamChunk,
		KindDocumentStatus, KindCostUpdate, KindBudgetWarning,
	}
	for _, k := range filtered {
		assert.False(t, k.AlwaysBroadcast(), "expected %s to be interest-filtered", k)
	}
}

func TestPayloadConstructors(t *testing.T) {
	taskID := uuid.New()

	ev, err := TaskStatusPayload{
		TaskID:    taskID,
		AgentType: "writing",
		Status:    "completed",
	}.Event()
	require.NoError(t, err)
	assert.Equal(t, KindTaskStatus, ev.Kind)

	ev, err = BudgetWarningPayload{
		TaskID:       taskID,
		BudgetLimit:  5.0,
		CurrentSpend: 5.2,
		PercentUsed:  104,
		WarningLevel: BudgetWarningExceeded,
	}.Event()
	require.NoError(t, err)
	assert.Equal(t, KindBudgetWarning, ev.Kind)

	var warn BudgetWarningPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &warn))
	assert.Equal(t, BudgetWarningExceeded, warn.WarningLevel)
	assert.Equal(t, taskID, warn.TaskID)
}
