package boss

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/boss/errors"
)

func TestStateIsTerminal(t *testing.T) {
	assert.False(t, StateCreated.IsTerminal())
	assert.False(t, StateActive.IsTerminal())
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())

	assert.True(t, IsValidState("active"))
	assert.False(t, IsValidState("expired"))
}

func TestJobJSONShape(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := created.Add(time.Second)
	job := &Job{
		ID:          "7d0c",
		Queue:       "emails",
		State:       StateFailed,
		Request:     json.RawMessage(`{"to":"ada"}`),
		Response:    json.RawMessage(`{"value":"bounced"}`),
		CreatedAt:   created,
		StartedAt:   &created,
		CompletedAt: &completed,
	}

	data, err := json.Marshal(job)
	require.NoError(t, err)

	var shape map[string]any
	require.NoError(t, json.Unmarshal(data, &shape))
	assert.Equal(t, "7d0c", shape["id"])
	assert.Equal(t, "emails", shape["queue"])
	assert.Equal(t, "failed", shape["state"])
	assert.Equal(t, map[string]any{
		"request":  map[string]any{"to": "ada"},
		"response": map[string]any{"value": "bounced"},
	}, shape["data"])
	assert.NotContains(t, shape, "notified_at")

	var back Job
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, job.ID, back.ID)
	assert.JSONEq(t, string(job.Response), string(back.Response))
	assert.True(t, back.CompletedAt.Equal(completed))
}

func TestJobJSONWithoutResponse(t *testing.T) {
	data, err := json.Marshal(&Job{ID: "a", Queue: "q", State: StateCreated, Request: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"data":{"request":{}}`)
}

func TestDecodeRequest(t *testing.T) {
	job := &Job{ID: "a", Request: json.RawMessage(`{"n":3}`)}
	var req struct{ N int }
	require.NoError(t, job.DecodeRequest(&req))
	assert.Equal(t, 3, req.N)

	bad := &Job{ID: "b", Request: json.RawMessage(`[]`)}
	err := bad.DecodeRequest(&req)
	require.Error(t, err)
	assert.Contains(t, errors.FlattenDetails(err), "Job ID: b")
}

func TestDoneOnFetchedJob(t *testing.T) {
	b, _ := newTestBoss(t, Config{})
	ctx := context.Background()
	publishN(t, b, "q", 1)

	job, err := b.FetchOne(ctx, "q")
	require.NoError(t, err)
	require.NotNil(t, job)

	err = job.Done(ctx, nil, "ok")
	assert.True(t, errors.Is(err, ErrNotSubscribed))
}
