// Package boss is a durable job queue on a transactional SQL store.
//
// Producers Publish jobs to named queues, consumers Fetch and then Complete
// or Fail them, Subscribe turns polling into handler invocation, and
// OnComplete delivers every terminal job to a listener. All state lives in
// the store; the only cross-process coordination is the store's atomic
// conditional updates.
package boss

import (
	"context"
	"encoding/json"
	"time"

	"github.com/teranos/boss/errors"
)

// State is the lifecycle position of a job
type State string

const (
	StateCreated   State = "created"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// IsTerminal reports whether no further transition is allowed
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsValidState returns true if the string names a job state
func IsValidState(s string) bool {
	switch State(s) {
	case StateCreated, StateActive, StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// Job is one unit of work in a queue.
//
// Request is immutable after Publish. Response is written once, when the
// job reaches completed or failed, and stays nil when resolved without a
// payload.
type Job struct {
	ID          string
	Queue       string
	State       State
	Request     json.RawMessage
	Response    json.RawMessage
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	NotifiedAt  *time.Time

	// set on jobs delivered through Subscribe
	resolution *resolution
}

// jobData carries the request/response pair under "data"
type jobData struct {
	Request  json.RawMessage `json:"request"`
	Response json.RawMessage `json:"response,omitempty"`
}

type jobJSON struct {
	ID          string     `json:"id"`
	Queue       string     `json:"queue"`
	State       State      `json:"state"`
	Data        jobData    `json:"data"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
}

// MarshalJSON renders {id, queue, state, data: {request, response}, ...}
func (j *Job) MarshalJSON() ([]byte, error) {
	return json.Marshal(jobJSON{
		ID:          j.ID,
		Queue:       j.Queue,
		State:       j.State,
		Data:        jobData{Request: j.Request, Response: j.Response},
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		NotifiedAt:  j.NotifiedAt,
	})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON
func (j *Job) UnmarshalJSON(data []byte) error {
	var v jobJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "failed to unmarshal job")
	}
	*j = Job{
		ID:          v.ID,
		Queue:       v.Queue,
		State:       v.State,
		Request:     v.Data.Request,
		Response:    v.Data.Response,
		CreatedAt:   v.CreatedAt,
		StartedAt:   v.StartedAt,
		CompletedAt: v.CompletedAt,
		NotifiedAt:  v.NotifiedAt,
	}
	return nil
}

// DecodeRequest unmarshals the request payload into v
func (j *Job) DecodeRequest(v any) error {
	if err := json.Unmarshal(j.Request, v); err != nil {
		return errors.WithDetail(errors.Wrap(err, "failed to decode job request"), "Job ID: "+j.ID)
	}
	return nil
}

// Done resolves a job delivered by Subscribe. A non-nil err fails the job
// with FailureFrom(err); otherwise the job completes with response.
//
// The first of Done, the handler's return, or a handler panic decides the
// outcome. Once any of them has resolved the job, Done returns
// ErrAlreadyResolved. Jobs obtained from Fetch must be resolved with
// Boss.Complete or Boss.Fail instead; Done returns ErrNotSubscribed for them.
func (j *Job) Done(ctx context.Context, err error, response any) error {
	if j.resolution == nil {
		return errors.WithDetail(ErrNotSubscribed, "Job ID: "+j.ID)
	}
	if err != nil {
		return j.resolution.resolve(ctx, StateFailed, FailureFrom(err), "done")
	}
	return j.resolution.resolve(ctx, StateCompleted, ResultFrom(response), "done")
}
