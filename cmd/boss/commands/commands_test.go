package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/teranos/boss/boss"
	"github.com/teranos/boss/errors"
	bosstest "github.com/teranos/boss/internal/testing"
)

func TestParseJSONArg(t *testing.T) {
	raw, err := parseJSONArg(` {"to":"ada"} `, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"to":"ada"}`, string(raw))

	raw, err = parseJSONArg("-", strings.NewReader("[1,2]\n"))
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(raw))

	_, err = parseJSONArg("{to:ada}", nil)
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestExitCode(t *testing.T) {
	store := boss.NewSQLStore(bosstest.CreateTestDB(t), boss.SQLite)
	b := boss.New(store, boss.Config{}, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	_, invalid := b.Fetch(ctx, "q", 0)
	notFound := b.Complete(ctx, "ghost", boss.NoPayload)
	id, err := b.Publish(ctx, "q", nil)
	require.NoError(t, err)
	notActive := b.Complete(ctx, id, boss.NoPayload)
	_, badJSON := parseJSONArg("{to:ada}", nil)

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, ExitInvalid, ExitCode(invalid))
	assert.Equal(t, ExitInvalid, ExitCode(badJSON))
	assert.Equal(t, ExitNotFound, ExitCode(notFound))
	assert.Equal(t, ExitConflict, ExitCode(notActive))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("disk on fire")))
}

func TestPrintError(t *testing.T) {
	_, err := parseJSONArg("{to:ada}", nil)
	require.Error(t, err)

	var out bytes.Buffer
	PrintError(&out, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Error: invalid JSON"))
	assert.True(t, strings.HasPrefix(lines[1], "Hint: quote the value"))
}

func TestFailurePayload(t *testing.T) {
	p, err := failurePayload("", "mailbox full", nil)
	require.NoError(t, err)
	data, err := p.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"mailbox full"}`, string(data))

	p, err = failurePayload(`{"code":550}`, "", nil)
	require.NoError(t, err)
	data, err = p.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":550}`, string(data))

	p, err = completionPayload("", nil)
	require.NoError(t, err)
	assert.True(t, p.IsZero())
}

func TestWriteJobsYAMLKeepsJSONShape(t *testing.T) {
	job := &boss.Job{
		ID:        "j1",
		Queue:     "emails",
		State:     boss.StateCompleted,
		Request:   json.RawMessage(`{"to":"ada"}`),
		Response:  json.RawMessage(`{"sent":true}`),
		CreatedAt: time.Unix(0, 0).UTC(),
	}

	var buf bytes.Buffer
	require.NoError(t, writeJobs(&buf, formatYAML, job))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "j1", decoded["id"])
	data := decoded["data"].(map[string]any)
	assert.Equal(t, map[string]any{"to": "ada"}, data["request"])
	assert.Equal(t, map[string]any{"sent": true}, data["response"])

	assert.Error(t, writeJobs(&buf, "xml", job))
}

func TestReportBatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, reportBatch(&buf, []string{"a", "b"}, boss.StateCompleted, nil))
	assert.Equal(t, 2, strings.Count(buf.String(), "completed"))

	buf.Reset()
	batchErr := &boss.BatchError{Total: 2, Failures: []boss.JobError{{ID: "b", Err: boss.ErrJobNotFound}}}
	err := reportBatch(&buf, []string{"a", "b"}, boss.StateFailed, batchErr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 jobs")
	assert.Contains(t, buf.String(), "not found")

	other := errors.New("database is locked")
	assert.Equal(t, other, reportBatch(&buf, []string{"a"}, boss.StateFailed, other))
}

func TestStatsRows(t *testing.T) {
	rows := statsRows(map[string]map[boss.State]int{
		"b": {boss.StateCreated: 1},
		"a": {boss.StateActive: 2, boss.StateFailed: 1},
	})
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"QUEUE", "created", "active", "completed", "failed", "total"}, rows[0])
	assert.Equal(t, []string{"a", "0", "2", "0", "1", "3"}, rows[1])
	assert.Equal(t, []string{"b", "1", "0", "0", "0", "1"}, rows[2])
}

func TestCommandArgs(t *testing.T) {
	run := func(args ...string) ([]string, error) {
		var (
			got []string
			err error
		)
		c := &cobra.Command{
			Use: "work",
			RunE: func(c *cobra.Command, a []string) error {
				got, err = commandArgs(c, a)
				return nil
			},
		}
		c.SetArgs(args)
		require.NoError(t, c.Execute())
		return got, err
	}

	got, err := run("q", "--", "./send.sh", "--fast")
	require.NoError(t, err)
	assert.Equal(t, []string{"./send.sh", "--fast"}, got)

	got, err = run("q", "--", `convert - -resize "64 x 64" png:-`)
	require.NoError(t, err)
	assert.Equal(t, []string{"convert", "-", "-resize", "64 x 64", "png:-"}, got)

	_, err = run("q", "--", `echo "unterminated`)
	assert.Error(t, err)
}

func TestCommandHandler(t *testing.T) {
	ctx := context.Background()
	job := &boss.Job{ID: "j1", Queue: "q", Request: json.RawMessage(`{"n":1}`)}

	t.Run("stdout JSON is the response", func(t *testing.T) {
		out, err := commandHandler([]string{"cat"}, 0)(ctx, job)
		require.NoError(t, err)
		assert.Equal(t, json.RawMessage(`{"n":1}`), out)
	})

	t.Run("plain text becomes a scalar", func(t *testing.T) {
		out, err := commandHandler([]string{"sh", "-c", `echo "$BOSS_QUEUE:$BOSS_JOB_ID"`}, 0)(ctx, job)
		require.NoError(t, err)
		data, err := boss.ResultFrom(out).Encode()
		require.NoError(t, err)
		assert.JSONEq(t, `{"value":"q:j1"}`, string(data))
	})

	t.Run("non-zero exit fails with stderr", func(t *testing.T) {
		_, err := commandHandler([]string{"sh", "-c", "echo mailbox full >&2; exit 3"}, 0)(ctx, job)
		require.Error(t, err)
		data, encErr := boss.FailureFrom(err).Encode()
		require.NoError(t, encErr)
		assert.JSONEq(t, `{"message":"mailbox full","exit_code":3}`, string(data))
	})

	t.Run("timeout kills the command", func(t *testing.T) {
		start := time.Now()
		_, err := commandHandler([]string{"sleep", "5"}, 50*time.Millisecond)(ctx, job)
		require.Error(t, err)
		assert.Less(t, time.Since(start), 4*time.Second)
	})
}

func TestWorkEndToEnd(t *testing.T) {
	store := boss.NewSQLStore(bosstest.CreateTestDB(t), boss.SQLite)
	b := boss.New(store, boss.Config{PollInterval: 10 * time.Millisecond}, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { _ = b.Stop(context.Background()) })

	ctx := context.Background()
	ok, err := b.Publish(ctx, "shell", map[string]string{"say": "hi"})
	require.NoError(t, err)

	_, err = b.Subscribe("shell", commandHandler([]string{"cat"}, 0))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := b.GetJob(ctx, ok)
		return err == nil && job.State == boss.StateCompleted
	}, 5*time.Second, 10*time.Millisecond)

	job, err := b.GetJob(ctx, ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"say":"hi"}`, string(job.Response))

	depth, err := depthFunc(b)()
	require.NoError(t, err)
	assert.Equal(t, 1, depth["shell"]["completed"])
}

func TestForwardThen(t *testing.T) {
	var printed []string
	next := func(_ context.Context, job *boss.Job) error {
		printed = append(printed, job.ID)
		return nil
	}
	failing := func(context.Context, *boss.Job) error { return errors.New("502") }
	passing := func(context.Context, *boss.Job) error { return nil }

	job := &boss.Job{ID: "j1"}
	assert.Error(t, forwardThen(failing, next)(context.Background(), job))
	assert.Empty(t, printed, "nothing printed until the webhook accepts")

	require.NoError(t, forwardThen(passing, next)(context.Background(), job))
	assert.Equal(t, []string{"j1"}, printed)
}

func TestNotificationPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &notificationPrinter{w: &buf, jsonLine: true}
	now := time.Unix(10, 0)
	require.NoError(t, p.listen(context.Background(), &boss.Job{
		ID: "j1", Queue: "q", State: boss.StateCompleted,
		Request: json.RawMessage(`{}`), CompletedAt: &now,
	}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "j1", decoded["id"])
	assert.Equal(t, "completed", decoded["state"])
}
