package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/taskagent/internal/agent"
	"github.com/joss/taskagent/internal/domain"
	"github.com/joss/taskagent/internal/testutil"
)

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDirAndPings(t *testing.T) {
	s := openTemp(t)
	assert.NoError(t, s.Ping(context.Background()))
	assert.FileExists(t, s.Path())

	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RunStarted(ctx, agent.RunRecord{ID: "keep", Prompt: "p", Model: "m", State: agent.StateRunning, StartedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.GetRun(ctx, "keep")
	assert.NoError(t, err, "migrations must not drop existing tables")
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	started := time.Now().Add(-time.Minute).Truncate(time.Second)
	require.NoError(t, s.RunStarted(ctx, agent.RunRecord{
		ID: "run-1", Prompt: "write a poem", Model: "gpt-4o",
		State: agent.StateRunning, StartedAt: started,
	}))

	msgs := []domain.Message{
		{ID: "m1", RunID: "run-1", Role: domain.RoleUser, Timestamp: started,
			Parts: []domain.Part{domain.TextPart{Text: "write a poem"}}},
		{ID: "m2", RunID: "run-1", Role: domain.RoleAssistant, Timestamp: started,
			Parts: []domain.Part{domain.ToolCallPart{ToolID: "c1", Name: "end_game", Args: map[string]any{"message": "done"}}}},
		{ID: "m3", RunID: "run-1", Role: domain.RoleTool, Timestamp: started,
			Parts: []domain.Part{domain.ToolResultPart{ToolID: "c1", Name: "end_game", Output: "Task completed"}}},
	}
	for _, m := range msgs {
		require.NoError(t, s.MessageAppended(ctx, m))
	}

	ended := started.Add(30 * time.Second)
	require.NoError(t, s.RunFinished(ctx, agent.RunRecord{
		ID: "run-1", State: agent.StateTerminated, Message: "done", Steps: 1, EndedAt: ended,
	}))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "write a poem", got.Prompt)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, agent.StateTerminated, got.State)
	assert.Equal(t, "done", got.Message)
	assert.Equal(t, 1, got.Steps)
	assert.True(t, got.StartedAt.Equal(started), "started %v, want %v", got.StartedAt, started)
	assert.True(t, got.EndedAt.Equal(ended))

	transcript, err := s.Messages(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{transcript[0].ID, transcript[1].ID, transcript[2].ID})
	assert.Equal(t, "write a poem", transcript[0].Text())
	calls := transcript[1].ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "done", calls[0].Args["message"])
	res, ok := transcript[2].ToolResult()
	require.True(t, ok)
	assert.Equal(t, "c1", res.ToolID)
}

func TestDuplicateAndMissing(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	rec := agent.RunRecord{ID: "dup", Prompt: "p", Model: "m", State: agent.StateRunning, StartedAt: time.Now()}
	require.NoError(t, s.RunStarted(ctx, rec))
	assert.ErrorIs(t, s.RunStarted(ctx, rec), ErrAlreadyExists)

	_, err := s.GetRun(ctx, "missing")
	assert.True(t, IsNotFound(err))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "run", nf.Entity)

	assert.True(t, IsNotFound(s.RunFinished(ctx, agent.RunRecord{ID: "missing", EndedAt: time.Now()})))

	orphan := domain.Message{ID: "o1", RunID: "missing", Role: domain.RoleUser, Timestamp: time.Now()}
	assert.ErrorIs(t, s.MessageAppended(ctx, orphan), ErrNotFound)

	assert.ErrorIs(t, s.RunStarted(ctx, agent.RunRecord{ID: " "}), ErrInvalidID)
}

func TestListRunsAndFind(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"aaa-1", "aab-2", "bbb-3"} {
		require.NoError(t, s.RunStarted(ctx, agent.RunRecord{
			ID: id, Prompt: id, Model: "m", State: agent.StateRunning,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.RunFinished(ctx, agent.RunRecord{ID: "aab-2", State: agent.StateFailed, Error: "boom", EndedAt: time.Now()}))

	runs, err := s.ListRuns(ctx, DefaultFilter())
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "bbb-3", runs[0].ID, "newest first")
	assert.Equal(t, "aaa-1", runs[2].ID)

	runs, err = s.ListRuns(ctx, DefaultFilter().WithLimit(1).WithOffset(1))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "aab-2", runs[0].ID)

	runs, err = s.ListRuns(ctx, Filter{}.WithState(agent.StateFailed.String()))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "boom", runs[0].Error)

	found, err := s.FindRun(ctx, "bb")
	require.NoError(t, err)
	assert.Equal(t, "bbb-3", found.ID)

	found, err = s.FindRun(ctx, "aab-2")
	require.NoError(t, err)
	assert.Equal(t, "aab-2", found.ID)

	_, err = s.FindRun(ctx, "aa")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = s.FindRun(ctx, "zzz")
	assert.True(t, IsNotFound(err))
}

func TestDeleteRunCascades(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.RunStarted(ctx, agent.RunRecord{ID: "r", Prompt: "p", Model: "m", State: agent.StateRunning, StartedAt: time.Now()}))
	require.NoError(t, s.MessageAppended(ctx, domain.Message{ID: "m", RunID: "r", Role: domain.RoleUser, Timestamp: time.Now(),
		Parts: []domain.Part{domain.TextPart{Text: "hi"}}}))

	require.NoError(t, s.DeleteRun(ctx, "r"))
	msgs, err := s.Messages(ctx, "r")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.True(t, IsNotFound(s.DeleteRun(ctx, "r")))
}

func TestClosedStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	assert.ErrorIs(t, s.Ping(context.Background()), ErrClosed)
	_, err = s.ListRuns(context.Background(), DefaultFilter())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRecordsAgentRun(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	tools, err := testutil.Registry(
		testutil.NewMockTool("echo").WithResult("echoed"),
		testutil.NewMockTerminator("end_game"),
	)
	require.NoError(t, err)
	provider := testutil.NewMockProvider(
		testutil.ToolCallResponse("c1", "echo", map[string]any{}),
		testutil.ToolCallResponse("c2", "end_game", map[string]any{"message": "all done"}),
	)

	a := agent.New(provider, tools, agent.WithModel("test-model"), agent.WithRecorder(s))
	result, err := a.Run(ctx, "do the thing")
	require.NoError(t, err)
	require.Equal(t, agent.StateTerminated, result.State)

	rec, err := s.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, agent.StateTerminated, rec.State)
	assert.Equal(t, "do the thing", rec.Prompt)
	assert.Equal(t, "test-model", rec.Model)
	assert.Equal(t, result.Steps, rec.Steps)
	assert.False(t, rec.EndedAt.IsZero())

	msgs, err := s.Messages(ctx, result.RunID)
	require.NoError(t, err)
	require.Len(t, msgs, len(result.Transcript))
	for i := range msgs {
		assert.Equal(t, result.Transcript[i].ID, msgs[i].ID)
		assert.Equal(t, result.Transcript[i].Role, msgs[i].Role)
	}
}

func TestRecordsToolResultAfterCancel(t *testing.T) {
	s := openTemp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	slow := testutil.NewMockTool("slow").WithDelay(time.Minute)
	tools, err := testutil.Registry(slow, testutil.NewMockTerminator("end_game"))
	require.NoError(t, err)
	provider := testutil.NewMockProvider(
		testutil.ToolCallResponse("c1", "slow", map[string]any{}),
		testutil.ToolCallResponse("c2", "end_game", map[string]any{"message": "never"}),
	)

	result, err := agent.New(provider, tools, agent.WithRecorder(s)).Run(ctx, "wait")
	require.Error(t, err)
	assert.True(t, agent.IsCancelled(err))
	require.Equal(t, agent.StateFailed, result.State)
	require.Len(t, result.Transcript, 3)
	assert.Len(t, slow.Calls(), 1)

	bg := context.Background()
	msgs, err := s.Messages(bg, result.RunID)
	require.NoError(t, err)
	require.Len(t, msgs, len(result.Transcript))
	assert.Equal(t, domain.RoleTool, msgs[2].Role)

	rec, err := s.GetRun(bg, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, agent.StateFailed, rec.State)
}
