package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/bitcoach/internal/bundle"
	"github.com/hpungsan/bitcoach/internal/errors"
	"github.com/hpungsan/bitcoach/internal/policy"
	"github.com/hpungsan/bitcoach/internal/session"
	"github.com/hpungsan/bitcoach/internal/workspace"
)

type echoModel struct{}

func (echoModel) Complete(_ context.Context, _ *session.Request) (*session.Reply, error) {
	return &session.Reply{Text: "What have you tried so far?"}, nil
}

// TestFullWorkflow exercises the archive lifecycle:
// session → archive → list → fetch → export → purge → fetch (not found)
func TestFullWorkflow(t *testing.T) {
	database, baseDir := openTestDB(t)
	ctx := context.Background()
	ws := t.TempDir()

	prompt := policy.Build(policy.DefaultOptions(nil, 5))
	b := bundle.Package([]workspace.FileRecord{{Path: "main.py", Content: "print('hi')"}}, nil)
	s, err := session.New(session.Options{
		Recorder: NewArchiver(database, ws, "anthropic", "claude-sonnet-4-20250514"),
	}, prompt, b, echoModel{})
	require.NoError(t, err)

	// 1. Converse and finish
	_, err = s.Send(ctx, "my scroll is too fast")
	require.NoError(t, err)
	out, err := s.Send(ctx, "thanks")
	require.NoError(t, err)
	require.True(t, out.Ended)

	// 2. List
	listOut, err := List(database, ListInput{Workspace: &ws})
	require.NoError(t, err)
	require.Len(t, listOut.Items, 1)
	require.Equal(t, s.ID(), listOut.Items[0].ID)
	require.Equal(t, "completed", listOut.Items[0].Outcome)
	require.Equal(t, 1, listOut.Items[0].Exchanges)

	// 3. Fetch
	fetchOut, err := Fetch(database, FetchInput{ID: s.ID()})
	require.NoError(t, err)
	require.Len(t, fetchOut.Turns, 2)
	require.Contains(t, fetchOut.Turns[0].Text, "### File: main.py")
	require.Equal(t, []string{"main.py"}, fetchOut.Files)

	// 4. Export
	exportOut, err := Export(ctx, database, baseDir, ExportInput{})
	require.NoError(t, err)
	require.Equal(t, 1, exportOut.Count)

	// 5. Purge
	purgeOut, err := Purge(ctx, database, PurgeInput{Workspace: &ws})
	require.NoError(t, err)
	require.Equal(t, 1, purgeOut.Purged)

	// 6. Fetch - gone
	_, err = Fetch(database, FetchInput{ID: s.ID()})
	require.Error(t, err)
	var coachErr *errors.CoachError
	require.ErrorAs(t, err, &coachErr)
	require.Equal(t, errors.ErrNotFound, coachErr.Code)
}
