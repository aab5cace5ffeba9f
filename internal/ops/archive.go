package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/bitcoach/internal/db"
	"github.com/hpungsan/bitcoach/internal/session"
)

// Archiver writes finished sessions to the transcript table.
// It implements session.Recorder.
type Archiver struct {
	DB        *sql.DB
	Workspace string
	Provider  string
	Model     string
}

// NewArchiver creates an archiver for sessions over one workspace.
func NewArchiver(database *sql.DB, workspace, provider, model string) *Archiver {
	return &Archiver{
		DB:        database,
		Workspace: NormalizeWorkspace(workspace),
		Provider:  provider,
		Model:     model,
	}
}

// Record stores t. The archive is write-only from a session's point of view.
func (a *Archiver) Record(ctx context.Context, t *session.Transcript) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.Insert(a.DB, &db.Transcript{
		ID:        t.ID,
		Workspace: a.Workspace,
		Provider:  a.Provider,
		Model:     a.Model,
		Outcome:   string(t.Reason),
		Exchanges: t.Exchanges,
		Turns:     t.Turns,
		Files:     t.Files,
		StartedAt: t.StartedAt.Unix(),
		EndedAt:   t.EndedAt.Unix(),
	})
}
