package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hpungsan/bitcoach/internal/db"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	Workspace     *string // optional filter by workspace
	OlderThanDays *int    // optional, only purge if ended_at < (now - N days)
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge permanently deletes archived transcripts.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	workspace := optionalWorkspace(input.Workspace)
	count, err := db.Purge(database, workspace, input.OlderThanDays)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, workspace, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, workspace *string, olderThanDays *int) string {
	if count == 0 {
		return "No transcripts to purge"
	}

	word := "transcript"
	if count > 1 {
		word = "transcripts"
	}

	msg := fmt.Sprintf("Permanently deleted %d %s", count, word)

	if workspace != nil {
		msg += fmt.Sprintf(" from workspace %q", *workspace)
	}

	if olderThanDays != nil {
		msg += fmt.Sprintf(" (ended more than %d days ago)", *olderThanDays)
	}

	return msg
}
