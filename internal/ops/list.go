package ops

import (
	"database/sql"

	"github.com/hpungsan/bitcoach/internal/db"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Workspace *string // optional filter
	Limit     int     // default: 20, max: 100
	Offset    int     // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []db.TranscriptSummary `json:"items"`
	Pagination Pagination             `json:"pagination"`
	Sort       string                 `json:"sort"`
}

// List retrieves transcript summaries with pagination.
func List(database *sql.DB, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	offset := max(input.Offset, 0)

	summaries, total, err := db.List(database, optionalWorkspace(input.Workspace), limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	if summaries == nil {
		summaries = []db.TranscriptSummary{}
	}

	return &ListOutput{
		Items: summaries,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(summaries) < total,
			Total:   total,
		},
		Sort: "ended_at_desc",
	}, nil
}
