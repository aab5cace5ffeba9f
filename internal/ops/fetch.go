package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/bitcoach/internal/db"
	"github.com/hpungsan/bitcoach/internal/errors"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID           string
	IncludeTurns *bool // default: true (nil means default)
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	db.Transcript
}

// Fetch retrieves an archived transcript by ID.
func Fetch(database *sql.DB, input FetchInput) (*FetchOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	t, err := db.GetByID(database, id)
	if err != nil {
		return nil, err
	}

	output := &FetchOutput{Transcript: *t}
	if input.IncludeTurns != nil && !*input.IncludeTurns {
		output.Turns = nil
	}
	return output, nil
}
