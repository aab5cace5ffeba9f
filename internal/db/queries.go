package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/bitcoach/internal/errors"
	"github.com/hpungsan/bitcoach/internal/session"
)

// Transcript is an archived session.
type Transcript struct {
	ID        string         `json:"id"`
	Workspace string         `json:"workspace"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Outcome   string         `json:"outcome"`
	Exchanges int            `json:"exchanges"`
	Turns     []session.Turn `json:"turns"`
	Files     []string       `json:"files,omitempty"`
	StartedAt int64          `json:"started_at"`
	EndedAt   int64          `json:"ended_at"`
}

// TranscriptSummary is a transcript without its turns.
type TranscriptSummary struct {
	ID        string `json:"id"`
	Workspace string `json:"workspace"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Outcome   string `json:"outcome"`
	Exchanges int    `json:"exchanges"`
	StartedAt int64  `json:"started_at"`
	EndedAt   int64  `json:"ended_at"`
}

// Insert stores a transcript.
func Insert(db *sql.DB, t *Transcript) error {
	turns := t.Turns
	if turns == nil {
		turns = []session.Turn{}
	}
	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return errors.NewInternal(err)
	}

	var filesJSON sql.NullString
	if len(t.Files) > 0 {
		data, err := json.Marshal(t.Files)
		if err != nil {
			return errors.NewInternal(err)
		}
		filesJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO transcripts (
			id, workspace, provider, model, outcome, exchanges,
			turns_json, files_json, started_at, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.Exec(query,
		t.ID, t.Workspace, t.Provider, t.Model, t.Outcome, t.Exchanges,
		string(turnsJSON), filesJSON, t.StartedAt, t.EndedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

const transcriptColumns = `id, workspace, provider, model, outcome, exchanges,
	turns_json, files_json, started_at, ended_at`

// GetByID retrieves a transcript by its ULID.
func GetByID(db *sql.DB, id string) (*Transcript, error) {
	query := "SELECT " + transcriptColumns + " FROM transcripts WHERE id = ?"

	t, err := scanTranscript(db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("transcript", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return t, nil
}

// StreamForExport returns full transcript rows, oldest first.
// A nil workspace streams every workspace. The caller must close rows.
func StreamForExport(ctx context.Context, db *sql.DB, workspace *string) (*sql.Rows, error) {
	query := "SELECT " + transcriptColumns + " FROM transcripts"
	var args []any
	if workspace != nil {
		query += " WHERE workspace = ?"
		args = append(args, *workspace)
	}
	query += " ORDER BY ended_at ASC, id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanTranscriptFromRows scans the current row of StreamForExport.
func ScanTranscriptFromRows(rows *sql.Rows) (*Transcript, error) {
	return scanTranscript(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranscript(row rowScanner) (*Transcript, error) {
	var (
		t         Transcript
		turnsJSON string
		filesJSON sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.Workspace, &t.Provider, &t.Model, &t.Outcome, &t.Exchanges,
		&turnsJSON, &filesJSON, &t.StartedAt, &t.EndedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(turnsJSON), &t.Turns); err != nil {
		return nil, err
	}
	if filesJSON.Valid && filesJSON.String != "" {
		if err := json.Unmarshal([]byte(filesJSON.String), &t.Files); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// List returns transcript summaries, newest first, plus the total count.
// A nil workspace lists every workspace.
func List(db *sql.DB, workspace *string, limit, offset int) ([]TranscriptSummary, int, error) {
	where := ""
	var args []any
	if workspace != nil {
		where = " WHERE workspace = ?"
		args = append(args, *workspace)
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM transcripts"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, workspace, provider, model, outcome, exchanges, started_at, ended_at
		FROM transcripts` + where + `
		ORDER BY ended_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var summaries []TranscriptSummary
	for rows.Next() {
		var s TranscriptSummary
		if err := rows.Scan(&s.ID, &s.Workspace, &s.Provider, &s.Model, &s.Outcome, &s.Exchanges, &s.StartedAt, &s.EndedAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return summaries, total, nil
}

// Purge permanently deletes transcripts, optionally filtered by workspace
// and by age (ended more than olderThanDays ago).
func Purge(db *sql.DB, workspace *string, olderThanDays *int) (int, error) {
	query := "DELETE FROM transcripts WHERE 1=1"
	var args []any
	if workspace != nil {
		query += " AND workspace = ?"
		args = append(args, *workspace)
	}
	if olderThanDays != nil {
		cutoff := time.Now().Add(-time.Duration(*olderThanDays) * 24 * time.Hour).Unix()
		query += " AND ended_at < ?"
		args = append(args, cutoff)
	}

	result, err := db.Exec(query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}
