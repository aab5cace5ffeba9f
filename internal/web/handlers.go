package web

import (
	"database/sql"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hpungsan/bitcoach/internal/errors"
	"github.com/hpungsan/bitcoach/internal/ops"
)

// Handlers contains HTTP route handlers for the transcript viewer.
type Handlers struct {
	db       *sql.DB
	renderer *Renderer
}

// HandleList handles GET /transcripts: archived sessions, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace")

	result, err := ops.List(h.db, ops.ListInput{
		Workspace: ptrString(workspace),
		Limit:     parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:    parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData:   h.renderer.page("Transcripts"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Workspace:  workspace,
	})
}

// HandleDetail handles GET /transcripts/{id}: one session, turn by turn.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("transcript ID is required"))
		return
	}

	transcript, err := ops.Fetch(h.db, ops.FetchInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, transcript)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData:   h.renderer.page("Session " + transcript.ID),
		Transcript: transcript,
		Turns:      renderTurns(transcript.Turns),
	})
}

// HandlePurge handles POST /transcripts/purge: permanently deletes transcripts.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	input := ops.PurgeInput{
		Workspace: ptrString(r.FormValue("workspace")),
	}
	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil || d < 0 {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be a non-negative integer"))
			return
		}
		input.OlderThanDays = &d
	}

	result, err := ops.Purge(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="purge-result">` + template.HTMLEscapeString(result.Message) + `</div>`))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	target := "/transcripts"
	if input.Workspace != nil {
		target += "?workspace=" + url.QueryEscape(*input.Workspace)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// ptrString returns a pointer to s if non-empty, nil otherwise.
func ptrString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
