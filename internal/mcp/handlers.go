package mcp

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/bitcoach/internal/config"
	"github.com/hpungsan/bitcoach/internal/errors"
	"github.com/hpungsan/bitcoach/internal/logging"
	"github.com/hpungsan/bitcoach/internal/ops"
	"github.com/hpungsan/bitcoach/internal/session"
)

// MaxLiveSessions caps the sessions held in memory. Starting one more
// abandons the least recently used session.
const MaxLiveSessions = 32

// Handlers holds dependencies for MCP tool handlers and the live sessions.
type Handlers struct {
	opts Options
	log  *logrus.Entry

	mu          sync.Mutex
	sessions    map[string]*liveSession
	maxSessions int
	clock       uint64 // bumped on every lookup and register
}

type liveSession struct {
	s        *session.Session
	lastUsed uint64
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(opts Options) *Handlers {
	return &Handlers{
		opts:        opts,
		log:         logging.NewLogger("mcp"),
		sessions:    make(map[string]*liveSession),
		maxSessions: MaxLiveSessions,
	}
}

// Request types for each tool

// StartRequest represents the arguments for coach_start.
type StartRequest struct {
	Workspace string `json:"workspace"`
}

// SendRequest represents the arguments for coach_send.
type SendRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// EndRequest represents the arguments for coach_end.
type EndRequest struct {
	SessionID string `json:"session_id"`
}

// PayloadRequest represents the arguments for coach_payload.
type PayloadRequest struct {
	Guidelines string `json:"guidelines,omitempty"`
}

// LintRequest represents the arguments for coach_lint.
type LintRequest struct {
	Reply string `json:"reply"`
}

// StartResult is returned by coach_start.
type StartResult struct {
	SessionID string   `json:"session_id"`
	Label     string   `json:"label"`
	Files     []string `json:"files"`
	Truncated []string `json:"truncated"`
}

// EndResult is returned by coach_end.
type EndResult struct {
	SessionID string `json:"session_id"`
	Ended     bool   `json:"ended"`
}

// configFor returns the configuration for a workspace, applying its repo overlay.
func (h *Handlers) configFor(workspace string) (*config.Config, error) {
	if h.opts.GlobalDir == "" {
		return h.opts.Config, nil
	}
	cfg, err := config.LoadWithRepo(h.opts.GlobalDir, workspace)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (h *Handlers) lookup(id string) (*session.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	live, ok := h.sessions[id]
	if !ok {
		return nil, errors.NewNotFound("session", id)
	}
	h.clock++
	live.lastUsed = h.clock
	return live.s, nil
}

// register stores s, first evicting the least recently used session when
// the registry is full. Evicted sessions end as abandoned.
func (h *Handlers) register(ctx context.Context, s *session.Session) {
	h.mu.Lock()
	var evicted *session.Session
	if h.maxSessions > 0 && len(h.sessions) >= h.maxSessions {
		var oldestID string
		var oldest uint64
		for id, live := range h.sessions {
			if oldestID == "" || live.lastUsed < oldest {
				oldestID, oldest = id, live.lastUsed
			}
		}
		evicted = h.sessions[oldestID].s
		delete(h.sessions, oldestID)
	}
	h.clock++
	h.sessions[s.ID()] = &liveSession{s: s, lastUsed: h.clock}
	h.mu.Unlock()

	if evicted != nil {
		evicted.End(ctx, session.EndAbandoned)
		h.log.WithField("session_id", evicted.ID()).Warn("session limit reached, evicted idle session")
	}
}

func (h *Handlers) forget(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// HandleStart handles the coach_start tool.
func (h *Handlers) HandleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[StartRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if args.Workspace == "" {
		return errorResult(errors.NewInvalidRequest("workspace is required")), nil
	}

	cfg, err := h.configFor(args.Workspace)
	if err != nil {
		return errorResult(err), nil
	}

	s, err := ops.StartSession(ctx, cfg, ops.StartInput{
		Workspace: args.Workspace,
		NewModel:  h.opts.NewModel,
		DB:        h.opts.DB,
	})
	if err != nil {
		return errorResult(err), nil
	}

	h.register(ctx, s)

	h.log.WithFields(logrus.Fields{"session_id": s.ID(), "files": len(s.Files())}).Info("session started")

	files := s.Files()
	if files == nil {
		files = []string{}
	}
	truncated := s.TruncatedFiles()
	if truncated == nil {
		truncated = []string{}
	}
	return successResult(StartResult{
		SessionID: s.ID(),
		Label:     cfg.Registration.Label,
		Files:     files,
		Truncated: truncated,
	})
}

// HandleSend handles the coach_send tool.
func (h *Handlers) HandleSend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[SendRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.lookup(args.SessionID)
	if err != nil {
		return errorResult(err), nil
	}

	out, err := s.Send(ctx, args.Message)
	if err != nil {
		if errors.Is(err, errors.ErrTransportFailed) {
			h.forget(s.ID())
			if cErr, ok := err.(*errors.CoachError); ok {
				if cErr.Details == nil {
					cErr.Details = map[string]any{}
				}
				cErr.Details["notice"] = session.UnavailableNotice
				cErr.Details["ended"] = true
			}
		}
		return errorResult(err), nil
	}

	if out.Ended {
		h.forget(s.ID())
	}
	return successResult(out)
}

// HandleEnd handles the coach_end tool.
func (h *Handlers) HandleEnd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[EndRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.lookup(args.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	s.End(ctx, session.EndAbandoned)
	h.forget(s.ID())

	return successResult(EndResult{SessionID: s.ID(), Ended: true})
}

// HandlePayload handles the coach_payload tool.
func (h *Handlers) HandlePayload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[PayloadRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Payload(h.opts.Config, ops.PayloadInput{GuidelinesPath: args.Guidelines})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleLint handles the coach_lint tool.
func (h *Handlers) HandleLint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[LintRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return successResult(ops.Lint(h.opts.Config, args.Reply))
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cErr, ok := err.(*errors.CoachError); ok {
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": cErr.Message,
			"status":  cErr.Status,
		}
		// Internal details may carry file paths or SQL errors
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
