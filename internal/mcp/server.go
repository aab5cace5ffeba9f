package mcp

import (
	"database/sql"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/lo"

	"github.com/hpungsan/bitcoach/internal/config"
	"github.com/hpungsan/bitcoach/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     func(*config.Config) mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"coach_start": {
		def:     startToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStart },
	},
	"coach_send": {
		def:     sendToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSend },
	},
	"coach_end": {
		def:     endToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEnd },
	},
	"coach_payload": {
		def:     payloadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePayload },
	},
	"coach_lint": {
		def:     lintToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLint },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := lo.Keys(toolRegistry)
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := lo.Filter(names, func(name string, _ int) bool {
		_, ok := toolRegistry[name]
		return !ok
	})
	if unknown == nil {
		unknown = []string{}
	}
	return unknown
}

// Options are the dependencies of the MCP server.
type Options struct {
	Config    *config.Config
	GlobalDir string           // ~/.bitcoach; repo overlays are read relative to each workspace
	DB        *sql.DB          // optional transcript archive
	NewModel  ops.ModelFactory // model backend per session
}

// NewServer creates a new MCP server with the coach tools registered under
// the configured registration. Tools listed in cfg.DisabledTools are skipped.
func NewServer(opts Options, version string) *server.MCPServer {
	cfg := opts.Config
	s := server.NewMCPServer(
		"bitcoach",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(cfg.Registration.Label+" ("+cfg.Registration.ID+"): start with coach_start, relay each student message with coach_send, end when coach_send reports ended."),
	)

	h := NewHandlers(opts)

	disabled := lo.SliceToMap(cfg.DisabledTools, func(name string) (string, bool) {
		return name, true
	})

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def(cfg), entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(opts Options, version string) error {
	return server.ServeStdio(NewServer(opts, version))
}
