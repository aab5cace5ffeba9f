package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/bitcoach/internal/config"
)

func startToolDef(cfg *config.Config) mcp.Tool {
	return mcp.NewTool("coach_start",
		mcp.WithDescription(cfg.Registration.Label+". Starts a micro:bit MicroPython coaching session: collects the student's "+cfg.Extension+" files once and returns a session_id for coach_send."),
		mcp.WithString("workspace", mcp.Required(), mcp.Description("Absolute path of the student's workspace folder")),
	)
}

func sendToolDef(cfg *config.Config) mcp.Tool {
	return mcp.NewTool("coach_send",
		mcp.WithDescription("Relays one student message and returns the coach reply. Sending \""+cfg.TerminationPhrase+"\" ends the session and returns a closing message."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID from coach_start")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The student's message, verbatim")),
	)
}

func endToolDef(*config.Config) mcp.Tool {
	return mcp.NewTool("coach_end",
		mcp.WithDescription("Ends a session without a closing message (e.g. the chat view was closed)."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID from coach_start")),
	)
}

func payloadToolDef(*config.Config) mcp.Tool {
	return mcp.NewTool("coach_payload",
		mcp.WithDescription("Returns the coaching policy as {system, policy_excerpt, allowed_docs} for hosts that call a model themselves."),
		mcp.WithString("guidelines", mcp.Description("Optional path to a markdown guidelines file; the text under its first level-1 heading becomes policy_excerpt")),
	)
}

func lintToolDef(cfg *config.Config) mcp.Tool {
	return mcp.NewTool("coach_lint",
		mcp.WithDescription("Checks a coach reply against the example rules: code blocks over the line cap, blocks without a TODO or placeholder, and missing documentation citations."),
		mcp.WithString("reply", mcp.Required(), mcp.Description("The coach reply in markdown")),
	)
}
