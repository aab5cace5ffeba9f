package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/bitcoach/internal/bundle"
	"github.com/hpungsan/bitcoach/internal/config"
	"github.com/hpungsan/bitcoach/internal/errors"
	"github.com/hpungsan/bitcoach/internal/policy"
	"github.com/hpungsan/bitcoach/internal/session"
	"github.com/hpungsan/bitcoach/internal/workspace"
)

// ModelFactory builds the model backend for a configuration.
type ModelFactory func(cfg *config.Config) (session.Model, error)

// CollectInput contains parameters for the Collect operation.
type CollectInput struct {
	Workspace string // directory to scan
}

// CollectOutput lists the files that would be attached to a session.
type CollectOutput struct {
	Workspace      string                 `json:"workspace"`
	Files          []workspace.FileRecord `json:"files"`
	Truncated      []string               `json:"truncated"`
	ContextChars   int                    `json:"context_chars"`
	TokensEstimate int                    `json:"tokens_estimate"`
}

// Collect scans a workspace and renders its context without starting a session.
func Collect(ctx context.Context, cfg *config.Config, input CollectInput) (*CollectOutput, error) {
	host, err := workspace.NewDirHost(input.Workspace, workspace.WithSkipPrefix(cfg.HiddenPrefix))
	if err != nil {
		return nil, err
	}

	records := newCollector(cfg).Collect(ctx, host)
	b := bundle.Package(records, cfg.AllowedDocs)
	rendered := b.Render()

	if records == nil {
		records = []workspace.FileRecord{}
	}
	truncated := b.TruncatedFiles()
	if truncated == nil {
		truncated = []string{}
	}

	return &CollectOutput{
		Workspace:      host.Root(),
		Files:          records,
		Truncated:      truncated,
		ContextChars:   len([]rune(rendered)),
		TokensEstimate: bundle.EstimateTokens(rendered),
	}, nil
}

// StartInput contains parameters for the StartSession operation.
type StartInput struct {
	Workspace string
	NewModel  ModelFactory
	DB        *sql.DB // archive; used only when cfg.ArchiveTranscripts is set
}

// StartSession collects the workspace once, packages its context and
// returns a session ready for the first student message.
func StartSession(ctx context.Context, cfg *config.Config, input StartInput) (*session.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if input.NewModel == nil {
		return nil, errors.NewInvalidRequest("model factory is required")
	}

	host, err := workspace.NewDirHost(input.Workspace, workspace.WithSkipPrefix(cfg.HiddenPrefix))
	if err != nil {
		return nil, err
	}

	model, err := input.NewModel(cfg)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(cfg)
	records := newCollector(cfg).Collect(ctx, host)
	b := bundle.Package(records, prompt.References())

	opts := session.Options{
		WindowTurns:       cfg.WindowTurns,
		TerminationPhrase: cfg.TerminationPhrase,
		ExampleMaxLines:   cfg.ExampleMaxLines,
	}
	if cfg.ArchiveTranscripts && input.DB != nil {
		opts.Recorder = NewArchiver(input.DB, host.Root(), cfg.Provider, cfg.Model)
	}

	return session.New(opts, prompt, b, model)
}

// BuildPrompt builds the policy prompt for cfg.
func BuildPrompt(cfg *config.Config) policy.Prompt {
	opts := policy.DefaultOptions(cfg.AllowedDocs, cfg.ExampleMaxLines)
	opts.Extension = cfg.Extension
	return policy.Build(opts)
}

func newCollector(cfg *config.Config) *workspace.Collector {
	return workspace.NewCollector(workspace.Rules{
		Extension:       cfg.Extension,
		HiddenPrefix:    cfg.HiddenPrefix,
		ExcludePatterns: cfg.ExcludePatterns,
	}, cfg.FileMaxChars)
}

// PayloadInput contains parameters for the Payload operation.
type PayloadInput struct {
	GuidelinesPath string // optional markdown file with enforcement rules
}

// PayloadOutput is the policy payload plus a size estimate of its system prompt.
type PayloadOutput struct {
	policy.Payload
	SystemTokens int `json:"system_tokens"`
}

// Payload assembles the policy payload for hosts that build their own requests.
func Payload(cfg *config.Config, input PayloadInput) (*PayloadOutput, error) {
	p, err := policy.NewPayload(BuildPrompt(cfg), input.GuidelinesPath)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if p.AllowedDocs == nil {
		p.AllowedDocs = []string{}
	}
	return &PayloadOutput{
		Payload:      *p,
		SystemTokens: bundle.EstimateTokens(p.System),
	}, nil
}

// Lint checks a coach reply against the example policy of cfg.
func Lint(cfg *config.Config, reply string) *policy.LintResult {
	return policy.Lint(reply, policy.LintOptions{
		ExampleMaxLines: cfg.ExampleMaxLines,
		References:      cfg.AllowedDocs,
	})
}
