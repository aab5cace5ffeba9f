package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	coacherrors "github.com/hpungsan/bitcoach/internal/errors"
)

// Providers supported by the transport package.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// DefaultAllowedDocs are the documentation pages the coach may cite.
var DefaultAllowedDocs = []string{
	"https://microbit-micropython.readthedocs.io/en/v2-docs/",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/tutorials/",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/tutorials/buttons.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/tutorials/images.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/tutorials/input_output.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/tutorials/music.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/tutorials/radio.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/tutorials/microphone.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/microbit_micropython_api.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/microbit.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/button.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/display.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/accelerometer.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/compass.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/radio.html",
	"https://microbit-micropython.readthedocs.io/en/v2-docs/neopixel.html",
}

// Registration is how the coach presents itself to the host.
type Registration struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Config holds application configuration.
type Config struct {
	// FileMaxChars is the per-file character cap before content is truncated.
	FileMaxChars int `json:"file_max_chars"`

	// ExampleMaxLines caps code examples in the policy prompt.
	ExampleMaxLines int `json:"example_max_lines"`

	// WindowTurns is the maximum number of turns kept in history. Must be even.
	WindowTurns int `json:"window_turns"`

	// TerminationPhrase ends a session when typed on its own (case-insensitive).
	TerminationPhrase string `json:"termination_phrase"`

	// Extension selects the student's source files.
	Extension string `json:"extension"`

	// HiddenPrefix marks files and directories the collector skips.
	HiddenPrefix string `json:"hidden_prefix"`

	// ExcludePatterns are gitignore-style patterns removed from collection
	// (e.g. "venv", "build/**").
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`

	// AllowedDocs is the list of reference URLs the coach may cite.
	AllowedDocs []string `json:"allowed_docs,omitempty"`

	// Provider selects the model backend: "anthropic" or "openai".
	Provider string `json:"provider"`

	// Model is the backend model name.
	Model string `json:"model"`

	// MaxTokens bounds each coach reply.
	MaxTokens int `json:"max_tokens"`

	// BaseURL overrides the backend endpoint (proxies, tests).
	BaseURL string `json:"base_url,omitempty"`

	// ArchiveTranscripts writes finished sessions to the local database.
	// Archived transcripts are never loaded into a new session.
	ArchiveTranscripts bool `json:"archive_transcripts,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// Registration is the label and entry id announced to the host.
	Registration Registration `json:"registration"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		FileMaxChars:      15000,
		ExampleMaxLines:   5,
		WindowTurns:       10,
		TerminationPhrase: "thanks",
		Extension:         ".py",
		HiddenPrefix:      ".",
		AllowedDocs:       append([]string(nil), DefaultAllowedDocs...),
		Provider:          ProviderAnthropic,
		Model:             "claude-sonnet-4-20250514",
		MaxTokens:         1024,
		Registration: Registration{
			ID:    "microbitHelp",
			Label: "I have a micro:bit question",
		},
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.bitcoach.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.bitcoach) and repo (.bitcoach) directories.
// Repo config is found by walking upward from startDir to find the nearest .bitcoach/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .bitcoach/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".bitcoach", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadEnv loads KEY=value pairs from .env files in the given directories.
// Missing files are skipped and variables already set in the process win.
func LoadEnv(dirs ...string) error {
	for _, dir := range dirs {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return coacherrors.NewConfigInvalid(".env", err.Error())
		}
	}
	return nil
}

// Validate rejects values the session cannot run with.
func (c *Config) Validate() error {
	if c.FileMaxChars <= 0 {
		return coacherrors.NewConfigInvalid("file_max_chars", "must be positive")
	}
	if c.ExampleMaxLines <= 0 {
		return coacherrors.NewConfigInvalid("example_max_lines", "must be positive")
	}
	if c.WindowTurns < 2 || c.WindowTurns%2 != 0 {
		return coacherrors.NewConfigInvalid("window_turns", "must be an even number of at least 2")
	}
	if strings.TrimSpace(c.TerminationPhrase) == "" {
		return coacherrors.NewConfigInvalid("termination_phrase", "must not be empty")
	}
	if c.Extension == "" {
		return coacherrors.NewConfigInvalid("extension", "must not be empty")
	}
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return coacherrors.NewConfigInvalid("provider", "unknown provider "+c.Provider)
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.FileMaxChars = pickInt(overlay.FileMaxChars, base.FileMaxChars)
	result.ExampleMaxLines = pickInt(overlay.ExampleMaxLines, base.ExampleMaxLines)
	result.WindowTurns = pickInt(overlay.WindowTurns, base.WindowTurns)
	result.MaxTokens = pickInt(overlay.MaxTokens, base.MaxTokens)

	result.TerminationPhrase = pickString(overlay.TerminationPhrase, base.TerminationPhrase)
	result.Extension = pickString(overlay.Extension, base.Extension)
	result.HiddenPrefix = pickString(overlay.HiddenPrefix, base.HiddenPrefix)
	result.Provider = pickString(overlay.Provider, base.Provider)
	result.Model = pickString(overlay.Model, base.Model)
	result.BaseURL = pickString(overlay.BaseURL, base.BaseURL)
	result.Registration.ID = pickString(overlay.Registration.ID, base.Registration.ID)
	result.Registration.Label = pickString(overlay.Registration.Label, base.Registration.Label)

	// Booleans: overlay wins if true, else base
	result.ArchiveTranscripts = base.ArchiveTranscripts || overlay.ArchiveTranscripts

	// Arrays: merge and deduplicate
	result.ExcludePatterns = mergeStringSlice(base.ExcludePatterns, overlay.ExcludePatterns)
	result.AllowedDocs = mergeStringSlice(base.AllowedDocs, overlay.AllowedDocs)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
