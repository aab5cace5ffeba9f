package config

import (
	"os"
	"path/filepath"
	"testing"

	coacherrors "github.com/hpungsan/bitcoach/internal/errors"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FileMaxChars != 15000 {
		t.Errorf("FileMaxChars = %d, want 15000", cfg.FileMaxChars)
	}
	if cfg.ExampleMaxLines != 5 {
		t.Errorf("ExampleMaxLines = %d, want 5", cfg.ExampleMaxLines)
	}
	if cfg.WindowTurns != 10 {
		t.Errorf("WindowTurns = %d, want 10", cfg.WindowTurns)
	}
	if cfg.TerminationPhrase != "thanks" {
		t.Errorf("TerminationPhrase = %q, want %q", cfg.TerminationPhrase, "thanks")
	}
	if len(cfg.AllowedDocs) != len(DefaultAllowedDocs) {
		t.Errorf("AllowedDocs length = %d, want %d", len(cfg.AllowedDocs), len(DefaultAllowedDocs))
	}
	if cfg.Registration.ID != "microbitHelp" {
		t.Errorf("Registration.ID = %q, want microbitHelp", cfg.Registration.ID)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"file_max_chars": 500, "provider": "openai", "model": "gpt-4o-mini"}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FileMaxChars != 500 {
		t.Errorf("FileMaxChars = %d, want 500", cfg.FileMaxChars)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("Provider = %q, want %q", cfg.Provider, ProviderOpenAI)
	}
	if cfg.WindowTurns != 10 {
		t.Errorf("WindowTurns = %d, want default 10", cfg.WindowTurns)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoadWithRepo_RepoWinsForScalars(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()
	writeConfig(t, globalDir, `{"window_turns": 6, "exclude_patterns": ["venv"]}`)
	writeConfig(t, filepath.Join(repoRoot, ".bitcoach"), `{"window_turns": 4, "exclude_patterns": ["build", "venv"]}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.WindowTurns != 4 {
		t.Errorf("WindowTurns = %d, want 4", cfg.WindowTurns)
	}
	if len(cfg.ExcludePatterns) != 2 {
		t.Fatalf("ExcludePatterns = %v, want [venv build]", cfg.ExcludePatterns)
	}
	if cfg.ExcludePatterns[0] != "venv" || cfg.ExcludePatterns[1] != "build" {
		t.Errorf("ExcludePatterns = %v, want [venv build]", cfg.ExcludePatterns)
	}
}

func TestLoadWithRepo_WalksUpward(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()
	writeConfig(t, filepath.Join(repoRoot, ".bitcoach"), `{"termination_phrase": "done"}`)

	nested := filepath.Join(repoRoot, "src", "game")
	if err := os.MkdirAll(nested, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, nested)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.TerminationPhrase != "done" {
		t.Errorf("TerminationPhrase = %q, want %q", cfg.TerminationPhrase, "done")
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.FileMaxChars != DefaultConfig().FileMaxChars {
		t.Errorf("FileMaxChars = %d, want default", cfg.FileMaxChars)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	base := &Config{ArchiveTranscripts: true}
	overlay := &Config{}

	if !Merge(base, overlay).ArchiveTranscripts {
		t.Errorf("ArchiveTranscripts = false, want true")
	}
}

func TestMerge_RegistrationOverride(t *testing.T) {
	overlay := &Config{Registration: Registration{Label: "Ask the coach"}}

	result := Merge(DefaultConfig(), overlay)
	if result.Registration.Label != "Ask the coach" {
		t.Errorf("Registration.Label = %q, want %q", result.Registration.Label, "Ask the coach")
	}
	if result.Registration.ID != "microbitHelp" {
		t.Errorf("Registration.ID = %q, want microbitHelp", result.Registration.ID)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if got := FindRepoConfig(t.TempDir()); got != "" {
		t.Errorf("FindRepoConfig() = %q, want empty", got)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("BITCOACH_TEST_KEY=from-file\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("BITCOACH_TEST_KEY", "")
	os.Unsetenv("BITCOACH_TEST_KEY")

	if err := LoadEnv(t.TempDir(), dir); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := os.Getenv("BITCOACH_TEST_KEY"); got != "from-file" {
		t.Errorf("BITCOACH_TEST_KEY = %q, want from-file", got)
	}
}

func TestLoadEnv_ExistingValueWins(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("BITCOACH_TEST_KEY2=from-file\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("BITCOACH_TEST_KEY2", "from-process")

	if err := LoadEnv(dir); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := os.Getenv("BITCOACH_TEST_KEY2"); got != "from-process" {
		t.Errorf("BITCOACH_TEST_KEY2 = %q, want from-process", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero cap", mutate: func(c *Config) { c.FileMaxChars = 0 }, field: "file_max_chars"},
		{name: "odd window", mutate: func(c *Config) { c.WindowTurns = 9 }, field: "window_turns"},
		{name: "blank phrase", mutate: func(c *Config) { c.TerminationPhrase = "  " }, field: "termination_phrase"},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "llama" }, field: "provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !coacherrors.Is(err, coacherrors.ErrConfigInvalid) {
				t.Fatalf("Validate() error = %v, want CONFIG_INVALID", err)
			}
			cErr := err.(*coacherrors.CoachError)
			if cErr.Details["field"] != tt.field {
				t.Errorf("Details[field] = %v, want %s", cErr.Details["field"], tt.field)
			}
		})
	}
}
