package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/replycoach/service/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "ai:\n  api_key: test-key\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.Engine.AdvisorTimeout != 45*time.Second {
		t.Errorf("advisor timeout = %v", cfg.Engine.AdvisorTimeout)
	}
	if cfg.AI.Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", cfg.AI.Model)
	}
	task, ok := cfg.Scheduler.Tasks["insight_refresh"]
	if !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("insight_refresh task config = %+v", task)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, `
ai:
  api_key: test-key
  temperature: 0.5
server:
  addr: ":9090"
engine:
  pattern_limit: 10
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.AI.Temperature != 0.5 {
		t.Errorf("temperature = %v", cfg.AI.Temperature)
	}
	if cfg.Engine.PatternLimit != 10 {
		t.Errorf("pattern limit = %d", cfg.Engine.PatternLimit)
	}
}

func TestLoadConfig_MissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("COACH_AI_API_KEY", "env-key")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AI.APIKey != "env-key" {
		t.Errorf("api key = %q, want env value", cfg.AI.APIKey)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		contents string
	}{
		{name: "missing api key", contents: "logger:\n  level: info\n"},
		{name: "bad log level", contents: "ai:\n  api_key: k\nlogger:\n  level: verbose\n"},
		{name: "temperature out of range", contents: "ai:\n  api_key: k\n  temperature: 3.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := config.LoadConfig(writeConfig(t, tt.contents)); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
