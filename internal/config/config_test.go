package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Memory.Budget == 0 {
		t.Error("Expected non-zero default memory budget")
	}
	if cfg.Memory.BudgetVar == 0 {
		t.Error("Expected non-zero default var memory budget")
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("Expected default cache type memory, got %s", cfg.Cache.Type)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
sm:
  memory_budget: 1048576
  memory_budget_var: 2097152
cache:
  type: memory
  ttl: 5m
  size: 100
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Memory.Budget != 1048576 {
		t.Errorf("Expected memory budget 1048576, got %d", cfg.Memory.Budget)
	}
	if cfg.Memory.BudgetVar != 2097152 {
		t.Errorf("Expected var memory budget 2097152, got %d", cfg.Memory.BudgetVar)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Expected cache TTL 5m, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.Size != 100 {
		t.Errorf("Expected cache size 100, got %d", cfg.Cache.Size)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoad_InvalidCacheType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
cache:
  type: memcached
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for unsupported cache type")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		// viper reports missing explicit files as errors; both behaviors are
		// acceptable as long as a config or an error comes back
		if cfg == nil {
			t.Error("Expected config or error, got neither")
		}
		return
	}
}

func TestValidate_ZeroBudget(t *testing.T) {
	cfg := Default()
	cfg.Memory.Budget = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero memory budget")
	}
}
