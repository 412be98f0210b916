package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/blocksync/internal/bytesize"
	"github.com/marmos91/blocksync/pkg/index"
)

func TestLoad_DefaultsAppliedOverFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
logging:
  level: "WARN"

index:
  backend: sqlite
  sqlite_path: "` + filepath.ToSlash(filepath.Join(tmpDir, "index.db")) + `"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("expected logging.level WARN, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default logging.format text, got %q", cfg.Logging.Format)
	}
	if cfg.Index.LargeFileThreshold != 64*bytesize.MiB {
		t.Errorf("expected default large_file_threshold 64Mi, got %d", cfg.Index.LargeFileThreshold)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("expected default metrics.port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_NoConfigFileReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistent := filepath.Join(tmpDir, "missing.yaml")

	cfg, err := Load(nonExistent)
	if err != nil {
		t.Fatalf("expected no error for a missing config file, got: %v", err)
	}
	if cfg.Index.Backend != "sqlite" {
		t.Errorf("expected default index.backend sqlite, got %q", cfg.Index.Backend)
	}
}

func TestLoad_ByteSizeDecodeHook(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
index:
  backend: sqlite
  sqlite_path: "` + filepath.ToSlash(filepath.Join(tmpDir, "index.db")) + `"
  large_file_threshold: "128Mi"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Index.LargeFileThreshold != 128*bytesize.MiB {
		t.Errorf("expected large_file_threshold 128Mi, got %d", cfg.Index.LargeFileThreshold)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
logging:
  level: "INFO"

index:
  backend: sqlite
  sqlite_path: "` + filepath.ToSlash(filepath.Join(tmpDir, "index.db")) + `"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	os.Setenv("BLOCKSYNC_LOGGING_LEVEL", "ERROR")
	defer os.Unsetenv("BLOCKSYNC_LOGGING_LEVEL")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("expected logging.level ERROR from env override, got %q", cfg.Logging.Level)
	}
}

func TestLoad_InvalidBackendRejected(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
index:
  backend: carrier-pigeon
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected an error for an unknown index.backend, got nil")
	}
}

func TestLoad_PostgresRequiresDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
index:
  backend: postgres
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected an error when index.postgres.database is unset, got nil")
	}
}

func TestIndexStoreConfig_MapsBackendAndPath(t *testing.T) {
	cfg := defaultConfig()
	cfg.Index.Backend = "postgres"
	cfg.Index.Postgres.Database = "blocksync"
	cfg.Index.Postgres.Host = "db.internal"

	sc := cfg.IndexStoreConfig()
	if sc.Backend != index.BackendPostgres {
		t.Errorf("expected BackendPostgres, got %v", sc.Backend)
	}
	if sc.Postgres.Database != "blocksync" {
		t.Errorf("expected database blocksync, got %q", sc.Postgres.Database)
	}
	if sc.Postgres.Host != "db.internal" {
		t.Errorf("expected host db.internal, got %q", sc.Postgres.Host)
	}
}

func TestSaveConfig_RoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := defaultConfig()
	cfg.Logging.Level = "DEBUG"
	cfg.Index.SQLitePath = filepath.Join(tmpDir, "index.db")

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig returned error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error after SaveConfig: %v", err)
	}
	if loaded.Logging.Level != "DEBUG" {
		t.Errorf("expected logging.level DEBUG after round trip, got %q", loaded.Logging.Level)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected config file mode 0600, got %v", info.Mode().Perm())
	}
}

func TestDefaultConfigPath_EndsInConfigYAML(t *testing.T) {
	path := DefaultConfigPath()
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("expected filename config.yaml, got %q", filepath.Base(path))
	}
}
