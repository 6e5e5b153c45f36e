package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Sync.DialogTTL = 90 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Sync.DialogTTL != 90*time.Second {
		t.Errorf("DialogTTL = %s, want 1m30s", loaded.Sync.DialogTTL)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadKeepsDefaultsForUnsetKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "log_level = \"debug\"\n\n[sync]\ndialog_ttl = \"5m\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Sync.DialogTTL != 5*time.Minute {
		t.Errorf("DialogTTL = %s, want 5m", cfg.Sync.DialogTTL)
	}
	if cfg.Sync.Oversample != 5 || cfg.Cache.Driver != DriverSQLite {
		t.Errorf("defaults lost: oversample=%d driver=%q", cfg.Sync.Oversample, cfg.Cache.Driver)
	}
}

func TestEffectiveEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("default_profile = \"work\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	dotenv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenv, []byte("TGSIFT_SYNC_OVERSAMPLE=8\nTGSIFT_PROFILE=fromdotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TGSIFT_PROFILE", "fromenv")
	t.Setenv("TGSIFT_REMOTE_EXPORT_PATH", "/data/result.json")
	t.Setenv("TGSIFT_SYNC_DIALOG_TTL", "30s")
	t.Cleanup(func() { _ = os.Unsetenv("TGSIFT_SYNC_OVERSAMPLE") })

	cfg, err := Effective(path, dotenv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultProfile != "fromenv" {
		t.Errorf("DefaultProfile = %q, want fromenv (env beats file and .env)", cfg.DefaultProfile)
	}
	if cfg.Remote.ExportPath != "/data/result.json" {
		t.Errorf("ExportPath = %q", cfg.Remote.ExportPath)
	}
	if cfg.Sync.DialogTTL != 30*time.Second {
		t.Errorf("DialogTTL = %s, want 30s", cfg.Sync.DialogTTL)
	}
	if cfg.Sync.Oversample != 8 {
		t.Errorf("Oversample = %d, want 8 from .env", cfg.Sync.Oversample)
	}
}

func TestEffectiveWithoutFiles(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Effective(filepath.Join(dir, "missing.toml"), filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sync.DefaultLimit != 50 {
		t.Errorf("DefaultLimit = %d, want default 50", cfg.Sync.DefaultLimit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"none driver", func(c *Config) { c.Cache.Driver = DriverNone }, false},
		{"postgres without url", func(c *Config) { c.Cache.Driver = DriverPostgres }, true},
		{"postgres with url", func(c *Config) {
			c.Cache.Driver = DriverPostgres
			c.Cache.PostgresURL = "postgres://localhost/tgsift"
		}, false},
		{"unknown driver", func(c *Config) { c.Cache.Driver = "redis" }, true},
		{"negative oversample", func(c *Config) { c.Sync.Oversample = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
