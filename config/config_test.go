package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reifydb/reifydb-sub012/internal/storage/sqlitestore"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() should validate cleanly: %v", err)
	}
}

func TestLoadOverridesOnlyPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "tier: memory+sqlite\nsqlite_path: /tmp/reifydb.db\ncdc_poll_interval: 500ms\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Tier != TierMemorySQLite || cfg.SQLitePath != "/tmp/reifydb.db" {
		t.Fatalf("override fields not applied: %+v", cfg)
	}
	if cfg.CDCPollInterval != 500*time.Millisecond {
		t.Fatalf("cdc_poll_interval = %s, want 500ms", cfg.CDCPollInterval)
	}
	if cfg.RetentionPeriod != Default().RetentionPeriod {
		t.Fatalf("unset field should keep its default: got %s", cfg.RetentionPeriod)
	}
	if cfg.SQLiteJournal != sqlitestore.JournalWAL {
		t.Fatalf("unset journal mode should keep its default, got %q", cfg.SQLiteJournal)
	}
}

func TestValidateRejectsMissingSQLitePath(t *testing.T) {
	cfg := Default()
	cfg.Tier = TierMemorySQLite
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when sqlite tier has no path")
	}
}

func TestValidateRejectsNonPositiveMailboxCapacity(t *testing.T) {
	cfg := Default()
	cfg.CDCMailboxCapacity = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for zero mailbox capacity")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error loading a missing file")
	}
}
