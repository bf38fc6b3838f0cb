// Package config loads the runtime knobs of spec §6 "Environment /
// configuration": retention period, CDC batch/poll/mailbox sizing, tier
// selection, and the embedded-SQL journal/sync mode. It follows the
// teacher's StorageConfig/DefaultStorageConfig shape (see
// internal/storage/storage_backend.go in the teacher repo) — a plain
// struct with a defaults constructor — loaded from YAML via
// gopkg.in/yaml.v3, already present in the teacher's go.mod.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reifydb/reifydb-sub012/internal/storage/sqlitestore"
)

// TierMode selects which storage backends compose the tier (spec §4.B
// "hot/warm/cold composition").
type TierMode string

const (
	TierMemoryOnly   TierMode = "memory"
	TierMemorySQLite TierMode = "memory+sqlite"
)

// Config is the enclosing database constructor's only source of runtime
// knobs for this core (spec §6 "they are set by the enclosing database
// constructor").
type Config struct {
	// Tier selects the storage backend composition.
	Tier TierMode `yaml:"tier"`

	// SQLitePath is the cold tier's backing file. Required when Tier is
	// TierMemorySQLite.
	SQLitePath string `yaml:"sqlite_path"`

	// SQLiteJournal and SQLiteSync configure the embedded SQL backend's
	// durability trade-off (spec §6).
	SQLiteJournal sqlitestore.JournalMode `yaml:"sqlite_journal"`
	SQLiteSync    sqlitestore.SyncMode    `yaml:"sqlite_sync"`

	// RetentionPeriod is how long historical versions should survive
	// (spec §4.B.2). Validate rejects a negative value; reifydb.Open does
	// not pass it to the retention scheduler, whose only cutoff is the CDC
	// watermark.
	RetentionPeriod time.Duration `yaml:"retention_period"`

	// RetentionSchedule is a cron expression for the retention scheduler
	// (spec §4.B.3). reifydb.Open does not read it; DB.Run takes the cron
	// expression as its own argument.
	RetentionSchedule string `yaml:"retention_schedule"`

	// CDCMaxBatchSize caps how many CDC records a consumer actor fetches
	// per poll; 0 means unbounded (spec §6).
	CDCMaxBatchSize int `yaml:"cdc_max_batch_size"`

	// CDCPollInterval is how often a consumer actor polls when caught up
	// (spec §6).
	CDCPollInterval time.Duration `yaml:"cdc_poll_interval"`

	// CDCMailboxCapacity is a consumer actor's mailbox size (spec §5).
	// Validate requires it to be positive; consumer actors do not read it
	// and always use the fixed capacity of 16 defined in internal/cdc.
	CDCMailboxCapacity int `yaml:"cdc_mailbox_capacity"`
}

// rawConfig mirrors Config but with duration fields as the human-readable
// strings YAML files actually carry ("500ms", "1h"); UnmarshalYAML decodes
// through it since yaml.v3 has no built-in time.Duration support.
type rawConfig struct {
	Tier               TierMode                `yaml:"tier"`
	SQLitePath         string                  `yaml:"sqlite_path"`
	SQLiteJournal      sqlitestore.JournalMode `yaml:"sqlite_journal"`
	SQLiteSync         sqlitestore.SyncMode    `yaml:"sqlite_sync"`
	RetentionPeriod    string                  `yaml:"retention_period"`
	RetentionSchedule  string                  `yaml:"retention_schedule"`
	CDCMaxBatchSize    int                     `yaml:"cdc_max_batch_size"`
	CDCPollInterval    string                  `yaml:"cdc_poll_interval"`
	CDCMailboxCapacity int                     `yaml:"cdc_mailbox_capacity"`
}

// UnmarshalYAML decodes onto Default()'s values, so a file that sets only
// some fields leaves the rest at their defaults.
func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	raw := rawConfig{
		Tier:               c.Tier,
		SQLitePath:         c.SQLitePath,
		SQLiteJournal:      c.SQLiteJournal,
		SQLiteSync:         c.SQLiteSync,
		RetentionSchedule:  c.RetentionSchedule,
		CDCMaxBatchSize:    c.CDCMaxBatchSize,
		CDCMailboxCapacity: c.CDCMailboxCapacity,
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	c.Tier = raw.Tier
	c.SQLitePath = raw.SQLitePath
	c.SQLiteJournal = raw.SQLiteJournal
	c.SQLiteSync = raw.SQLiteSync
	c.RetentionSchedule = raw.RetentionSchedule
	c.CDCMaxBatchSize = raw.CDCMaxBatchSize
	c.CDCMailboxCapacity = raw.CDCMailboxCapacity

	if raw.RetentionPeriod != "" {
		d, err := time.ParseDuration(raw.RetentionPeriod)
		if err != nil {
			return fmt.Errorf("config: retention_period: %w", err)
		}
		c.RetentionPeriod = d
	}
	if raw.CDCPollInterval != "" {
		d, err := time.ParseDuration(raw.CDCPollInterval)
		if err != nil {
			return fmt.Errorf("config: cdc_poll_interval: %w", err)
		}
		c.CDCPollInterval = d
	}
	return nil
}

// Default returns the configuration a fresh database constructs with when
// the caller supplies no override (spec §6 knobs at their documented
// defaults).
func Default() Config {
	return Config{
		Tier:               TierMemoryOnly,
		SQLiteJournal:      sqlitestore.JournalWAL,
		SQLiteSync:         sqlitestore.SyncNormal,
		RetentionPeriod:    7 * 24 * time.Hour,
		RetentionSchedule:  "@every 1h",
		CDCMaxBatchSize:    1000,
		CDCPollInterval:    200 * time.Millisecond,
		CDCMailboxCapacity: 16,
	}
}

// Load reads and parses a YAML configuration file, starting from Default
// and overriding only the fields present in the file.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports a descriptive error for a configuration that would
// produce undefined or unsafe runtime behavior.
func (c Config) Validate() error {
	if c.Tier == TierMemorySQLite && c.SQLitePath == "" {
		return fmt.Errorf("config: sqlite_path is required when tier is %q", TierMemorySQLite)
	}
	if c.CDCMailboxCapacity <= 0 {
		return fmt.Errorf("config: cdc_mailbox_capacity must be positive, got %d", c.CDCMailboxCapacity)
	}
	if c.CDCPollInterval <= 0 {
		return fmt.Errorf("config: cdc_poll_interval must be positive, got %s", c.CDCPollInterval)
	}
	if c.RetentionPeriod < 0 {
		return fmt.Errorf("config: retention_period must not be negative, got %s", c.RetentionPeriod)
	}
	return nil
}
