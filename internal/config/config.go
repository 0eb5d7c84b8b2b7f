// Package config reads and writes the dlmon TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// ErrInvalidConfig is returned by Validate. Callers treat it as fatal.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the main configuration for dlmon.
type Config struct {
	Root      string `toml:"root"`       // empty: auto-detect
	StorePath string `toml:"store_path"` // empty: <root>/results.csv
	LogDir    string `toml:"log_dir"`

	Monitoring   MonitoringConfig   `toml:"monitoring"`
	Organization OrganizationConfig `toml:"organization"`
	Performance  PerformanceConfig  `toml:"performance"`
	Logging      LoggingConfig      `toml:"logging"`
	Database     DatabaseConfig     `toml:"database"`
	Vault        VaultConfig        `toml:"vault"`
	Encryption   EncryptionConfig   `toml:"encryption"`
}

// MonitoringConfig controls how cycles run.
type MonitoringConfig struct {
	IntervalSeconds int  `toml:"interval_seconds"`
	Incremental     bool `toml:"incremental"`
	HashFiles       bool `toml:"hash_files"`
	EnableAnalysis  bool `toml:"enable_analysis"`
}

// OrganizationConfig controls moving root-level files into category folders.
type OrganizationConfig struct {
	AutoOrganize  bool             `toml:"auto_organize"`
	DryRun        bool             `toml:"dry_run"`
	ExcludedFiles []string         `toml:"excluded_files"`
	Categories    []CategoryConfig `toml:"categories"`
	Rules         []RuleConfig     `toml:"rules"`
}

// CategoryConfig maps a category folder to the extensions it receives.
type CategoryConfig struct {
	Name       string   `toml:"name"`
	Extensions []string `toml:"extensions"`
}

// RuleConfig sends files whose name matches Pattern to Category, ahead of the
// extension table.
type RuleConfig struct {
	Pattern  string `toml:"pattern"`
	Category string `toml:"category"`
}

// PerformanceConfig bounds hashing work.
type PerformanceConfig struct {
	MaxHashSizeMB  int64 `toml:"max_hash_size_mb"` // 0 disables the ceiling
	ChunkSizeBytes int   `toml:"chunk_size_bytes"`
}

// LoggingConfig sets the log threshold: debug, info, warn or error.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DatabaseConfig represents configuration for the cycle history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig represents configuration for the archive backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "none", "memory", "filesystem" or "s3"
	Name string `toml:"name,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for archives.
type EncryptionConfig struct {
	Type           string `toml:"type"`    // "age" (default) or "test"
	Encrypt        bool   `toml:"encrypt"` // encrypt archives before upload
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DefaultCategories returns the built-in category table, in priority order.
func DefaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{Name: "Programs", Extensions: []string{".exe", ".msi", ".bat", ".cmd", ".ps1"}},
		{Name: "Compressed", Extensions: []string{".zip", ".rar", ".7z", ".tar", ".gz", ".bz2", ".xz", ".iso"}},
		{Name: "Documents", Extensions: []string{".pdf", ".doc", ".docx", ".txt", ".rtf", ".md", ".csv", ".xls", ".xlsx", ".ppt", ".pptx"}},
		{Name: "Music", Extensions: []string{".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a"}},
		{Name: "Video", Extensions: []string{".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv", ".webm"}},
	}
}

// DefaultExcludedFiles are the basenames never monitored unless the config says otherwise.
func DefaultExcludedFiles() []string {
	return []string{"results.csv", "desktop.ini", "Thumbs.db", ".DS_Store"}
}

// NewConfig creates a Config with defaults for the given root and data directory.
func NewConfig(root, dataDir string) *Config {
	cfg := defaults()
	cfg.Root = root
	cfg.LogDir = filepath.Join(dataDir, "log")
	cfg.Database.DataDir = filepath.Join(dataDir, "db")
	cfg.Encryption.PublicKeyPath = filepath.Join(dataDir, "keys", "dlmon.pub")
	cfg.Encryption.PrivateKeyPath = filepath.Join(dataDir, "keys", "dlmon.key")
	return cfg
}

// defaults holds every setting that does not depend on a path.
func defaults() *Config {
	return &Config{
		Monitoring: MonitoringConfig{
			IntervalSeconds: 60,
			Incremental:     true,
			HashFiles:       true,
			EnableAnalysis:  true,
		},
		Organization: OrganizationConfig{
			AutoOrganize:  true,
			ExcludedFiles: DefaultExcludedFiles(),
			Categories:    DefaultCategories(),
		},
		Performance: PerformanceConfig{
			MaxHashSizeMB:  500,
			ChunkSizeBytes: 8192,
		},
		Logging:    LoggingConfig{Level: "info"},
		Database:   DatabaseConfig{Type: "sqlite"},
		Vault:      VaultConfig{Type: "none"},
		Encryption: EncryptionConfig{Type: "age"},
	}
}

// CategoryRules converts the configured rules for the category policy.
func (c *Config) CategoryRules() []monitor.CategoryRule {
	out := make([]monitor.CategoryRule, len(c.Organization.Rules))
	for i, r := range c.Organization.Rules {
		out[i] = monitor.CategoryRule{Pattern: r.Pattern, Category: r.Category}
	}
	return out
}

// ExtensionTable converts the configured categories for the category policy.
func (c *Config) ExtensionTable() []monitor.ExtensionMapping {
	out := make([]monitor.ExtensionMapping, len(c.Organization.Categories))
	for i, cat := range c.Organization.Categories {
		out[i] = monitor.ExtensionMapping{Category: cat.Name, Extensions: cat.Extensions}
	}
	return out
}

// Validate checks settings that would make a cycle unsafe or impossible. Root
// must already be resolved. Category and pattern problems keep their monitor
// sentinel so monitor.IsConfigError also recognizes them.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root is empty", ErrInvalidConfig)
	}
	if !filepath.IsAbs(c.Root) {
		return fmt.Errorf("%w: root %q is not an absolute path", ErrInvalidConfig, c.Root)
	}
	if c.Monitoring.IntervalSeconds <= 0 {
		return fmt.Errorf("%w: interval_seconds must be positive, got %d", ErrInvalidConfig, c.Monitoring.IntervalSeconds)
	}
	if c.Performance.MaxHashSizeMB < 0 {
		return fmt.Errorf("%w: max_hash_size_mb must not be negative", ErrInvalidConfig)
	}
	if c.Performance.ChunkSizeBytes < 0 {
		return fmt.Errorf("%w: chunk_size_bytes must not be negative", ErrInvalidConfig)
	}
	if _, ok := ParseLevel(c.Logging.Level); !ok {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	if _, err := monitor.NewCategoryPolicy(c.CategoryRules(), c.ExtensionTable()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ParseLevel normalizes a log level name. An empty name means info.
func ParseLevel(level string) (string, bool) {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "":
		return "info", true
	case "debug", "info", "warn", "error":
		return l, true
	case "warning":
		return "warn", true
	default:
		return "", false
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Keys missing from the file
// keep their defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := defaults()
	cfg.Organization.Categories = nil
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	// Categories given in the file replace the defaults rather than extend them.
	if !md.IsDefined("organization", "categories") {
		cfg.Organization.Categories = DefaultCategories()
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may hold S3 credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
