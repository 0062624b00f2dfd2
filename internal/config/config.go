// Package config provides unified configuration for the Stratalake pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Layer represents the terminal layer the pipeline advances to.
type Layer string

const (
	LayerRaw        Layer = "raw"
	LayerStructured Layer = "structured"
	LayerModeled    Layer = "modeled"
)

// Config holds the unified configuration for the pipeline.
type Config struct {
	// Layer is the terminal layer to process through: raw, structured, modeled
	Layer Layer `json:"layer" yaml:"layer"`

	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// ScriptsDir is the directory holding the SQL model scripts
	ScriptsDir string `json:"scripts_dir" yaml:"scripts_dir"`

	// Source configuration (message queue)
	Source SourceConfig `json:"source" yaml:"source"`

	// Store configuration (analytical store)
	Store StoreConfig `json:"store" yaml:"store"`

	// Pipeline configuration (polling behavior)
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`

	// Export configuration (snapshot export)
	Export ExportConfig `json:"export" yaml:"export"`
}

// SourceConfig holds message source configuration.
type SourceConfig struct {
	// Type is the source type: sqs, memory
	Type string `json:"type" yaml:"type"`

	// QueueURL is the full queue URL; resolved from QueueName when empty
	QueueURL string `json:"queue_url" yaml:"queue_url"`

	// QueueName is the queue name used to resolve the URL
	QueueName string `json:"queue_name" yaml:"queue_name"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// MaxMessages is the maximum batch size per receive (capped at 10 by SQS)
	MaxMessages int `json:"max_messages" yaml:"max_messages"`

	// VisibilityTimeout is how long received messages stay hidden from other consumers
	VisibilityTimeout time.Duration `json:"visibility_timeout" yaml:"visibility_timeout"`

	// WaitTime is the long-poll wait per receive call
	WaitTime time.Duration `json:"wait_time" yaml:"wait_time"`
}

// StoreConfig holds analytical store configuration.
type StoreConfig struct {
	// Path is the SQLite database file path
	Path string `json:"path" yaml:"path"`
}

// PipelineConfig holds polling loop configuration.
type PipelineConfig struct {
	// PollInterval is the fixed sleep between polling cycles
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// DeleteAfterProcessing controls whether consumed messages are deleted
	// from the source after a fully successful cycle
	DeleteAfterProcessing bool `json:"delete_after_processing" yaml:"delete_after_processing"`
}

// ExportConfig holds snapshot export configuration.
type ExportConfig struct {
	// Enabled controls whether layer snapshots are written each cycle
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Mirror is the snapshot mirror type: none, local, s3
	Mirror string `json:"mirror" yaml:"mirror"`

	// MirrorPath is the local mirror base path (for local mirror)
	MirrorPath string `json:"mirror_path" yaml:"mirror_path"`

	// S3 configuration (for s3 mirror)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 mirror configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Layer:      LayerModeled,
		DataDir:    "./data/stratalake",
		ScriptsDir: "sql/models",
		Source: SourceConfig{
			Type:              "sqs",
			QueueName:         "analytics-events-queue",
			Region:            "us-east-1",
			MaxMessages:       10,
			VisibilityTimeout: 30 * time.Second,
			WaitTime:          20 * time.Second,
		},
		Store: StoreConfig{},
		Pipeline: PipelineConfig{
			PollInterval:          5 * time.Second,
			DeleteAfterProcessing: true,
		},
		Export: ExportConfig{
			Enabled: true,
			Mirror:  "none",
		},
	}
}

// RawPath returns the raw-layer directory.
func (c *Config) RawPath() string {
	return filepath.Join(c.DataDir, "raw")
}

// StructuredPath returns the structured-layer snapshot directory.
func (c *Config) StructuredPath() string {
	return filepath.Join(c.DataDir, "structured")
}

// ModeledPath returns the modeled-layer snapshot directory.
func (c *Config) ModeledPath() string {
	return filepath.Join(c.DataDir, "modeled")
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/stratalake"
	}
	if c.ScriptsDir == "" {
		c.ScriptsDir = "sql/models"
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.DataDir, "analytics.db")
	}
	if c.Export.Mirror == "local" && c.Export.MirrorPath == "" {
		c.Export.MirrorPath = filepath.Join(c.DataDir, "mirror")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Layer {
	case LayerRaw, LayerStructured, LayerModeled:
		// Valid layers
	default:
		return fmt.Errorf("invalid layer: %s (must be raw, structured, or modeled)", c.Layer)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Source.Type != "sqs" && c.Source.Type != "memory" {
		return fmt.Errorf("invalid source type: %s (must be sqs or memory)", c.Source.Type)
	}

	if c.Source.Type == "sqs" && c.Source.QueueURL == "" && c.Source.QueueName == "" {
		return fmt.Errorf("source.queue_url or source.queue_name is required for sqs source")
	}

	if c.Source.MaxMessages < 1 || c.Source.MaxMessages > 10 {
		return fmt.Errorf("source.max_messages must be between 1 and 10, got %d", c.Source.MaxMessages)
	}

	if c.Source.WaitTime < 0 || c.Source.WaitTime > 20*time.Second {
		return fmt.Errorf("source.wait_time must be between 0s and 20s, got %s", c.Source.WaitTime)
	}

	if c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("pipeline.poll_interval must be positive, got %s", c.Pipeline.PollInterval)
	}

	switch c.Export.Mirror {
	case "", "none", "local", "s3":
		// Valid mirrors
	default:
		return fmt.Errorf("invalid export mirror: %s (must be none, local, or s3)", c.Export.Mirror)
	}

	if c.Export.Mirror == "s3" && c.Export.S3.Bucket == "" {
		return fmt.Errorf("export.s3.bucket is required when mirror is s3")
	}

	return nil
}

// EnsureDirectories creates all required layer directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.RawPath(),
		c.StructuredPath(),
		c.ModeledPath(),
	}
	if c.Export.Mirror == "local" && c.Export.MirrorPath != "" {
		dirs = append(dirs, c.Export.MirrorPath)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the STRATALAKE_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("STRATALAKE_LAYER"); v != "" {
		cfg.Layer = Layer(v)
	}
	if v := os.Getenv("STRATALAKE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("STRATALAKE_SCRIPTS_DIR"); v != "" {
		cfg.ScriptsDir = v
	}

	// Source configuration
	if v := os.Getenv("STRATALAKE_SOURCE_TYPE"); v != "" {
		cfg.Source.Type = v
	}
	if v := os.Getenv("STRATALAKE_QUEUE_URL"); v != "" {
		cfg.Source.QueueURL = v
	}
	if v := os.Getenv("STRATALAKE_QUEUE_NAME"); v != "" {
		cfg.Source.QueueName = v
	}
	if v := os.Getenv("STRATALAKE_AWS_REGION"); v != "" {
		cfg.Source.Region = v
	}
	if v := os.Getenv("STRATALAKE_MAX_MESSAGES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Source.MaxMessages)
	}
	if v := os.Getenv("STRATALAKE_WAIT_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Source.WaitTime = d
		}
	}
	if v := os.Getenv("STRATALAKE_VISIBILITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Source.VisibilityTimeout = d
		}
	}

	// Store configuration
	if v := os.Getenv("STRATALAKE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}

	// Pipeline configuration
	if v := os.Getenv("STRATALAKE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.PollInterval = d
		}
	}
	if v := os.Getenv("STRATALAKE_DELETE_AFTER_PROCESSING"); v != "" {
		cfg.Pipeline.DeleteAfterProcessing = v == "true" || v == "1"
	}

	// Export configuration
	if v := os.Getenv("STRATALAKE_EXPORT_ENABLED"); v != "" {
		cfg.Export.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("STRATALAKE_EXPORT_MIRROR"); v != "" {
		cfg.Export.Mirror = v
	}
	if v := os.Getenv("STRATALAKE_MIRROR_PATH"); v != "" {
		cfg.Export.MirrorPath = v
	}
	if v := os.Getenv("STRATALAKE_S3_BUCKET"); v != "" {
		cfg.Export.S3.Bucket = v
	}
	if v := os.Getenv("STRATALAKE_S3_REGION"); v != "" {
		cfg.Export.S3.Region = v
	}
	if v := os.Getenv("STRATALAKE_S3_ENDPOINT"); v != "" {
		cfg.Export.S3.Endpoint = v
	}
}
