package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/filenode/internal/util"
	"gopkg.in/yaml.v3"
)

// Bytes per KB
const KB = 1024

// CLI style verbosity values accepted by [ConfigOverride.LogLvl]
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	DefaultCaseInsensitive = false

	// DefaultMaxWalkDepth bounds walker recursion; exceeding it is treated as
	// a corrupted tree (symlink loop, inconsistent linkage)
	DefaultMaxWalkDepth = 256

	// DefaultAskTimeout is how long a worker blocks on a conflict prompt
	DefaultAskTimeout = 10 * time.Second

	// DefaultAnswer is used for conflict prompts when no progress sink is attached
	DefaultAnswer = "skip"

	// DefaultProgressInterval throttles progress update events
	DefaultProgressInterval = 300 * time.Millisecond

	// DefaultWorkerQueueSize is the buffered length of each mount worker queue
	DefaultWorkerQueueSize = 32

	// DefaultCopyBufferSize is the stream copy buffer size in bytes
	DefaultCopyBufferSize = 64 * KB

	// DefaultCompareTolerance is the modification time delta still considered equal
	DefaultCompareTolerance = 2000 * time.Millisecond

	// DefaultCompareDSTWindow is the offset tolerated as a daylight saving shift.
	// Zero disables the heuristic.
	DefaultCompareDSTWindow = 3600000 * time.Millisecond

	DefaultFsName = "filenode"
	DefaultName   = "filenode"
)

// IgnoreRegion describes text skipped by the line based content comparison.
// An empty End ignores the rest of the line after Start.
type IgnoreRegion struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end,omitempty" json:"end,omitempty"`
}

// MountConfig binds a device, built by the devices registry from Type and
// Options, to a path prefix of the registry
type MountConfig struct {
	Prefix  string         `yaml:"prefix" json:"prefix"`
	Type    string         `yaml:"type" json:"type"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// Config contains runtime configuration values for the node registry and its workers.
type Config struct {
	MountOptions
	LogLvl           util.LogLevel  // Log level (Default Info)
	CaseInsensitive  bool           // Fold child names to lower case for lookups (Default false)
	MaxWalkDepth     int            // Walker recursion limit (Default 256)
	AskTimeout       time.Duration  // Conflict prompt timeout; a timeout answers abort-file (Default 10s)
	DefaultAnswer    string         // Answer used when no progress sink exists (Default "skip")
	ProgressInterval time.Duration  // Minimum time between progress updates (Default 300ms)
	WorkerQueueSize  int            // Buffered commands per mount worker (Default 32)
	CopyBufferSize   int            // Stream copy buffer in bytes (Default 64KB)
	CompareTolerance time.Duration  // Equal time tolerance for compare (Default 2s)
	CompareDSTWindow time.Duration  // Daylight saving offset tolerated by compare (Default 1h)
	CompareIgnore    []IgnoreRegion // Regions skipped by content compare
	Mounts           []MountConfig  // Additional device mounts
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
// Durations are given in milliseconds.
type ConfigOverride struct {
	FsName             *string        `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name               *string        `yaml:"name,omitempty" json:"name,omitempty"`
	LogLvl             *int           `yaml:"log_level,omitempty" json:"log_level,omitempty"` // CLI verbosity 1 (error) - 5 (trace)
	CaseInsensitive    *bool          `yaml:"case_insensitive,omitempty" json:"case_insensitive,omitempty"`
	MaxWalkDepth       *int           `yaml:"max_walk_depth,omitempty" json:"max_walk_depth,omitempty"`
	AskTimeoutMs       *int           `yaml:"ask_timeout_ms,omitempty" json:"ask_timeout_ms,omitempty"`
	DefaultAnswer      *string        `yaml:"default_answer,omitempty" json:"default_answer,omitempty"`
	ProgressIntervalMs *int           `yaml:"progress_interval_ms,omitempty" json:"progress_interval_ms,omitempty"`
	WorkerQueueSize    *int           `yaml:"worker_queue_size,omitempty" json:"worker_queue_size,omitempty"`
	CopyBufferSize     *int           `yaml:"copy_buffer_size,omitempty" json:"copy_buffer_size,omitempty"`
	CompareToleranceMs *int           `yaml:"compare_tolerance_ms,omitempty" json:"compare_tolerance_ms,omitempty"`
	CompareDSTWindowMs *int           `yaml:"compare_dst_window_ms,omitempty" json:"compare_dst_window_ms,omitempty"`
	CompareIgnore      []IgnoreRegion `yaml:"compare_ignore,omitempty" json:"compare_ignore,omitempty"`
	AttrTTLMs          *int           `yaml:"attr_ttl_ms,omitempty" json:"attr_ttl_ms,omitempty"`
	ListingTTLMs       *int           `yaml:"listing_ttl_ms,omitempty" json:"listing_ttl_ms,omitempty"`
	Mounts             []MountConfig  `yaml:"mounts,omitempty" json:"mounts,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName:     DefaultFsName,
			Name:       DefaultName,
			AttrTTL:    DefaultAttrTTL,
			ListingTTL: DefaultListingTTL,
		},
		LogLvl:           DefaultLogLvl,
		CaseInsensitive:  DefaultCaseInsensitive,
		MaxWalkDepth:     DefaultMaxWalkDepth,
		AskTimeout:       DefaultAskTimeout,
		DefaultAnswer:    DefaultAnswer,
		ProgressInterval: DefaultProgressInterval,
		WorkerQueueSize:  DefaultWorkerQueueSize,
		CopyBufferSize:   DefaultCopyBufferSize,
		CompareTolerance: DefaultCompareTolerance,
		CompareDSTWindow: DefaultCompareDSTWindow,
	}
}

// NewConfig returns the default Config with override applied when not nil
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.LogLvl != nil {
		c.LogLvl = util.LevelFromVerbosity(*override.LogLvl)
	}
	if override.CaseInsensitive != nil {
		c.CaseInsensitive = *override.CaseInsensitive
	}
	if override.MaxWalkDepth != nil {
		c.MaxWalkDepth = *override.MaxWalkDepth
	}
	if override.AskTimeoutMs != nil {
		c.AskTimeout = millis(*override.AskTimeoutMs)
	}
	if override.DefaultAnswer != nil {
		c.DefaultAnswer = *override.DefaultAnswer
	}
	if override.ProgressIntervalMs != nil {
		c.ProgressInterval = millis(*override.ProgressIntervalMs)
	}
	if override.WorkerQueueSize != nil {
		c.WorkerQueueSize = *override.WorkerQueueSize
	}
	if override.CopyBufferSize != nil && *override.CopyBufferSize > 0 {
		c.CopyBufferSize = *override.CopyBufferSize
	}
	if override.AttrTTLMs != nil {
		c.AttrTTL = millis(*override.AttrTTLMs)
	}
	if override.ListingTTLMs != nil {
		c.ListingTTL = millis(*override.ListingTTLMs)
	}
	if override.CompareToleranceMs != nil {
		c.CompareTolerance = millis(*override.CompareToleranceMs)
	}
	if override.CompareDSTWindowMs != nil {
		c.CompareDSTWindow = millis(*override.CompareDSTWindowMs)
	}
	if override.CompareIgnore != nil {
		c.CompareIgnore = override.CompareIgnore
	}
	if override.Mounts != nil {
		c.Mounts = override.Mounts
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
