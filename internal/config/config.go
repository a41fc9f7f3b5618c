// Package config provides configuration management for the lineage scanner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	apperrors "lineage-scanner/internal/errors"
	"lineage-scanner/internal/lineage"
	"lineage-scanner/internal/logging"
	"lineage-scanner/internal/models"
)

// FileName is the config file name without extension.
const FileName = "lineage"

// Config holds all application configuration.
type Config struct {
	Engine     EngineConfig     `mapstructure:"engine"`
	Chain      ChainConfig      `mapstructure:"chain"`
	POI        POIConfig        `mapstructure:"poi"`
	Mitigation MitigationConfig `mapstructure:"mitigation"`
	Selection  SelectionConfig  `mapstructure:"selection"`
	Swing      SwingConfig      `mapstructure:"swing"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// EngineConfig holds scan execution settings.
type EngineConfig struct {
	Workers             int  `mapstructure:"workers"` // 0 = NumCPU
	ExploreAlternatives bool `mapstructure:"explore_alternatives"`
	MaxAlternatives     int  `mapstructure:"max_alternatives"` // 0 = unlimited
	RejectIntruders     bool `mapstructure:"reject_intruders"`
	RejectOutlaws       bool `mapstructure:"reject_outlaws"`
}

// ChainConfig holds the chain specification.
type ChainConfig struct {
	Links []LinkConfig `mapstructure:"links"`
}

// LinkConfig mirrors one ranked link definition.
type LinkConfig struct {
	Rank             int    `mapstructure:"rank"`
	Kind             string `mapstructure:"kind"`       // rank 1 only: any, peak, valley
	Relation         string `mapstructure:"relation"`   // identical, opposite
	Constraint       string `mapstructure:"constraint"` // none, behind, beyond
	CollectiveWindow int    `mapstructure:"collective_window"`
}

// POIConfig holds point-of-interest settings.
type POIConfig struct {
	ThresholdRank int `mapstructure:"threshold_rank"`
}

// MitigationConfig holds the mitigation filters.
type MitigationConfig struct {
	Ranks []int        `mapstructure:"ranks"`
	Pairs []PairConfig `mapstructure:"pairs"`
}

// PairConfig bounds a mitigation window.
type PairConfig struct {
	From int `mapstructure:"from"`
	To   int `mapstructure:"to"`
}

// SelectionConfig holds sibling selection settings.
type SelectionConfig struct {
	Rank int    `mapstructure:"rank"` // 0 disables selection
	Mode string `mapstructure:"mode"` // extreme, non_extreme
}

// SwingConfig holds swing detection settings.
type SwingConfig struct {
	Left  int `mapstructure:"left"`
	Right int `mapstructure:"right"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/lineage-scanner"
	}
	return filepath.Join(home, ".config", "lineage-scanner")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)
	v.SetConfigName(FileName)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, createTemplateConfig(configDir)
		}
		return nil, fmt.Errorf("reading %s.toml: %w", FileName, err)
	}

	return decode(v)
}

// LoadFile loads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := newViper(filepath.Dir(path))
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return decode(v)
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()

	v.SetDefault("engine.workers", 0)
	v.SetDefault("poi.threshold_rank", 1)
	v.SetDefault("selection.mode", string(lineage.SelectExtreme))
	v.SetDefault("swing.left", 2)
	v.SetDefault("swing.right", 2)
	v.SetDefault("store.path", filepath.Join(configDir, "lineage.db"))

	logDefaults := logging.DefaultLogConfig()
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.console", logDefaults.Console)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", logDefaults.FilePath)
	v.SetDefault("logging.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.max_age", logDefaults.MaxAge)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LINEAGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LINEAGE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("LINEAGE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.Workers = n
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.Workers < 0 {
		return fmt.Errorf("%w: engine.workers must be non-negative", apperrors.ErrConfigInvalid)
	}
	if c.Swing.Left < 1 || c.Swing.Right < 1 {
		return fmt.Errorf("%w: swing.left and swing.right must be at least 1", apperrors.ErrConfigInvalid)
	}

	spec, err := c.ChainSpec()
	if err != nil {
		return err
	}
	opts := c.EngineOptions()
	return opts.Validate(spec)
}

// ChainSpec builds the validated chain specification.
func (c *Config) ChainSpec() (lineage.ChainSpec, error) {
	links := make([]lineage.LinkDef, 0, len(c.Chain.Links))
	for _, l := range c.Chain.Links {
		links = append(links, lineage.LinkDef{
			Rank:             l.Rank,
			Kind:             models.PointKind(strings.ToLower(l.Kind)),
			Relation:         lineage.Relation(strings.ToLower(l.Relation)),
			Constraint:       lineage.Constraint(strings.ToLower(l.Constraint)),
			CollectiveWindow: l.CollectiveWindow,
		})
	}
	return lineage.NewChainSpec(links)
}

// EngineOptions converts the POI, mitigation, selection and engine sections.
func (c *Config) EngineOptions() lineage.Options {
	pairs := make([]lineage.RankPair, 0, len(c.Mitigation.Pairs))
	for _, p := range c.Mitigation.Pairs {
		pairs = append(pairs, lineage.RankPair{From: p.From, To: p.To})
	}
	return lineage.Options{
		ThresholdRank:       c.POI.ThresholdRank,
		MitigationRanks:     append([]int(nil), c.Mitigation.Ranks...),
		MitigationPairs:     pairs,
		SelectionRank:       c.Selection.Rank,
		SelectionMode:       lineage.SelectionMode(strings.ToLower(c.Selection.Mode)),
		ExploreAlternatives: c.Engine.ExploreAlternatives,
		MaxAlternatives:     c.Engine.MaxAlternatives,
		RejectIntruders:     c.Engine.RejectIntruders,
		RejectOutlaws:       c.Engine.RejectOutlaws,
	}
}

// LogConfig converts the logging section.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}
