// Package config defines and loads the comparison engine configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"smartdiff/internal/errors"
)

// Config represents the complete smartdiff configuration
type Config struct {
	Version   int             `json:"version" mapstructure:"version"`
	Matching  MatchingConfig  `json:"matching" mapstructure:"matching"`
	Weights   WeightsConfig   `json:"weights" mapstructure:"weights"`
	TreeEdit  TreeEditConfig  `json:"treeEdit" mapstructure:"treeEdit"`
	CrossFile CrossFileConfig `json:"crossFile" mapstructure:"crossFile"`
	Workers   int             `json:"workers" mapstructure:"workers"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// MatchingConfig contains thresholds for the assignment phase
type MatchingConfig struct {
	MinSimilarityThreshold   float64 `json:"minSimilarityThreshold" mapstructure:"minSimilarityThreshold"`
	MaxAssignmentCost        float64 `json:"maxAssignmentCost" mapstructure:"maxAssignmentCost"`
	RenameThreshold          float64 `json:"renameThreshold" mapstructure:"renameThreshold"`
	MaxCandidatesPerFunction int     `json:"maxCandidatesPerFunction" mapstructure:"maxCandidatesPerFunction"`
	EnableManyToMany         bool    `json:"enableManyToMany" mapstructure:"enableManyToMany"`
}

// WeightsConfig contains the similarity factor weights.
// The three overall weights must sum to 1.0.
type WeightsConfig struct {
	Signature float64 `json:"signature" mapstructure:"signature"`
	Body      float64 `json:"body" mapstructure:"body"`
	Context   float64 `json:"context" mapstructure:"context"`
}

// TreeEditConfig contains edit cost and pruning settings
type TreeEditConfig struct {
	InsertCost   float64 `json:"insertCost" mapstructure:"insertCost"`
	DeleteCost   float64 `json:"deleteCost" mapstructure:"deleteCost"`
	UpdateCost   float64 `json:"updateCost" mapstructure:"updateCost"`
	MaxNodes     int     `json:"maxNodes" mapstructure:"maxNodes"`
	MaxDepth     int     `json:"maxDepth" mapstructure:"maxDepth"`
	MinSizeRatio float64 `json:"minSizeRatio" mapstructure:"minSizeRatio"`
}

// CrossFileConfig contains cross-file tracking settings
type CrossFileConfig struct {
	Penalty                float64 `json:"penalty" mapstructure:"penalty"`
	MinCrossFileSimilarity float64 `json:"minCrossFileSimilarity" mapstructure:"minCrossFileSimilarity"`
	MaxClusterSize         int     `json:"maxClusterSize" mapstructure:"maxClusterSize"`
}

// CacheConfig contains the parsed-function cache settings
type CacheConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Matching: MatchingConfig{
			MinSimilarityThreshold:   0.7,
			MaxAssignmentCost:        0.3,
			RenameThreshold:          0.9,
			MaxCandidatesPerFunction: 10,
			EnableManyToMany:         true,
		},
		Weights: WeightsConfig{
			Signature: 0.4,
			Body:      0.4,
			Context:   0.2,
		},
		TreeEdit: TreeEditConfig{
			InsertCost:   1.0,
			DeleteCost:   1.0,
			UpdateCost:   1.0,
			MaxNodes:     2000,
			MaxDepth:     100,
			MinSizeRatio: 0.1,
		},
		CrossFile: CrossFileConfig{
			Penalty:                0.1,
			MinCrossFileSimilarity: 0.85,
			MaxClusterSize:         3,
		},
		Workers: runtime.NumCPU(),
		Cache: CacheConfig{
			Enabled: false,
			Path:    ".smartdiff/cache.db",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .smartdiff/config.json under root,
// falling back to defaults when no file exists. SMARTDIFF_* environment
// variables override file values. The returned config is validated;
// algorithms downstream never re-check it.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("version", defaults.Version)
	v.SetDefault("matching.minSimilarityThreshold", defaults.Matching.MinSimilarityThreshold)
	v.SetDefault("matching.maxAssignmentCost", defaults.Matching.MaxAssignmentCost)
	v.SetDefault("matching.renameThreshold", defaults.Matching.RenameThreshold)
	v.SetDefault("matching.maxCandidatesPerFunction", defaults.Matching.MaxCandidatesPerFunction)
	v.SetDefault("matching.enableManyToMany", defaults.Matching.EnableManyToMany)
	v.SetDefault("weights.signature", defaults.Weights.Signature)
	v.SetDefault("weights.body", defaults.Weights.Body)
	v.SetDefault("weights.context", defaults.Weights.Context)
	v.SetDefault("treeEdit.insertCost", defaults.TreeEdit.InsertCost)
	v.SetDefault("treeEdit.deleteCost", defaults.TreeEdit.DeleteCost)
	v.SetDefault("treeEdit.updateCost", defaults.TreeEdit.UpdateCost)
	v.SetDefault("treeEdit.maxNodes", defaults.TreeEdit.MaxNodes)
	v.SetDefault("treeEdit.maxDepth", defaults.TreeEdit.MaxDepth)
	v.SetDefault("treeEdit.minSizeRatio", defaults.TreeEdit.MinSizeRatio)
	v.SetDefault("crossFile.penalty", defaults.CrossFile.Penalty)
	v.SetDefault("crossFile.minCrossFileSimilarity", defaults.CrossFile.MinCrossFileSimilarity)
	v.SetDefault("crossFile.maxClusterSize", defaults.CrossFile.MaxClusterSize)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.path", defaults.Cache.Path)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, ".smartdiff"))
	v.SetEnvPrefix("SMARTDIFF")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.NewDiffError(errors.ConfigInvalid, "failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewDiffError(errors.ConfigInvalid, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to .smartdiff/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".smartdiff")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid. All range checks happen
// here, at construction time.
func (c *Config) Validate() error {
	checkUnit := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return errors.NewDiffError(errors.ConfigInvalid,
				fmt.Sprintf("%s must be in [0,1], got %v", name, v), nil)
		}
		return nil
	}

	if err := checkUnit("matching.minSimilarityThreshold", c.Matching.MinSimilarityThreshold); err != nil {
		return err
	}
	if err := checkUnit("matching.maxAssignmentCost", c.Matching.MaxAssignmentCost); err != nil {
		return err
	}
	if err := checkUnit("matching.renameThreshold", c.Matching.RenameThreshold); err != nil {
		return err
	}
	if c.Matching.MaxCandidatesPerFunction < 1 {
		return errors.NewDiffError(errors.ConfigInvalid,
			fmt.Sprintf("matching.maxCandidatesPerFunction must be >= 1, got %d", c.Matching.MaxCandidatesPerFunction), nil)
	}

	for _, w := range []struct {
		name  string
		value float64
	}{
		{"weights.signature", c.Weights.Signature},
		{"weights.body", c.Weights.Body},
		{"weights.context", c.Weights.Context},
	} {
		if err := checkUnit(w.name, w.value); err != nil {
			return err
		}
	}
	sum := c.Weights.Signature + c.Weights.Body + c.Weights.Context
	if sum < 0.999 || sum > 1.001 {
		return errors.NewDiffError(errors.ConfigInvalid,
			fmt.Sprintf("similarity weights must sum to 1.0, got %v", sum), nil)
	}

	for _, cost := range []struct {
		name  string
		value float64
	}{
		{"treeEdit.insertCost", c.TreeEdit.InsertCost},
		{"treeEdit.deleteCost", c.TreeEdit.DeleteCost},
		{"treeEdit.updateCost", c.TreeEdit.UpdateCost},
	} {
		if cost.value <= 0 {
			return errors.NewDiffError(errors.ConfigInvalid,
				fmt.Sprintf("%s must be positive, got %v", cost.name, cost.value), nil)
		}
	}
	if c.TreeEdit.MaxNodes < 1 || c.TreeEdit.MaxDepth < 1 {
		return errors.NewDiffError(errors.ConfigInvalid, "treeEdit pruning limits must be >= 1", nil)
	}
	if err := checkUnit("treeEdit.minSizeRatio", c.TreeEdit.MinSizeRatio); err != nil {
		return err
	}

	if err := checkUnit("crossFile.penalty", c.CrossFile.Penalty); err != nil {
		return err
	}
	if err := checkUnit("crossFile.minCrossFileSimilarity", c.CrossFile.MinCrossFileSimilarity); err != nil {
		return err
	}
	if c.CrossFile.MaxClusterSize < 2 {
		return errors.NewDiffError(errors.ConfigInvalid,
			fmt.Sprintf("crossFile.maxClusterSize must be >= 2, got %d", c.CrossFile.MaxClusterSize), nil)
	}

	if c.Workers < 1 {
		return errors.NewDiffError(errors.ConfigInvalid,
			fmt.Sprintf("workers must be >= 1, got %d", c.Workers), nil)
	}
	return nil
}
