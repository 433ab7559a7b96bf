// Package config provides unified configuration loading for mochi.
// Settings come from defaults, then a YAML or JSON file, then a .env file,
// then MOCHI_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mochi/pkg/logging"
	"mochi/pkg/model"
)

// Config contains all mochi settings.
type Config struct {
	// WorkDir, when set, anchors every relative path below.
	WorkDir string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`

	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Generator GeneratorConfig `json:"generator" yaml:"generator"`
	Training  TrainingConfig  `json:"training" yaml:"training"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Image     ImageConfig     `json:"image" yaml:"image"`
	Store     StoreConfig     `json:"store" yaml:"store"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level is "info" (default), "debug", "trace", "warn" or "error".
	Level string `json:"level" yaml:"level"`
}

// GeneratorConfig configures dataset synthesis.
type GeneratorConfig struct {
	RulesPath string `json:"rules_path" yaml:"rules_path"`
	Rows      int    `json:"rows" yaml:"rows"`
	// Seed fixes the random stream; 0 seeds from the clock.
	Seed    int64  `json:"seed" yaml:"seed"`
	Workers int    `json:"workers" yaml:"workers"`
	Output  string `json:"output" yaml:"output"`
}

// TrainingConfig configures classifier training.
type TrainingConfig struct {
	DatasetPath string          `json:"dataset_path" yaml:"dataset_path"`
	ModelPath   string          `json:"model_path" yaml:"model_path"`
	TestRatio   float64         `json:"test_ratio" yaml:"test_ratio"`
	Folds       int             `json:"folds" yaml:"folds"`
	Jobs        int             `json:"jobs" yaml:"jobs"`
	Seed        int64           `json:"seed" yaml:"seed"`
	Search      bool            `json:"search" yaml:"search"`
	ClassWeight string          `json:"class_weight" yaml:"class_weight"`
	Grid        model.ParamGrid `json:"grid" yaml:"grid"`
	// Forest is used when Search is off.
	Forest ForestConfig `json:"forest" yaml:"forest"`
}

// ForestConfig is a single forest configuration.
type ForestConfig struct {
	NEstimators     int    `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        int    `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split" yaml:"min_samples_split"`
	MaxFeatures     string `json:"max_features" yaml:"max_features"`
}

// Params converts f to model.Params.
func (f ForestConfig) Params() model.Params {
	return model.Params{
		NEstimators:     f.NEstimators,
		MaxDepth:        f.MaxDepth,
		MinSamplesSplit: f.MinSamplesSplit,
		MaxFeatures:     f.MaxFeatures,
	}
}

// ServerConfig configures the prediction service.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr"`
	StaticDir       string        `json:"static_dir" yaml:"static_dir"`
	AllowedOrigins  []string      `json:"allowed_origins" yaml:"allowed_origins"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ImageConfig configures the text-to-image provider.
type ImageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url" yaml:"url"`
	// APIKey supports ${VAR} syntax for env vars.
	APIKey       string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	StylePreset  string        `json:"style_preset" yaml:"style_preset"`
	Width        int           `json:"width" yaml:"width"`
	Height       int           `json:"height" yaml:"height"`
	Steps        int           `json:"steps" yaml:"steps"`
	CfgScale     float64       `json:"cfg_scale" yaml:"cfg_scale"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	Placeholders int           `json:"placeholders" yaml:"placeholders"`
}

// RedactedAPIKey returns the API key with most characters masked.
// Shows first 4 and last 4 characters. Returns "" for empty keys and
// "(set)" for keys shorter than 12 chars.
func (c ImageConfig) RedactedAPIKey() string {
	if c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) < 12 {
		return "(set)"
	}
	return c.APIKey[:4] + "..." + c.APIKey[len(c.APIKey)-4:]
}

// String implements fmt.Stringer to prevent accidental API key logging.
func (c ImageConfig) String() string {
	return fmt.Sprintf("ImageConfig{Enabled:%t, URL:%s, APIKey:%s, Style:%s, Size:%dx%d}",
		c.Enabled, c.URL, c.RedactedAPIKey(), c.StylePreset, c.Width, c.Height)
}

// StoreConfig configures the SQLite run store.
type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Generator: GeneratorConfig{
			RulesPath: "configs/mochi_rules.yaml",
			Rows:      500,
			Workers:   1,
			Output:    "mochi_dataset.csv",
		},
		Training: TrainingConfig{
			DatasetPath: "mochi_dataset.csv",
			ModelPath:   "mochi_model.gob",
			TestRatio:   0.3,
			Folds:       5,
			Seed:        42,
			ClassWeight: model.ClassWeightBalanced,
			Grid:        model.DefaultParamGrid(),
			Forest: ForestConfig{
				NEstimators:     100,
				MinSamplesSplit: 2,
				MaxFeatures:     model.MaxFeaturesSqrt,
			},
		},
		Server: ServerConfig{
			Addr:            ":5000",
			StaticDir:       "static",
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    90 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Image: ImageConfig{
			URL:          "https://api.stability.ai/v1/generation/stable-diffusion-v1-6/text-to-image",
			StylePreset:  "anime",
			Width:        512,
			Height:       512,
			Steps:        30,
			CfgScale:     7,
			Timeout:      60 * time.Second,
			Placeholders: 2,
		},
		Store: StoreConfig{Path: "mochi.db"},
	}
}

// Load loads configuration from path (when non-empty), the .env file in the
// working directory, and environment variables.
// Order: defaults -> config file -> .env -> environment variables
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileCfg
	}

	// .env never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	applyEnvOverrides(cfg)
	resolvePaths(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML or JSON file, chosen by
// extension. Unknown extensions try YAML, then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
				return nil, fmt.Errorf("parse config (tried YAML and JSON): YAML error: %w, JSON error: %v", err, jsonErr)
			}
		}
	}

	// Expand environment variables in API key
	cfg.Image.APIKey = expandEnvVars(cfg.Image.APIKey)
	return cfg, nil
}

// Save writes cfg to path as YAML or JSON, chosen by extension.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the configuration is valid. Every problem is reported.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if !logging.ValidLevel(c.Logging.Level) {
		add("invalid log level: %s (valid: info, debug, trace, warn, error)", c.Logging.Level)
	}
	if c.Generator.Rows < 0 {
		add("generator.rows must be non-negative, got %d", c.Generator.Rows)
	}
	if c.Generator.Workers < 1 {
		add("generator.workers must be at least 1, got %d", c.Generator.Workers)
	}
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		add("training.test_ratio must be between 0 and 1, got %v", c.Training.TestRatio)
	}
	if c.Training.Folds < 2 {
		add("training.folds must be at least 2, got %d", c.Training.Folds)
	}
	if c.Training.Jobs < 0 {
		add("training.jobs must be non-negative, got %d", c.Training.Jobs)
	}
	if c.Training.ClassWeight != "" && c.Training.ClassWeight != model.ClassWeightBalanced {
		add("invalid class_weight: %s (valid: balanced or empty)", c.Training.ClassWeight)
	}
	if c.Training.Search && len(c.Training.Grid.Combinations()) == 0 {
		add("training.grid has no combinations")
	}
	for _, mf := range append(append([]string(nil), c.Training.Grid.MaxFeatures...), c.Training.Forest.MaxFeatures) {
		if _, err := (&model.RandomForest{MaxFeaturesMode: mf}).ResolveMaxFeatures(1); err != nil {
			add("invalid max_features: %s (valid: sqrt, log2, all)", mf)
		}
	}
	if c.Training.Forest.NEstimators < 1 {
		add("training.forest.n_estimators must be positive, got %d", c.Training.Forest.NEstimators)
	}
	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		add("server timeouts must be non-negative")
	}
	if c.Image.Width <= 0 || c.Image.Height <= 0 || c.Image.Width%64 != 0 || c.Image.Height%64 != 0 {
		add("image size must be positive multiples of 64, got %dx%d", c.Image.Width, c.Image.Height)
	}
	if c.Image.Steps < 1 {
		add("image.steps must be positive, got %d", c.Image.Steps)
	}
	if c.Image.CfgScale < 0 || c.Image.CfgScale > 35 {
		add("image.cfg_scale must be between 0 and 35, got %v", c.Image.CfgScale)
	}
	if c.Image.Timeout < 0 {
		add("image.timeout must be non-negative, got %v", c.Image.Timeout)
	}
	if c.Image.Placeholders < 1 {
		add("image.placeholders must be at least 1, got %d", c.Image.Placeholders)
	}
	if c.Image.Enabled && c.Image.APIKey == "" {
		add("image generation is enabled but no API key is set (STABILITY_API_KEY)")
	}
	return errors.Join(errs...)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MOCHI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MOCHI_RULES"); v != "" {
		cfg.Generator.RulesPath = v
	}
	if v := os.Getenv("MOCHI_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generator.Rows = n
		}
	}
	if v := os.Getenv("MOCHI_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Generator.Seed = n
			cfg.Training.Seed = n
		}
	}
	if v := os.Getenv("MOCHI_MODEL_PATH"); v != "" {
		cfg.Training.ModelPath = v
	}
	if v := os.Getenv("MOCHI_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MOCHI_STATIC_DIR"); v != "" {
		cfg.Server.StaticDir = v
	}
	if v := os.Getenv("MOCHI_DB"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("MOCHI_IMAGE_ENABLED"); v != "" {
		cfg.Image.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("STABILITY_API_KEY"); v != "" {
		cfg.Image.APIKey = v
	}
}

// resolvePaths anchors relative paths on WorkDir when one is configured.
func resolvePaths(cfg *Config) {
	if cfg.WorkDir == "" {
		return
	}
	if abs, err := filepath.Abs(cfg.WorkDir); err == nil {
		cfg.WorkDir = abs
	}
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(cfg.WorkDir, p)
	}
	cfg.Generator.RulesPath = resolve(cfg.Generator.RulesPath)
	cfg.Generator.Output = resolve(cfg.Generator.Output)
	cfg.Training.DatasetPath = resolve(cfg.Training.DatasetPath)
	cfg.Training.ModelPath = resolve(cfg.Training.ModelPath)
	cfg.Server.StaticDir = resolve(cfg.Server.StaticDir)
	cfg.Store.Path = resolve(cfg.Store.Path)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
