package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is everything peiractl needs to run a session. Values resolve in
// precedence order: command flags over environment over config file over
// the built-in defaults. File and .env loading live here; flag overrides
// stay with the command that owns the flag.
type Config struct {
	StoreKind    string `env:"PEIRA_STORE" json:"store"`
	DBPath       string `env:"PEIRA_DB_PATH" json:"db_path"`
	ArtifactsDir string `env:"PEIRA_ARTIFACTS_DIR" json:"artifacts_dir"`
	Paradigm     string `env:"PEIRA_PARADIGM" json:"paradigm"`
	RigProfile   string `env:"PEIRA_RIG" json:"rig"`
	Seed         int64  `env:"PEIRA_SEED" json:"seed"`
	LogLevel     string `env:"PEIRA_LOG_LEVEL" json:"log_level"`

	Jitter JitterDefaults `envPrefix:"PEIRA_JITTER_" json:"jitter"`
	Rating RatingDefaults `envPrefix:"PEIRA_RATING_" json:"rating"`
}

// JitterDefaults seeds jitter generation. Mean, Min and Max stay pointers
// because the samplers substitute their own defaults for absent values and
// treat an absent Max as uncapped.
type JitterDefaults struct {
	Distribution string   `env:"DISTRIBUTION" json:"distribution"`
	Mean         *float64 `env:"MEAN" json:"mean,omitempty"`
	Min          *float64 `env:"MIN" json:"min,omitempty"`
	Max          *float64 `env:"MAX" json:"max,omitempty"`
	Discrete     bool     `env:"DISCRETE" json:"discrete"`
	Tolerance    float64  `env:"TOLERANCE" json:"tolerance"`
	MaxAttempts  int      `env:"MAX_ATTEMPTS" json:"max_attempts"`
}

type RatingDefaults struct {
	Low            int      `env:"LOW" json:"low"`
	High           int      `env:"HIGH" json:"high"`
	Precision      int      `env:"PRECISION" json:"precision"`
	BoundMin       *float64 `env:"BOUND_MIN" json:"bound_min,omitempty"`
	BoundMax       *float64 `env:"BOUND_MAX" json:"bound_max,omitempty"`
	MinTimeSeconds float64  `env:"MIN_TIME_SECONDS" json:"min_time_seconds"`
	MaxTimeSeconds float64  `env:"MAX_TIME_SECONDS" json:"max_time_seconds"`
	AcceptKeys     []string `env:"ACCEPT_KEYS" json:"accept_keys,omitempty"`
	SkipKeys       []string `env:"SKIP_KEYS" json:"skip_keys,omitempty"`
	SingleClick    bool     `env:"SINGLE_CLICK" json:"single_click"`
}

func Default() Config {
	return Config{
		StoreKind:    "memory",
		DBPath:       "peira.db",
		ArtifactsDir: "artifacts",
		Paradigm:     "rating",
		LogLevel:     "info",
		Jitter: JitterDefaults{
			Distribution: "geometric",
			Tolerance:    0.05,
			MaxAttempts:  20000,
		},
		Rating: RatingDefaults{
			Low:            1,
			High:           7,
			Precision:      1,
			MinTimeSeconds: 0.4,
		},
	}
}

// Load resolves the config from defaults, then the JSON file when path is
// non-empty, then the environment (a .env file is folded in best effort).
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("env.Parse: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// SlogLevel maps the configured level name onto a slog level, defaulting
// to info for anything unrecognized.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := asString(raw["store"]); ok {
		cfg.StoreKind = v
	}
	if v, ok := asString(raw["db_path"]); ok {
		cfg.DBPath = v
	}
	if v, ok := asString(raw["artifacts_dir"]); ok {
		cfg.ArtifactsDir = v
	}
	if v, ok := asString(raw["paradigm"]); ok {
		cfg.Paradigm = v
	}
	if v, ok := asString(raw["rig"]); ok {
		cfg.RigProfile = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		cfg.Seed = v
	}
	if v, ok := asString(raw["log_level"]); ok {
		cfg.LogLevel = v
	}

	if jitterMap, ok := raw["jitter"].(map[string]any); ok {
		if v, ok := asString(jitterMap["distribution"]); ok {
			cfg.Jitter.Distribution = v
		}
		if v, ok := asFloat64(jitterMap["mean"]); ok {
			value := v
			cfg.Jitter.Mean = &value
		}
		if v, ok := asFloat64(jitterMap["min"]); ok {
			value := v
			cfg.Jitter.Min = &value
		}
		if v, ok := asFloat64(jitterMap["max"]); ok {
			value := v
			cfg.Jitter.Max = &value
		}
		if v, ok := asBool(jitterMap["discrete"]); ok {
			cfg.Jitter.Discrete = v
		}
		if v, ok := asFloat64(jitterMap["tolerance"]); ok {
			cfg.Jitter.Tolerance = v
		}
		if v, ok := asInt(jitterMap["max_attempts"]); ok {
			cfg.Jitter.MaxAttempts = v
		}
	}

	if ratingMap, ok := raw["rating"].(map[string]any); ok {
		if v, ok := asInt(ratingMap["low"]); ok {
			cfg.Rating.Low = v
		}
		if v, ok := asInt(ratingMap["high"]); ok {
			cfg.Rating.High = v
		}
		if v, ok := asInt(ratingMap["precision"]); ok {
			cfg.Rating.Precision = v
		}
		if v, ok := asFloat64(ratingMap["bound_min"]); ok {
			value := v
			cfg.Rating.BoundMin = &value
		}
		if v, ok := asFloat64(ratingMap["bound_max"]); ok {
			value := v
			cfg.Rating.BoundMax = &value
		}
		if v, ok := asFloat64(ratingMap["min_time_seconds"]); ok {
			cfg.Rating.MinTimeSeconds = v
		}
		if v, ok := asFloat64(ratingMap["max_time_seconds"]); ok {
			cfg.Rating.MaxTimeSeconds = v
		}
		if v, ok := asStringSlice(ratingMap["accept_keys"]); ok {
			cfg.Rating.AcceptKeys = v
		}
		if v, ok := asStringSlice(ratingMap["skip_keys"]); ok {
			cfg.Rating.SkipKeys = v
		}
		if v, ok := asBool(ratingMap["single_click"]); ok {
			cfg.Rating.SingleClick = v
		}
	}

	return nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func asStringSlice(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		values = append(values, s)
	}
	return values, true
}
