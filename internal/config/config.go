// Package config loads service settings: defaults, then an optional YAML file, then
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"mtspnav/internal/mtsp"
)

type Config struct {
	Port        string       `yaml:"port"`
	DatabaseURL string       `yaml:"databaseUrl"`
	DBMigrate   bool         `yaml:"dbMigrate"`
	RedisURL    string       `yaml:"redisUrl"`
	Router      RouterConfig `yaml:"router"`
	Auth        AuthConfig   `yaml:"auth"`
	Log         LogConfig    `yaml:"log"`
	Solver      Solver       `yaml:"solver"`
	// MaxPoints bounds a single request; the matrix costs N*(N-1) router calls.
	MaxPoints int `yaml:"maxPoints"`
}

type RouterConfig struct {
	Kind      string             `yaml:"kind"` // haversine | osrm
	URL       string             `yaml:"url"`
	QPS       float64            `yaml:"qps"` // 0 disables throttling
	Burst     int                `yaml:"burst"`
	Workers   int                `yaml:"workers"`
	Symmetric bool               `yaml:"symmetric"`
	CacheTTL  time.Duration      `yaml:"cacheTtl"`
	SpeedsKph map[string]float64 `yaml:"speedsKph"`
}

type AuthConfig struct {
	Mode       string `yaml:"mode"` // dev | hmac
	HMACSecret string `yaml:"hmacSecret"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Solver holds the tunables a tenant may override. Field names double as the keys of
// the tenant override map.
type Solver struct {
	Strategy               string `yaml:"strategy" mapstructure:"strategy" json:"strategy"`
	Objective              string `yaml:"objective" mapstructure:"objective" json:"objective"`
	Seed                   int64  `yaml:"seed" mapstructure:"seed" json:"seed"`
	MaxRebalanceIterations int    `yaml:"maxRebalanceIterations" mapstructure:"maxRebalanceIterations" json:"maxRebalanceIterations"`
	TwoOptMaxIterations    int    `yaml:"twoOptMaxIterations" mapstructure:"twoOptMaxIterations" json:"twoOptMaxIterations"`
	TimeBudgetMs           int    `yaml:"timeBudgetMs" mapstructure:"timeBudgetMs" json:"timeBudgetMs"`
	ExactMaxGroup          int    `yaml:"exactMaxGroup" mapstructure:"exactMaxGroup" json:"exactMaxGroup"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:      "8080",
		DBMigrate: true,
		Router: RouterConfig{
			Kind:     "haversine",
			Burst:    1,
			Workers:  16,
			CacheTTL: 24 * time.Hour,
		},
		Auth:      AuthConfig{Mode: "dev"},
		Log:       LogConfig{Level: "info", Format: "text"},
		Solver:    Solver{Strategy: mtsp.StrategyNN2Opt, Objective: string(mtsp.ObjectiveBalanced), Seed: 1},
		MaxPoints: 200,
	}
}

// Load reads defaults, the YAML file at path (if non-empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv loads the file named by MTSP_CONFIG, if any.
func FromEnv() (Config, error) {
	return Load(os.Getenv("MTSP_CONFIG"))
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("PORT", &c.Port)
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("REDIS_URL", &c.RedisURL)
	setString("ROUTER_KIND", &c.Router.Kind)
	setString("ROUTER_URL", &c.Router.URL)
	setString("AUTH_MODE", &c.Auth.Mode)
	setString("AUTH_HMAC_SECRET", &c.Auth.HMACSecret)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)
	if v := os.Getenv("DB_MIGRATE"); v != "" {
		c.DBMigrate = v != "false"
	}
	if v := os.Getenv("ROUTER_QPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ROUTER_QPS: %w", err)
		}
		c.Router.QPS = f
	}
	if v := os.Getenv("MATRIX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MATRIX_WORKERS: %w", err)
		}
		c.Router.Workers = n
	}
	// ROUTER_URL alone selects the osrm router
	if os.Getenv("ROUTER_URL") != "" && os.Getenv("ROUTER_KIND") == "" {
		c.Router.Kind = "osrm"
	}
	return nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Router.Kind {
	case "haversine":
	case "osrm":
		if c.Router.URL == "" {
			errs = append(errs, errors.New("router.url is required for the osrm router"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown router kind %q", c.Router.Kind))
	}
	switch c.Auth.Mode {
	case "dev":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			errs = append(errs, errors.New("auth.hmacSecret is required in hmac mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode %q", c.Auth.Mode))
	}
	if c.Router.QPS < 0 {
		errs = append(errs, errors.New("router.qps must be >= 0"))
	}
	if c.MaxPoints < 2 {
		errs = append(errs, errors.New("maxPoints must be >= 2"))
	}
	if err := c.Solver.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks names and ranges. Zero numeric fields select solver defaults.
func (s Solver) Validate() error {
	if _, err := mtsp.NewStrategy(s.Strategy); err != nil {
		return err
	}
	if _, err := mtsp.ParseObjective(s.Objective); err != nil {
		return err
	}
	if s.MaxRebalanceIterations < 0 || s.TwoOptMaxIterations < 0 || s.TimeBudgetMs < 0 || s.ExactMaxGroup < 0 {
		return fmt.Errorf("%w: solver limits must be >= 0", mtsp.ErrInvalidInput)
	}
	if s.ExactMaxGroup > mtsp.MaxExactGroup {
		return fmt.Errorf("%w: exactMaxGroup must be <= %d", mtsp.ErrInvalidInput, mtsp.MaxExactGroup)
	}
	return nil
}

// Merge overlays a tenant override map (as stored by the admin endpoint) onto s.
// Unknown keys are rejected.
func (s Solver) Merge(overrides map[string]any) (Solver, error) {
	if len(overrides) == 0 {
		return s, nil
	}
	out := s
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return s, err
	}
	if err := dec.Decode(overrides); err != nil {
		return s, fmt.Errorf("%w: solver config: %v", mtsp.ErrInvalidInput, err)
	}
	if err := out.Validate(); err != nil {
		return s, err
	}
	return out, nil
}

// Build turns the settings into a strategy and solver options.
func (s Solver) Build() (mtsp.Strategy, mtsp.Options, error) {
	st, err := mtsp.NewStrategy(s.Strategy)
	if err != nil {
		return nil, mtsp.Options{}, err
	}
	obj, err := mtsp.ParseObjective(s.Objective)
	if err != nil {
		return nil, mtsp.Options{}, err
	}
	return st, mtsp.Options{
		Objective:              obj,
		Seed:                   s.Seed,
		MaxRebalanceIterations: s.MaxRebalanceIterations,
		TwoOptMaxIterations:    s.TwoOptMaxIterations,
		TimeBudget:             time.Duration(s.TimeBudgetMs) * time.Millisecond,
		ExactMaxGroup:          s.ExactMaxGroup,
	}, nil
}

// Speeds converts the configured per-profile speeds, skipping unknown profile names.
func (r RouterConfig) Speeds() map[mtsp.Profile]float64 {
	out := map[mtsp.Profile]float64{}
	for name, kph := range r.SpeedsKph {
		if p, err := mtsp.ParseProfile(name); err == nil && kph > 0 {
			out[p] = kph
		}
	}
	return out
}
