// Package config loads runtime settings from a .env file, an optional YAML
// file and the process environment, in that order of increasing priority.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/athapong/aio-osint/pkg/graph/layout"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration
type Config struct {
	LogLevel        string       `yaml:"log_level"`
	InvestigationID string       `yaml:"investigation_id"`
	FindingsPath    string       `yaml:"findings_path"`
	GraphDir        string       `yaml:"graph_dir"`
	MetricsAddr     string       `yaml:"metrics_addr"`
	Layout          LayoutConfig `yaml:"layout"`
	Neo4j           Neo4jConfig  `yaml:"neo4j"`
}

// LayoutConfig configures placement and the simulator
type LayoutConfig struct {
	Strategy string         `yaml:"strategy"`
	TickRate int            `yaml:"tick_rate"`
	Seed     int64          `yaml:"seed"`
	Canvas   layout.Canvas  `yaml:"canvas"`
	Physics  layout.Physics `yaml:"physics"`
}

// Neo4jConfig configures the optional Neo4j graph store
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Enabled reports whether a Neo4j URI is configured
func (c Neo4jConfig) Enabled() bool {
	return c.URI != ""
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		InvestigationID: "default",
		GraphDir:        "graphs",
		Layout: LayoutConfig{
			Strategy: string(layout.StrategyForce),
			TickRate: 60,
			Canvas:   layout.DefaultCanvas(),
			Physics:  layout.DefaultPhysics(),
		},
	}
}

// Load builds the configuration. A missing env file only logs a warning;
// a yamlPath that is set but unreadable is an error.
func Load(envFile, yamlPath string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logrus.WithError(err).WithField("env_file", envFile).Warn("Could not load env file")
		}
	}

	cfg := Default()
	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", yamlPath)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", yamlPath)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, errors.Wrap(err, "failed to apply environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"OSINT_LOG_LEVEL":        &c.LogLevel,
		"OSINT_INVESTIGATION_ID": &c.InvestigationID,
		"OSINT_FINDINGS_PATH":    &c.FindingsPath,
		"OSINT_GRAPH_DIR":        &c.GraphDir,
		"OSINT_METRICS_ADDR":     &c.MetricsAddr,
		"OSINT_LAYOUT":           &c.Layout.Strategy,
		"NEO4J_URI":              &c.Neo4j.URI,
		"NEO4J_USERNAME":         &c.Neo4j.Username,
		"NEO4J_PASSWORD":         &c.Neo4j.Password,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	floats := map[string]*float64{
		"OSINT_CANVAS_WIDTH":  &c.Layout.Canvas.Width,
		"OSINT_CANVAS_HEIGHT": &c.Layout.Canvas.Height,
		"OSINT_MAX_SPEED":     &c.Layout.Physics.MaxSpeed,
		"OSINT_DAMPING":       &c.Layout.Physics.Damping,
	}
	for key, dst := range floats {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", key)
		}
		*dst = f
	}

	if v, ok := lookup("OSINT_TICK_RATE"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrap(err, "invalid OSINT_TICK_RATE")
		}
		c.Layout.TickRate = n
	}
	if v, ok := lookup("OSINT_SEED"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.Wrap(err, "invalid OSINT_SEED")
		}
		c.Layout.Seed = n
	}
	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	if _, err := layout.ParseStrategy(c.Layout.Strategy); err != nil {
		return err
	}
	if c.Layout.TickRate <= 0 {
		return errors.Errorf("tick rate must be positive, got %d", c.Layout.TickRate)
	}
	if c.Layout.Canvas.Width <= 0 || c.Layout.Canvas.Height <= 0 {
		return errors.Errorf("canvas must have positive size, got %vx%v", c.Layout.Canvas.Width, c.Layout.Canvas.Height)
	}
	if d := c.Layout.Physics.Damping; d <= 0 || d > 1 {
		return errors.Errorf("damping must be in (0,1], got %v", d)
	}
	return nil
}

// Strategy returns the parsed layout strategy
func (c *Config) Strategy() layout.Strategy {
	s, _ := layout.ParseStrategy(c.Layout.Strategy)
	return s
}

// TickInterval converts the tick rate into a ticker period
func (c *Config) TickInterval() time.Duration {
	if c.Layout.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.Layout.TickRate)
}

// SimulatorOptions returns the simulator options implied by the layout settings
func (c *Config) SimulatorOptions() []layout.Option {
	opts := []layout.Option{
		layout.WithCanvas(c.Layout.Canvas),
		layout.WithPhysics(c.Layout.Physics),
	}
	if c.Layout.Seed != 0 {
		opts = append(opts, layout.WithSeed(c.Layout.Seed))
	}
	return opts
}
