package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FallbackURL is the source locator that selects the static-image
// fallback acquisition variant instead of a live transcode.
const FallbackURL = "fallback"

// StreamConfig describes a single configured video stream.
// Loaded once at startup and never mutated.
type StreamConfig struct {
	ID         string  `yaml:"id"`
	URL        string  `yaml:"url"`
	Location   string  `yaml:"location"`
	AnalysisHz float64 `yaml:"analysis_hz"`
}

// Config is the top-level service configuration.
type Config struct {
	Streams         []StreamConfig `yaml:"streams"`
	FramesDir       string         `yaml:"frames_dir"`
	AccidentLog     string         `yaml:"accident_log"`
	Database        string         `yaml:"database"`
	AnalysisWorkers int            `yaml:"analysis_workers"`
	FallbackSources []string       `yaml:"fallback_sources"`
}

// Load reads and validates the service configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.FramesDir == "" {
		c.FramesDir = "frames"
	}
	if c.AccidentLog == "" {
		c.AccidentLog = "logs/accidents.log"
	}
	if c.Database == "" {
		c.Database = "trafficwatch.db"
	}
	if c.AnalysisWorkers < 2 {
		c.AnalysisWorkers = 2
	}
	for i := range c.Streams {
		if c.Streams[i].AnalysisHz <= 0 {
			c.Streams[i].AnalysisHz = 1
		}
	}
}

func (c *Config) validate() error {
	if len(c.Streams) == 0 {
		return fmt.Errorf("config defines no streams")
	}
	seen := make(map[string]bool, len(c.Streams))
	for _, s := range c.Streams {
		if s.ID == "" {
			return fmt.Errorf("stream with empty id")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate stream id %q", s.ID)
		}
		seen[s.ID] = true
		if s.URL == "" {
			return fmt.Errorf("stream %s: empty url", s.ID)
		}
		if s.Location == "" {
			return fmt.Errorf("stream %s: empty location", s.ID)
		}
	}
	return nil
}

// UseFallback reports whether this stream is configured for the
// static-image fallback source.
func (s StreamConfig) UseFallback() bool {
	return s.URL == FallbackURL
}

// AnalysisInterval returns the period between analysis ticks.
func (s StreamConfig) AnalysisInterval() time.Duration {
	return time.Duration(float64(time.Second) / s.AnalysisHz)
}
