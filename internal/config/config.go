package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names recognised by the pipeline. Flags take
// precedence over these, and these take precedence over the config file.
const (
	EnvJobs          = "RATOM_JOBS"
	EnvChannelDepth  = "RATOM_CHANNEL_DEPTH"
	EnvModel         = "RATOM_MODEL"
	EnvBodyMaxLength = "RATOM_BODY_MAX_LENGTH"
)

const (
	// DefaultModel is the recogniser model loaded when none is requested.
	DefaultModel = "en-core-web-sm"

	// DefaultChannelDepthPerWorker sizes the writer intake channel as a
	// multiple of the worker count. The bound is kept small: the intake
	// channel is the pipeline's only backpressure mechanism.
	DefaultChannelDepthPerWorker = 4

	// DefaultBodyMaxLength caps the text handed to the recogniser.
	DefaultBodyMaxLength = 1_000_000
)

// DefaultJobs is the default worker count.
var DefaultJobs = runtime.NumCPU()

// Config holds the settings for one pipeline invocation.
type Config struct {
	// Source is the root path to enumerate: a container file or a directory.
	Source string `yaml:"-"`
	// OutputPath is the destination SQLite file.
	OutputPath string `yaml:"output"`
	// Jobs is the worker pool size. Must be >= 1.
	Jobs int `yaml:"jobs"`
	// ExtractEntities enables the recognition step. When false the pipeline
	// still records file/message/attachment rows ("report" mode).
	ExtractEntities bool `yaml:"-"`
	// IncludeMessageContents stores message bodies and headers on each row.
	IncludeMessageContents bool `yaml:"include_message_contents"`
	// Model names the recogniser model to load.
	Model string `yaml:"model"`
	// Progress enables the interactive progress monitor.
	Progress bool `yaml:"progress"`
	// ChannelDepth bounds the writer intake channel. Zero means
	// Jobs * DefaultChannelDepthPerWorker.
	ChannelDepth int `yaml:"channel_depth"`
	// BodyMaxLength truncates message bodies before recognition.
	BodyMaxLength int `yaml:"body_max_length"`
}

// Default returns a config populated with defaults only.
func Default() Config {
	return Config{
		Jobs:          DefaultJobs,
		Model:         DefaultModel,
		BodyMaxLength: DefaultBodyMaxLength,
	}
}

// Load builds a config from defaults, an optional YAML file and the
// environment, in that order. A missing file is not an error; a malformed
// one is.
func Load(file string) (Config, error) {
	// A local .env is a development convenience, never required.
	_ = godotenv.Load()

	cfg := Default()

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config file %s: %w", file, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", file, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	for _, v := range []struct {
		name string
		dst  *int
	}{
		{EnvJobs, &c.Jobs},
		{EnvChannelDepth, &c.ChannelDepth},
		{EnvBodyMaxLength, &c.BodyMaxLength},
	} {
		s := os.Getenv(v.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", v.name, s, err)
		}
		*v.dst = n
	}
	if s := os.Getenv(EnvModel); s != "" {
		c.Model = s
	}
	return nil
}

// IntakeDepth returns the effective bound of the writer intake channel.
func (c Config) IntakeDepth() int {
	if c.ChannelDepth > 0 {
		return c.ChannelDepth
	}
	jobs := c.Jobs
	if jobs < 1 {
		jobs = 1
	}
	return jobs * DefaultChannelDepthPerWorker
}

// Validate rejects configurations the pipeline must not start with.
func (c Config) Validate() error {
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be >= 1, got %d", c.Jobs)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if c.Source == "" {
		return fmt.Errorf("source path is required")
	}
	return nil
}
