package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for configuration fields.
const (
	DefaultWorkspace       = "."
	DefaultAlembicBin      = "alembic"
	DefaultConfigFile      = "alembic.ini"
	DefaultScriptDir       = "migrations"
	DefaultMessage         = "session schema delta"
	DefaultMetadataAttr    = "Base.metadata"
	DefaultTargetPGVersion = 14
	DefaultLogFormat       = "text"
)

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	Workspace       string
	AlembicBin      string
	ConfigFile      string
	ScriptDir       string
	Message         string
	MetadataAttr    string
	StageTimeout    time.Duration
	Analyze         bool
	TargetPGVersion int
	LogFormat       string
	Verbose         bool
}

// yamlConfig is the raw YAML file representation with string durations.
// Analyze is a pointer so an explicit "analyze: false" can be told apart from absence.
type yamlConfig struct {
	Workspace       string `yaml:"workspace"`
	AlembicBin      string `yaml:"alembic_bin"`
	ConfigFile      string `yaml:"config_file"`
	ScriptDir       string `yaml:"script_dir"`
	Message         string `yaml:"message"`
	MetadataAttr    string `yaml:"metadata_attr"`
	StageTimeout    string `yaml:"stage_timeout"`
	Analyze         *bool  `yaml:"analyze"`
	TargetPGVersion int    `yaml:"target_pg_version"`
	LogFormat       string `yaml:"log_format"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		Workspace:       DefaultWorkspace,
		AlembicBin:      DefaultAlembicBin,
		ConfigFile:      DefaultConfigFile,
		ScriptDir:       DefaultScriptDir,
		Message:         DefaultMessage,
		MetadataAttr:    DefaultMetadataAttr,
		Analyze:         true,
		TargetPGVersion: DefaultTargetPGVersion,
		LogFormat:       DefaultLogFormat,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	setString(&cfg.Workspace, raw.Workspace)
	setString(&cfg.AlembicBin, raw.AlembicBin)
	setString(&cfg.ConfigFile, raw.ConfigFile)
	setString(&cfg.ScriptDir, raw.ScriptDir)
	setString(&cfg.Message, raw.Message)
	setString(&cfg.MetadataAttr, raw.MetadataAttr)
	setString(&cfg.LogFormat, raw.LogFormat)

	if raw.StageTimeout != "" {
		d, err := time.ParseDuration(raw.StageTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing stage_timeout %q: %w", raw.StageTimeout, err)
		}

		cfg.StageTimeout = d
	}

	if raw.Analyze != nil {
		cfg.Analyze = *raw.Analyze
	}

	if raw.TargetPGVersion != 0 {
		cfg.TargetPGVersion = raw.TargetPGVersion
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field values that cannot be fixed up with defaults.
func (c *Config) Validate() error {
	if c.StageTimeout < 0 {
		return fmt.Errorf("stage_timeout must not be negative, got %s", c.StageTimeout)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}

	return nil
}

// MergeEnv overrides config fields from SESSION_MIGRATE_* environment variables.
func MergeEnv(cfg *Config) {
	if v := os.Getenv("SESSION_MIGRATE_WORKSPACE"); v != "" {
		cfg.Workspace = v
	}

	if v := os.Getenv("SESSION_MIGRATE_ALEMBIC_BIN"); v != "" {
		cfg.AlembicBin = v
	}

	if v := os.Getenv("SESSION_MIGRATE_CONFIG_FILE"); v != "" {
		cfg.ConfigFile = v
	}

	if v := os.Getenv("SESSION_MIGRATE_SCRIPT_DIR"); v != "" {
		cfg.ScriptDir = v
	}

	if v := os.Getenv("SESSION_MIGRATE_MESSAGE"); v != "" {
		cfg.Message = v
	}

	if v := os.Getenv("SESSION_MIGRATE_METADATA_ATTR"); v != "" {
		cfg.MetadataAttr = v
	}

	if v := os.Getenv("SESSION_MIGRATE_TARGET_PG_VERSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TargetPGVersion = n
		}
	}

	if v := os.Getenv("SESSION_MIGRATE_STAGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.StageTimeout = d
		}
	}

	if v := os.Getenv("SESSION_MIGRATE_ANALYZE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Analyze = b
		}
	}

	if v := os.Getenv("SESSION_MIGRATE_LOG_FORMAT"); v == "text" || v == "json" {
		cfg.LogFormat = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
