// Package config holds beekeeper's run settings. Values come from
// built-in defaults, an optional settings file, and BEEKEEPER_
// environment variables, in increasing precedence.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"digital.vasic.beekeeper/pkg/check"
	"digital.vasic.beekeeper/pkg/reference"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BEEKEEPER"

// Settings is the full run configuration.
type Settings struct {
	Loop       LoopSettings                   `mapstructure:"loop"`
	HTTP       HTTPSettings                   `mapstructure:"http"`
	Slack      SlackSettings                  `mapstructure:"slack"`
	Paths      PathSettings                   `mapstructure:"paths"`
	Log        LogSettings                    `mapstructure:"log"`
	Publishers map[string]reference.Publisher `mapstructure:"publishers"`
}

// LoopSettings tune the validation loop.
type LoopSettings struct {
	ChunkSize     int           `mapstructure:"chunk_size"`
	FailureBudget int           `mapstructure:"failure_budget"`
	PageDelay     time.Duration `mapstructure:"page_delay"`
}

// HTTPSettings tune the catalog client.
type HTTPSettings struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`

	// AuthHeader carries the API key. Older CKAN sites expect
	// X-CKAN-API-Key.
	AuthHeader string `mapstructure:"auth_header"`
}

// SlackSettings shape outgoing alerts.
type SlackSettings struct {
	Channel  string `mapstructure:"channel"`
	Username string `mapstructure:"username"`
	Icon     string `mapstructure:"icon"`
}

// PathSettings locate the files a run reads and writes.
type PathSettings struct {
	// Checks is the checks file or directory. Empty means the
	// embedded defaults.
	Checks string `mapstructure:"checks"`

	Archive         string `mapstructure:"archive"`
	History         string `mapstructure:"history"`
	Lock            string `mapstructure:"lock"`
	ReferenceDir    string `mapstructure:"reference_dir"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

// LogSettings configure the optional JSON log file.
type LogSettings struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// SetDefaults configures default values for all settings.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("loop.chunk_size", 5000)
	v.SetDefault("loop.failure_budget", 5)
	v.SetDefault("loop.page_delay", "10ms")

	v.SetDefault("http.requests_per_second", 20.0)
	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.user_agent", "beekeeper")
	v.SetDefault("http.auth_header", "Authorization")

	v.SetDefault("slack.channel", "")
	v.SetDefault("slack.username", "beekeeper")
	v.SetDefault("slack.icon", ":bee:")

	v.SetDefault("paths.checks", "")
	v.SetDefault("paths.archive", "last_scan.json")
	v.SetDefault("paths.history", "history.jsonl")
	v.SetDefault("paths.lock", "beekeeper.lock")
	v.SetDefault("paths.reference_dir", "reference")
	v.SetDefault("paths.metrics_textfile", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	// The city's SFTP server publishes most reference files.
	v.SetDefault("publishers.pgh.host", "ftp.pittsburghpa.gov")
	v.SetDefault("publishers.pgh.port", 22)
	v.SetDefault("publishers.pgh.user", "pitt")
	v.SetDefault("publishers.pgh.root", "/pitt")
	v.SetDefault("publishers.pgh.key_file", "")
	v.SetDefault("publishers.pgh.known_hosts", "")
}

// New builds a viper instance with defaults and environment
// binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads settings. An empty path uses defaults and the
// environment only.
func Load(path string) (*Settings, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Mark(
				errors.Wrapf(err, "read settings file %s", path),
				check.ErrConfig,
			)
		}
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates the settings held by v.
func LoadWithViper(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Mark(
			errors.Wrap(err, "unmarshal settings"), check.ErrConfig,
		)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the run cannot work with.
func (s *Settings) Validate() error {
	var problems []string
	if s.Loop.ChunkSize <= 0 {
		problems = append(problems, "loop.chunk_size must be positive")
	}
	if s.Loop.FailureBudget <= 0 {
		problems = append(problems, "loop.failure_budget must be positive")
	}
	if s.Loop.PageDelay < 0 {
		problems = append(problems, "loop.page_delay must not be negative")
	}
	if s.HTTP.RequestsPerSecond < 0 {
		problems = append(problems, "http.requests_per_second must not be negative")
	}
	if s.HTTP.Timeout <= 0 {
		problems = append(problems, "http.timeout must be positive")
	}
	if strings.TrimSpace(s.HTTP.AuthHeader) == "" {
		problems = append(problems, "http.auth_header must not be empty")
	}
	if s.Paths.Archive == "" || s.Paths.Lock == "" {
		problems = append(problems, "paths.archive and paths.lock are required")
	}
	if len(problems) > 0 {
		return errors.Mark(
			errors.Newf("invalid settings: %s", strings.Join(problems, "; ")),
			check.ErrConfig,
		)
	}
	return nil
}
