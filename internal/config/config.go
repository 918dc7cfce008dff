// Package config loads boardmirror settings from defaults, config files,
// environment variables and command-line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/boardmirror/internal/automation"
	"github.com/HendryAvila/boardmirror/internal/remote"
)

var (
	// ErrInvalid marks a config that failed parsing or validation.
	ErrInvalid = errors.New("config: invalid")

	// ErrFileNotFound is returned when an explicit --config file is missing.
	ErrFileNotFound = errors.New("config: file not found")
)

// Environment variables read by Load.
const (
	EnvToken     = "BOARDMIRROR_TOKEN"
	EnvAccountID = "BOARDMIRROR_ACCOUNT_ID"
	EnvBaseURL   = "BOARDMIRROR_BASE_URL"
	EnvDataDir   = "BOARDMIRROR_DATA_DIR"
)

// Config holds all configuration options.
type Config struct {
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	AccountID string `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	Token     string `json:"token,omitempty" yaml:"token,omitempty"`
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	DataDir   string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// Remote client tuning.
	RateLimit      float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Burst          int     `json:"burst,omitempty" yaml:"burst,omitempty"`
	RetryAttempts  int     `json:"retry_attempts,omitempty" yaml:"retry_attempts,omitempty"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`

	// Index build tuning.
	BuildConcurrency int `json:"build_concurrency,omitempty" yaml:"build_concurrency,omitempty"`
	ProbeConcurrency int `json:"probe_concurrency,omitempty" yaml:"probe_concurrency,omitempty"`

	// Workflow defaults.
	AssignRules  []automation.Rule `json:"assign_rules,omitempty" yaml:"assign_rules,omitempty"`
	OverdueDays  int               `json:"overdue_days,omitempty" yaml:"overdue_days,omitempty"`
	MaxCards     int               `json:"max_cards,omitempty" yaml:"max_cards,omitempty"`
	UrgentMarker string            `json:"urgent_marker,omitempty" yaml:"urgent_marker,omitempty"`
	LeadRole     string            `json:"lead_role,omitempty" yaml:"lead_role,omitempty"`

	// Sources lists the config files that were loaded, in order.
	Sources []string `json:"-" yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		BaseURL:          "https://3.basecampapi.com",
		UserAgent:        "boardmirror",
		DataDir:          filepath.Join(home, ".boardmirror"),
		LogLevel:         "info",
		RateLimit:        5,
		Burst:            5,
		RetryAttempts:    3,
		TimeoutSeconds:   30,
		BuildConcurrency: 4,
		ProbeConcurrency: 8,
		OverdueDays:      automation.DefaultOverdueDays,
		MaxCards:         automation.DefaultMaxCards,
		UrgentMarker:     automation.DefaultUrgentMarker,
		LeadRole:         automation.DefaultLeadRole,
	}
}

// Overrides are command-line values; zero values leave the config alone.
type Overrides struct {
	AccountID string
	Token     string
	BaseURL   string
	DataDir   string
	LogLevel  string
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	ConfigPath string            // --config flag value
	Env        map[string]string // environment variables
	Overrides  Overrides
}

// Load resolves configuration with the following precedence (highest wins):
//  1. Defaults
//  2. Global config (~/.config/boardmirror/config.json, or .yaml)
//  3. Explicit config file via ConfigPath
//  4. Environment variables
//  5. Command-line overrides
func Load(in LoadInput) (Config, error) {
	cfg := Default()

	if path := globalConfigPath(in.Env); path != "" {
		fileCfg, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}
		if loaded {
			cfg = merge(cfg, fileCfg)
			cfg.Sources = append(cfg.Sources, path)
		}
	}

	if in.ConfigPath != "" {
		fileCfg, _, err := loadFile(in.ConfigPath, true)
		if err != nil {
			return Config{}, err
		}
		cfg = merge(cfg, fileCfg)
		cfg.Sources = append(cfg.Sources, in.ConfigPath)
	}

	cfg = merge(cfg, Config{
		Token:     in.Env[EnvToken],
		AccountID: in.Env[EnvAccountID],
		BaseURL:   in.Env[EnvBaseURL],
		DataDir:   in.Env[EnvDataDir],
	})
	cfg = merge(cfg, Config{
		Token:     in.Overrides.Token,
		AccountID: in.Overrides.AccountID,
		BaseURL:   in.Overrides.BaseURL,
		DataDir:   in.Overrides.DataDir,
		LogLevel:  in.Overrides.LogLevel,
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvMap converts os.Environ-style entries into a map.
func EnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}
	return env
}

// globalConfigPath returns the first existing global config file. Uses
// $XDG_CONFIG_HOME/boardmirror when set, otherwise ~/.config/boardmirror.
func globalConfigPath(env map[string]string) string {
	var dir string
	switch {
	case env["XDG_CONFIG_HOME"] != "":
		dir = filepath.Join(env["XDG_CONFIG_HOME"], "boardmirror")
	case env["HOME"] != "":
		dir = filepath.Join(env["HOME"], ".config", "boardmirror")
	default:
		return ""
	}
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadFile reads a JSONC or YAML config file. A missing optional file is
// not an error.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := parse(path, data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}
	return cfg, true, nil
}

func parse(path string, data []byte) (Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return Config{}, fmt.Errorf("invalid JSONC: %w", err)
		}
		if err := json.Unmarshal(standardized, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid JSON: %w", err)
		}
	}
	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.BaseURL != "" {
		base.BaseURL = overlay.BaseURL
	}
	if overlay.AccountID != "" {
		base.AccountID = overlay.AccountID
	}
	if overlay.Token != "" {
		base.Token = overlay.Token
	}
	if overlay.UserAgent != "" {
		base.UserAgent = overlay.UserAgent
	}
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	if overlay.RateLimit != 0 {
		base.RateLimit = overlay.RateLimit
	}
	if overlay.Burst != 0 {
		base.Burst = overlay.Burst
	}
	if overlay.RetryAttempts != 0 {
		base.RetryAttempts = overlay.RetryAttempts
	}
	if overlay.TimeoutSeconds != 0 {
		base.TimeoutSeconds = overlay.TimeoutSeconds
	}
	if overlay.BuildConcurrency != 0 {
		base.BuildConcurrency = overlay.BuildConcurrency
	}
	if overlay.ProbeConcurrency != 0 {
		base.ProbeConcurrency = overlay.ProbeConcurrency
	}
	if len(overlay.AssignRules) > 0 {
		base.AssignRules = overlay.AssignRules
	}
	if overlay.OverdueDays != 0 {
		base.OverdueDays = overlay.OverdueDays
	}
	if overlay.MaxCards != 0 {
		base.MaxCards = overlay.MaxCards
	}
	if overlay.UrgentMarker != "" {
		base.UrgentMarker = overlay.UrgentMarker
	}
	if overlay.LeadRole != "" {
		base.LeadRole = overlay.LeadRole
	}
	return base
}

// Validate checks value ranges. Remote credentials are checked separately
// by RequireRemote because read-only commands work without them.
func (c Config) Validate() error {
	var problems []string
	if c.DataDir == "" {
		problems = append(problems, "data_dir is empty")
	}
	if c.RateLimit < 0 {
		problems = append(problems, "rate_limit must not be negative")
	}
	if c.Burst < 0 || c.RetryAttempts < 0 || c.TimeoutSeconds < 0 {
		problems = append(problems, "burst, retry_attempts and timeout_seconds must not be negative")
	}
	if c.BuildConcurrency < 1 || c.ProbeConcurrency < 1 {
		problems = append(problems, "build_concurrency and probe_concurrency must be at least 1")
	}
	if c.OverdueDays < 1 {
		problems = append(problems, "overdue_days must be at least 1")
	}
	if c.MaxCards < 2 {
		problems = append(problems, "max_cards must be at least 2")
	}
	for i, r := range c.AssignRules {
		if strings.TrimSpace(r.Keyword) == "" || strings.TrimSpace(r.Role) == "" {
			problems = append(problems, "assign_rules["+strconv.Itoa(i)+"] needs keyword and role")
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// RequireRemote reports whether the remote credentials are present.
func (c Config) RequireRemote() error {
	var missing []string
	if c.AccountID == "" {
		missing = append(missing, "account id ("+EnvAccountID+")")
	}
	if c.Token == "" {
		missing = append(missing, "token ("+EnvToken+")")
	}
	if c.BaseURL == "" {
		missing = append(missing, "base url ("+EnvBaseURL+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// HTTP returns the remote client settings.
func (c Config) HTTP() remote.HTTPConfig {
	return remote.HTTPConfig{
		BaseURL:       c.BaseURL,
		AccountID:     c.AccountID,
		Token:         c.Token,
		UserAgent:     c.UserAgent,
		RateLimit:     c.RateLimit,
		Burst:         c.Burst,
		RetryAttempts: c.RetryAttempts,
		Timeout:       time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

// WorkflowOptions returns automation options seeded from the config.
func (c Config) WorkflowOptions() automation.Options {
	opts := automation.DefaultOptions()
	opts.Rules = append([]automation.Rule(nil), c.AssignRules...)
	opts.OverdueDays = c.OverdueDays
	opts.MaxCards = c.MaxCards
	opts.UrgentMarker = c.UrgentMarker
	opts.LeadRole = c.LeadRole
	return opts
}
