package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/koptimizer/rigwatch/pkg/cost"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

// Config is the top-level configuration for rigwatch.
type Config struct {
	Provider     string        `yaml:"provider" validate:"oneof=vastai static"`
	PollInterval time.Duration `yaml:"pollInterval" validate:"gt=0"`
	Schedule     string        `yaml:"schedule"` // Cron expression, overrides pollInterval when set

	VastAI    VastAIConfig    `yaml:"vastai"`
	Static    StaticConfig    `yaml:"static"`
	Fetch     FetchConfig     `yaml:"fetch"`
	SSH       SSHConfig       `yaml:"ssh"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Report    ReportConfig    `yaml:"report"`
	Outliers  OutliersConfig  `yaml:"outliers"`
	Balance   BalanceConfig   `yaml:"balance"`
	Advisor   AdvisorConfig   `yaml:"advisor"`
	APIServer APIServerConfig `yaml:"apiServer"`
}

type VastAIConfig struct {
	BaseURL           string        `yaml:"baseURL" validate:"required,url"`
	APIKey            string        `yaml:"-"` // VASTAI_API_KEY or apiKeyFile
	APIKeyFile        string        `yaml:"apiKeyFile"`
	MaxAttempts       int           `yaml:"maxAttempts" validate:"min=1,max=10"`
	RetryDelay        time.Duration `yaml:"retryDelay" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
}

type StaticConfig struct {
	Path string `yaml:"path"`
}

type FetchConfig struct {
	Source      string        `yaml:"source" validate:"oneof=ssh file"`
	Concurrency int           `yaml:"concurrency" validate:"min=1,max=256"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	LogDir      string        `yaml:"logDir"` // file source: <logDir>/<instanceID>.log
}

type SSHConfig struct {
	User           string `yaml:"user" validate:"required"`
	PrivateKeyPath string `yaml:"privateKeyPath"`
	Passphrase     string `yaml:"-"` // RIGWATCH_SSH_PASSPHRASE
	KnownHostsPath string `yaml:"knownHostsPath"`
	Command        string `yaml:"command" validate:"required"`
}

type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failureThreshold" validate:"min=1"`
	Window           time.Duration `yaml:"window" validate:"gt=0"`
}

type ReportConfig struct {
	SortColumn string `yaml:"sortColumn"` // header name or zero-based index
	SortOrder  string `yaml:"sortOrder" validate:"oneof=ascending descending asc desc"`
	Console    bool   `yaml:"console"`
	OutputFile string `yaml:"outputFile"` // appended to every cycle when set
}

type OutliersConfig struct {
	Threshold float64 `yaml:"threshold"`
}

type BalanceConfig struct {
	Enabled       bool    `yaml:"enabled"`
	FeeMultiplier float64 `yaml:"feeMultiplier"`
}

type AdvisorConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxOutliers int           `yaml:"maxOutliers"`
}

type APIServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port" validate:"min=1,max=65535"`
}

// EnvOverrides are read from the environment after the config file.
// Credentials are only ever taken from here or from key files.
type EnvOverrides struct {
	Provider      string `env:"RIGWATCH_PROVIDER"`
	VastAIAPIKey  string `env:"VASTAI_API_KEY"`
	SSHKeyPath    string `env:"RIGWATCH_SSH_KEY_PATH"`
	SSHPassphrase string `env:"RIGWATCH_SSH_PASSPHRASE"`
	APIPort       int    `env:"RIGWATCH_API_PORT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:     "vastai",
		PollInterval: 10 * time.Minute,
		VastAI: VastAIConfig{
			BaseURL:           "https://console.vast.ai/api/v0",
			APIKeyFile:        "api_key.txt",
			MaxAttempts:       3,
			RetryDelay:        5 * time.Second,
			RequestsPerSecond: 2,
			Timeout:           30 * time.Second,
		},
		Fetch: FetchConfig{
			Source:      "ssh",
			Concurrency: 8,
			Timeout:     20 * time.Second,
		},
		SSH: SSHConfig{
			User:           "root",
			PrivateKeyPath: "~/.ssh/id_ed25519",
			Command:        "tail -n 1 /root/XENGPUMiner/miner.log",
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			FailureThreshold: 3,
			Window:           time.Hour,
		},
		Report: ReportConfig{
			SortColumn: fleet.DefaultSortColumn.String(),
			SortOrder:  "ascending",
			Console:    true,
		},
		Outliers: OutliersConfig{
			Threshold: fleet.DefaultOutlierThreshold,
		},
		Balance: BalanceConfig{
			Enabled:       true,
			FeeMultiplier: cost.DefaultFeeMultiplier,
		},
		Advisor: AdvisorConfig{
			Enabled:     false,
			Model:       "claude-sonnet-4-6",
			Timeout:     20 * time.Second,
			MaxOutliers: 10,
		},
		APIServer: APIServerConfig{
			Enabled: true,
			Address: "0.0.0.0",
			Port:    8080,
		},
	}
}

// LoadFromFile loads config from a YAML file, overlaying on defaults, then
// applies environment overrides.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config file %s: %w", fleet.ErrInvalidConfig, path, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads path like LoadFromFile. Only a missing file falls back to
// defaults plus environment, reported by found == false. A file that exists
// but cannot be read or parsed is an error.
func Load(path string) (cfg *Config, found bool, err error) {
	cfg, err = LoadFromFile(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	cfg = DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// ApplyEnv overlays environment variables and resolves the API key file.
func (c *Config) ApplyEnv() error {
	ov, err := env.ParseAs[EnvOverrides]()
	if err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	if ov.Provider != "" {
		c.Provider = ov.Provider
	}
	if ov.VastAIAPIKey != "" {
		c.VastAI.APIKey = ov.VastAIAPIKey
	}
	if ov.SSHKeyPath != "" {
		c.SSH.PrivateKeyPath = ov.SSHKeyPath
	}
	if ov.SSHPassphrase != "" {
		c.SSH.Passphrase = ov.SSHPassphrase
	}
	if ov.APIPort != 0 {
		c.APIServer.Port = ov.APIPort
	}

	if c.VastAI.APIKey == "" && c.VastAI.APIKeyFile != "" {
		key, err := readKeyFile(c.VastAI.APIKeyFile)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reading API key file: %w", err)
		}
		c.VastAI.APIKey = key
	}
	return nil
}

// readKeyFile returns the first line of path, trimmed.
func readKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line), nil
}

// SortOptions resolves the configured sort column and order.
func (c *Config) SortOptions() (fleet.SortOptions, error) {
	col, err := fleet.ParseColumn(c.Report.SortColumn)
	if err != nil {
		return fleet.SortOptions{}, err
	}
	var desc bool
	switch strings.ToLower(c.Report.SortOrder) {
	case "", "ascending", "asc":
	case "descending", "desc":
		desc = true
	default:
		return fleet.SortOptions{}, fmt.Errorf("%w: invalid sort order %q: must be ascending or descending", fleet.ErrInvalidConfig, c.Report.SortOrder)
	}
	return fleet.SortOptions{Column: col, Descending: desc}, nil
}

// Validate checks field-level constraints and the core knobs.
func (c *Config) Validate() error {
	if ve := validateFields(c); ve.HasErrors() {
		return ve
	}
	return nil
}

// ValidateDetailed performs extended validation beyond Validate, including
// cross-field constraints that depend on the selected provider and source.
func (c *Config) ValidateDetailed() error {
	if ve := ValidateDetailed(c); ve.HasErrors() {
		return ve
	}
	return nil
}
