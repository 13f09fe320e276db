// Package config provides configuration loading and management for font source discovery.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/font-sources/internal/catalog"
	"github.com/stacklok/font-sources/internal/filtering"
	"github.com/stacklok/font-sources/internal/probe"
)

// EnvPrefix is the prefix of environment variables overriding configuration values
const EnvPrefix = "FONT_SOURCES"

const (
	// DefaultConcurrency is the number of repositories probed at once
	DefaultConcurrency = 8

	// DefaultTimeout bounds one repository probe
	DefaultTimeout = "2m"
)

// DefaultCacheDir is where the checkout strategy keeps clones when no
// cache directory is configured: $XDG_CACHE_HOME/font-sources/repos
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "font-sources", "repos")
}

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path           string
	skipValidation bool
}

// WithoutValidation leaves validation to the caller, which is expected to
// layer further overrides on the loaded file and call Validate itself
func WithoutValidation() Option {
	return func(cfg *loaderConfig) error {
		cfg.skipValidation = true
		return nil
	}
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Catalog CatalogConfig `yaml:"catalog"`
	Probe   ProbeConfig   `yaml:"probe"`

	// Families restricts discovery to family names matching these glob patterns
	Families []string `yaml:"families,omitempty"`

	// ExcludeFamilies drops family names matching these glob patterns
	ExcludeFamilies []string `yaml:"excludeFamilies,omitempty"`
}

// CatalogConfig defines where the Google Fonts catalog is read from
type CatalogConfig struct {
	// URL is the catalog repository, https://github.com/google/fonts by default
	URL string `yaml:"url,omitempty"`

	// Path is a working copy to create or reuse between runs.
	// A temporary checkout is used when empty.
	Path string `yaml:"path,omitempty"`

	// Branch to check out, the remote default branch when empty
	Branch string `yaml:"branch,omitempty"`

	// Offline reads Path as is, without fetching
	Offline bool `yaml:"offline,omitempty"`

	// LicenseDirs are the top level directories holding families (apache, ofl, ufl)
	LicenseDirs []string `yaml:"licenseDirs,omitempty"`
}

// ProbeConfig defines how upstream repositories are inspected
type ProbeConfig struct {
	// Strategy is one of shallow, checkout or github
	Strategy string `yaml:"strategy,omitempty"`

	// MarkerPath is the file marking a repository as buildable
	MarkerPath string `yaml:"markerPath,omitempty"`

	// Concurrency bounds parallel probes
	Concurrency int `yaml:"concurrency,omitempty"`

	// Timeout bounds a single probe including retries (e.g., "90s", "2m")
	Timeout string `yaml:"timeout,omitempty"`

	// CacheDir keeps clones for the checkout strategy, DefaultCacheDir when empty
	CacheDir string `yaml:"cacheDir,omitempty"`

	// MaxRepoFiles and MaxRepoBytes bound in-memory clones
	MaxRepoFiles int64 `yaml:"maxRepoFiles,omitempty"`
	MaxRepoBytes int64 `yaml:"maxRepoBytes,omitempty"`

	Retry  *RetryConfig  `yaml:"retry,omitempty"`
	GitHub *GitHubConfig `yaml:"github,omitempty"`
}

// RetryConfig defines the retry policy for transient probe failures
type RetryConfig struct {
	MaxAttempts     int    `yaml:"maxAttempts,omitempty"`
	InitialInterval string `yaml:"initialInterval,omitempty"`
	MaxInterval     string `yaml:"maxInterval,omitempty"`
}

// GitHubConfig defines GitHub API access
type GitHubConfig struct {
	// TokenFile is the path to a file containing a GitHub token
	// The file should contain only the token with optional trailing whitespace
	TokenFile string `yaml:"tokenFile,omitempty"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates the result. Without WithConfigPath the defaults are returned.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return Default(), nil
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content, rejecting unknown keys
	var config Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.ApplyDefaults()
	if loaderCfg.skipValidation {
		return &config, nil
	}

	// Validate the config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ApplyDefaults fills unset fields with their default values
func (c *Config) ApplyDefaults() {
	if c.Catalog.URL == "" {
		c.Catalog.URL = catalog.DefaultURL
	}
	if len(c.Catalog.LicenseDirs) == 0 {
		c.Catalog.LicenseDirs = append([]string(nil), catalog.DefaultLicenseDirs...)
	}
	if c.Probe.Strategy == "" {
		c.Probe.Strategy = string(probe.StrategyShallow)
	}
	if c.Probe.MarkerPath == "" {
		c.Probe.MarkerPath = probe.DefaultMarkerPath
	}
	if c.Probe.Concurrency == 0 {
		c.Probe.Concurrency = DefaultConcurrency
	}
	if c.Probe.Timeout == "" {
		c.Probe.Timeout = DefaultTimeout
	}
	if strategy, err := probe.ParseStrategy(c.Probe.Strategy); err == nil &&
		strategy == probe.StrategyCheckout && c.Probe.CacheDir == "" {
		c.Probe.CacheDir = DefaultCacheDir()
	}
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Catalog.Offline && c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required when catalog.offline is set")
	}
	for i, dir := range c.Catalog.LicenseDirs {
		if dir == "" || !filepath.IsLocal(dir) {
			return fmt.Errorf("catalog.licenseDirs[%d]: %q is not a local directory name", i, dir)
		}
	}

	if err := c.Probe.validate(); err != nil {
		return err
	}

	if _, err := filtering.NewFamilyFilter(c.Families, c.ExcludeFamilies); err != nil {
		return fmt.Errorf("families: %w", err)
	}
	return nil
}

func (p *ProbeConfig) validate() error {
	strategy, err := probe.ParseStrategy(p.Strategy)
	if err != nil {
		return fmt.Errorf("probe.strategy: %w", err)
	}
	if strategy == probe.StrategyCheckout && p.CacheDir == "" {
		return fmt.Errorf("probe.cacheDir is required for the %s strategy", probe.StrategyCheckout)
	}

	if p.MarkerPath != "" && !filepath.IsLocal(filepath.FromSlash(p.MarkerPath)) {
		return fmt.Errorf("probe.markerPath must be relative to the repository root, got %q", p.MarkerPath)
	}
	if p.Concurrency < 1 {
		return fmt.Errorf("probe.concurrency must be at least 1, got %d", p.Concurrency)
	}
	if p.MaxRepoFiles < 0 || p.MaxRepoBytes < 0 {
		return fmt.Errorf("probe.maxRepoFiles and probe.maxRepoBytes cannot be negative")
	}

	if _, err := parseDuration("probe.timeout", p.Timeout); err != nil {
		return err
	}
	if p.Retry != nil {
		if p.Retry.MaxAttempts < 0 {
			return fmt.Errorf("probe.retry.maxAttempts cannot be negative")
		}
		if _, err := parseDuration("probe.retry.initialInterval", p.Retry.InitialInterval); err != nil {
			return err
		}
		if _, err := parseDuration("probe.retry.maxInterval", p.Retry.MaxInterval); err != nil {
			return err
		}
	}
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration (e.g., '30s', '2m'): %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s cannot be negative", field)
	}
	return d, nil
}

// GetTimeout returns the parsed probe timeout
func (p *ProbeConfig) GetTimeout() time.Duration {
	d, _ := parseDuration("probe.timeout", p.Timeout)
	return d
}

// GetRetryPolicy returns the configured retry policy, or the default one
func (p *ProbeConfig) GetRetryPolicy() probe.RetryPolicy {
	policy := probe.DefaultRetryPolicy()
	if p.Retry == nil {
		return policy
	}
	if p.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = p.Retry.MaxAttempts
	}
	if d, _ := parseDuration("", p.Retry.InitialInterval); d > 0 {
		policy.InitialInterval = d
	}
	if d, _ := parseDuration("", p.Retry.MaxInterval); d > 0 {
		policy.MaxInterval = d
	}
	return policy
}

// GetToken returns the GitHub token using the following priority:
// 1. Read from github.tokenFile if specified
// 2. Read from GH_TOKEN environment variable
// 3. Read from GITHUB_TOKEN environment variable
//
// An empty token means anonymous access.
func (p *ProbeConfig) GetToken() (string, error) {
	if p.GitHub != nil && p.GitHub.TokenFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(p.GitHub.TokenFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read GitHub token from file %s: %w", p.GitHub.TokenFile, err)
		}

		// Trim whitespace (including newlines) from file content
		return strings.TrimSpace(string(data)), nil
	}

	for _, env := range []string{"GH_TOKEN", "GITHUB_TOKEN"} {
		if token := strings.TrimSpace(os.Getenv(env)); token != "" {
			return token, nil
		}
	}
	return "", nil
}

// CatalogLocation returns the catalog location described by the configuration
func (c *Config) CatalogLocation() catalog.Location {
	return catalog.Location{
		Path:        c.Catalog.Path,
		URL:         c.Catalog.URL,
		Branch:      c.Catalog.Branch,
		Offline:     c.Catalog.Offline,
		LicenseDirs: c.Catalog.LicenseDirs,
	}
}

// ProbeOptions returns the prober options described by the configuration
func (c *Config) ProbeOptions(token string) probe.Options {
	return probe.Options{
		Strategy:     probe.Strategy(strings.ToLower(strings.TrimSpace(c.Probe.Strategy))),
		MarkerPath:   c.Probe.MarkerPath,
		Timeout:      c.Probe.GetTimeout(),
		Retry:        c.Probe.GetRetryPolicy(),
		CacheDir:     c.Probe.CacheDir,
		MaxRepoFiles: c.Probe.MaxRepoFiles,
		MaxRepoBytes: c.Probe.MaxRepoBytes,
		Token:        token,
	}
}
