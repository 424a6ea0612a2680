// Package config assembles the pipeline configuration from defaults, an
// optional YAML file and process environment, in that order of precedence.
// The pipeline itself never reads ambient process state.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

//go:embed schema.json
var configSchema string

const (
	// DefaultBaseURL is the release host artifacts are fetched from.
	DefaultBaseURL = "https://downloads.stacksmith.io"
	// DefaultBucket is the default release channel.
	DefaultBucket = "stacksmith"

	defaultPrefix    = "/opt/stacksmith"
	defaultInstaller = "nami"
)

// Config carries every knob the pipeline needs. Constructed once per run.
type Config struct {
	// Prefix is the root under which the ledger, the license/script
	// directories and the git tree live.
	Prefix string

	// WorkDir is the per-run working install root. Created fresh, removed
	// after installer dispatch.
	WorkDir string

	// CacheDir holds pre-fetched archives and sidecar checksums. Read-only.
	CacheDir string

	BaseURL   string
	Bucket    string
	Installer string

	// Keyring is an optional OpenPGP keyring file. When set, sidecar .asc
	// signatures are verified against it.
	Keyring string

	// Checksum is the caller-supplied sha256 digest, possibly overridden
	// by a cache sidecar later in the run.
	Checksum string

	// OSFlavour overrides distribution detection unless it is "unknown".
	OSFlavour string

	// DirMode, when non-empty, is the octal mode applied by the permission
	// normalizer. Empty disables normalization.
	DirMode string

	// ExtraDirs are additional directories to normalize.
	ExtraDirs []string

	// Home is the invoking user's home directory, required for installer
	// metadata queries.
	Home string
}

// fileConfig is the YAML overlay shape. All fields optional.
type fileConfig struct {
	BaseURL   string   `yaml:"base_url" json:"base_url"`
	Bucket    string   `yaml:"bucket" json:"bucket"`
	CacheDir  string   `yaml:"cache_dir" json:"cache_dir"`
	WorkDir   string   `yaml:"work_dir" json:"work_dir"`
	Installer string   `yaml:"installer" json:"installer"`
	Keyring   string   `yaml:"keyring" json:"keyring"`
	DirMode   string   `yaml:"dir_mode" json:"dir_mode"`
	ExtraDirs []string `yaml:"extra_dirs" json:"extra_dirs"`
}

// FromEnv builds the configuration from defaults, the optional config file
// and the documented environment variables.
func FromEnv() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("PKGSMITH_CONFIG")
	if path == "" {
		path = filepath.Join(cfg.Prefix, "etc", "pkgsmith.yaml")
	}
	if _, err := os.Stat(path); err == nil {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	prefix := defaultPrefix
	if v := os.Getenv("INSTALL_ROOT_PREFIX"); v != "" {
		prefix = v
	}
	return &Config{
		Prefix:    prefix,
		WorkDir:   filepath.Join(os.TempDir(), "pkgsmith", "install"),
		CacheDir:  filepath.Join(prefix, "pkg", "cache"),
		BaseURL:   DefaultBaseURL,
		Bucket:    DefaultBucket,
		Installer: defaultInstaller,
		Home:      os.Getenv("HOME"),
	}
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := validateConfigFile(data); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.BaseURL != "" {
		c.BaseURL = fc.BaseURL
	}
	if fc.Bucket != "" {
		c.Bucket = fc.Bucket
	}
	if fc.CacheDir != "" {
		c.CacheDir = fc.CacheDir
	}
	if fc.WorkDir != "" {
		c.WorkDir = fc.WorkDir
	}
	if fc.Installer != "" {
		c.Installer = fc.Installer
	}
	if fc.Keyring != "" {
		c.Keyring = fc.Keyring
	}
	if fc.DirMode != "" {
		c.DirMode = fc.DirMode
	}
	if len(fc.ExtraDirs) > 0 {
		c.ExtraDirs = fc.ExtraDirs
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PKGSMITH_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("PKGSMITH_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("PKGSMITH_WORK_DIR"); v != "" {
		c.WorkDir = v
	}
	if v := os.Getenv("PKGSMITH_INSTALLER"); v != "" {
		c.Installer = v
	}
	if v := os.Getenv("PKGSMITH_KEYRING"); v != "" {
		c.Keyring = v
	}
	if v := os.Getenv("OS_FLAVOUR"); v != "" {
		c.OSFlavour = v
	}
	if v := os.Getenv("DIR_MODE"); v != "" {
		c.DirMode = v
	}
	if v := os.Getenv("EXTRA_DIRS"); v != "" {
		c.ExtraDirs = strings.Fields(v)
	}
}

// validateConfigFile checks the YAML document against the embedded schema.
// The YAML is converted to JSON first since the schema engine speaks JSON.
func validateConfigFile(data []byte) error {
	jsonData, err := sigsyaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("converting config to JSON: %w", err)
	}

	schema, err := jsonschema.CompileString("pkgsmith-config.json", configSchema)
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	var doc interface{}
	if err := sigsyaml.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("decoding config document: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// LedgerPath returns the installed-packages ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Prefix, "var", "log", "installed-packages.log")
}

// GitDir is the fixed destination the git package tree is mirrored to.
func (c *Config) GitDir() string {
	return filepath.Join(c.Prefix, "git")
}

// NormalizeDirs returns the two well-known directories plus the extras.
func (c *Config) NormalizeDirs() []string {
	dirs := []string{
		filepath.Join(c.Prefix, "licenses"),
		filepath.Join(c.Prefix, "scripts"),
	}
	return append(dirs, c.ExtraDirs...)
}
