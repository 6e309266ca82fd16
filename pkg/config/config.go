// Package config loads and validates the synchronization settings: the mirror
// to read from, the repositories and architectures to mirror, and the catalog
// database to write to. YAML and TOML files are supported.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
	"github.com/glorpus-work/pkgcatalog/pkg/fsutil"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// Mirror is the base URL of the package mirror (http, https, file or s3).
	Mirror string `yaml:"mirror" toml:"mirror"`

	// Repositories maps repository names to the architectures to mirror.
	Repositories map[string][]string `yaml:"repositories" toml:"repositories"`

	// Files selects the .files archive, which also carries file lists.
	Files bool `yaml:"files" toml:"files"`

	// Delay is how long a published archive must age before it is imported.
	Delay time.Duration `yaml:"delay" toml:"delay"`

	TmpDir      string        `yaml:"tmp_dir,omitempty" toml:"tmp_dir,omitempty"`
	HTTPTimeout time.Duration `yaml:"http_timeout" toml:"http_timeout"`

	Database Database `yaml:"database" toml:"database"`

	LockFile string `yaml:"lock_file,omitempty" toml:"lock_file,omitempty"`
	LogLevel string `yaml:"log_level" toml:"log_level"` // error, warn, info, debug
}

// Database selects the catalog backend.
type Database struct {
	Driver string `yaml:"driver" toml:"driver"` // sqlite3 or pgx
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// Target is one repository/architecture pair to synchronize.
type Target struct {
	Repository   string
	Architecture string
}

func (t Target) String() string {
	return fmt.Sprintf("[%s] (%s)", t.Repository, t.Architecture)
}

// Default configuration values.
const (
	// DefaultHTTPTimeout is the default timeout for mirror requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultDelay is the default propagation delay for new archives.
	DefaultDelay = 2 * time.Minute

	DefaultDriver   = "sqlite3"
	DefaultLogLevel = "info"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2

	multilibPrefix = "multilib"
	multilibArch   = "x86_64"
)

// Format is the on-disk encoding of a configuration file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatForPath picks the encoding from the file extension. Anything that is
// not .toml is read as YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// DefaultConfig returns a configuration with sensible defaults.
// It has no mirror and no repositories, so it does not validate on its own.
func DefaultConfig() *Config {
	stateDir, err := getStateDir()
	if err != nil {
		stateDir = "."
	}

	return &Config{
		Repositories: map[string][]string{},
		Delay:        DefaultDelay,
		HTTPTimeout:  DefaultHTTPTimeout,
		Database: Database{
			Driver: DefaultDriver,
			DSN:    filepath.Join(stateDir, "catalog.db"),
		},
		LockFile: filepath.Join(stateDir, "sync.lock"),
		LogLevel: DefaultLogLevel,
	}
}

// LoadConfig loads configuration from a file. A missing file is an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errutils.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errutils.Wrap(errutils.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, errutils.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file, FormatForPath(absPath))
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errutils.Wrap(err, "failed to read config data")
	}

	var config Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &config); err != nil {
			return nil, errutils.Wrap(errutils.ErrConfigParse, err.Error())
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, errutils.Wrap(errutils.ErrConfigParse, err.Error())
		}
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errutils.ErrConfigValidation, err)
	}

	return &config, nil
}

// SaveConfig writes the configuration to path, encoded by its extension.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errutils.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errutils.Wrap(errutils.ErrInvalidConfigPath, err.Error())
	}

	var data []byte
	switch FormatForPath(absPath) {
	case FormatTOML:
		data, err = c.ToTOML()
	default:
		data, err = c.ToYAML()
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errutils.Wrap(err, "failed to create config directory")
	}

	tempPath := absPath + ".tmp"
	if err := os.WriteFile(tempPath, data, fsutil.FileModeSecure); err != nil {
		return errutils.Wrap(err, "failed to write config file")
	}
	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errutils.Wrap(err, "failed to replace config file")
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return nil, errutils.Wrap(err, "failed to encode config")
	}
	_ = encoder.Close()
	return buf.Bytes(), nil
}

// ToTOML converts the config to TOML bytes.
func (c *Config) ToTOML() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, errutils.Wrap(err, "failed to encode config")
	}
	return buf.Bytes(), nil
}

func (c *Config) applyDefaults() {
	if c.Repositories == nil {
		c.Repositories = map[string][]string{}
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	if c.Database.DSN == "" || c.LockFile == "" {
		stateDir, err := getStateDir()
		if err != nil {
			stateDir = "."
		}
		if c.Database.DSN == "" && c.Database.Driver == DefaultDriver {
			c.Database.DSN = filepath.Join(stateDir, "catalog.db")
		}
		if c.LockFile == "" {
			c.LockFile = filepath.Join(stateDir, "sync.lock")
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errutils.ErrConfigValidation
	}
	if strings.TrimSpace(c.Mirror) == "" {
		return errutils.ErrMirrorEmpty
	}
	if err := validateRepositories(c.Repositories); err != nil {
		return err
	}
	if c.Delay < 0 {
		return errutils.ErrDelayNegative
	}
	if c.HTTPTimeout < 0 {
		return errutils.ErrHTTPTimeoutNegative
	}
	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return errutils.ErrUnknownDriverWithDetails(c.Database.Driver)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return errutils.ErrInvalidLogLevelWithDetails(c.LogLevel)
	}
	return nil
}

func validateRepositories(repos map[string][]string) error {
	if len(repos) == 0 {
		return errutils.ErrNoRepositories
	}
	for name, archs := range repos {
		if len(archs) == 0 {
			return errutils.ErrNoArchitecturesWithName(name)
		}
	}
	return nil
}

// Targets expands the repository map into repository/architecture pairs,
// sorted by repository name with architectures in configured order.
// Multilib repositories only exist for x86_64; other pairs are dropped.
// An architecture listed twice for a repository yields one target.
func (c *Config) Targets() []Target {
	names := make([]string, 0, len(c.Repositories))
	for name := range c.Repositories {
		names = append(names, name)
	}
	sort.Strings(names)

	var targets []Target
	for _, name := range names {
		seen := map[string]bool{}
		for _, arch := range c.Repositories[name] {
			if seen[arch] || strings.HasPrefix(name, multilibPrefix) && arch != multilibArch {
				continue
			}
			seen[arch] = true
			targets = append(targets, Target{Repository: name, Architecture: arch})
		}
	}
	return targets
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "pkgcatalog", "config.yaml"), nil
}

func getStateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "pkgcatalog"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "pkgcatalog"), nil
}
