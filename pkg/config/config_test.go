package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
	"github.com/glorpus-work/pkgcatalog/pkg/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/var/lib")
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Delay)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/pkgcatalog/catalog.db", cfg.Database.DSN)
	assert.Equal(t, "/var/lib/pkgcatalog/sync.lock", cfg.LockFile)
	assert.ErrorIs(t, cfg.Validate(), errutils.ErrMirrorEmpty)
}

func TestLoadConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configContent := `mirror: https://mirror.example.org/archlinux
files: true
delay: 90s
database:
  driver: pgx
  dsn: postgres://catalog@localhost/catalog
log_level: debug
repositories:
  core: [x86_64]
  extra: [x86_64, aarch64]
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), fsutil.FileModeDefault))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://mirror.example.org/archlinux", cfg.Mirror)
	assert.True(t, cfg.Files)
	assert.Equal(t, 90*time.Second, cfg.Delay)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "postgres://catalog@localhost/catalog", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"x86_64", "aarch64"}, cfg.Repositories["extra"])
	assert.NotEmpty(t, cfg.LockFile)
}

func TestLoadConfig_TOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	configContent := `mirror = "file:///srv/mirror"
delay = "0s"
http_timeout = "5s"

[database]
dsn = "/tmp/catalog.db"

[repositories]
core = ["x86_64"]
multilib = ["x86_64"]
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), fsutil.FileModeDefault))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "file:///srv/mirror", cfg.Mirror)
	assert.Equal(t, time.Duration(0), cfg.Delay)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "/tmp/catalog.db", cfg.Database.DSN)
	assert.Len(t, cfg.Repositories, 2)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, errutils.ErrEmptyConfigPath)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfigFromReader(strings.NewReader("mirror: [unclosed"), FormatYAML)
	assert.ErrorIs(t, err, errutils.ErrConfigParse)

	_, err = LoadConfigFromReader(strings.NewReader("mirror = "), FormatTOML)
	assert.ErrorIs(t, err, errutils.ErrConfigParse)
}

func TestSaveConfig(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Mirror = "https://mirror.example.org"
			cfg.Delay = 45 * time.Second
			cfg.Repositories = map[string][]string{"core": {"x86_64"}}

			configPath := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, cfg.SaveConfig(configPath))

			loaded, err := LoadConfig(configPath)
			require.NoError(t, err)
			assert.Equal(t, cfg.Mirror, loaded.Mirror)
			assert.Equal(t, cfg.Delay, loaded.Delay)
			assert.Equal(t, cfg.Repositories, loaded.Repositories)
			assert.Equal(t, cfg.Database, loaded.Database)

			_, err = os.Stat(configPath + ".tmp")
			assert.ErrorIs(t, err, os.ErrNotExist)
		})
	}

	assert.ErrorIs(t, DefaultConfig().SaveConfig(""), errutils.ErrEmptyConfigPath)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Mirror = "https://mirror.example.org"
		cfg.Repositories = map[string][]string{"core": {"x86_64"}}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "empty mirror", modify: func(c *Config) { c.Mirror = " " }, wantErr: errutils.ErrMirrorEmpty},
		{name: "no repositories", modify: func(c *Config) { c.Repositories = nil }, wantErr: errutils.ErrNoRepositories},
		{name: "no architectures", modify: func(c *Config) { c.Repositories["extra"] = nil }, wantErr: errutils.ErrNoArchitectures},
		{name: "negative delay", modify: func(c *Config) { c.Delay = -time.Second }, wantErr: errutils.ErrDelayNegative},
		{name: "negative timeout", modify: func(c *Config) { c.HTTPTimeout = -1 }, wantErr: errutils.ErrHTTPTimeoutNegative},
		{name: "unknown driver", modify: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: errutils.ErrUnknownDriver},
		{name: "invalid log level", modify: func(c *Config) { c.LogLevel = "trace" }, wantErr: errutils.ErrInvalidLogLevel},
		{name: "upper case log level", modify: func(c *Config) { c.LogLevel = "WARN" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), errutils.ErrConfigValidation)
}

func TestTargets(t *testing.T) {
	cfg := &Config{Repositories: map[string][]string{
		"multilib-testing": {"x86_64", "i686"},
		"extra":            {"x86_64", "aarch64"},
		"core":             {"x86_64"},
		"multilib":         {"aarch64"},
	}}

	assert.Equal(t, []Target{
		{Repository: "core", Architecture: "x86_64"},
		{Repository: "extra", Architecture: "x86_64"},
		{Repository: "extra", Architecture: "aarch64"},
		{Repository: "multilib-testing", Architecture: "x86_64"},
	}, cfg.Targets())

	assert.Equal(t, "[core] (x86_64)", cfg.Targets()[0].String())
}

func TestTargets_DuplicateArchitectures(t *testing.T) {
	cfg := &Config{Repositories: map[string][]string{
		"core":     {"x86_64", "aarch64", "x86_64"},
		"multilib": {"x86_64", "x86_64"},
	}}

	assert.Equal(t, []Target{
		{Repository: "core", Architecture: "x86_64"},
		{Repository: "core", Architecture: "aarch64"},
		{Repository: "multilib", Architecture: "x86_64"},
	}, cfg.Targets())
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatTOML, FormatForPath("/etc/pkgcatalog.TOML"))
	assert.Equal(t, FormatYAML, FormatForPath("/etc/pkgcatalog.yml"))
	assert.Equal(t, FormatYAML, FormatForPath("config"))
}
