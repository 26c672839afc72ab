// Package config resolves extkit settings from defaults, an optional TOML
// file, a .env file and EXTKIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	EnvVarPrefix = "EXTKIT_"

	// DefaultChromeVersion is sent as prodversion when downloading from the web store.
	DefaultChromeVersion = "138.0.7204.97"
	DefaultUserAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

	// MinChromeVersion is the first release that understands CRX3.
	MinChromeVersion = ">= 64"

	appDir       = "extkit"
	cacheSubdir  = "ExtensionCache"
	configFile   = "config.toml"
	maxNumWorker = 256
)

type Config struct {
	CacheDir       string            `toml:"cache_dir"`
	ChromeVersion  string            `toml:"chrome_version"`
	UserAgent      string            `toml:"user_agent"`
	ChromeUserData string            `toml:"chrome_user_data"`
	Workers        int               `toml:"workers"`
	Sources        map[string]string `toml:"sources"`
}

// Default returns the built-in settings.
func Default() (*Config, error) {
	cacheDir, err := DefaultCacheDir()
	if err != nil {
		return nil, err
	}
	return &Config{
		CacheDir:      cacheDir,
		ChromeVersion: DefaultChromeVersion,
		UserAgent:     DefaultUserAgent,
		Workers:       runtime.NumCPU(),
		Sources:       map[string]string{},
	}, nil
}

// Load layers the TOML file at path, .env and the environment over the
// defaults and validates the result. An empty path means the default file
// location, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Real environment variables win over .env entries.
	_ = godotenv.Load(".env")
	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	var fileCfg Config
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	if fileCfg.CacheDir != "" {
		c.CacheDir = expandHome(fileCfg.CacheDir)
	}
	if fileCfg.ChromeVersion != "" {
		c.ChromeVersion = fileCfg.ChromeVersion
	}
	if fileCfg.UserAgent != "" {
		c.UserAgent = fileCfg.UserAgent
	}
	if fileCfg.ChromeUserData != "" {
		c.ChromeUserData = expandHome(fileCfg.ChromeUserData)
	}
	if fileCfg.Workers != 0 {
		c.Workers = fileCfg.Workers
	}
	for id, url := range fileCfg.Sources {
		c.Sources[id] = url
	}
	return nil
}

func (c *Config) mergeEnv() error {
	if v := os.Getenv(EnvVarPrefix + "CACHE_DIR"); v != "" {
		c.CacheDir = expandHome(v)
	}
	if v := os.Getenv(EnvVarPrefix + "CHROME_VERSION"); v != "" {
		c.ChromeVersion = v
	}
	if v := os.Getenv(EnvVarPrefix + "USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv(EnvVarPrefix + "CHROME_USER_DATA"); v != "" {
		c.ChromeUserData = expandHome(v)
	}
	if v := os.Getenv(EnvVarPrefix + "WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS must be an integer: %w", EnvVarPrefix, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks field ranges and the Chrome version.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return errors.New("cache_dir cannot be empty")
	}
	if c.Workers < 1 || c.Workers > maxNumWorker {
		return fmt.Errorf("workers must be between 1 and %d", maxNumWorker)
	}
	if err := ValidateChromeVersion(c.ChromeVersion); err != nil {
		return err
	}
	for id, url := range c.Sources {
		if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
			return fmt.Errorf("sources.%s must be an http(s) URL, got %q", id, url)
		}
	}
	return nil
}

// ValidateChromeVersion accepts four-part Chrome versions (138.0.7204.97) and
// shorter forms whose major.minor.patch prefix satisfies MinChromeVersion.
func ValidateChromeVersion(v string) error {
	parts := strings.Split(v, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	ver, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return fmt.Errorf("invalid chrome_version %q: %w", v, err)
	}
	constraint, err := semver.NewConstraint(MinChromeVersion)
	if err != nil {
		return err
	}
	if !constraint.Check(ver) {
		return fmt.Errorf("chrome_version %s is too old: need %s", v, MinChromeVersion)
	}
	return nil
}

// DefaultPath returns <user config dir>/extkit/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, appDir, configFile), nil
}

// DefaultCacheDir returns the per-OS cache location for unpacked extensions.
func DefaultCacheDir() (string, error) {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, appDir, cacheSubdir), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Caches", appDir, cacheSubdir), nil
	case "windows":
		return filepath.Join(homeDir, "AppData", "Local", appDir, cacheSubdir), nil
	default:
		return filepath.Join(homeDir, ".cache", appDir, cacheSubdir), nil
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
