// Package config loads pkgcat's configuration: filesystem layout
// (root, database path, cache directory) and the ordered list of
// package repositories with their download servers.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file consulted when --config is not
// given.
const DefaultPath = "/etc/pkgcat.yaml"

// Repo names one package repository and the base URL packages are
// downloaded from. An empty server is valid for repositories that are
// only ever consulted locally.
type Repo struct {
	// Name identifies the repository, as used in repo/pkgname targets.
	Name string `yaml:"name"`

	// Server is the base URL package filenames are appended to.
	Server string `yaml:"server"`
}

// Config represents pkgcat configuration options.
type Config struct {
	// Root is the filesystem root all other paths are taken relative to.
	Root string `yaml:"root"`

	// DBPath is the package database location, relative to Root.
	DBPath string `yaml:"dbpath"`

	// CacheDir is where downloaded package archives are kept.
	CacheDir string `yaml:"cachedir"`

	// Repos lists the configured repositories in priority order.
	Repos []Repo `yaml:"repos"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Root:     "/",
		DBPath:   "var/lib/pkgcat",
		CacheDir: "/var/cache/pkgcat",
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without
// error. If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// DatabasePath returns the package database file location under the
// configured root.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Root, c.DBPath, "pkgcat.db")
}

// Server returns the download server configured for the named
// repository, or an empty string if the repository is unknown or has
// no server.
func (c *Config) Server(repo string) string {
	for _, r := range c.Repos {
		if r.Name == repo {
			return r.Server
		}
	}
	return ""
}
