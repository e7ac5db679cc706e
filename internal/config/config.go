package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"github.com/worldsmith/worldsmith/internal/logger"
)

// Paths collects every filesystem root the orchestrator touches. All of
// them are explicit configuration; nothing is resolved relative to the
// executable.
type Paths struct {
	// WorldsDir holds one subdirectory per world, named by its
	// twelve-digit world number.
	WorldsDir string `toml:"worlds_dir" mapstructure:"worlds_dir"`
	// VersionsDir caches downloaded server jars and installers.
	VersionsDir string `toml:"versions_dir" mapstructure:"versions_dir"`
	// TempDir is scratch space for installer runs and migration holding.
	TempDir string `toml:"temp_dir" mapstructure:"temp_dir"`
	// DefaultProperties is the server.properties template copied into
	// fresh worlds.
	DefaultProperties string `toml:"default_properties" mapstructure:"default_properties"`
	// JMXDir holds the management access/password credential files.
	JMXDir string `toml:"jmx_dir" mapstructure:"jmx_dir"`
}

type StoreConfig struct {
	Type string `toml:"type" mapstructure:"type"` // "sqlite" (default) or "postgres"
	DSN  string `toml:"dsn" mapstructure:"dsn"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type MetricsConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

type ArtifactsConfig struct {
	// URLTemplate is the mirror location for server jars, with
	// {software} and {version} placeholders. Empty disables downloads.
	URLTemplate string `toml:"url_template" mapstructure:"url_template"`
	// Manifest is the supported-versions file. Empty accepts any
	// version.
	Manifest string `toml:"manifest" mapstructure:"manifest"`
}

// Config is the top-level TOML structure.
type Config struct {
	Paths     Paths           `toml:"paths" mapstructure:"paths"`
	Store     StoreConfig     `toml:"store" mapstructure:"store"`
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Metrics   MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
	Artifacts ArtifactsConfig `toml:"artifacts" mapstructure:"artifacts"`
	Log       logger.Config   `toml:"log" mapstructure:"log"`
	LogLevel  string          `toml:"log_level" mapstructure:"log_level"`
	// MemoryMB is the default heap size passed to the JVM when a world
	// has no override.
	MemoryMB int `toml:"memory_mb" mapstructure:"memory_mb"`
	// HostIP is the address announced for remote management.
	HostIP string `toml:"host_ip" mapstructure:"host_ip"`
	// HeapTool is the external JMX query command used for heap samples
	// in world status. Empty disables heap sampling.
	HeapTool string `toml:"heap_tool" mapstructure:"heap_tool"`
}

const DefaultMemoryMB = 2048

// Load reads a TOML config file and validates it.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Type == "" {
		c.Store.Type = "sqlite"
	}
	if c.MemoryMB <= 0 {
		c.MemoryMB = DefaultMemoryMB
	}
	if c.HostIP == "" {
		c.HostIP = "127.0.0.1"
	}
	if c.Paths.TempDir == "" && c.Paths.WorldsDir != "" {
		c.Paths.TempDir = filepath.Join(c.Paths.WorldsDir, ".tmp")
	}
	if c.Paths.JMXDir == "" && c.Paths.WorldsDir != "" {
		c.Paths.JMXDir = filepath.Join(c.Paths.WorldsDir, ".jmx")
	}
}

// Validate checks that the mandatory roots are present. Directories are
// created on demand elsewhere; only the template file must pre-exist.
func (c *Config) Validate() error {
	if c.Paths.WorldsDir == "" {
		return fmt.Errorf("config: paths.worlds_dir is required")
	}
	if c.Paths.VersionsDir == "" {
		return fmt.Errorf("config: paths.versions_dir is required")
	}
	if c.Paths.DefaultProperties != "" {
		if _, err := os.Stat(c.Paths.DefaultProperties); err != nil {
			return fmt.Errorf("config: default_properties: %w", err)
		}
	}
	switch c.Store.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported store type %q", c.Store.Type)
	}
	if c.Store.Type == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("config: store.dsn is required for postgres")
	}
	return nil
}

// StartupTimeFile is the per-world marker recording when the server came up.
func (p Paths) StartupTimeFile(worldNumber string) string {
	return filepath.Join(p.WorldsDir, worldNumber, "serverStartupTime.txt")
}

// WorldDir returns the directory of a world by number.
func (p Paths) WorldDir(worldNumber string) string {
	return filepath.Join(p.WorldsDir, worldNumber)
}
