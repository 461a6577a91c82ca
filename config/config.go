// Package config loads redisqlite-server's configuration by layering, from
// lowest to highest precedence: built-in defaults, an optional YAML file,
// environment variables, and command-line flags.
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every setting redisqlite-server needs to start.
type Config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	DBPath      string `yaml:"db_path"`
	TablePrefix string `yaml:"table_prefix"`
	Password    string `yaml:"password"`
	LogLevel    string `yaml:"log_level"`
}

// Default returns the built-in defaults, the bottom of the precedence
// stack.
func Default() Config {
	return Config{
		Host:        "127.0.0.1",
		Port:        6379,
		DBPath:      "redisqlite.db",
		TablePrefix: "redis_",
		LogLevel:    "info",
	}
}

// fileConfig mirrors Config but with pointer fields, so a YAML document
// that only sets some keys doesn't clobber the rest with zero values.
type fileConfig struct {
	Host        *string `yaml:"host"`
	Port        *int    `yaml:"port"`
	DBPath      *string `yaml:"db_path"`
	TablePrefix *string `yaml:"table_prefix"`
	Password    *string `yaml:"password"`
	LogLevel    *string `yaml:"log_level"`
}

func (f fileConfig) applyTo(cfg *Config) {
	if f.Host != nil {
		cfg.Host = *f.Host
	}
	if f.Port != nil {
		cfg.Port = *f.Port
	}
	if f.DBPath != nil {
		cfg.DBPath = *f.DBPath
	}
	if f.TablePrefix != nil {
		cfg.TablePrefix = *f.TablePrefix
	}
	if f.Password != nil {
		cfg.Password = *f.Password
	}
	if f.LogLevel != nil {
		cfg.LogLevel = *f.LogLevel
	}
}

// loadFile reads and parses a YAML config file, if path is non-empty and
// exists. A missing path (the common case: no -config flag given) is not
// an error.
func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return fc, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_SQLITE_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("REDIS_SQLITE_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("REDIS_SQLITE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("REDIS_SQLITE_PREFIX"); v != "" {
		cfg.TablePrefix = v
	}
	if v := os.Getenv("REDIS_SQLITE_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("REDIS_SQLITE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Load builds a Config from args (typically os.Args[1:]), layering
// defaults < YAML file < environment < flags.
func Load(args []string) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("redisqlite-server", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to an optional YAML config file")
	host := fs.String("host", "", "bind host (overrides config file/env)")
	port := fs.Int("port", 0, "bind port (overrides config file/env)")
	dbPath := fs.String("db-path", "", "SQLite database file path")
	prefix := fs.String("table-prefix", "", "table name prefix")
	password := fs.String("password", "", "require clients to AUTH with this password")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	fc, err := loadFile(*configPath)
	if err != nil {
		return Config{}, err
	}
	fc.applyTo(&cfg)

	applyEnv(&cfg)

	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *prefix != "" {
		cfg.TablePrefix = *prefix
	}
	if *password != "" {
		cfg.Password = *password
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	return cfg, nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
