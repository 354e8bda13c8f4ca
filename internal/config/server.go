package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultServerConfigPath = "./config/server.yaml"

type HTTP struct {
	Addr        string   `yaml:"addr"`
	PublicURL   string   `yaml:"public_url"`
	CORSOrigins []string `yaml:"cors_origins"`
	// Request timeout for every handler.
	Timeout time.Duration `yaml:"timeout"`
}

type SQLite struct {
	Path string `yaml:"path"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Store struct {
	Backend string `yaml:"backend"` // memory|sqlite|redis|postgres
	// TTL of an idle room; an explicit 0 keeps rooms until cleared.
	TTL           *time.Duration `yaml:"ttl"`
	SweepInterval time.Duration  `yaml:"sweep_interval"`

	SQLite   SQLite   `yaml:"sqlite"`
	Redis    Redis    `yaml:"redis"`
	Postgres Postgres `yaml:"postgres"`
}

type Chat struct {
	HistoryLimit int `yaml:"history_limit"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // syncplayer
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
}

// Server is the configuration of `syncplayer serve`.
type Server struct {
	HTTP    HTTP    `yaml:"http"`
	Store   Store   `yaml:"store"`
	Chat    Chat    `yaml:"chat"`
	Logging Logging `yaml:"logging"`
}

// LoadServer reads the YAML file at path, or at CONFIG_PATH when path is
// empty. A missing default file yields the built-in defaults; a missing file
// that was asked for explicitly is an error.
func LoadServer(path string) (*Server, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = defaultServerConfigPath
	}

	cfg := &Server{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultServerConfig returns the built-in server configuration.
func DefaultServerConfig() *Server {
	cfg := &Server{}
	_ = cfg.validate()
	return cfg
}

// Validate fills defaults and checks backend specific settings. It is safe
// to call again after flags have overridden fields.
func (c *Server) Validate() error {
	return c.validate()
}

func (c *Server) validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"*"}
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 15 * time.Second
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.TTL == nil {
		ttl := 24 * time.Hour
		c.Store.TTL = &ttl
	}
	if *c.Store.TTL < 0 {
		return errors.New("store.ttl must not be negative")
	}
	if c.Store.SweepInterval <= 0 {
		c.Store.SweepInterval = 10 * time.Minute
	}
	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			c.Store.SQLite.Path = "syncplayer.db"
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			c.Store.Redis.Addr = "localhost:6379"
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = 500
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "syncplayer"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}

// Retention returns the idle room TTL, zero when retention is disabled.
func (s Store) Retention() time.Duration {
	if s.TTL == nil {
		return 0
	}
	return *s.TTL
}
