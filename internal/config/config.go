package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type BackendConfig struct {
	BaseURL    string   `toml:"base_url" yaml:"base_url"`
	Timeout    Duration `toml:"timeout" yaml:"timeout"`
	MaxRetries int      `toml:"max_retries" yaml:"max_retries"`
}

// Duration reads "15s"-style strings from TOML and YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

type MemgraphConfig struct {
	URI      string `toml:"uri" yaml:"uri"`
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
}

// HistoryConfig selects where search history is persisted: memory, redis or sql.
type HistoryConfig struct {
	Store     string `toml:"store" yaml:"store"`
	RedisAddr string `toml:"redis_addr" yaml:"redis_addr"`
	RedisDB   int    `toml:"redis_db" yaml:"redis_db"`
	// SQLDriver is sqlite or postgres.
	SQLDriver string `toml:"sql_driver" yaml:"sql_driver"`
	SQLDSN    string `toml:"sql_dsn" yaml:"sql_dsn"`
}

type SearchConfig struct {
	HistorySize int  `toml:"history_size" yaml:"history_size"`
	Rerank      bool `toml:"rerank" yaml:"rerank"`
	// Classify lets the LLM pick the entity kind when no keyword matched.
	Classify bool `toml:"classify" yaml:"classify"`
}

type LLMConfig struct {
	Provider string `toml:"provider" yaml:"provider"`
	Model    string `toml:"model" yaml:"model"`
	APIKey   string `toml:"api_key" yaml:"api_key"`
	BaseURL  string `toml:"base_url" yaml:"base_url"`
}

type LogConfig struct {
	Mode string `toml:"mode" yaml:"mode"`
}

type ServerConfig struct {
	Addr        string   `toml:"addr" yaml:"addr"`
	CORSOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
}

type Config struct {
	// Source is "rest" (the HTTP backend), "graph" (direct Memgraph/Neo4j
	// access) or "fixture" (built-in seed data).
	Source   string         `toml:"source" yaml:"source"`
	Backend  BackendConfig  `toml:"backend" yaml:"backend"`
	Memgraph MemgraphConfig `toml:"memgraph" yaml:"memgraph"`
	History  HistoryConfig  `toml:"history" yaml:"history"`
	Search   SearchConfig   `toml:"search" yaml:"search"`
	LLM      LLMConfig      `toml:"llm" yaml:"llm"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
}

func Default() *Config {
	return &Config{
		Source: "rest",
		Backend: BackendConfig{
			BaseURL:    "http://localhost:5000/api",
			Timeout:    Duration(15 * time.Second),
			MaxRetries: 2,
		},
		Memgraph: MemgraphConfig{URI: "bolt://localhost:7687"},
		History:  HistoryConfig{Store: "memory", SQLDriver: "sqlite", SQLDSN: "nutrigraph.db"},
		Search:   SearchConfig{HistorySize: 10},
		LLM:      LLMConfig{Provider: "none"},
		Log:      LogConfig{Mode: "info"},
		Server:   ServerConfig{Addr: ":5000", CORSOrigins: []string{"*"}},
	}
}

// Load reads a TOML or YAML file (chosen by extension) over Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. Unset variables leave the
// value alone.
func (c *Config) ApplyEnv() error {
	setString(&c.Source, "NUTRI_SOURCE")
	setString(&c.Backend.BaseURL, "NUTRI_BACKEND_URL")
	setString(&c.Memgraph.URI, "MEMGRAPH_URI")
	setString(&c.Memgraph.User, "MEMGRAPH_USER")
	setString(&c.Memgraph.Password, "MEMGRAPH_PASSWORD")
	setString(&c.History.Store, "NUTRI_HISTORY_STORE")
	setString(&c.History.RedisAddr, "REDIS_ADDR")
	setString(&c.History.SQLDSN, "NUTRI_HISTORY_DSN")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.Log.Mode, "LOG_MODE")
	setString(&c.Server.Addr, "NUTRI_SERVER_ADDR")

	if v := strings.TrimSpace(os.Getenv("NUTRI_BACKEND_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid NUTRI_BACKEND_TIMEOUT %q: %w", v, err)
		}
		c.Backend.Timeout = Duration(d)
	}
	if v := strings.TrimSpace(os.Getenv("NUTRI_BACKEND_RETRIES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NUTRI_BACKEND_RETRIES %q: %w", v, err)
		}
		c.Backend.MaxRetries = n
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	switch c.Source {
	case "rest", "graph", "fixture":
	default:
		return fmt.Errorf("unknown source %q (want rest, graph or fixture)", c.Source)
	}
	switch c.History.Store {
	case "memory", "redis", "sql":
	default:
		return fmt.Errorf("unknown history store %q (want memory, redis or sql)", c.History.Store)
	}
	if c.History.Store == "redis" && c.History.RedisAddr == "" {
		return fmt.Errorf("history store redis needs redis_addr")
	}
	if c.Backend.MaxRetries < 0 {
		return fmt.Errorf("backend.max_retries must be >= 0")
	}
	if c.Search.HistorySize <= 0 {
		c.Search.HistorySize = 10
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}
