package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/syssam/veloxgraph/dialect"
	"github.com/syssam/veloxgraph/dialect/sql"
)

// envPrefix prefixes the environment variables read by the CLI, e.g.
// VELOXGRAPH_DSN or VELOXGRAPH_LOG_LEVEL.
const envPrefix = "VELOXGRAPH_"

// Config is the CLI configuration. Sources are merged in order: defaults,
// .env, the config file, the environment and finally command line flags.
type Config struct {
	Dialect string `koanf:"dialect"`
	DSN     string `koanf:"dsn"`
	// Schema is the path of the YAML schema file.
	Schema string      `koanf:"schema"`
	Log    LogConfig   `koanf:"log"`
	Cache  CacheConfig `koanf:"cache"`
	// Filters are the named filters eager expressions may reference.
	Filters map[string]Filter `koanf:"filters"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `koanf:"level"`
	// Format is text or json. Empty picks text on terminals.
	Format string `koanf:"format"`
	// SlowQuery is the duration above which statements are logged as slow.
	SlowQuery time.Duration `koanf:"slow_query"`
}

// CacheConfig configures where column metadata is kept between runs.
type CacheConfig struct {
	// Redis is the address of a Redis server.
	Redis   string        `koanf:"redis"`
	RedisDB int           `koanf:"redis_db"`
	TTL     time.Duration `koanf:"ttl"`
	// Snapshot is a file the column store is restored from and saved to.
	Snapshot string `koanf:"snapshot"`
}

// Filter is a named filter on a column of the related table.
type Filter struct {
	Column string `koanf:"column"`
	// Op is one of =, !=, >, >=, <, <=, prefix, null and notnull.
	Op    string `koanf:"op"`
	Value any    `koanf:"value"`
}

var defaults = map[string]any{
	"dialect":        dialect.SQLite,
	"log.level":      "info",
	"log.slow_query": "200ms",
	"cache.ttl":      "1h",
}

// loadConfig reads the configuration. Flag values in overrides take
// precedence over every other source.
func loadConfig(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		// Only the first underscore separates sections: CACHE_REDIS_DB is cache.redis_db.
		return strings.Replace(s, "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	for key, v := range overrides {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Dialect {
	case dialect.SQLite, dialect.Postgres, dialect.MySQL:
	default:
		return fmt.Errorf("unsupported dialect %q", c.Dialect)
	}
	for name, f := range c.Filters {
		if _, err := f.apply(); err != nil {
			return fmt.Errorf("filter %q: %w", name, err)
		}
	}
	return nil
}

// selectors returns the filters in the form the join builder expects.
func (c *Config) selectors() map[string]func(*sql.Selector) {
	m := make(map[string]func(*sql.Selector), len(c.Filters))
	for name, f := range c.Filters {
		fn, _ := f.apply()
		m[name] = fn
	}
	return m
}

func (f Filter) apply() (func(*sql.Selector), error) {
	if f.Column == "" {
		return nil, errors.New("missing column")
	}
	var pred func(string) *sql.Predicate
	switch f.Op {
	case "=", "":
		pred = func(c string) *sql.Predicate { return sql.EQ(c, f.Value) }
	case "!=":
		pred = func(c string) *sql.Predicate { return sql.NEQ(c, f.Value) }
	case ">":
		pred = func(c string) *sql.Predicate { return sql.GT(c, f.Value) }
	case ">=":
		pred = func(c string) *sql.Predicate { return sql.GTE(c, f.Value) }
	case "<":
		pred = func(c string) *sql.Predicate { return sql.LT(c, f.Value) }
	case "<=":
		pred = func(c string) *sql.Predicate { return sql.LTE(c, f.Value) }
	case "prefix":
		pred = func(c string) *sql.Predicate { return sql.HasPrefix(c, fmt.Sprint(f.Value)) }
	case "null":
		pred = sql.IsNull
	case "notnull":
		pred = sql.NotNull
	default:
		return nil, fmt.Errorf("unknown op %q", f.Op)
	}
	return func(s *sql.Selector) {
		s.Where(pred(s.C(f.Column)))
	}, nil
}
