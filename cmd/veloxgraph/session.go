package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/syssam/veloxgraph/contrib/gocache"
	"github.com/syssam/veloxgraph/dialect/sql"
	"github.com/syssam/veloxgraph/dialect/sql/sqlgraph"
	"github.com/syssam/veloxgraph/schema"
)

// session is an open database with its schema and column store.
type session struct {
	cfg    *Config
	log    *slog.Logger
	schema *schema.Schema
	db     *sql.Driver
	// drv wraps db and records every statement.
	drv   *sql.StatsDriver
	store *sqlgraph.ColumnStore
}

func (c *cli) open(ctx context.Context) (*session, error) {
	cfg := c.cfg
	if cfg.Schema == "" {
		return nil, errors.New("no schema file configured (--schema or VELOXGRAPH_SCHEMA)")
	}
	if cfg.DSN == "" {
		return nil, errors.New("no data source configured (--dsn or VELOXGRAPH_DSN)")
	}
	sc, err := schema.LoadFile(cfg.Schema)
	if err != nil {
		return nil, err
	}
	drv, err := sql.Open(cfg.Dialect, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Dialect, err)
	}
	if err := drv.DB().PingContext(ctx); err != nil {
		drv.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", cfg.Dialect, err)
	}
	fetcher, err := sqlgraph.NewInspectFetcher(cfg.Dialect, drv.DB(), "")
	if err != nil {
		drv.Close()
		return nil, err
	}
	opts := []sqlgraph.StoreOption{sqlgraph.WithStoreLogger(c.log)}
	if cfg.Cache.Redis != "" {
		opts = append(opts, sqlgraph.WithCache(gocache.NewRedis(cfg.Cache.Redis, cfg.Cache.RedisDB), cfg.Dialect, cfg.Cache.TTL))
	}
	s := &session{
		cfg:    cfg,
		log:    c.log,
		schema: sc,
		db:     drv,
		drv:    sql.NewStatsDriver(drv, sql.WithLogger(c.log), sql.WithSlowThreshold(cfg.Log.SlowQuery)),
		store:  sqlgraph.NewColumnStore(fetcher, opts...),
	}
	if path := cfg.Cache.Snapshot; path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			drv.Close()
			return nil, fmt.Errorf("reading column snapshot: %w", err)
		default:
			if err := s.store.Restore(data); err != nil {
				s.log.Warn("ignoring column snapshot", "path", path, "error", err)
			}
		}
	}
	return s, nil
}

// Close saves the column snapshot, if configured, and closes the database.
func (s *session) Close() error {
	var errs []error
	if path := s.cfg.Cache.Snapshot; path != "" {
		data, err := s.store.Snapshot()
		if err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("saving column snapshot: %w", err))
		}
	}
	s.log.Debug("session closed", "stats", s.drv.QueryStats().String())
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// typ returns the schema type with the given name.
func (s *session) typ(name string) (*schema.Type, error) {
	t := s.schema.Type(name)
	if t == nil {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	return t, nil
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
