package sqlgraph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"
	"github.com/samber/lo"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/syssam/veloxgraph"
	"github.com/syssam/veloxgraph/dialect"
	"github.com/syssam/veloxgraph/schema"
)

// TableInfo is the column metadata of a table.
type TableInfo struct {
	Table   string   `msgpack:"table" json:"table"`
	Columns []string `msgpack:"columns" json:"columns"`
	JSON    []string `msgpack:"json,omitempty" json:"json,omitempty"`
}

// HasColumn reports if the table has the given column.
func (t *TableInfo) HasColumn(c string) bool {
	return slices.Contains(t.Columns, c)
}

// IsJSON reports if the given column holds JSON.
func (t *TableInfo) IsJSON(c string) bool {
	return slices.Contains(t.JSON, c)
}

// Fetcher loads the column metadata of a table.
type Fetcher interface {
	FetchColumns(ctx context.Context, table string) (*TableInfo, error)
}

// The FetcherFunc type is an adapter to allow the use of ordinary
// functions as a Fetcher.
type FetcherFunc func(context.Context, string) (*TableInfo, error)

// FetchColumns calls f(ctx, table).
func (f FetcherFunc) FetchColumns(ctx context.Context, table string) (*TableInfo, error) {
	return f(ctx, table)
}

type (
	// StoreOption configures a ColumnStore.
	StoreOption func(*ColumnStore)
)

// WithCache persists fetched metadata in c under keys of the given
// dialect. A zero ttl never expires.
func WithCache(c veloxgraph.Cache, dialect string, ttl time.Duration) StoreOption {
	return func(s *ColumnStore) {
		s.cache, s.dialect, s.ttl = c, dialect, ttl
	}
}

// WithStoreLogger sets the logger of the store.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *ColumnStore) {
		s.log = l
	}
}

// ColumnStore holds the column metadata of tables. Entries are fetched
// once, on first use, and only read afterwards. Concurrent misses for
// the same table share one fetch.
type ColumnStore struct {
	fetcher Fetcher
	cache   veloxgraph.Cache
	dialect string
	ttl     time.Duration
	log     *slog.Logger
	group   singleflight.Group

	mu     sync.RWMutex
	tables map[string]*TableInfo
}

// NewColumnStore returns an empty store backed by the given fetcher.
func NewColumnStore(f Fetcher, opts ...StoreOption) *ColumnStore {
	s := &ColumnStore{
		fetcher: f,
		log:     discardLogger,
		tables:  make(map[string]*TableInfo),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Columns returns the metadata of the given table, fetching it if needed.
// Concurrent misses share one fetch, which outlives the cancellation of
// any single caller.
func (s *ColumnStore) Columns(ctx context.Context, table string) (*TableInfo, error) {
	s.mu.RLock()
	info, ok := s.tables[table]
	s.mu.RUnlock()
	if ok {
		return info, nil
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(table, func() (any, error) {
		s.mu.RLock()
		info, ok := s.tables[table]
		s.mu.RUnlock()
		if ok {
			return info, nil
		}
		info, err := s.load(fetchCtx, table)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.tables[table] = info
		s.mu.Unlock()
		return info, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TableInfo), nil
	}
}

func (s *ColumnStore) load(ctx context.Context, table string) (*TableInfo, error) {
	key := veloxgraph.CacheKey{Dialect: s.dialect, Table: table}.String()
	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("sqlgraph: column cache get failed", "table", table, "error", err)
		}
		if len(data) > 0 {
			info := &TableInfo{}
			if err := msgpack.Unmarshal(data, info); err == nil {
				s.log.Debug("sqlgraph: columns from cache", "table", table)
				return info, nil
			}
			s.log.Warn("sqlgraph: corrupt column cache entry", "table", table)
		}
	}
	start := time.Now()
	info, err := s.fetcher.FetchColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: fetch columns of %q: %w", table, err)
	}
	s.log.Debug("sqlgraph: columns fetched", "table", table, "columns", len(info.Columns), "duration", time.Since(start))
	if s.cache != nil {
		data, err := msgpack.Marshal(info)
		if err == nil {
			err = s.cache.Set(ctx, key, data, s.ttl)
		}
		if err != nil {
			s.log.Warn("sqlgraph: column cache set failed", "table", table, "error", err)
		}
	}
	return info, nil
}

// Prefetch fetches the metadata of all given tables concurrently.
func (s *ColumnStore) Prefetch(ctx context.Context, tables ...string) error {
	grp, ctx := errgroup.WithContext(ctx)
	for _, t := range lo.Uniq(tables) {
		grp.Go(func() error {
			_, err := s.Columns(ctx, t)
			return err
		})
	}
	return grp.Wait()
}

// Snapshot encodes all loaded metadata.
func (s *ColumnStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return msgpack.Marshal(s.tables)
}

// Restore loads metadata encoded by Snapshot. Tables already present in
// the store are kept.
func (s *ColumnStore) Restore(data []byte) error {
	var tables map[string]*TableInfo
	if err := msgpack.Unmarshal(data, &tables); err != nil {
		return fmt.Errorf("sqlgraph: restore columns: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, info := range tables {
		if _, ok := s.tables[t]; !ok {
			s.tables[t] = info
		}
	}
	return nil
}

// SchemaFetcher serves the columns declared by a schema.
type SchemaFetcher struct {
	Schema *schema.Schema
}

// FetchColumns implements Fetcher.
func (f SchemaFetcher) FetchColumns(_ context.Context, table string) (*TableInfo, error) {
	t := f.Schema.TypeByTable(table)
	if t == nil {
		return nil, veloxgraph.NewNotFoundError("table " + table)
	}
	return &TableInfo{Table: table, Columns: t.Columns, JSON: t.JSONColumns}, nil
}

// InspectFetcher reads columns from the database catalog.
type InspectFetcher struct {
	inspector atlas.Inspector
	schema    string
}

// NewInspectFetcher returns a fetcher inspecting the given database. An
// empty schema name inspects the connection's current schema.
func NewInspectFetcher(name string, db atlas.ExecQuerier, schemaName string) (*InspectFetcher, error) {
	var (
		drv migrate.Driver
		err error
	)
	switch name {
	case dialect.SQLite:
		drv, err = sqlite.Open(db)
	case dialect.Postgres:
		drv, err = postgres.Open(db)
	case dialect.MySQL:
		drv, err = mysql.Open(db)
	default:
		return nil, fmt.Errorf("sqlgraph: unsupported dialect %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: open %s inspector: %w", name, err)
	}
	return &InspectFetcher{inspector: drv, schema: schemaName}, nil
}

// FetchColumns implements Fetcher.
func (f *InspectFetcher) FetchColumns(ctx context.Context, table string) (*TableInfo, error) {
	s, err := f.inspector.InspectSchema(ctx, f.schema, &atlas.InspectOptions{
		Mode:   atlas.InspectTables,
		Tables: []string{table},
	})
	if err != nil {
		return nil, err
	}
	t, ok := s.Table(table)
	if !ok {
		return nil, veloxgraph.NewNotFoundError("table " + table)
	}
	info := &TableInfo{Table: table}
	for _, c := range t.Columns {
		info.Columns = append(info.Columns, c.Name)
		if c.Type != nil {
			if _, ok := c.Type.Type.(*atlas.JSONType); ok {
				info.JSON = append(info.JSON, c.Name)
			}
		}
	}
	return info, nil
}
