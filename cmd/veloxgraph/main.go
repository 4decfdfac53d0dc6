// Command veloxgraph inserts JSON object graphs into a SQL database and
// loads them back with eager expressions.
//
//	veloxgraph --schema schema.yaml --dsn app.db insert Person people.json
//	veloxgraph --schema schema.yaml --dsn app.db query Person '[pets, children.pets]'
//	veloxgraph --schema schema.yaml --dsn app.db columns persons animals
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// cli holds the state shared by all commands of one execution.
type cli struct {
	configPath string
	cfg        *Config
	log        *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:           "veloxgraph",
		Short:         "Insert object graphs and eager-load relations over SQL",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	flags.String("dialect", "", "database dialect: sqlite|postgres|mysql")
	flags.String("dsn", "", "data source name")
	flags.String("schema", "", "YAML schema file")
	flags.String("log-level", "", "log level: debug|info|warn|error")
	flags.String("log-format", "", "log format: text|json (default: text on terminals)")

	cmd.AddCommand(c.insertCmd(), c.queryCmd(), c.columnsCmd())
	return cmd
}

// configFlags maps flags to configuration keys.
var configFlags = map[string]string{
	"dialect":    "dialect",
	"dsn":        "dsn",
	"schema":     "schema",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func (c *cli) init(cmd *cobra.Command) error {
	overrides := make(map[string]any)
	for name, key := range configFlags {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}
	cfg, err := loadConfig(c.configPath, overrides)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	c.cfg, c.log = cfg, log
	log.Debug("config loaded", "dialect", cfg.Dialect, "schema", cfg.Schema, "cache", cfg.Cache.Redis != "")
	return nil
}

func newLogger(w io.Writer, c LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	format := c.Format
	if format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			format = "text"
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
