// Package dialect provides the database dialect abstraction used by veloxgraph.
//
// The graph inserter and the join eager-loader never talk to database/sql
// directly. They go through the Driver interface defined here, which allows
// wrapping (statistics, logging, transactions) and substituting a fake in tests.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//
// # Driver Interface
//
//	type Driver interface {
//	    ExecQuerier
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Transaction Interface
//
// The Tx interface extends ExecQuerier with transaction methods:
//
//	type Tx interface {
//	    ExecQuerier
//	    Commit() error
//	    Rollback() error
//	}
//
// # Usage
//
//	db, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	objs, err := sqlgraph.InsertGraph(ctx, db, personType, graph)
package dialect
