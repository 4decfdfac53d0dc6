// Package sql provides SQL query building primitives and database dialect abstraction.
//
// This package is the foundation for generating and executing the statements
// issued by the graph inserter and the eager loader across different database
// systems (PostgreSQL, MySQL, SQLite).
//
// # Builder Types
//
//   - Builder: Low-level SQL string builder with identifier quoting
//   - Selector: SELECT query builder with joins, aliased columns and predicates
//   - InsertBuilder: multi-row INSERT statement builder with RETURNING support
//
// # Dialect Support
//
// SQL generation adapts to different database dialects:
//
//	import "github.com/syssam/veloxgraph/dialect"
//
//	// PostgreSQL: "quoted" identifiers and $n placeholders.
//	b := sql.Dialect(dialect.Postgres)
//	b.Select("id", "name").From(sql.Table("users")).Where(sql.EQ("status", "active"))
//
//	// MySQL: `quoted` identifiers, ? placeholders and no RETURNING.
//	b := sql.Dialect(dialect.MySQL)
//
// # Predicates
//
//	sql.EQ("name", "john")           // name = ?
//	sql.NEQ("status", "deleted")     // status <> ?
//	sql.GT("age", 18)                // age > ?
//	sql.HasPrefix("email", "admin")  // email LIKE 'admin%'
//	sql.IsNull("deleted_at")         // deleted_at IS NULL
//	sql.In("status", "a", "b")       // status IN (?, ?)
//
// # Joins
//
// Eager loading relies on LEFT JOINs whose table aliases and column aliases
// carry the relation path:
//
//	owner, pets := sql.Table("persons"), sql.Table("animals").As("pets")
//	sql.Select(owner.C("id")).
//	    AppendSelectAs(pets.C("name"), "pets:name").
//	    From(owner).
//	    LeftJoin(pets).On(owner.C("id"), pets.C("owner_id"))
//
// # Execution
//
// Driver adapts a *sql.DB to dialect.Driver. StatsDriver wraps any driver
// with counters and slog based statement logging, and ScanMaps reads a result
// set into column-keyed maps.
package sql
