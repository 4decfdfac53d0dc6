package sql

import (
	"testing"

	"github.com/syssam/veloxgraph/dialect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     Querier
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "select_columns",
			input:     Select("id", "name").From(Table("users")),
			wantQuery: `SELECT "id", "name" FROM "users"`,
		},
		{
			name:      "select_star",
			input:     Select().From(Table("users")),
			wantQuery: `SELECT * FROM "users"`,
		},
		{
			name: "select_where_and_or_postgres",
			input: Dialect(dialect.Postgres).Select("*").
				From(Table("users")).
				Where(And(EQ("name", "a8m"), Or(GT("age", 1), IsNull("age")))),
			wantQuery: `SELECT * FROM "users" WHERE "name" = $1 AND ("age" > $2 OR "age" IS NULL)`,
			wantArgs:  []any{"a8m", 1},
		},
		{
			name: "select_where_appends",
			input: Select("id").
				From(Table("users")).
				Where(EQ("a", 1)).
				Where(NEQ("b", 2)),
			wantQuery: `SELECT "id" FROM "users" WHERE "a" = ? AND "b" <> ?`,
			wantArgs:  []any{1, 2},
		},
		{
			name: "select_left_join_mysql",
			input: func() Querier {
				d := Dialect(dialect.MySQL)
				users, pets := d.Table("users").As("u"), d.Table("pets").As("p")
				return d.Select(users.C("id"), pets.C("name")).
					From(users).
					LeftJoin(pets).On(users.C("id"), pets.C("owner_id")).
					Where(EQ(users.C("id"), 1)).
					OrderBy(users.C("id")).
					Limit(5)
			}(),
			wantQuery: "SELECT `u`.`id`, `p`.`name` FROM `users` AS `u` LEFT JOIN `pets` AS `p` ON `u`.`id` = `p`.`owner_id` WHERE `u`.`id` = ? ORDER BY `u`.`id` LIMIT 5",
			wantArgs:  []any{1},
		},
		{
			name: "select_join_composite_on",
			input: func() Querier {
				a, b := Table("a"), Table("b")
				return Select(a.C("x")).
					From(a).
					Join(b).
					On(a.C("x"), b.C("x")).
					On(a.C("y"), b.C("y"))
			}(),
			wantQuery: `SELECT "a"."x" FROM "a" JOIN "b" ON "a"."x" = "b"."x" AND "a"."y" = "b"."y"`,
		},
		{
			name:      "select_alias",
			input:     Select("id").AppendSelectAs(`"p"."name"`, "p:name").From(Table("users")),
			wantQuery: `SELECT "id", "p"."name" AS "p:name" FROM "users"`,
		},
		{
			name:      "select_distinct",
			input:     Select("a").Distinct().From(Table("t")),
			wantQuery: `SELECT DISTINCT "a" FROM "t"`,
		},
		{
			name:      "select_subquery",
			input:     Select("id").From(Select("owner_id").From(Table("pets")).As("sub")),
			wantQuery: `SELECT "id" FROM (SELECT "owner_id" FROM "pets") AS "sub"`,
		},
		{
			name:      "in_empty",
			input:     Select().From(Table("t")).Where(In("id")),
			wantQuery: `SELECT * FROM "t" WHERE FALSE`,
		},
		{
			name:      "in_values",
			input:     Dialect(dialect.Postgres).Select().From(Table("t")).Where(In("id", 1, 2)),
			wantQuery: `SELECT * FROM "t" WHERE "id" IN ($1, $2)`,
			wantArgs:  []any{1, 2},
		},
		{
			name:      "not",
			input:     Select().From(Table("t")).Where(Not(EQ("a", 1))),
			wantQuery: `SELECT * FROM "t" WHERE NOT ("a" = ?)`,
			wantArgs:  []any{1},
		},
		{
			name:      "has_prefix",
			input:     Select().From(Table("t")).Where(HasPrefix("name", "a")),
			wantQuery: `SELECT * FROM "t" WHERE "name" LIKE ?`,
			wantArgs:  []any{"a%"},
		},
		{
			name: "insert_postgres",
			input: Dialect(dialect.Postgres).Insert("users").
				Columns("name", "age").
				Values("a", 1).
				Values("b", 2).
				Returning("id"),
			wantQuery: `INSERT INTO "users" ("name", "age") VALUES ($1, $2), ($3, $4) RETURNING "id"`,
			wantArgs:  []any{"a", 1, "b", 2},
		},
		{
			name:      "insert_mysql_skips_returning",
			input:     Dialect(dialect.MySQL).Insert("users").Columns("name").Values("a").Returning("id"),
			wantQuery: "INSERT INTO `users` (`name`) VALUES (?)",
			wantArgs:  []any{"a"},
		},
		{
			name:      "insert_default_sqlite",
			input:     Dialect(dialect.SQLite).Insert("users").Default().Returning("id"),
			wantQuery: `INSERT INTO "users" DEFAULT VALUES RETURNING "id"`,
		},
		{
			name:      "insert_default_mysql",
			input:     Dialect(dialect.MySQL).Insert("users").Default(),
			wantQuery: "INSERT INTO `users` VALUES ()",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := tt.input.Query()
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuilderQuote(t *testing.T) {
	t.Parallel()
	var b Builder
	assert.Equal(t, `"a""b"`, b.Quote(`a"b`))
	b.SetDialect(dialect.MySQL)
	assert.Equal(t, "`a``b`", b.Quote("a`b"))
}

func TestInsertValuesMismatch(t *testing.T) {
	t.Parallel()
	i := Insert("t").Columns("a", "b").Values(1)
	i.Query()
	require.Error(t, i.Err())
}

func TestSelectorOnWithoutJoin(t *testing.T) {
	t.Parallel()
	s := Select().From(Table("t")).On("a", "b")
	s.Query()
	require.ErrorIs(t, s.Err(), errOnWithoutJoin)
}

func TestSelectorClone(t *testing.T) {
	t.Parallel()
	base := Select("id").From(Table("t")).Where(EQ("a", 1))
	clone := base.Clone().Where(EQ("b", 2)).AppendSelect("name")

	query, args := base.Query()
	assert.Equal(t, `SELECT "id" FROM "t" WHERE "a" = ?`, query)
	assert.Equal(t, []any{1}, args)

	query, args = clone.Query()
	assert.Equal(t, `SELECT "id", "name" FROM "t" WHERE "a" = ? AND "b" = ?`, query)
	assert.Equal(t, []any{1, 2}, args)
}

func TestSelectorColumns(t *testing.T) {
	t.Parallel()
	s := Select(`"u"."id"`, "u.name", "age", "`p`.`title`")
	assert.Equal(t, []string{"id", "name", "age", "title"}, s.UnqualifiedColumns())
	assert.True(t, s.HasColumn("name"))
	assert.False(t, s.HasColumn("email"))

	s.From(Table("users").As("u"))
	assert.Equal(t, "u", s.TableName())
	assert.Equal(t, `"u"."email"`, s.C("email"))
	assert.NotNil(t, s.Table())
	assert.Zero(t, s.Joins())
}
