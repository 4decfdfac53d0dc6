package main

import (
	"bytes"
	"context"
	stdsql "database/sql"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/syssam/veloxgraph/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDDL = `
CREATE TABLE persons (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, data JSON, parent_id INTEGER REFERENCES persons (id));
CREATE TABLE animals (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, owner_id INTEGER NOT NULL REFERENCES persons (id));
CREATE TABLE movies (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT);
CREATE TABLE persons_movies (person_id INTEGER NOT NULL, movie_id INTEGER NOT NULL, role TEXT, PRIMARY KEY (person_id, movie_id));
`

const testSchema = `
types:
  - name: Person
    table: persons
    columns: [name]
    json: [data]
  - name: Animal
    table: animals
    columns: [name]
  - name: Movie
    table: movies
    columns: [name]
edges:
  - {name: pets, from: Person, to: Animal, rel: O2M, columns: [owner_id]}
  - {name: parent, from: Person, to: Person, rel: M2O, columns: [parent_id]}
  - {name: children, from: Person, to: Person, rel: O2M, columns: [parent_id]}
  - name: movies
    from: Person
    to: Movie
    rel: M2M
    table: persons_movies
    columns: [person_id, movie_id]
    extras: [{name: role}]
`

const testInput = `{
  "name": "a",
  "data": {"k": "v"},
  "pets": [{"name": "rex"}, {"name": "dot"}],
  "movies": [{"#id": "alien", "name": "Alien", "role": "Ripley"}],
  "children": [{"name": "b", "movies": [{"#ref": "alien", "role": "Newt"}]}]
}`

// testEnv creates a database and the config file pointing at it.
func testEnv(t *testing.T) (config, snapshot string) {
	t.Helper()
	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "app.db") + "?_pragma=foreign_keys(1)"
	db, err := stdsql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = db.Exec(testDDL)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	snapshot = filepath.Join(dir, "columns.msgpack")
	config = writeFile(t, "veloxgraph.yaml", `
dsn: "`+dsn+`"
schema: `+writeFile(t, "schema.yaml", testSchema)+`
log:
  level: debug
cache:
  snapshot: `+snapshot+`
filters:
  r:
    column: name
    op: prefix
    value: r
`)
	return config, snapshot
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeOutput(t *testing.T, out string) []map[string]any {
	t.Helper()
	var v []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestCLI(t *testing.T) {
	config, snapshot := testEnv(t)

	out, err := execute(t, testInput, "-c", config, "insert", "Person")
	require.NoError(t, err)
	roots := decodeOutput(t, out)
	require.Len(t, roots, 1)
	assert.Equal(t, float64(1), roots[0]["id"])
	assert.NotContains(t, roots[0]["movies"].([]any)[0], entity.UIDKey)

	out, err = execute(t, "", "-c", config, "query", "Person", "[pets(r), children.movies]", "--where", "name=a")
	require.NoError(t, err)
	got := decodeOutput(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0]["name"])
	assert.Equal(t, map[string]any{"k": "v"}, got[0]["data"])
	pets := got[0]["pets"].([]any)
	require.Len(t, pets, 1)
	assert.Equal(t, "rex", pets[0].(map[string]any)["name"])
	children := got[0]["children"].([]any)
	require.Len(t, children, 1)
	movies := children[0].(map[string]any)["movies"].([]any)
	require.Len(t, movies, 1)
	assert.Equal(t, map[string]any{"id": float64(1), "name": "Alien", "role": "Newt"}, movies[0])

	out, err = execute(t, "", "-c", config, "query", "Person", "--graphql", "{ persons { name pets { name } } }", "--match", "len(pets) == 0")
	require.NoError(t, err)
	got = decodeOutput(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"name": "b", "pets": []any{}}, got[0], "identifiers are not selected")

	out, err = execute(t, "", "-c", config, "columns")
	require.NoError(t, err)
	for _, table := range []string{"animals", "movies", "persons", "persons_movies"} {
		assert.Contains(t, out, "table: "+table)
	}
	assert.FileExists(t, snapshot)

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
			err  string
		}{
			{"unknown_type", []string{"query", "Robot"}, `unknown type "Robot"`},
			{"bad_where", []string{"query", "Person", "--where", "name"}, "expected column=value"},
			{"unknown_where_column", []string{"query", "Person", "--where", "age=3"}, `has no column "age"`},
			{"expr_and_graphql", []string{"query", "Person", "pets", "--graphql", "{ persons { name } }"}, "mutually exclusive"},
			{"bad_match", []string{"query", "Person", "--match", "name +"}, "--match"},
			{"unknown_filter", []string{"query", "Person", "pets(cats)"}, "unknown named filter"},
			{"bad_allow", []string{"insert", "Person", "--allow", "[pets"}, "--allow"},
			{"not_allowed", []string{"insert", "Person", "--allow", "pets"}, "relation not allowed"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := execute(t, testInput, append([]string{"-c", config}, tt.args...)...)
				require.ErrorContains(t, err, tt.err)
			})
		}
	})
}

func TestCLI_MissingSettings(t *testing.T) {
	_, err := execute(t, "", "query", "Person")
	require.ErrorContains(t, err, "no schema file configured")
	_, err = execute(t, "", "--schema", "schema.yaml", "query", "Person")
	require.ErrorContains(t, err, "no data source configured")
	_, err = execute(t, "", "--dialect", "oracle", "query", "Person")
	require.ErrorContains(t, err, "unsupported dialect")
}

func TestMatch(t *testing.T) {
	t.Parallel()
	a := entity.New(map[string]any{"name": "a", "age": int64(40)}).
		SetOne("parent", nil).
		AddMany("pets", entity.New(map[string]any{"name": "rex"}))
	b := entity.New(map[string]any{"name": "b", "age": int64(8)}).
		SetOne("parent", a).
		SetMany("pets", nil).
		SetExtra("role", "kid")
	objs := []*entity.Object{a, b}

	tests := []struct {
		expr string
		want []*entity.Object
	}{
		{`age > 18`, []*entity.Object{a}},
		{`parent != nil && parent.name == "a"`, []*entity.Object{b}},
		{`any(pets, .name == "rex")`, []*entity.Object{a}},
		{`role == "kid"`, []*entity.Object{b}},
		{`name in ["a", "b"]`, objs},
		{`false`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := match(objs, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := match(objs, `name`)
	require.Error(t, err, "non-boolean expression")
	_, err = match(objs, `missing.field == 1`)
	require.Error(t, err)
}
