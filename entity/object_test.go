package entity_test

import (
	"testing"

	"github.com/syssam/veloxgraph"
	"github.com/syssam/veloxgraph/entity"
	"github.com/syssam/veloxgraph/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.New()
	s.MustAddType(&schema.Type{Name: "Person", Table: "persons", Columns: []string{"name", "data"}, JSONColumns: []string{"data"}})
	s.MustAddType(&schema.Type{Name: "Animal", Table: "animals", Columns: []string{"name"}})
	s.MustAddType(&schema.Type{Name: "Movie", Table: "movies", Columns: []string{"name"}})
	s.MustAddE("pets", &schema.EdgeSpec{Rel: schema.O2M, Columns: []string{"owner_id"}}, "Person", "Animal")
	s.MustAddE("parent", &schema.EdgeSpec{Rel: schema.M2O}, "Person", "Person")
	s.MustAddE("movies", &schema.EdgeSpec{Rel: schema.M2M, Table: "persons_movies", Columns: []string{"actor_id", "movie_id"}, Extras: []schema.Extra{{Name: "role"}}}, "Person", "Movie")
	return s
}

func TestObject_Relations(t *testing.T) {
	t.Parallel()
	o := entity.New(map[string]any{"name": "a"})
	o.SetOne("parent", nil)
	o.SetMany("pets", nil)
	o.AddMany("movies", entity.New(nil), entity.New(nil))

	assert.Equal(t, []string{"movies", "parent", "pets"}, o.Relations())
	assert.True(t, o.Loaded("parent"))
	assert.False(t, o.Loaded("children"))

	parent, err := o.OneOrErr("parent")
	assert.Nil(t, parent)
	require.True(t, veloxgraph.IsNotFound(err))

	_, err = o.OneOrErr("spouse")
	require.True(t, veloxgraph.IsNotLoaded(err))

	pets, err := o.ManyOrErr("pets")
	require.NoError(t, err)
	assert.NotNil(t, pets)
	assert.Empty(t, pets)

	movies, err := o.ManyOrErr("movies")
	require.NoError(t, err)
	assert.Len(t, movies, 2)

	_, err = o.ManyOrErr("children")
	require.True(t, veloxgraph.IsNotLoaded(err))
}

func TestObject_IDOf(t *testing.T) {
	t.Parallel()
	o := entity.New(map[string]any{"a": 1, "b": "x", "c": nil})
	id, ok := o.IDOf([]string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, entity.ID{1, "x"}, id)

	_, ok = o.IDOf([]string{"a", "c"})
	assert.False(t, ok, "null column")
	_, ok = o.IDOf([]string{"d"})
	assert.False(t, ok, "missing column")

	assert.Equal(t, entity.ID{int64(1), []byte("x")}.Key(), entity.ID{1, "x"}.Key())
	assert.NotEqual(t, entity.ID{"1", "2"}.Key(), entity.ID{"12"}.Key())
}

func TestObject_CopyFields(t *testing.T) {
	t.Parallel()
	src := entity.New(map[string]any{"id": 1, "tags": []any{"a"}})
	dst := entity.NewRef("x")
	dst.CopyFields(src)
	assert.Equal(t, src.Fields, dst.Fields)

	dst.Fields["tags"].([]any)[0] = "b"
	assert.Equal(t, []any{"a"}, src.Fields["tags"], "values are not shared")
}

func TestObject_Walk(t *testing.T) {
	t.Parallel()
	shared := entity.New(map[string]any{"name": "shared"})
	root := entity.New(map[string]any{"name": "root"}).
		AddMany("pets", shared, entity.New(map[string]any{"name": "b"})).
		SetOne("parent", shared)
	var names []any
	root.Walk(func(o *entity.Object) { names = append(names, o.Get("name")) })
	assert.Equal(t, []any{"root", "shared", "b"}, names)
}

func TestObject_MarshalJSON(t *testing.T) {
	t.Parallel()
	o := entity.New(map[string]any{"id": 1, "name": "a"}).
		SetOne("parent", nil).
		SetMany("pets", nil).
		AddMany("movies", entity.New(map[string]any{"id": 2}).SetExtra("role", "lead"))
	data, err := o.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"a","parent":null,"pets":[],"movies":[{"id":2,"role":"lead"}]}`, string(data))
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	person := s.Type("Person")

	objs, err := entity.DecodeJSON(person, []byte(`{
		"#id": "jennifer",
		"name": "Jennifer",
		"parent": {"name": "Sylvester"},
		"pets": [{"name": "Doggo"}, {"name": "Kat"}],
		"movies": [{"#id": "m1", "name": "Silver Linings", "role": "Tiffany"}, {"#ref": "m1", "role": "again"}]
	}`))
	require.NoError(t, err)
	require.Len(t, objs, 1)
	o := objs[0]
	assert.Equal(t, "jennifer", o.UID)
	assert.Equal(t, "Jennifer", o.Get("name"))
	parent, err := o.OneOrErr("parent")
	require.NoError(t, err)
	assert.Equal(t, "Sylvester", parent.Get("name"))
	pets, err := o.ManyOrErr("pets")
	require.NoError(t, err)
	require.Len(t, pets, 2)
	movies, err := o.ManyOrErr("movies")
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "m1", movies[0].UID)
	assert.Equal(t, "Tiffany", movies[0].Extras["role"])
	assert.NotContains(t, movies[0].Fields, "role")
	assert.Equal(t, "m1", movies[1].Ref)

	objs, err = entity.DecodeJSON(person, []byte(`[{"name": "a", "parent": null, "id": 7}, {"name": "b"}]`))
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, int64(7), objs[0].Get("id"))
	assert.True(t, objs[0].Loaded("parent"))
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()
	person := testSchema(t).Type("Person")
	tests := []struct {
		name  string
		input string
	}{
		{"unknown_column", `{"nickname": "x"}`},
		{"one_as_array", `{"parent": []}`},
		{"many_as_object", `{"pets": {}}`},
		{"many_null", `{"pets": null}`},
		{"list_item", `{"pets": [1]}`},
		{"scalar_root", `1`},
		{"invalid", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := entity.DecodeJSON(person, []byte(tt.input))
			require.Error(t, err)
		})
	}
	_, err := entity.DecodeJSON(person, []byte(`{"nickname": "x"}`))
	require.True(t, veloxgraph.IsValidationError(err))
	require.ErrorIs(t, err, veloxgraph.ErrUnknownColumn)
}

func TestParseValue(t *testing.T) {
	t.Parallel()
	assert.Equal(t, map[string]any{"a": float64(1)}, entity.ParseValue(`{"a":1}`))
	assert.Equal(t, []any{"x"}, entity.ParseValue([]byte(`["x"]`)))
	assert.Equal(t, "not json", entity.ParseValue("not json"))
	assert.Equal(t, 5, entity.ParseValue(5))
}
