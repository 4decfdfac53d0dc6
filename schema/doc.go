// Package schema describes entity types and the relations between them.
//
// A Type names the table backing an entity, its identifier columns and its
// declared columns. Relations form a closed set of kinds (Rel): has-one (O2O),
// has-many (O2M), belongs-to (M2O), many-to-many (M2M) and has-one-through
// (O2OThrough). The graph inserter and the eager join builder switch over
// these kinds to decide foreign-key ownership and join shape.
//
// Schemas are declared in Go:
//
//	s := schema.New()
//	s.MustAddType(&schema.Type{Name: "Person", Table: "persons", Columns: []string{"name"}})
//	s.MustAddType(&schema.Type{Name: "Animal", Table: "animals", Columns: []string{"name"}})
//	s.MustAddE("pets", &schema.EdgeSpec{Rel: schema.O2M, Columns: []string{"owner_id"}}, "Person", "Animal")
//
// or loaded from YAML with Load and LoadFile. Foreign-key and join-table
// names that are left out are derived from the table names: the edge above
// would default to "person_id", and a many-to-many edge "movies" on
// "persons" to the join table "person_movies".
package schema
