package sql

import (
	"testing"

	"github.com/syssam/veloxgraph/dialect"
)

func BenchmarkInsertBuilder_Default(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Insert("users").Default().Returning("id").Query()
			}
		})
	}
}

func BenchmarkInsertBuilder_Small(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Insert("users").
					Columns("id", "age", "first_name", "last_name", "nickname", "spouse_id", "created_at", "updated_at").
					Values(1, 30, "Ariel", "Mashraki", "a8m", 2, "2009-11-10 23:00:00", "2009-11-10 23:00:00").
					Returning("id").
					Query()
			}
		})
	}
}

func BenchmarkSelectBuilder_Simple(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Select("id", "name", "email").
					From(Table("users")).
					Query()
			}
		})
	}
}

func BenchmarkSelectBuilder_WithJoins(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				users := Table("users").As("u")
				posts := Table("posts").As("p")
				Dialect(d).Select("u.id", "u.name", "p.title").
					From(users).
					Join(posts).On(users.C("id"), posts.C("user_id")).
					Where(EQ("u.active", true)).
					OrderBy("u.created_at").
					Limit(10).
					Query()
			}
		})
	}
}

func BenchmarkSelectBuilder_Complex(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Select("*").
					From(Table("users")).
					Where(
						And(
							EQ("status", "active"),
							Or(
								GT("age", 18),
								EQ("role", "admin"),
							),
							In("department", "engineering", "product", "design"),
							NotNull("email"),
						),
					).
					OrderBy("created_at", "name").
					Limit(100).
					Query()
			}
		})
	}
}

func BenchmarkPredicates_Simple(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = EQ("name", "John")
		_ = NEQ("status", "deleted")
		_ = GT("age", 18)
		_ = LT("score", 100)
	}
}

func BenchmarkPredicates_Compound(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = And(
			EQ("status", "active"),
			Or(
				GT("age", 18),
				EQ("role", "admin"),
			),
			In("department", "eng", "product"),
			NotNull("email"),
			HasPrefix("name", "John"),
		)
	}
}

func BenchmarkSelectBuilder_EagerJoin(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				person := Table("persons")
				pets := Table("animals").As("pets")
				toys := Table("toys").As("pets:toys")
				Dialect(d).Select(person.C("id")).
					AppendSelectAs(pets.C("id"), "pets:id").
					AppendSelectAs(toys.C("name"), "pets:toys:name").
					From(person).
					LeftJoin(pets).On(person.C("id"), pets.C("owner_id")).
					LeftJoin(toys).On(pets.C("id"), toys.C("animal_id")).
					Query()
			}
		})
	}
}
