package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML representation of a schema.
//
//	types:
//	  - name: Person
//	    table: persons
//	    columns: [name, age]
//	    json: [data]
//	edges:
//	  - name: pets
//	    from: Person
//	    to: Animal
//	    rel: O2M
//	    columns: [owner_id]
type File struct {
	Types []TypeDecl `yaml:"types"`
	Edges []EdgeDecl `yaml:"edges,omitempty"`
}

// TypeDecl declares a type in a schema file.
type TypeDecl struct {
	Name    string   `yaml:"name"`
	Table   string   `yaml:"table,omitempty"`
	ID      []string `yaml:"id,omitempty"`
	Columns []string `yaml:"columns,omitempty"`
	JSON    []string `yaml:"json,omitempty"`
}

// EdgeDecl declares an edge in a schema file.
type EdgeDecl struct {
	Name    string   `yaml:"name"`
	From    string   `yaml:"from"`
	To      string   `yaml:"to"`
	Rel     Rel      `yaml:"rel"`
	Inverse bool     `yaml:"inverse,omitempty"`
	Table   string   `yaml:"table,omitempty"`
	Columns []string `yaml:"columns,omitempty"`
	Extras  []Extra  `yaml:"extras,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler for Rel.
func (r *Rel) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected relation name, got %v", node.Kind)
	}
	rel, err := ParseRel(node.Value)
	if err != nil {
		return err
	}
	*r = rel
	return nil
}

// MarshalYAML implements yaml.Marshaler for Rel.
func (r Rel) MarshalYAML() (any, error) {
	return r.String(), nil
}

// Load reads a YAML schema file and builds the schema it declares.
// Types are added before edges, so edges may reference types declared later.
func Load(r io.Reader) (*Schema, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("schema: parse: %w", err)
	}
	return f.Build()
}

// LoadFile is like Load but reads the schema from the given path.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Build creates the schema declared by the file.
func (f *File) Build() (*Schema, error) {
	s := New()
	for _, d := range f.Types {
		t := &Type{Name: d.Name, Table: d.Table, IDColumns: d.ID, Columns: d.Columns, JSONColumns: d.JSON}
		if err := s.AddType(t); err != nil {
			return nil, err
		}
		t.addColumns(d.JSON...)
	}
	for _, e := range f.Edges {
		spec := &EdgeSpec{Rel: e.Rel, Inverse: e.Inverse, Table: e.Table, Columns: e.Columns, Extras: e.Extras}
		if err := s.AddE(e.Name, spec, e.From, e.To); err != nil {
			return nil, err
		}
	}
	return s, nil
}
