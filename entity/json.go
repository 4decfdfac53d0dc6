package entity

import (
	"bytes"
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"

	"github.com/syssam/veloxgraph"
	"github.com/syssam/veloxgraph/schema"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Keys naming the synthetic identifiers in JSON input.
const (
	UIDKey = "#id"
	RefKey = "#ref"
)

// MarshalJSON encodes the object with its fields, extras and relations.
// Singular relations encode as an object or null, plural ones as an array.
func (o *Object) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(o.Fields)+len(o.Extras)+len(o.One)+len(o.Many))
	for k, v := range o.Fields {
		m[k] = v
	}
	for k, v := range o.Extras {
		m[k] = v
	}
	for k, v := range o.One {
		m[k] = v
	}
	for k, vs := range o.Many {
		if vs == nil {
			vs = []*Object{}
		}
		m[k] = vs
	}
	if o.UID != "" {
		m[UIDKey] = o.UID
	}
	if o.Ref != "" {
		m[RefKey] = o.Ref
	}
	return json.Marshal(m)
}

// DecodeJSON decodes a JSON object or array of objects of the given type.
func DecodeJSON(typ *schema.Type, data []byte) ([]*Object, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("entity: decode %s: %w", typ.Name, err)
	}
	switch v := v.(type) {
	case map[string]any:
		o, err := Decode(typ, v)
		if err != nil {
			return nil, err
		}
		return []*Object{o}, nil
	case []any:
		return decodeList(typ, typ.Name, v, nil)
	default:
		return nil, fmt.Errorf("entity: decode %s: expected object or array, got %T", typ.Name, v)
	}
}

// Decode builds an object graph of the given type from a column-keyed map,
// as produced by decoding JSON. Keys naming relations of the type are
// decoded recursively, "#id" and "#ref" set the synthetic identifiers, and
// every other key must be a column of the type.
func Decode(typ *schema.Type, m map[string]any) (*Object, error) {
	return decode(typ, typ.Name, m, nil)
}

func decode(typ *schema.Type, path string, m map[string]any, extras []schema.Extra) (*Object, error) {
	o := New(nil)
	for k, v := range m {
		switch k {
		case UIDKey, RefKey:
			s, ok := v.(string)
			if !ok {
				s = fmt.Sprint(v)
			}
			if k == UIDKey {
				o.UID = s
			} else {
				o.Ref = s
			}
			continue
		}
		if r := typ.Relation(k); r != nil {
			if err := decodeRelation(o, r, path+"."+k, v); err != nil {
				return nil, err
			}
			continue
		}
		if isExtra(extras, k) {
			o.SetExtra(k, normalize(v))
			continue
		}
		if !typ.HasColumn(k) {
			return nil, veloxgraph.Validationf(path+"."+k, veloxgraph.ErrUnknownColumn, "table %q", typ.Table)
		}
		o.Set(k, normalize(v))
	}
	return o, nil
}

func decodeRelation(o *Object, r *schema.Relation, path string, v any) error {
	var extras []schema.Extra
	if r.Through != nil {
		extras = r.Through.Extras
	}
	switch v := v.(type) {
	case nil:
		if !r.OneToOne() {
			return fmt.Errorf("entity: %s: expected array, got null", path)
		}
		o.SetOne(r.Name, nil)
	case map[string]any:
		if !r.OneToOne() {
			return fmt.Errorf("entity: %s: expected array, got object", path)
		}
		child, err := decode(r.Related, path, v, extras)
		if err != nil {
			return err
		}
		o.SetOne(r.Name, child)
	case []any:
		if r.OneToOne() {
			return fmt.Errorf("entity: %s: expected object, got array", path)
		}
		children, err := decodeList(r.Related, path, v, extras)
		if err != nil {
			return err
		}
		o.SetMany(r.Name, children)
	default:
		return fmt.Errorf("entity: %s: unexpected value %T", path, v)
	}
	return nil
}

func decodeList(typ *schema.Type, path string, vs []any, extras []schema.Extra) ([]*Object, error) {
	objs := make([]*Object, 0, len(vs))
	for i, v := range vs {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entity: %s[%d]: expected object, got %T", path, i, v)
		}
		o, err := decode(typ, fmt.Sprintf("%s[%d]", path, i), m, extras)
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	return objs, nil
}

func isExtra(extras []schema.Extra, name string) bool {
	for _, e := range extras {
		if e.Name == name {
			return true
		}
	}
	return false
}

// normalize turns integral JSON numbers into int64.
func normalize(v any) any {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return v
	}
	return int64(f)
}

// ParseValue parses a JSON column value. Values that are not valid JSON
// are returned unchanged.
func ParseValue(v any) any {
	var data []byte
	switch v := v.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return v
	}
	var out any
	if err := json.Unmarshal(bytes.TrimSpace(data), &out); err != nil {
		return string(data)
	}
	return out
}
