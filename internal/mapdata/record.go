package mapdata

import (
	"errors"
	"fmt"

	"github.com/Faultbox/maplemap/pkg/nx"
)

// Field errors returned by Record accessors.
var (
	ErrMissingField = errors.New("missing field")
	ErrFieldType    = errors.New("field has wrong type")
)

// Record is one map section or entry projected to its field values. Entry
// records (back, tile, obj, portal) carry a synthetic "name" field holding
// the entry's node name.
type Record map[string]nx.Value

// Name returns the entry name.
func (r Record) Name() string {
	s, _ := r["name"].AsString()
	return s
}

// Has reports whether the field is present.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && !v.IsNone()
}

// Int returns a required integer field.
func (r Record) Int(field string) (int, error) {
	v, ok := r[field]
	if !ok || v.IsNone() {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	n, ok := v.AsInt()
	if !ok {
		return 0, fmt.Errorf("%w: %s is %s", ErrFieldType, field, v.Kind)
	}
	return n, nil
}

// IntOr returns an optional integer field, or def when it is absent or not
// numeric.
func (r Record) IntOr(field string, def int) int {
	n, err := r.Int(field)
	if err != nil {
		return def
	}
	return n
}

// String returns a required string field. Integers are formatted.
func (r Record) String(field string) (string, error) {
	v, ok := r[field]
	if !ok || v.IsNone() {
		return "", fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	s, ok := v.AsString()
	if !ok {
		return "", fmt.Errorf("%w: %s is %s", ErrFieldType, field, v.Kind)
	}
	return s, nil
}

// StringOr returns an optional string field.
func (r Record) StringOr(field, def string) string {
	s, err := r.String(field)
	if err != nil {
		return def
	}
	return s
}

// NewRecord projects the direct children of node.
func NewRecord(node nx.Node) Record {
	kids := node.Children()
	r := make(Record, len(kids)+1)
	for _, c := range kids {
		r[c.Name()] = c.Value()
	}
	return r
}

// entryRecord is NewRecord plus the synthetic name. A child named "name"
// overrides it.
func entryRecord(node nx.Node) Record {
	r := NewRecord(node)
	if _, ok := r["name"]; !ok {
		r["name"] = nx.StringValue(node.Name())
	}
	return r
}

func records(node nx.Node) []Record {
	elems := node.Elements()
	out := make([]Record, 0, len(elems))
	for _, e := range elems {
		out = append(out, entryRecord(e))
	}
	return out
}
