package fmdata

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/fivetwenty-io/fmdata/internal/constants"
)

// orderedMap keeps insertion order for serialization.
type orderedMap[V any] struct {
	keys   []string
	values map[string]V
}

func newOrderedMap[V any]() orderedMap[V] {
	return orderedMap[V]{values: make(map[string]V)}
}

func (m *orderedMap[V]) set(key string, value V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}

	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}

	m.values[key] = value
}

func (m *orderedMap[V]) get(key string) (V, bool) {
	value, ok := m.values[key]

	return value, ok
}

func (m *orderedMap[V]) remove(key string) {
	if _, exists := m.values[key]; !exists {
		return
	}

	delete(m.values, key)

	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)

			break
		}
	}
}

func (m *orderedMap[V]) clone() orderedMap[V] {
	out := orderedMap[V]{
		keys:   append([]string(nil), m.keys...),
		values: make(map[string]V, len(m.values)),
	}

	for k, v := range m.values {
		out.values[k] = v
	}

	return out
}

func (m *orderedMap[V]) writeJSON(buf *bytes.Buffer, rename func(string) string) error {
	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		name := key
		if rename != nil {
			name = rename(key)
		}

		encodedKey, err := marshalJSON(name)
		if err != nil {
			return err
		}

		encodedValue, err := marshalJSON(m.values[key])
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}

		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.Write(encodedValue)
	}

	return nil
}

// FindRequest is one request of a find: field criteria that must all match,
// optionally flagged as an omit (exclusion) request.
type FindRequest struct {
	criteria orderedMap[string]
	omit     bool
	rename   func(string) string
}

// NewFindRequest creates an empty request.
func NewFindRequest() *FindRequest {
	return &FindRequest{criteria: newOrderedMap[string]()}
}

// Set stores a criterion. Setting the same field twice keeps the original position.
func (r *FindRequest) Set(field, condition string) *FindRequest {
	r.criteria.set(field, condition)

	return r
}

// Get returns the criterion for field.
func (r *FindRequest) Get(field string) (string, bool) {
	return r.criteria.get(field)
}

// Fields returns the field names in insertion order.
func (r *FindRequest) Fields() []string {
	return append([]string(nil), r.criteria.keys...)
}

// Len returns the number of criteria, excluding the omit flag.
func (r *FindRequest) Len() int {
	return len(r.criteria.keys)
}

// SetOmit flags the request as an exclusion.
func (r *FindRequest) SetOmit(omit bool) *FindRequest {
	r.omit = omit

	return r
}

// Omit reports whether the request is an exclusion.
func (r *FindRequest) Omit() bool {
	return r.omit
}

// Clone returns an independent copy.
func (r *FindRequest) Clone() *FindRequest {
	return &FindRequest{criteria: r.criteria.clone(), omit: r.omit, rename: r.rename}
}

// MarshalJSON writes criteria in insertion order followed by "omit":"true" when set.
func (r *FindRequest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	err := r.criteria.writeJSON(&buf, r.rename)
	if err != nil {
		return nil, err
	}

	if r.omit {
		if r.Len() > 0 {
			buf.WriteByte(',')
		}

		buf.WriteString(`"omit":"` + constants.OmitTrue + `"`)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// FieldData is an ordered set of field values for create and edit.
type FieldData struct {
	values orderedMap[Value]
	rename func(string) string
}

// NewFieldData creates an empty set.
func NewFieldData() *FieldData {
	return &FieldData{values: newOrderedMap[Value]()}
}

// FieldDataFrom converts a map. Keys are ordered by name.
func FieldDataFrom(m map[string]any) *FieldData {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	sort.Strings(names)

	data := NewFieldData()
	for _, name := range names {
		data.Set(name, m[name])
	}

	return data
}

// Set stores a value converted with ValueOf.
func (d *FieldData) Set(name string, value any) *FieldData {
	d.values.set(name, ValueOf(value))

	return d
}

// Get returns the value for name.
func (d *FieldData) Get(name string) (Value, bool) {
	return d.values.get(name)
}

// Delete removes name.
func (d *FieldData) Delete(name string) {
	d.values.remove(name)
}

// Names returns the field names in insertion order.
func (d *FieldData) Names() []string {
	return append([]string(nil), d.values.keys...)
}

// Len returns the number of fields.
func (d *FieldData) Len() int {
	if d == nil {
		return 0
	}

	return len(d.values.keys)
}

// Clone returns an independent copy.
func (d *FieldData) Clone() *FieldData {
	if d == nil {
		return nil
	}

	return &FieldData{values: d.values.clone(), rename: d.rename}
}

// Split separates container uploads from the serializable values.
func (d *FieldData) Split() (*FieldData, []*ContainerUpload) {
	plain := &FieldData{values: newOrderedMap[Value](), rename: d.rename}

	var uploads []*ContainerUpload

	for _, name := range d.values.keys {
		value := d.values.values[name]
		if value.IsContainer() {
			upload := *value.Upload()
			upload.Field = name

			if d.rename != nil {
				upload.Field = d.rename(name)
			}

			uploads = append(uploads, &upload)

			continue
		}

		plain.values.set(name, value)
	}

	return plain, uploads
}

// MarshalJSON writes fields in insertion order.
func (d *FieldData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	err := d.values.writeJSON(&buf, d.rename)
	if err != nil {
		return nil, err
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
