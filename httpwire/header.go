package httpwire

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Field is one header entry: the spelling of its first appearance on the
// wire plus every value seen for that name, in order.
type Field struct {
	Name   string
	Values []string
}

// Header is an ordered, case-insensitive header container. Lookup ignores
// case; iteration yields fields in order of first appearance with their
// original casing intact.
type Header struct {
	om *orderedmap.OrderedMap[string, *Field]
}

func NewHeader() *Header {
	return &Header{om: orderedmap.New[string, *Field]()}
}

// Add appends a value for name, creating the field on first appearance.
func (h *Header) Add(name, value string) {
	key := strings.ToLower(name)
	if f, ok := h.om.Get(key); ok {
		f.Values = append(f.Values, value)
		return
	}
	h.om.Set(key, &Field{Name: name, Values: []string{value}})
}

// Set replaces every value for name with the single given value. The
// original casing of the first appearance is kept; a new field takes the
// casing of this call.
func (h *Header) Set(name, value string) {
	key := strings.ToLower(name)
	if f, ok := h.om.Get(key); ok {
		f.Values = f.Values[:0]
		f.Values = append(f.Values, value)
		return
	}
	h.om.Set(key, &Field{Name: name, Values: []string{value}})
}

// Get returns the first value for name.
func (h *Header) Get(name string) (string, bool) {
	if f, ok := h.om.Get(strings.ToLower(name)); ok && len(f.Values) > 0 {
		return f.Values[0], true
	}
	return "", false
}

// Values returns every value for name in order.
func (h *Header) Values(name string) []string {
	if f, ok := h.om.Get(strings.ToLower(name)); ok {
		return f.Values
	}
	return nil
}

// Has reports whether name appears at all.
func (h *Header) Has(name string) bool {
	_, ok := h.om.Get(strings.ToLower(name))
	return ok
}

// Del removes every value for name.
func (h *Header) Del(name string) {
	h.om.Delete(strings.ToLower(name))
}

// Len returns the number of distinct field names.
func (h *Header) Len() int {
	return h.om.Len()
}

// Range calls fn for each field in order of first appearance. Returning
// false stops the walk.
func (h *Header) Range(fn func(f *Field) bool) {
	for pair := h.om.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Value) {
			return
		}
	}
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	out := NewHeader()
	h.Range(func(f *Field) bool {
		for _, v := range f.Values {
			out.Add(f.Name, v)
		}
		return true
	})
	return out
}
