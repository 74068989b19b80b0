// Package probability turns the class-to-probability mapping returned by the
// classification service into an ordered, display-ready list.
//
// Nothing here clamps or renormalizes values; out-of-range probabilities are
// passed through as received.
package probability

import (
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Mapping is a class-name to probability mapping that remembers insertion
// order, including the key order of the JSON object it was decoded from.
// The zero value is an empty mapping.
type Mapping struct {
	om *orderedmap.OrderedMap[string, float64]
}

// Pair is a single class/probability association used to build a Mapping.
type Pair struct {
	Class string
	Value float64
}

// NewMapping builds a mapping from pairs, in the order given. A repeated
// class keeps its first position and its last value.
func NewMapping(pairs ...Pair) *Mapping {
	m := &Mapping{om: orderedmap.New[string, float64](len(pairs))}
	for _, p := range pairs {
		m.om.Set(p.Class, p.Value)
	}
	return m
}

// Len returns the number of classes.
func (m *Mapping) Len() int {
	if m == nil || m.om == nil {
		return 0
	}
	return m.om.Len()
}

// Get returns the probability recorded for class.
func (m *Mapping) Get(class string) (float64, bool) {
	if m == nil || m.om == nil {
		return 0, false
	}
	return m.om.Get(class)
}

// Pairs returns the associations in insertion order.
func (m *Mapping) Pairs() []Pair {
	if m.Len() == 0 {
		return nil
	}
	pairs := make([]Pair, 0, m.om.Len())
	for el := m.om.Oldest(); el != nil; el = el.Next() {
		pairs = append(pairs, Pair{Class: el.Key, Value: el.Value})
	}
	return pairs
}

// MarshalJSON encodes the mapping as a JSON object in insertion order.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	if m == nil || m.om == nil {
		return []byte("{}"), nil
	}
	return m.om.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping its key order.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	om := orderedmap.New[string, float64]()
	if err := om.UnmarshalJSON(data); err != nil {
		return err
	}
	m.om = om
	return nil
}

// Entry is one renderable row: the class, its raw value and the value as a
// percentage with exactly two decimals.
type Entry struct {
	Class   string  `json:"class"`
	Value   float64 `json:"value"`
	Percent string  `json:"percent"`
}

// Shape converts m into display entries, preserving its order. It has no side
// effects; equal inputs always give equal outputs.
func Shape(m *Mapping) []Entry {
	pairs := m.Pairs()
	entries := make([]Entry, 0, len(pairs))
	for _, p := range pairs {
		entries = append(entries, Entry{
			Class:   p.Class,
			Value:   p.Value,
			Percent: FormatPercent(p.Value),
		})
	}
	return entries
}

// FormatPercent renders v*100 with two decimal places, independent of locale:
// 0.8765 becomes "87.65".
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 2, 64)
}
