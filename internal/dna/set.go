package dna

import "sort"

// Set is a plain map of DNA values. It is the working copy handed to a
// dispatch and is not safe for concurrent use.
type Set map[string]float64

func (s Set) Value(name string) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

func (s Set) SetValue(name string, value float64) {
	s[name] = value
}

// Names returns the names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
