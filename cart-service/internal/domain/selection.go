package domain

import (
	"sort"
	"strings"
)

// Selection maps a customization category to the chosen option name.
type Selection map[string]string

// Equal compares the (category, option) pairs of both selections. Insertion order is irrelevant
// and a nil selection equals an empty one.
func (s Selection) Equal(other Selection) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Key renders the selection in canonical sorted form, e.g. "size=large;spice=mild".
func (s Selection) Key() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s[k])
	}
	return b.String()
}

func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
