package mapper

import "strings"

// LookupTable maps UI values to backend categories. Values missing from
// the table map to Fallback.
type LookupTable struct {
	Values   map[string]string
	Fallback string
}

// Resolve maps a value, case-insensitively.
func (t LookupTable) Resolve(v string) string {
	if out, ok := t.Values[strings.ToLower(strings.TrimSpace(v))]; ok {
		return out
	}
	return t.Fallback
}

// Backend vehicle categories are 2wheeler, car, suv and commercial. Only
// the UI types with an obvious category are mapped.
var lookups = map[string]LookupTable{
	"vehicle_category": {
		Values: map[string]string{
			"car":    "car",
			"luxury": "suv",
			"bike":   "2wheeler",
			"truck":  "commercial",
		},
		Fallback: "car",
	},
}

// Lookup returns a named table.
func Lookup(name string) (LookupTable, bool) {
	t, ok := lookups[name]
	return t, ok
}
