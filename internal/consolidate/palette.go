package consolidate

import "strings"

// Palette is the fixed round-robin color sequence shared by consolidation and
// the chart adapter.
var Palette = []string{
	"#2563EB", // blue
	"#16A34A", // green
	"#F59E0B", // amber
	"#DC2626", // red
	"#7C3AED", // violet
	"#0891B2", // cyan
	"#DB2777", // pink
	"#65A30D", // lime
	"#EA580C", // orange
	"#4B5563", // gray
}

// PaletteColor returns the palette entry for position i.
func PaletteColor(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

// SanitizeName turns a query name into a field prefix: spaces become
// underscores.
func SanitizeName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// PrefixedField is the collision-free name of field as contributed by the
// named source query.
func PrefixedField(queryName, field string) string {
	return SanitizeName(queryName) + "_" + field
}

// AssignColors gives each name a palette color in order. Every color is also
// registered under the sanitized name so prefixed-field lookups succeed.
func AssignColors(names []string) map[string]string {
	colors := make(map[string]string, len(names)*2)
	for i, name := range names {
		c := PaletteColor(i)
		colors[name] = c
		if s := SanitizeName(name); s != name {
			colors[s] = c
		}
	}
	return colors
}
