package layers

import (
	"fmt"
	"regexp"
	"strings"
)

// FallbackColor is used when a colour name cannot be mapped at all
const FallbackColor = "#808080"

type namedColor struct {
	name string
	hex  string
}

// colorTable maps normalized filament colour names to hex codes.
// Order matters: partial matches return the first hit.
var colorTable = []namedColor{
	// Basic colours
	{"black", "#000000"},
	{"white", "#FFFFFF"},
	{"red", "#FF0000"},
	{"green", "#00FF00"},
	{"blue", "#0000FF"},
	{"yellow", "#FFFF00"},
	{"orange", "#FFA500"},
	{"purple", "#800080"},
	{"pink", "#FFC0CB"},
	{"brown", "#8B4513"},
	{"gray", "#808080"},
	{"grey", "#808080"},

	// Bambu Lab PLA Basic
	{"jade white", "#F0FFF0"},
	{"silver", "#C0C0C0"},
	{"light gray", "#D3D3D3"},
	{"dark gray", "#696969"},
	{"hot pink", "#FF69B4"},
	{"maroon red", "#800000"},
	{"beige", "#F5F5DC"},
	{"sunflower yellow", "#FFDA03"},
	{"gold", "#FFD700"},
	{"pumpkin orange", "#FF7518"},
	{"bambu green", "#00A86B"},
	{"mistletoe green", "#50C878"},
	{"bright green", "#66FF00"},
	{"blue grey", "#6699CC"},
	{"cobalt blue", "#0047AB"},
	{"turquoise", "#40E0D0"},
	{"indigo purple", "#4B0082"},
	{"bronze", "#CD7F32"},
	{"cocoa brown", "#D2691E"},

	// Bambu Lab PLA Matte, with and without the finish prefix
	{"matte ivory white", "#FFFFF0"},
	{"ivory white", "#FFFFF0"},
	{"matte ash gray", "#B2BEB5"},
	{"ash gray", "#B2BEB5"},
	{"matte charcoal", "#36454F"},
	{"charcoal", "#36454F"},
	{"matte bone white", "#F9F6EE"},
	{"bone white", "#F9F6EE"},
	{"matte nardo gray", "#7A7D7A"},
	{"nardo gray", "#7A7D7A"},
	{"matte lemon yellow", "#FFF700"},
	{"lemon yellow", "#FFF700"},
	{"matte desert tan", "#C19A6B"},
	{"desert tan", "#C19A6B"},
	{"matte mandarin orange", "#FF8C00"},
	{"mandarin orange", "#FF8C00"},
	{"matte scarlet red", "#FF2400"},
	{"scarlet red", "#FF2400"},
	{"matte dark red", "#8B0000"},
	{"dark red", "#8B0000"},
	{"matte terracotta", "#CC4125"},
	{"terracotta", "#CC4125"},
	{"matte sakura pink", "#FFB7C5"},
	{"sakura pink", "#FFB7C5"},
	{"matte plum", "#DDA0DD"},
	{"plum", "#DDA0DD"},
	{"matte lilac purple", "#C8A2C8"},
	{"lilac purple", "#C8A2C8"},
	{"lilac", "#C8A2C8"},
	{"matte grass green", "#7CFC00"},
	{"grass green", "#7CFC00"},
	{"matte apple green", "#8DB600"},
	{"apple green", "#8DB600"},
	{"matte dark green", "#013220"},
	{"dark green", "#013220"},
	{"matte ice blue", "#99FFFF"},
	{"ice blue", "#99FFFF"},
	{"matte sky blue", "#87CEEB"},
	{"sky blue", "#87CEEB"},
	{"matte marine blue", "#0080FF"},
	{"marine blue", "#0080FF"},
	{"matte dark blue", "#00008B"},
	{"dark blue", "#00008B"},
	{"matte latte brown", "#B5651D"},
	{"latte brown", "#B5651D"},
	{"matte dark brown", "#654321"},
	{"dark brown", "#654321"},
	{"matte dark chocolate", "#3B2F2F"},
	{"dark chocolate", "#3B2F2F"},
	{"matte caramel", "#FFD59A"},
	{"caramel", "#FFD59A"},

	// Common filament colours
	{"transparent", "#FFFFFF80"},
	{"clear", "#FFFFFF80"},
	{"cyan", "#00FFFF"},
	{"magenta", "#FF00FF"},
	{"lime", "#00FF00"},
	{"navy", "#000080"},
	{"teal", "#008080"},
	{"maroon", "#800000"},
	{"olive", "#808000"},

	// Legacy names
	{"basic black", "#000000"},
	{"basic white", "#FFFFFF"},
}

// keywordColors is the last resort before grey: any keyword contained in the name
var keywordColors = []namedColor{
	{"red", "#FF0000"},
	{"blue", "#0000FF"},
	{"green", "#00FF00"},
	{"yellow", "#FFFF00"},
	{"orange", "#FFA500"},
	{"purple", "#800080"},
	{"pink", "#FFC0CB"},
	{"brown", "#8B4513"},
	{"white", "#FFFFFF"},
	{"black", "#000000"},
	{"gray", "#808080"},
	{"grey", "#808080"},
	{"gold", "#FFD700"},
	{"silver", "#C0C0C0"},
	{"bronze", "#CD7F32"},
	{"cyan", "#00FFFF"},
	{"magenta", "#FF00FF"},
	{"teal", "#008080"},
	{"navy", "#000080"},
	{"maroon", "#800000"},
	{"olive", "#808000"},
	{"turquoise", "#40E0D0"},
	{"violet", "#8A2BE2"},
	{"lime", "#00FF00"},
	{"beige", "#F5F5DC"},
	{"tan", "#D2B48C"},
}

var colorIndex = func() map[string]string {
	idx := make(map[string]string, len(colorTable))
	for _, c := range colorTable {
		idx[c.name] = c.hex
	}
	return idx
}()

var (
	materialPrefix = regexp.MustCompile(`(?i)^(PLA|ABS|PETG|TPU)\s+`)
	brandPrefix    = regexp.MustCompile(`(?i)(BambuLab|Bambu Lab|Prusament|Hatchbox|eSun)\s+`)
	finishPrefix   = regexp.MustCompile(`(?i)(Basic|Matte|Glossy|Silk|Metallic)\s+`)
)

// NormalizeColorName strips material, brand and finish words and lowercases
// the rest, e.g. "PLA BambuLab Basic Cobalt Blue" becomes "cobalt blue".
func NormalizeColorName(name string) string {
	name = materialPrefix.ReplaceAllString(name, "")
	name = brandPrefix.ReplaceAllString(name, "")
	name = finishPrefix.ReplaceAllString(name, "")
	return strings.ToLower(strings.TrimSpace(name))
}

// LookupColor maps a filament colour name to a hex code. The note is empty
// for known colours and describes the fallback otherwise.
func LookupColor(name string) (hex string, note string) {
	normalized := NormalizeColorName(name)

	if hex, ok := colorIndex[normalized]; ok {
		return hex, ""
	}

	for _, c := range colorTable {
		if strings.Contains(normalized, c.name) || strings.Contains(c.name, normalized) {
			return c.hex, ""
		}
	}

	for _, c := range keywordColors {
		if strings.Contains(normalized, c.name) {
			return c.hex, fmt.Sprintf("Using generic %s for unrecognized color '%s'", c.name, name)
		}
	}

	return FallbackColor, fmt.Sprintf("Could not map color '%s' to hex, using gray", name)
}

// ColorNameToHex maps a filament colour name to a hex code, falling back to grey
func ColorNameToHex(name string) string {
	hex, _ := LookupColor(name)
	return hex
}
