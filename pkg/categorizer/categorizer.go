package categorizer

import (
	"fmt"
	"strings"
)

// Category is a closet category the product knows about.
type Category string

const (
	Top       Category = "TOP"
	Bottom    Category = "BOTTOM"
	Outer     Category = "OUTER"
	Dress     Category = "DRESS"
	Shoes     Category = "SHOES"
	Bag       Category = "BAG"
	Hat       Category = "HAT"
	Accessory Category = "ACCESSORY"
)

var allCategories = []Category{Top, Bottom, Outer, Dress, Shoes, Bag, Hat, Accessory}

// synonyms maps labels the worker's classifier is known to emit.
var synonyms = map[string]Category{
	"tops":        Top,
	"shirt":       Top,
	"t-shirt":     Top,
	"tshirt":      Top,
	"blouse":      Top,
	"sweater":     Top,
	"hoodie":      Top,
	"bottoms":     Bottom,
	"pants":       Bottom,
	"trousers":    Bottom,
	"jeans":       Bottom,
	"skirt":       Bottom,
	"shorts":      Bottom,
	"outerwear":   Outer,
	"jacket":      Outer,
	"coat":        Outer,
	"dresses":     Dress,
	"shoe":        Shoes,
	"sneakers":    Shoes,
	"boots":       Shoes,
	"bags":        Bag,
	"handbag":     Bag,
	"backpack":    Bag,
	"cap":         Hat,
	"hats":        Hat,
	"accessories": Accessory,
	"scarf":       Accessory,
	"belt":        Accessory,
}

// AsStringSlice lists every category.
func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a suggestion onto a known category.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	normalized = strings.ReplaceAll(normalized, "_", " ")

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}
	return "", false
}

// Validate is Canonicalize with an error for unknown input.
func Validate(input string) (Category, error) {
	cat, ok := Canonicalize(input)
	if !ok {
		return "", fmt.Errorf("unknown category %q (known: %s)", input, strings.Join(AsStringSlice(), ", "))
	}
	return cat, nil
}
