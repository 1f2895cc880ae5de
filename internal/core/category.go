package core

import "strings"

const (
	Comida     Category = "comida"
	Hogar      Category = "hogar"
	Salud      Category = "salud"
	Ocio       Category = "ocio"
	Transporte Category = "transporte"
	Otros      Category = "otros"
)

// AllCategoriesLabel is the filter value that disables category filtering.
const AllCategoriesLabel = "Todas"

// DefaultCategory receives every display name that maps to nothing.
const DefaultCategory = Otros

type Category string

type categoryMeta struct {
	display string
	color   string
}

var categories = []Category{Comida, Hogar, Salud, Ocio, Transporte, Otros}

var categoryInfo = map[Category]categoryMeta{
	Comida:     {"Comida", "red"},
	Hogar:      {"Hogar", "blue"},
	Salud:      {"Salud", "green"},
	Ocio:       {"Ocio", "purple"},
	Transporte: {"Transporte", "orange"},
	Otros:      {"Otros", "gray"},
}

// Categories returns the closed set of category keys in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

func (c Category) IsValid() bool {
	_, ok := categoryInfo[c]
	return ok
}

func (c Category) String() string {
	return string(c)
}

// DisplayName returns the user-facing label. Unknown keys display as the
// default category.
func (c Category) DisplayName() string {
	if m, ok := categoryInfo[c]; ok {
		return m.display
	}
	return categoryInfo[DefaultCategory].display
}

func (c Category) Color() string {
	if m, ok := categoryInfo[c]; ok {
		return m.color
	}
	return "gray"
}

// CategoryFromDisplayName maps a display name, or a canonical key, back to
// the key. Matching ignores case and surrounding space; anything unknown
// becomes DefaultCategory.
func CategoryFromDisplayName(name string) Category {
	name = strings.TrimSpace(name)
	for _, c := range categories {
		if strings.EqualFold(categoryInfo[c].display, name) || strings.EqualFold(string(c), name) {
			return c
		}
	}
	return DefaultCategory
}

// IsAllCategories reports whether the filter value is the sentinel.
func IsAllCategories(label string) bool {
	return label == AllCategoriesLabel
}

// CategoryOptions lists filter choices: the sentinel first, then every
// display name.
func CategoryOptions() []string {
	out := make([]string, 0, len(categories)+1)
	out = append(out, AllCategoriesLabel)
	for _, c := range categories {
		out = append(out, c.DisplayName())
	}
	return out
}
