package constants

import (
	"strings"
)

// Category is an expense category suggested to the structuring model.
type Category string

const (
	Rent      Category = "rent"
	Utilities Category = "utilities"
	Payroll   Category = "payroll"
	Supplies  Category = "supplies"
	Repairs   Category = "repairs"
	Insurance Category = "insurance"
	Other     Category = "other"
)

var allCategories = []Category{
	Rent,
	Utilities,
	Payroll,
	Supplies,
	Repairs,
	Insurance,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-text category onto a known one.
// The second return is false when nothing matched; callers keep the raw label then.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]Category{
		"lease":       Rent,
		"rental":      Rent,
		"utility":     Utilities,
		"electric":    Utilities,
		"electricity": Utilities,
		"water":       Utilities,
		"gas":         Utilities,
		"wages":       Payroll,
		"salaries":    Payroll,
		"inventory":   Supplies,
		"materials":   Supplies,
		"repair":      Repairs,
		"maintenance": Repairs,
		"premium":     Insurance,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}

	return Other, false
}
