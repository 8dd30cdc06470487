package domain

import "strings"

// Category is the topic label chosen for a user message.
type Category string

const (
	CategoryGeneralServices Category = "GENERAL_SERVICES"
	CategoryCXModernization Category = "CX_MODERNIZATION"
	CategoryInnovativeIT    Category = "INNOVATIVE_IT"
	CategoryAppliedAI       Category = "APPLIED_AI"
	CategoryContent         Category = "CONTENT"
	CategorySupport         Category = "SUPPORT"
	CategorySales           Category = "SALES"

	// FallbackCategory keys the generic profile used when no category matches.
	// It is never a classifier output.
	FallbackCategory Category = "FALLBACK"
)

var categories = []Category{
	CategoryGeneralServices,
	CategoryCXModernization,
	CategoryInnovativeIT,
	CategoryAppliedAI,
	CategoryContent,
	CategorySupport,
	CategorySales,
}

// Categories returns the closed set of classifier labels in a fixed order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Valid reports whether c belongs to the classifier label set.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory normalises a raw label ("applied-ai", " Applied AI ") to its
// wire form. The bool is false when the normalised label is not a member of
// Categories(); the normalised value is still returned for logging.
func ParseCategory(raw string) (Category, bool) {
	s := strings.Trim(strings.TrimSpace(raw), "\"'`.")
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	c := Category(s)
	return c, c.Valid()
}
