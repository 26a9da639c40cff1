package mode

import "strings"

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Semantic ranks products by vector similarity to the query embedding.
	Semantic Mode = "semantic"
	// Keyword matches products by deterministic substring search.
	Keyword Mode = "keyword"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Semantic || m == Keyword
}

// Normalize maps a raw, case-insensitive mode string to a Mode.
// Unrecognized or empty values default to Semantic.
func Normalize(raw string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case Keyword:
		return Keyword
	case Semantic:
		return Semantic
	default:
		return Semantic
	}
}
