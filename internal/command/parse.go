// Package command turns free-text register/unregister arguments into
// service offering id sets. The mapping is a fixed keyword lookup against
// the catalog; anything unrecognized is simply not matched.
package command

import (
	"strconv"
	"strings"

	"github.com/baraks/slotwatch/internal/catalog"
)

// ParseServiceIDs extracts the set of catalog service ids referenced by the
// given free text. Tokens are matched case-insensitively against catalog
// keywords; a token that is a bare number is accepted when it names a known
// service id. The result is deduplicated and in catalog order. Empty or
// fully unrecognized text yields an empty set.
func ParseServiceIDs(c *catalog.Catalog, text string) []int64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return []int64{}
	}

	matched := make([]int64, 0, 4)
	for _, tok := range tokens {
		if id, err := strconv.ParseInt(tok, 10, 64); err == nil {
			matched = append(matched, id)
			continue
		}
		for _, e := range c.Entries() {
			for _, kw := range e.Keywords {
				if tok == kw {
					matched = append(matched, e.ID)
				}
			}
		}
	}

	return c.Filter(matched)
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ",.;:!?")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
