// Package catalog holds the fixed service offering catalog. The provider
// tracks each appointment category by a numeric service id; the mapping is
// defined at deploy time and never mutated at runtime.
package catalog

import (
	"sort"

	"github.com/baraks/slotwatch/internal/domain"
)

// Entry is one catalog row: the provider-side service id, the display name
// used in outbound messages, and the keywords the command parser matches.
type Entry struct {
	ID          int64
	DisplayName string
	Keywords    []string
}

// Catalog is an immutable id -> offering mapping with a deterministic
// iteration order (ascending id). Messages and tests rely on that order.
type Catalog struct {
	byID    map[int64]Entry
	ordered []int64
}

var defaultEntries = []Entry{
	{ID: 6140, DisplayName: "Passport renewal", Keywords: []string{"passport"}},
	{ID: 6141, DisplayName: "Biometric ID card", Keywords: []string{"id", "biometric"}},
	{ID: 6142, DisplayName: "Skipper license exam", Keywords: []string{"skipper", "sailing", "boat"}},
	{ID: 6143, DisplayName: "Driving license renewal", Keywords: []string{"driving", "driver"}},
	{ID: 6145, DisplayName: "Vehicle registration", Keywords: []string{"vehicle", "car", "registration"}},
	{ID: 6146, DisplayName: "Notary appointment", Keywords: []string{"notary"}},
}

// Default returns the deploy-time catalog.
func Default() *Catalog {
	return New(defaultEntries)
}

// New builds a catalog from the given entries.
func New(entries []Entry) *Catalog {
	c := &Catalog{byID: make(map[int64]Entry, len(entries))}
	for _, e := range entries {
		if _, dup := c.byID[e.ID]; dup {
			continue
		}
		c.byID[e.ID] = e
		c.ordered = append(c.ordered, e.ID)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i] < c.ordered[j] })
	return c
}

// OrderedIDs returns all service ids in catalog order.
func (c *Catalog) OrderedIDs() []int64 {
	out := make([]int64, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Contains reports whether the id is a known service offering.
func (c *Catalog) Contains(id int64) bool {
	_, ok := c.byID[id]
	return ok
}

// DisplayName resolves a service id to its display name. Unknown ids fall
// back to an empty string with ok=false.
func (c *Catalog) DisplayName(id int64) (string, bool) {
	e, ok := c.byID[id]
	return e.DisplayName, ok
}

// Offering returns the domain view of a catalog entry.
func (c *Catalog) Offering(id int64) (domain.ServiceOffering, bool) {
	e, ok := c.byID[id]
	if !ok {
		return domain.ServiceOffering{}, false
	}
	return domain.ServiceOffering{ID: e.ID, DisplayName: e.DisplayName}, true
}

// Entries returns all entries in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.ordered))
	for _, id := range c.ordered {
		out = append(out, c.byID[id])
	}
	return out
}

// Filter returns the subset of ids known to the catalog, deduplicated and
// sorted in catalog order. Unknown ids are dropped silently: a registration
// request naming a service we do not track is not an error, it just does not
// subscribe to anything.
func (c *Catalog) Filter(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if c.Contains(id) {
			seen[id] = true
		}
	}
	out := make([]int64, 0, len(seen))
	for _, id := range c.ordered {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}
