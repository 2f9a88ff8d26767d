package models

import "sort"

// CatalogEntry is one valid status code in the ordered status catalog.
type CatalogEntry struct {
	Code           string `json:"code"`
	SequenceNumber int    `json:"sequence_number"`
	IsFinal        bool   `json:"is_final"`
}

// Catalog is the ordered, read-only list of status codes.
type Catalog []CatalogEntry

// NewCatalog copies entries and orders them by sequence number, then code.
func NewCatalog(entries []CatalogEntry) Catalog {
	c := make(Catalog, len(entries))
	copy(c, entries)
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].SequenceNumber != c[j].SequenceNumber {
			return c[i].SequenceNumber < c[j].SequenceNumber
		}
		return c[i].Code < c[j].Code
	})
	return c
}

// TotalSteps is the progress denominator. A document with no configured
// catalog still reaches 100% on its first status, so the minimum is 1.
func (c Catalog) TotalSteps() int {
	if len(c) == 0 {
		return 1
	}
	return len(c)
}

// Contains reports whether code is a catalog member.
func (c Catalog) Contains(code string) bool {
	_, ok := c.Find(code)
	return ok
}

// Find returns the entry for code.
func (c Catalog) Find(code string) (CatalogEntry, bool) {
	for _, e := range c {
		if e.Code == code {
			return e, true
		}
	}
	return CatalogEntry{}, false
}
