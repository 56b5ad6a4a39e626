package authz

import "sort"

// Catalog is the closed set of valid permission keys. It is seeded at
// deployment time and never mutated at runtime; an unknown key encountered
// during resolution is a configuration anomaly, not a crash.
type Catalog struct {
	keys map[Key]struct{}
}

// NewCatalog builds a catalog from an explicit key list. Zero-valued keys
// are dropped.
func NewCatalog(keys []Key) *Catalog {
	set := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if k.IsZero() {
			continue
		}
		set[k] = struct{}{}
	}
	return &Catalog{keys: set}
}

// Has reports whether the key is part of the catalog.
func (c *Catalog) Has(key Key) bool {
	if c == nil {
		return false
	}
	_, ok := c.keys[key]
	return ok
}

// Keys returns every catalog key sorted by module then action.
func (c *Catalog) Keys() []Key {
	if c == nil {
		return nil
	}
	keys := make([]Key, 0, len(c.keys))
	for k := range c.keys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Module != keys[j].Module {
			return keys[i].Module < keys[j].Module
		}
		return keys[i].Action < keys[j].Action
	})
	return keys
}

// Len returns the number of catalog keys.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Modules and actions seeded for a standard deployment. The runtime
// catalog is loaded from the permissions table; this list drives the seed
// script and the fixtures.
var (
	DefaultModules = []string{
		"drivers", "trucks", "trailers", "trips", "fuel",
		"invoices", "expenses", "maintenance", "customers", "vendors",
		"payroll", "reports", "users",
	}
	DefaultActions = []string{"view", "create", "edit", "delete", "approve"}
)

// DefaultLegacyKeys are the legacy-named keys the shipped alias table
// reads through. They belong to the catalog — resolution rejects any key
// outside it before aliases are consulted — but they are never written:
// mutations canonicalize first, and the template applier skips them.
var DefaultLegacyKeys = []Key{
	{Module: "fuel", Action: "record"},
	{Module: "trips", Action: "dispatch"},
	{Module: "workshop", Action: "view"},
	{Module: "workshop", Action: "edit"},
}

// DefaultCatalog expands DefaultModules x DefaultActions and appends the
// legacy keys.
func DefaultCatalog() *Catalog {
	keys := make([]Key, 0, len(DefaultModules)*len(DefaultActions)+len(DefaultLegacyKeys))
	for _, module := range DefaultModules {
		for _, action := range DefaultActions {
			keys = append(keys, Key{Module: module, Action: action})
		}
	}
	keys = append(keys, DefaultLegacyKeys...)
	return NewCatalog(keys)
}
