package authz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AliasTable maps legacy permission keys to their canonical stored keys.
// It is consulted on the read path only, and only against role grants:
// checking a legacy key succeeds if any canonical key it maps to is
// granted by the role. Overrides are never consulted through an alias,
// which keeps the precedence model single-layered.
//
// The mapping is one-directional and loaded from versioned configuration
// so legacy-name compatibility can be audited independently of the
// resolution algorithm.
type AliasTable struct {
	version int
	aliases map[Key][]Key
}

type aliasDocument struct {
	Version int                 `yaml:"version"`
	Aliases map[string][]string `yaml:"aliases"`
}

// NewAliasTable builds a table from an in-memory mapping. Used by tests
// and as the empty-table fallback.
func NewAliasTable(aliases map[Key][]Key) *AliasTable {
	table := make(map[Key][]Key, len(aliases))
	for legacy, canonical := range aliases {
		if legacy.IsZero() || len(canonical) == 0 {
			continue
		}
		table[legacy] = append([]Key(nil), canonical...)
	}
	return &AliasTable{aliases: table}
}

// LoadAliasTable reads the YAML alias document at path. A missing path
// yields an empty table: alias compatibility is optional configuration.
func LoadAliasTable(path string) (*AliasTable, error) {
	if path == "" {
		return NewAliasTable(nil), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewAliasTable(nil), nil
		}
		return nil, fmt.Errorf("authz: read alias table: %w", err)
	}
	return ParseAliasTable(raw)
}

// ParseAliasTable decodes a YAML alias document.
func ParseAliasTable(raw []byte) (*AliasTable, error) {
	var doc aliasDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("authz: parse alias table: %w", err)
	}
	aliases := make(map[Key][]Key, len(doc.Aliases))
	for legacy, targets := range doc.Aliases {
		legacyKey, err := ParseKey(legacy)
		if err != nil {
			return nil, fmt.Errorf("authz: alias table: %w", err)
		}
		canonical := make([]Key, 0, len(targets))
		for _, target := range targets {
			targetKey, err := ParseKey(target)
			if err != nil {
				return nil, fmt.Errorf("authz: alias table: %s: %w", legacy, err)
			}
			canonical = append(canonical, targetKey)
		}
		if len(canonical) == 0 {
			continue
		}
		aliases[legacyKey] = canonical
	}
	return &AliasTable{version: doc.Version, aliases: aliases}, nil
}

// Version returns the document version the table was loaded from.
func (t *AliasTable) Version() int {
	if t == nil {
		return 0
	}
	return t.version
}

// Resolve returns the canonical keys a legacy key reads through to.
// Empty when the key is already canonical or unmapped.
func (t *AliasTable) Resolve(key Key) []Key {
	if t == nil {
		return nil
	}
	return t.aliases[key]
}

// Canonicalize translates a legacy key for the write path, so the stores
// only ever contain canonical keys. An unmapped key is returned as-is; a
// legacy key maps to its first canonical target.
func (t *AliasTable) Canonicalize(key Key) Key {
	if t == nil {
		return key
	}
	if canonical, ok := t.aliases[key]; ok && len(canonical) > 0 {
		return canonical[0]
	}
	return key
}
