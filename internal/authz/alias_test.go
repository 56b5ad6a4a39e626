package authz

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const aliasDoc = `
version: 7
aliases:
  "fuel:record":
    - "fuel:create"
  "trips:dispatch":
    - "trips:create"
    - "trips:edit"
`

func TestParseAliasTable(t *testing.T) {
	table, err := ParseAliasTable([]byte(aliasDoc))
	require.NoError(t, err)
	require.Equal(t, 7, table.Version())

	require.Equal(t, []Key{NewKey("fuel", "create")}, table.Resolve(NewKey("fuel", "record")))
	require.Equal(t, []Key{NewKey("trips", "create"), NewKey("trips", "edit")}, table.Resolve(NewKey("trips", "dispatch")))
	require.Empty(t, table.Resolve(NewKey("fuel", "create")), "canonical keys are unmapped")
}

func TestParseAliasTableRejectsMalformedKeys(t *testing.T) {
	_, err := ParseAliasTable([]byte("version: 1\naliases:\n  \"notakey\":\n    - \"fuel:create\"\n"))
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParseAliasTable([]byte("version: 1\naliases:\n  \"fuel:record\":\n    - \"broken\"\n"))
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParseAliasTable([]byte("{{{"))
	require.Error(t, err)
}

func TestCanonicalize(t *testing.T) {
	table, err := ParseAliasTable([]byte(aliasDoc))
	require.NoError(t, err)

	// Legacy key translates to its first canonical target.
	require.Equal(t, NewKey("trips", "create"), table.Canonicalize(NewKey("trips", "dispatch")))
	// Canonical keys pass through untouched.
	require.Equal(t, NewKey("fuel", "create"), table.Canonicalize(NewKey("fuel", "create")))

	var nilTable *AliasTable
	require.Equal(t, NewKey("fuel", "create"), nilTable.Canonicalize(NewKey("fuel", "create")))
}

func TestLoadAliasTableMissingFileIsEmpty(t *testing.T) {
	table, err := LoadAliasTable(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Empty(t, table.Resolve(NewKey("fuel", "record")))

	table, err = LoadAliasTable("")
	require.NoError(t, err)
	require.Zero(t, table.Version())
}

func TestShippedAliasConfigParses(t *testing.T) {
	table, err := LoadAliasTable(filepath.Join("..", "..", "config", "aliases.yaml"))
	require.NoError(t, err)
	require.NotZero(t, table.Version())
	require.Equal(t, []Key{NewKey("fuel", "create")}, table.Resolve(NewKey("fuel", "record")))

	// Every shipped legacy key must be part of the default catalog, or
	// resolution would fail closed before the alias is ever consulted.
	catalog := DefaultCatalog()
	for _, legacy := range DefaultLegacyKeys {
		require.True(t, catalog.Has(legacy), "legacy key %s missing from catalog", legacy)
		require.NotEmpty(t, table.Resolve(legacy), "catalog legacy key %s has no alias", legacy)
	}
}
