package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "fuel:create", want: Key{Module: "fuel", Action: "create"}},
		{in: "Fuel: Create", want: Key{Module: "fuel", Action: "create"}},
		{in: "fuel", wantErr: true},
		{in: ":create", wantErr: true},
		{in: "fuel:", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		key, err := ParseKey(tc.in)
		if tc.wantErr {
			require.ErrorIs(t, err, ErrInvalidKey, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.want, key)
	}
}

func TestKeyRoundTrip(t *testing.T) {
	key := NewKey(" Fuel ", "APPROVE")
	require.Equal(t, "fuel:approve", key.String())

	parsed, err := ParseKey(key.String())
	require.NoError(t, err)
	require.Equal(t, key, parsed)
}

func TestKeyIsZero(t *testing.T) {
	require.True(t, Key{}.IsZero())
	require.True(t, Key{Module: "fuel"}.IsZero())
	require.False(t, NewKey("fuel", "view").IsZero())
}

func TestPrincipalIsSuperadmin(t *testing.T) {
	require.True(t, Principal{ID: uuid.New(), Role: RoleSuperadmin}.IsSuperadmin())
	require.False(t, Principal{ID: uuid.New(), Role: "staff"}.IsSuperadmin())
}

func TestPermissionDeniedErrorMessage(t *testing.T) {
	err := &PermissionDeniedError{Module: "fuel", Action: "approve"}
	require.Equal(t, "authz: permission denied: fuel:approve", err.Error())
}

func TestCatalogMembership(t *testing.T) {
	catalog := DefaultCatalog()
	require.Equal(t, 13*5+len(DefaultLegacyKeys), catalog.Len())
	require.True(t, catalog.Has(NewKey("trucks", "edit")))
	require.False(t, catalog.Has(NewKey("spaceships", "launch")))
	require.False(t, (*Catalog)(nil).Has(NewKey("trucks", "edit")))
}
