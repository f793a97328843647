package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleAtLeast(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role, minimum Role
		want          bool
	}{
		{RoleViewer, RoleViewer, true},
		{RoleViewer, RoleEditor, false},
		{RoleViewer, RoleAdmin, false},
		{RoleEditor, RoleViewer, true},
		{RoleEditor, RoleEditor, true},
		{RoleEditor, RoleAdmin, false},
		{RoleAdmin, RoleViewer, true},
		{RoleAdmin, RoleEditor, true},
		{RoleAdmin, RoleAdmin, true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, RoleAtLeast(tc.role, tc.minimum), "%s >= %s", tc.role, tc.minimum)
	}

	// Unknown roles never satisfy any floor, and nothing satisfies an
	// unknown floor.
	require.False(t, RoleAtLeast("owner", RoleViewer))
	require.False(t, RoleAtLeast(RoleAdmin, "owner"))
}

func TestRoleValid(t *testing.T) {
	t.Parallel()

	for _, r := range []Role{RoleViewer, RoleEditor, RoleAdmin} {
		require.True(t, r.Valid())
	}
	require.False(t, Role("owner").Valid())
	require.False(t, Role("").Valid())
}
