package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleChangeDiff(t *testing.T) {
	change := RoleChange{
		Before: []Role{{ID: "1", Name: "Member"}, {ID: "2", Name: "Dev Interest"}},
		After:  []Role{{ID: "1", Name: "Member"}, {ID: "3", Name: "Canvass Interest"}},
	}
	assert.Equal(t, []Role{{ID: "3", Name: "Canvass Interest"}}, change.Added())
	assert.Equal(t, []Role{{ID: "2", Name: "Dev Interest"}}, change.Removed())
}

func TestRoleChangeDiffComparesByID(t *testing.T) {
	change := RoleChange{
		Before: []Role{{ID: "1", Name: "Old Name"}},
		After:  []Role{{ID: "1", Name: "Renamed"}},
	}
	assert.Empty(t, change.Added())
	assert.Empty(t, change.Removed())
}

func TestMemberHasRole(t *testing.T) {
	m := Member{RoleIDs: []string{"a", "b"}}
	assert.True(t, m.HasRole("b"))
	assert.False(t, m.HasRole("c"))
}

func TestPendingKeyString(t *testing.T) {
	k := PendingKey{GuildID: "g", MemberID: "m", RoleID: "r"}
	assert.Equal(t, "g-m-r", k.String())
}
