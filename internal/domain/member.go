package domain

// Role is a guild role as seen by the onboarding core.
type Role struct {
	ID   string
	Name string
}

// Member is a guild member with its current role set.
type Member struct {
	GuildID  string
	ID       string
	Username string
	Bot      bool
	RoleIDs  []string
}

// HasRole reports whether the member currently holds roleID.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// RoleChange is a member update carrying the role set before and after the change.
type RoleChange struct {
	Member Member
	Before []Role
	After  []Role
}

// Added returns roles present after the change but not before, compared by ID.
func (c RoleChange) Added() []Role {
	return roleDiff(c.After, c.Before)
}

// Removed returns roles present before the change but not after, compared by ID.
func (c RoleChange) Removed() []Role {
	return roleDiff(c.Before, c.After)
}

func roleDiff(a, b []Role) []Role {
	seen := make(map[string]struct{}, len(b))
	for _, r := range b {
		seen[r.ID] = struct{}{}
	}
	var out []Role
	for _, r := range a {
		if _, ok := seen[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out
}
