package entity

import (
	"sort"

	taskentity "github.com/ovaphlow/pitchfork/service-tasklist/internal/task/entity"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// User is an account row in `users` together with its role set from
// `users_roles` and the tasks linked through `users_tasks`.
type User struct {
	ID       int64
	Name     string
	Username string
	Password string // bcrypt hash once persisted
	Roles    []Role
	Tasks    []taskentity.Task
}

// HasRole reports whether r is in the user's role set.
func (u *User) HasRole(r Role) bool {
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// RoleNames returns the role set as sorted strings.
func (u *User) RoleNames() []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// NormalizeRoles deduplicates and sorts a role list.
func NormalizeRoles(roles []Role) []Role {
	seen := make(map[Role]struct{}, len(roles))
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
