package auth

import (
	"context"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/web"
)

type Access int

const (
	PermitAll Access = iota
	Authenticated
	RequireRole
	DenyAll
)

// Rule grants Access to request paths matching Pattern. A pattern ending in
// "/**" matches the prefix and everything below it; anything else is a
// path.Match pattern.
type Rule struct {
	Pattern string
	Access  Access
	Role    entity.Role
}

// DefaultRules is the rule table of the HTTP API.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/api/v1/auth/**", Access: PermitAll},
		{Pattern: "/health", Access: PermitAll},
		{Pattern: "/metrics", Access: PermitAll},
		{Pattern: "/api/v1/admin/**", Access: RequireRole, Role: entity.RoleAdmin},
		{Pattern: "/api/v1/**", Access: Authenticated},
	}
}

func (r Rule) Matches(p string) bool {
	if prefix, ok := strings.CutSuffix(r.Pattern, "/**"); ok {
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}
	ok, err := path.Match(r.Pattern, p)
	return err == nil && ok
}

func (r Rule) allows(u *entity.User) bool {
	switch r.Access {
	case PermitAll:
		return true
	case Authenticated:
		return u != nil
	case RequireRole:
		return u != nil && u.HasRole(r.Role)
	default:
		return false
	}
}

// Allowed evaluates rules top to bottom; the first matching rule decides.
// A path no rule matches is denied.
func Allowed(rules []Rule, p string, u *entity.User) bool {
	for _, r := range rules {
		if r.Matches(p) {
			return r.allows(u)
		}
	}
	return false
}

var (
	errAuthRequired = apperr.Unauthorized("Unauthorized.")
	ErrAccessDenied = apperr.Forbidden("Access denied.")
)

// Authorizer rejects requests the rule table does not allow: 401 for
// anonymous callers, 403 for authenticated ones.
func Authorizer(rules []Rule, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, _ := PrincipalFrom(r.Context())
			if Allowed(rules, r.URL.Path, u) {
				next.ServeHTTP(w, r)
				return
			}
			if u == nil {
				web.WriteError(w, logger, errAuthRequired)
				return
			}
			web.WriteError(w, logger, ErrAccessDenied)
		})
	}
}

// CanAccessUser allows a principal to act on its own account, or any account
// when it holds ADMIN.
func CanAccessUser(u *entity.User, id int64) bool {
	return u != nil && (u.ID == id || u.HasRole(entity.RoleAdmin))
}

// TaskOwners answers task ownership queries.
type TaskOwners interface {
	IsTaskOwner(ctx context.Context, userID, taskID int64) (bool, error)
}

// CanAccessTask allows the task's owner and ADMIN principals.
func CanAccessTask(ctx context.Context, owners TaskOwners, u *entity.User, taskID int64) (bool, error) {
	if u == nil {
		return false, nil
	}
	if u.HasRole(entity.RoleAdmin) {
		return true, nil
	}
	return owners.IsTaskOwner(ctx, u.ID, taskID)
}
