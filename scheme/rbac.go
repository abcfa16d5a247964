package scheme

import (
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// roleName/actionName give casbin subjects/actions a stable string form,
// matched against the role × resource × action shape
// mary-ext-tangled.sh-mirror's rbac package wires casbin for.
func roleName(r Role) string {
	switch r {
	case Nobody:
		return "nobody"
	case Authorized:
		return "authorized"
	case System:
		return "system"
	case Admin:
		return "admin"
	case Default:
		return "default"
	default:
		return "unknown"
	}
}

func actionName(op HookKind) string {
	switch op {
	case BeforeCreate, AfterCreate:
		return "create"
	case BeforeUpdate, AfterUpdate:
		return "update"
	case BeforeRemove, AfterRemove:
		return "remove"
	case ReadFilter:
		return "select"
	default:
		return "unknown"
	}
}

// rbacModelText is the ACL model every Scheme's enforcer shares: one role
// may act on one resource (the scheme name) for one of the four CRUD-ish
// actions. No role inheritance is declared — scheme.Role values are
// already a flat enum, not a hierarchy — grounded on
// mary-ext-tangled.sh-mirror's rbac.Model text (same request/policy/
// effect/matcher shape, minus the domain and group-grouping terms that
// package needs for multi-tenant servers and this engine does not).
const rbacModelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

func rbacModel() (model.Model, error) {
	return model.NewModelFromString(rbacModelText)
}

// enforcer lazily builds (and caches) a casbin.Enforcer seeded from s's
// declared per-role AccessPolicy booleans: every (role, action) pair
// whose policy bool is true becomes one casbin policy line for
// (roleName, s.Name, actionName). This backs the coarse role-level gate
// of spec §4.5's access-role check with a real RBAC/ACL engine instead of
// hand-rolled boolean comparisons, while the predicate closures on
// AccessPolicy still carry the per-object fine-grained decision casbin's
// static policy table can't express.
func (s *Scheme) enforcer() *casbin.Enforcer {
	s.enforcerOnce.Do(func() {
		m, err := rbacModel()
		if err != nil {
			s.enforcerErr = err
			return
		}
		e, err := casbin.NewEnforcer(m)
		if err != nil {
			// Model construction from a literal, known-good definition
			// cannot fail at runtime; a cached nil enforcer denies
			// everything rather than panicking mid-request.
			s.enforcerErr = err
			return
		}
		e.EnableAutoSave(false)
		for role, policy := range s.roles {
			sub := roleName(role)
			if policy.Create {
				e.AddPolicy(sub, s.Name, "create")
			}
			if policy.Update {
				e.AddPolicy(sub, s.Name, "update")
			}
			if policy.Remove {
				e.AddPolicy(sub, s.Name, "remove")
			}
			if policy.Select {
				e.AddPolicy(sub, s.Name, "select")
			}
		}
		s.cachedEnforcer = e
	})
	return s.cachedEnforcer
}

// AllowsRole reports the coarse role-level permission for op under role,
// via casbin, ignoring any per-object predicate. Worker.checkPolicy
// combines this with AccessPolicy.Evaluate's predicate check.
func (s *Scheme) AllowsRole(op HookKind, role Role) bool {
	e := s.enforcer()
	if e == nil {
		return false
	}
	ok, _ := e.Enforce(roleName(role), s.Name, actionName(op))
	return ok
}

// enforcerState holds the lazily-built casbin enforcer and its
// construction error, embedded into Scheme.
type enforcerState struct {
	enforcerOnce   sync.Once
	cachedEnforcer *casbin.Enforcer
	enforcerErr    error
}
