package scheme

import "fmt"

// Role is the access role a transaction or request carries (spec §3.3).
type Role int

const (
	Nobody Role = iota
	Authorized
	System
	Admin
	Default
)

// HookKind tags the lifecycle point a user hook attaches to (spec §3.2).
type HookKind int

const (
	BeforeCreate HookKind = iota
	AfterCreate
	BeforeUpdate
	AfterUpdate
	BeforeRemove
	AfterRemove
	ReadFilter
)

// Hook is a user callback. The patch argument is a *value.Value in
// practice; kept as `any` here to avoid an import cycle with worker (which
// itself imports scheme). Concrete call sites type-assert to *value.Value.
type Hook func(worker any, patch any) error

// AccessPolicy is the per-role policy evaluated before emitting SQL
// (spec §4.5). Predicate fields, when non-nil, are evaluated against the
// acting user/object pair by the worker; a nil predicate means
// "allowed/denied unconditionally" per the corresponding bool.
type AccessPolicy struct {
	Select bool
	Create bool
	Update bool
	Remove bool

	SelectPredicate func(userID int64, objectOID int64) bool
	UpdatePredicate func(userID int64, objectOID int64) bool
	RemovePredicate func(userID int64, objectOID int64) bool
}

// Evaluate reports whether the given operation is permitted for userID
// against objectOID (0 for create, where there is no existing object).
func (p AccessPolicy) Evaluate(op HookKind, userID, objectOID int64) bool {
	switch op {
	case BeforeCreate, AfterCreate:
		return p.Create
	case BeforeUpdate, AfterUpdate:
		if !p.Update {
			return false
		}
		if p.UpdatePredicate != nil {
			return p.UpdatePredicate(userID, objectOID)
		}
		return true
	case BeforeRemove, AfterRemove:
		if !p.Remove {
			return false
		}
		if p.RemovePredicate != nil {
			return p.RemovePredicate(userID, objectOID)
		}
		return true
	case ReadFilter:
		if !p.Select {
			return false
		}
		if p.SelectPredicate != nil {
			return p.SelectPredicate(userID, objectOID)
		}
		return true
	}
	return false
}

// Scheme is the declared shape of one entity (spec §3.2).
type Scheme struct {
	Name     string
	fields   []*Field
	byName   map[string]*Field
	uniques  [][]string
	roles    map[Role]AccessPolicy
	hooks    map[HookKind][]Hook
	hasDelta bool
	detached bool

	enforcerState
}

// New starts a declarative scheme builder, mirroring the teacher's
// fluent-construction style (schema.Table built up field by field) and
// the original STStorage.h Scheme class surface.
func New(name string) *Scheme {
	return &Scheme{
		Name:   name,
		byName: make(map[string]*Field),
		roles:  make(map[Role]AccessPolicy),
		hooks:  make(map[HookKind][]Hook),
	}
}

// Field appends a field declaration and returns the Scheme for chaining.
func (s *Scheme) Field(f Field) *Scheme {
	if _, dup := s.byName[f.Name]; dup {
		panic(fmt.Sprintf("scheme %q: duplicate field %q", s.Name, f.Name))
	}
	cp := f
	s.fields = append(s.fields, &cp)
	s.byName[f.Name] = &cp
	return s
}

// Unique registers a multi-column uniqueness tuple (spec §3.2).
func (s *Scheme) Unique(fields ...string) *Scheme {
	s.uniques = append(s.uniques, fields)
	return s
}

// Role attaches an access policy for the given role.
func (s *Scheme) Role(r Role, p AccessPolicy) *Scheme {
	s.roles[r] = p
	return s
}

// Hook registers a lifecycle callback.
func (s *Scheme) Hook(k HookKind, h Hook) *Scheme {
	s.hooks[k] = append(s.hooks[k], h)
	return s
}

// HasDelta marks the scheme as change-audited (spec §3.5 __delta_{scheme}).
func (s *Scheme) HasDelta(v bool) *Scheme {
	s.hasDelta = v
	return s
}

// Detached marks the scheme as not carrying an implicit __oid sequence
// (spec §3.2 invariant).
func (s *Scheme) Detached(v bool) *Scheme {
	s.detached = v
	return s
}

func (s *Scheme) Fields() []*Field { return s.fields }
func (s *Scheme) HasDeltaFlag() bool { return s.hasDelta }
func (s *Scheme) IsDetached() bool   { return s.detached }
func (s *Scheme) Uniques() [][]string { return s.uniques }

// FieldByName looks up a declared field.
func (s *Scheme) FieldByName(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Hooks returns the hooks registered for kind, in registration order.
func (s *Scheme) Hooks(kind HookKind) []Hook { return s.hooks[kind] }

// PolicyFor returns the access policy declared for role, or the zero
// (deny-all) policy if none was declared.
func (s *Scheme) PolicyFor(r Role) AccessPolicy { return s.roles[r] }

// AliasField returns the Unique+Text+Alias field usable as a string key in
// get(alias) (spec §3.2 invariant), if one is declared.
func (s *Scheme) AliasField() (*Field, bool) {
	for _, f := range s.fields {
		if f.Type == TypeText && f.Transform == TransformAlias && f.Flags.Has(Unique) {
			return f, true
		}
	}
	return nil, false
}

// ResolveForeignLink finds the unambiguous reciprocal Object field on a
// Set field's target scheme (spec §3.2 invariant: "must name a foreign
// link unambiguously; if two candidates exist, the scheme must pick one").
// It panics with a Bug-shaped message when ambiguous and no explicit
// SetRelation.ForeignKey was set, matching spec §7's Bug kind semantics.
// No caller recovers the panic or converts it to sdberr.KindBug.
func (s *Scheme) ResolveForeignLink(field *Field) (*Field, bool) {
	if field.Type != TypeSet || field.Set == nil {
		return nil, false
	}
	if field.Set.ForeignKey != "" {
		f, ok := field.Set.Target.FieldByName(field.Set.ForeignKey)
		return f, ok
	}
	var candidates []*Field
	for _, f := range field.Set.Target.fields {
		if f.Type == TypeObject && f.Object != nil && f.Object.Target == s {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}
	if len(candidates) > 1 {
		panic(fmt.Sprintf("scheme %q: set field %q has ambiguous foreign link on %q; name one explicitly via SetRelation.ForeignKey",
			s.Name, field.Name, field.Set.Target.Name))
	}
	return nil, false // many-to-many: no reciprocal Object field
}
