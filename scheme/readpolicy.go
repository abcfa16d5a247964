package scheme

// FieldRequest describes a caller's requested projection for a read
// (spec §3.4 include/exclude field trees), collapsed here to flat
// include/exclude name sets plus the "include none"/"include all"
// shortcuts spec §4.4 names.
type FieldRequest struct {
	IncludeNone bool
	IncludeAll  bool
	Include     []string
	Exclude     []string
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

// ResolveReadFields implements the read-field policy of spec §4.4 steps
// 1-3: resolves which scalar/object columns a SELECT should project.
// Relation-typed fields (Set/Array/View/FullTextView) are never returned
// here; they are always fetched by dedicated secondary queries, per step 3.
func (s *Scheme) ResolveReadFields(req FieldRequest) []*Field {
	if req.IncludeNone {
		return nil // caller projects only __oid, handled by the translator
	}

	hasForceExclude := false
	for _, f := range s.fields {
		if f.Flags.Has(ForceExclude) {
			hasForceExclude = true
			break
		}
	}

	if len(req.Include) == 0 && len(req.Exclude) == 0 && !hasForceExclude {
		return s.selectableFields(s.fields) // emit "*" equivalent
	}
	if len(req.Include) == 0 && len(req.Exclude) == 0 && hasForceExclude {
		return s.safeFields()
	}

	var out []*Field
	for _, f := range s.fields {
		if f.IsRelation() {
			continue
		}
		included := f.Flags.Has(ForceInclude) ||
			contains(req.Include, f.Name) ||
			(len(req.Include) == 0 && !contains(req.Exclude, f.Name))
		if f.Flags.Has(ForceExclude) && !req.IncludeAll {
			included = false
		}
		if included {
			out = append(out, f)
		}
	}
	return out
}

// safeFields returns every field that survives an implicit "*" projection
// when the scheme declares at least one ForceExclude field: everything
// except the relation-typed and ForceExclude fields.
func (s *Scheme) safeFields() []*Field {
	var out []*Field
	for _, f := range s.fields {
		if f.IsRelation() || f.Flags.Has(ForceExclude) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (s *Scheme) selectableFields(fields []*Field) []*Field {
	var out []*Field
	for _, f := range fields {
		if f.IsRelation() {
			continue
		}
		out = append(out, f)
	}
	return out
}
