package scheme

// ObjectField builds a Field declaration for a single-valued foreign key
// (spec §3.1 Object), the Go analogue of the fluent
// `.field("owner", Type::Object(scheme_ref, OnRemove::Cascade))` call shape.
func ObjectField(name string, target *Scheme, onRemove RemovePolicy, flags Flags) Field {
	return Field{
		Name:  name,
		Type:  TypeObject,
		Flags: flags,
		Object: &ObjectRelation{
			Target:   target,
			OnRemove: onRemove,
		},
	}
}

// SetField builds a Field declaration for a Set relation (spec §3.1/§3.2).
func SetField(name string, target *Scheme, onRemove RemovePolicy, foreignKey string, flags Flags) Field {
	return Field{
		Name:  name,
		Type:  TypeSet,
		Flags: flags,
		Set: &SetRelation{
			Target:     target,
			OnRemove:   onRemove,
			ForeignKey: foreignKey,
		},
	}
}

// ArrayField builds a Field declaration for an ordered scalar array
// (spec §3.1 Array).
func ArrayField(name string, elem FieldType, flags Flags) Field {
	return Field{
		Name:    name,
		Type:    TypeArray,
		Flags:   flags,
		ArrayOf: elem,
	}
}

// ViewField builds a Field declaration for a computed materialised set
// (spec §3.1/§3.2 View).
func ViewField(name string, view FieldView, flags Flags) Field {
	return Field{
		Name:  name,
		Type:  TypeView,
		Flags: flags,
		View:  &view,
	}
}

// FullTextField builds a Field declaration for a tokenised search vector
// (spec §3.1 FullTextView).
func FullTextField(name string, sources []string, normalization Flags, flags Flags) Field {
	return Field{
		Name:     name,
		Type:     TypeFullTextView,
		Flags:    flags,
		FullText: &FullText{Sources: sources, Normalization: normalization},
	}
}

// ScalarField builds a Field declaration for a plain scalar column.
func ScalarField(name string, t FieldType, flags Flags, transform Transform) Field {
	return Field{Name: name, Type: t, Flags: flags, Transform: transform}
}

// VirtualField builds a Field declaration synthesised on read (spec §3.1
// Virtual); it is never persisted and never participates in migration.
func VirtualField(name string, reader func(obj *Field, row VirtualRow) (any, error)) Field {
	return Field{Name: name, Type: TypeVirtual, VirtualRead: reader}
}
