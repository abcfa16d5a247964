// Package scheme implements the declarative schema model (spec §3, §4.4):
// field descriptors, relation kinds, access roles and scheme-level
// invariants. It is grounded on the teacher's schema.Table/Column
// (github.com/k0kubun/sqldef schema/ast.go, schema/schema.go) ordered
// field-list shape, generalized from "SQL column" to "scheme field with a
// tagged relation kind."
package scheme

// FieldType tags the kind of a Field (spec §3.1).
type FieldType int

const (
	TypeInteger FieldType = iota
	TypeFloat
	TypeBoolean
	TypeText
	TypeBytes
	TypeData
	TypeExtra
	TypeFile
	TypeImage
	TypeObject
	TypeSet
	TypeArray
	TypeView
	TypeFullTextView
	TypeVirtual
	TypeCustom
)

func (t FieldType) String() string {
	switch t {
	case TypeInteger:
		return "Integer"
	case TypeFloat:
		return "Float"
	case TypeBoolean:
		return "Boolean"
	case TypeText:
		return "Text"
	case TypeBytes:
		return "Bytes"
	case TypeData:
		return "Data"
	case TypeExtra:
		return "Extra"
	case TypeFile:
		return "File"
	case TypeImage:
		return "Image"
	case TypeObject:
		return "Object"
	case TypeSet:
		return "Set"
	case TypeArray:
		return "Array"
	case TypeView:
		return "View"
	case TypeFullTextView:
		return "FullTextView"
	case TypeVirtual:
		return "Virtual"
	case TypeCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// IsRelation reports whether the field is fetched via a dedicated
// secondary query rather than as a main-row column (spec §4.4 step 3).
func (t FieldType) IsRelation() bool {
	switch t {
	case TypeSet, TypeArray, TypeView, TypeFullTextView:
		return true
	default:
		return false
	}
}

// Flags is the field flag bitset of spec §3.1.
type Flags uint32

const (
	Required Flags = 1 << iota
	Unique
	Indexed
	ForceInclude
	ForceExclude
	Protected
	ReadOnly
	Reference
	Composed
	Compressed
	PatternIndexed
	TrigramIndexed
	TsNormDocLength
	TsNormDocLengthLog
	TsNormUniqueWords
	TsNormUniqueWordsLog
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Transform tags a secondary semantic applied to a scalar field value.
type Transform int

const (
	TransformNone Transform = iota
	TransformAlias
)

// RemovePolicy controls cascade behaviour when the referenced Object row
// is removed (spec §3.2).
type RemovePolicy int

const (
	Cascade RemovePolicy = iota
	Restrict
	SetNull
	ReferencePolicy
	StrongReference
)

// ObjectRelation describes a single-valued FK field (spec §3.1 Object).
type ObjectRelation struct {
	Target *Scheme
	OnRemove RemovePolicy
}

// SetRelation describes a Set field (spec §3.1/§3.2): one-to-many via a
// reciprocal Object field on Target, or many-to-many via an implicit join
// table when no reciprocal field is named or resolvable.
type SetRelation struct {
	Target     *Scheme
	OnRemove   RemovePolicy
	ForeignKey string // name of the reciprocal Object field on Target, if any
}

// FieldView describes a View field (spec §3.1/§3.2): a materialised,
// trigger-maintained membership set over Target rows matching Predicate.
type FieldView struct {
	Target    *Scheme
	Predicate func(parentOID int64) Condition
	Fields    []string
	Delta     bool
}

// FullText describes a FullTextView field (spec §3.1/§4.6).
type FullText struct {
	Sources []string // source field names the tsvector is derived from
	// Normalization is one of the TsNorm* flag bits, carried separately
	// here for convenience when composing the ts_rank() call.
	Normalization Flags
}

// CustomField lets a caller supply its own encode/decode/compare/where
// hooks (spec §3.1 Custom).
type CustomField struct {
	SQLType  string
	Encode   func(value any) ([]byte, error)
	Decode   func([]byte) (any, error)
	WriteWhere func(ctx any, cond Condition) (sqlFragment string, args []any, ok bool)
}

// Field is one entry of a Scheme's ordered field map.
type Field struct {
	Name      string
	Type      FieldType
	Flags     Flags
	Transform Transform

	Object   *ObjectRelation
	Set      *SetRelation
	ArrayOf  FieldType // element scalar type for TypeArray
	View     *FieldView
	FullText *FullText
	Custom   *CustomField

	// Virtual reader: synthesised on read, never persisted (spec §3.1).
	VirtualRead func(obj *Field, row VirtualRow) (any, error)
}

// VirtualRow is the minimal row-access surface a virtual field reader
// needs; implemented by cursor.Cursor (kept here as an interface to avoid
// an import cycle between scheme and cursor).
type VirtualRow interface {
	Int64Named(name string) (int64, bool)
	TextNamed(name string) (string, bool)
}

func (f Field) IsRelation() bool { return f.Type.IsRelation() }
