package translator

import (
	"fmt"
	"strconv"

	"github.com/stelladb/stellator/qbuilder"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/value"
)

// CompileWhere renders every condition in conds against wb (spec §4.6 WHERE
// composition): unknown fields are silently dropped, values are bound with
// the field type's parameter kind (operators are not checked against the
// field's type), scalar-typed arrays passed to
// OpIn/OpNotIn are inlined without bind slots, and OpIncludes compiles a
// cached full-text match expression via ftsCache.
func (c *Context) CompileWhere(wb *qbuilder.WhereBuilder, conds []scheme.Condition, ftsCache *FullTextCache) error {
	for _, cond := range conds {
		f, ok := c.Scheme.FieldByName(cond.Field)
		if !ok {
			continue // silent-drop on unknown field
		}
		if err := c.compileOne(wb, f, cond, ftsCache); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) compileOne(wb *qbuilder.WhereBuilder, f *scheme.Field, cond scheme.Condition, ftsCache *FullTextCache) error {
	kind := paramKind(f.Type)
	switch cond.Op {
	case scheme.OpEq:
		wb.Eq(f.Name, kind, cond.Value1)
	case scheme.OpNe:
		wb.Ne(f.Name, kind, cond.Value1)
	case scheme.OpLt:
		wb.Lt(f.Name, kind, cond.Value1)
	case scheme.OpLe:
		wb.Le(f.Name, kind, cond.Value1)
	case scheme.OpGt:
		wb.Gt(f.Name, kind, cond.Value1)
	case scheme.OpGe:
		wb.Ge(f.Name, kind, cond.Value1)
	case scheme.OpBetween:
		wb.Between(f.Name, kind, cond.Value1, cond.Value2, false)
	case scheme.OpBetweenOpen:
		wb.Between(f.Name, kind, cond.Value1, cond.Value2, true)
	case scheme.OpNotBetween:
		wb.NotBetween(f.Name, kind, cond.Value1, cond.Value2)
	case scheme.OpIsNull:
		wb.IsNull(f.Name)
	case scheme.OpIsNotNull:
		wb.IsNotNull(f.Name)
	case scheme.OpIn:
		literals, err := scalarLiterals(f, cond.Value1)
		if err != nil {
			return err
		}
		wb.In(f.Name, literals)
	case scheme.OpNotIn:
		literals, err := scalarLiterals(f, cond.Value1)
		if err != nil {
			return err
		}
		wb.NotIn(f.Name, literals)
	case scheme.OpIncludes:
		if f.Type != scheme.TypeFullTextView {
			return fmt.Errorf("translator: field %q is not a full-text view, cannot use Includes", f.Name)
		}
		query, ok := cond.Value1.(string)
		if !ok {
			return fmt.Errorf("translator: Includes on %q requires a string query", f.Name)
		}
		expr := ftsCache.Compile(c.Dialect, c.Scheme.Name, f, query)
		wb.Includes(f.Name, expr)
	default:
		return fmt.Errorf("translator: unsupported condition op %d on field %q", cond.Op, f.Name)
	}
	return nil
}

// scalarLiterals renders a []value.Value (or []int64/[]string via
// value.Array) as inline SQL literals for IN/NOT IN (spec §4.3: "For IN
// with scalar arrays the builder emits IN (a,b,c) without bind slots").
func scalarLiterals(f *scheme.Field, arr any) ([]string, error) {
	items, ok := arr.(value.Value)
	if !ok {
		return nil, fmt.Errorf("translator: IN/NOT IN on %q expects a value.Value array", f.Name)
	}
	vals, ok := items.AsArray()
	if !ok {
		return nil, fmt.Errorf("translator: IN/NOT IN on %q expects an array value", f.Name)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		lit, err := scalarLiteral(f, v)
		if err != nil {
			return nil, err
		}
		out = append(out, lit)
	}
	return out, nil
}

func scalarLiteral(f *scheme.Field, v value.Value) (string, error) {
	switch f.Type {
	case scheme.TypeInteger, scheme.TypeObject, scheme.TypeFile, scheme.TypeImage:
		i, ok := v.AsInt()
		if !ok {
			return "", fmt.Errorf("translator: expected int literal for %q", f.Name)
		}
		return strconv.FormatInt(i, 10), nil
	case scheme.TypeFloat:
		fl, ok := v.AsFloat()
		if !ok {
			return "", fmt.Errorf("translator: expected float literal for %q", f.Name)
		}
		return strconv.FormatFloat(fl, 'g', -1, 64), nil
	case scheme.TypeText:
		s, ok := v.AsString()
		if !ok {
			return "", fmt.Errorf("translator: expected text literal for %q", f.Name)
		}
		return "'" + escapeSQLString(s) + "'", nil
	default:
		return "", fmt.Errorf("translator: field %q's type does not support inline literals", f.Name)
	}
}

func escapeSQLString(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
