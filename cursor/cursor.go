// Package cursor implements the typed row-projection layer of spec §4.2:
// decoding backend rows into value.Value documents, with the special
// "__"-prefixed column semantics (oid, view-id, delta columns, full-text
// rank) the translator's generated SELECTs rely on.
package cursor

import (
	"database/sql"
	"math"
	"strings"

	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/value"
)

// Cursor wraps one backend result row set, grounded on the scanning style
// of the teacher's TableNames/DumpTableDDL row loops
// (github.com/k0kubun/sqldef database/postgres, database/sqlite3), which
// always pairs *sql.Rows.Next() with an explicit per-column Scan.
type Cursor struct {
	rows    *sql.Rows
	cols    []string
	index   map[string]int
	current []any
}

// New wraps rows, caching the column-name→index map once.
func New(rows *sql.Rows) (*Cursor, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c] = i
	}
	return &Cursor{rows: rows, cols: cols, index: idx}, nil
}

// Next advances to the next row, scanning all columns into an internal
// buffer of driver-native values.
func (c *Cursor) Next() bool {
	if !c.rows.Next() {
		return false
	}
	c.current = make([]any, len(c.cols))
	ptrs := make([]any, len(c.cols))
	for i := range c.current {
		ptrs[i] = &c.current[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.current = nil
		return false
	}
	return true
}

func (c *Cursor) Err() error { return c.rows.Err() }
func (c *Cursor) Close() error { return c.rows.Close() }
func (c *Cursor) Columns() []string { return c.cols }

func (c *Cursor) cell(i int) any {
	if i < 0 || i >= len(c.current) {
		return nil
	}
	return c.current[i]
}

func (c *Cursor) byName(name string) (any, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.cell(i), true
}

// Int64 reads column i as int64.
func (c *Cursor) Int64(i int) (int64, bool) { return asInt64(c.cell(i)) }

// Int64Named reads a column by name, implementing scheme.VirtualRow.
func (c *Cursor) Int64Named(name string) (int64, bool) {
	v, ok := c.byName(name)
	if !ok {
		return 0, false
	}
	return asInt64(v)
}

func (c *Cursor) Float64(i int) (float64, bool) { return asFloat64(c.cell(i)) }
func (c *Cursor) Bool(i int) (bool, bool)        { return asBool(c.cell(i)) }
func (c *Cursor) Text(i int) (string, bool)      { return asText(c.cell(i)) }
func (c *Cursor) TextNamed(name string) (string, bool) {
	v, ok := c.byName(name)
	if !ok {
		return "", false
	}
	return asText(v)
}
func (c *Cursor) Bytes(i int) ([]byte, bool) { return asBytes(c.cell(i)) }
func (c *Cursor) IsNull(i int) bool          { return c.cell(i) == nil }

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case nil:
		return 0, false
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case nil:
		return 0, false
	default:
		return 0, false
	}
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int64:
		return t != 0, true
	case nil:
		return false, false
	default:
		return false, false
	}
}

func asText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case nil:
		return "", false
	default:
		return "", false
	}
}

func asBytes(v any) ([]byte, bool) {
	switch t := v.(type) {
	case []byte:
		return t, true
	case string:
		return []byte(t), true
	case nil:
		return nil, false
	default:
		return nil, false
	}
}

// IsSpecialFloat recognises the NaN/±Infinity tokens a raw-text float
// decode path must handle explicitly (spec §4.2). Go's strconv.ParseFloat
// already parses these tokens; this is an exported helper with no caller
// inside this module.
func IsSpecialFloat(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// DeltaColumns names the delta-join columns of spec §4.2.
var DeltaColumns = struct{ Action, Time, Object, User string }{
	Action: "__d_action", Time: "__d_time", Object: "__d_object", User: "__d_user",
}

// Decode walks scheme's declared (non-relation) fields plus any requested
// virtual readers and assembles one value.Value document for the current
// row, interpreting the "__"-prefixed special columns per spec §4.2.
func (c *Cursor) Decode(s *scheme.Scheme, fields []*scheme.Field, virtuals []*scheme.Field) (value.Value, error) {
	doc := value.NewDict()

	if oid, ok := c.byName("__oid"); ok {
		if i, ok2 := asInt64(oid); ok2 {
			doc.Set("__oid", value.Int(i))
		}
	}

	for _, f := range fields {
		raw, present := c.byName(f.Name)
		if !present {
			continue
		}
		doc.Set(f.Name, decodeScalar(f, raw))
	}

	for _, f := range virtuals {
		if f.VirtualRead == nil {
			continue
		}
		v, err := f.VirtualRead(f, c)
		if err != nil {
			return value.Null(), err
		}
		doc.Set(f.Name, toValue(v))
	}

	c.decodeViewID(&doc)
	c.decodeDelta(&doc)
	c.decodeFullTextRanks(&doc, s)

	return doc, nil
}

// decodeViewID handles the __vid column: 0 signals the row was deleted
// from the view, synthesising a __delta:{action:"delete"} entry (spec §4.2).
func (c *Cursor) decodeViewID(doc *value.Value) {
	raw, ok := c.byName("__vid")
	if !ok {
		return
	}
	vid, _ := asInt64(raw)
	doc.Set("__vid", value.Int(vid))
	if vid == 0 {
		delta := value.NewDict()
		delta.Set("action", value.String("delete"))
		doc.Set("__delta", delta)
	}
}

func (c *Cursor) decodeDelta(doc *value.Value) {
	action, hasAction := c.byName(DeltaColumns.Action)
	t, hasTime := c.byName(DeltaColumns.Time)
	obj, hasObj := c.byName(DeltaColumns.Object)
	if !hasAction && !hasTime && !hasObj {
		return
	}
	delta := value.NewDict()
	if prev, ok := doc.Get("__delta"); ok {
		delta = prev
	}
	if hasAction {
		if s, ok := asText(action); ok {
			delta.Set("action", value.String(s))
		}
	}
	if hasTime {
		if i, ok := asInt64(t); ok {
			delta.Set("time", value.Int(i))
		}
	}
	if hasObj {
		if i, ok := asInt64(obj); ok {
			delta.Set("object", value.Int(i))
		}
	}
	if user, ok := c.byName(DeltaColumns.User); ok {
		if i, ok2 := asInt64(user); ok2 {
			delta.Set("user", value.Int(i))
		}
	}
	doc.Set("__delta", delta)
}

// decodeFullTextRanks exposes __ts_rank_{field} both under its raw column
// name and under the stripped field name (spec §4.2).
func (c *Cursor) decodeFullTextRanks(doc *value.Value, s *scheme.Scheme) {
	const prefix = "__ts_rank_"
	for _, col := range c.cols {
		if !strings.HasPrefix(col, prefix) {
			continue
		}
		raw, _ := c.byName(col)
		f, ok := asFloat64(raw)
		if !ok {
			continue
		}
		doc.Set(col, value.Float(f))
		field := strings.TrimPrefix(col, prefix)
		doc.Set(field, value.Float(f))
	}
}

func decodeScalar(f *scheme.Field, raw any) value.Value {
	if raw == nil {
		return value.Null()
	}
	switch f.Type {
	case scheme.TypeInteger, scheme.TypeFile, scheme.TypeImage, scheme.TypeObject:
		if i, ok := asInt64(raw); ok {
			return value.Int(i)
		}
	case scheme.TypeFloat:
		if fl, ok := asFloat64(raw); ok {
			return value.Float(fl)
		}
	case scheme.TypeBoolean:
		if b, ok := asBool(raw); ok {
			return value.Bool(b)
		}
	case scheme.TypeText:
		if s, ok := asText(raw); ok {
			return value.String(s)
		}
	case scheme.TypeBytes, scheme.TypeData, scheme.TypeExtra:
		if b, ok := asBytes(raw); ok {
			return value.Bytes(b)
		}
	}
	return toValue(raw)
}

func toValue(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(t)
	case int64:
		return value.Int(t)
	case int:
		return value.Int(int64(t))
	case float64:
		return value.Float(t)
	case string:
		return value.String(t)
	case []byte:
		return value.Bytes(t)
	default:
		return value.Null()
	}
}
