package value

import "encoding/json"

// MarshalJSON renders a Value as plain JSON, used wherever a Value needs
// to leave the process as bytes (aux.Broadcaster envelopes, session
// payloads). Bytes values are base64-encoded by encoding/json's []byte
// handling.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toAny())
}

// UnmarshalJSON populates v from JSON produced by MarshalJSON or any
// compatible document (numbers decode as float64 unless they parse
// exactly as an integer).
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	return nil
}

func (v Value) toAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.bytes
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.toAny()
		}
		return out
	case KindDict:
		out := make(map[string]any, len(v.dict))
		for _, p := range v.dict {
			out[p.Key] = p.Value.toAny()
		}
		return out
	default:
		return nil
	}
}

func fromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		if i := int64(t); float64(i) == t {
			return Int(i)
		}
		return Float(t)
	case string:
		return String(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = fromAny(item)
		}
		return Array(items...)
	case map[string]any:
		d := NewDict()
		for k, item := range t {
			d.Set(k, fromAny(item))
		}
		return d
	default:
		return Null()
	}
}
