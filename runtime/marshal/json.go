package marshal

import (
	"bytes"
	"encoding/json"

	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
)

// JSONMarshaller implements Marshaller for subprocess-based executors
// (Rust-via-dlopen aside, this covers C#, shell, and any generic
// subprocess language): per spec.md §4.C7, "marshalling" there is plain
// JSON serialisation of arguments and JSON deserialisation of whatever
// the output parser (C10) recovered as the result payload.
type JSONMarshaller struct{}

// ToForeign renders v as a JSON-compatible Go value (map[string]any,
// []any, string, float64/int64, bool, nil) suitable for json.Marshal.
func (JSONMarshaller) ToForeign(v value.Value) (any, error) {
	return toJSONAny(v)
}

func toJSONAny(v value.Value) (any, error) {
	switch vv := v.(type) {
	case nil:
		return nil, nil
	case value.Int:
		return int64(vv), nil
	case value.Float:
		return float64(vv), nil
	case value.Bool:
		return bool(vv), nil
	case value.Str:
		return string(vv), nil
	case *value.List:
		out := make([]any, vv.Len())
		for i := 0; i < vv.Len(); i++ {
			elem, _ := vv.Get(i)
			conv, err := toJSONAny(elem)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case *value.Dict:
		out := make(map[string]any, vv.Len())
		for _, k := range vv.Keys() {
			elem, _ := vv.Get(k)
			conv, err := toJSONAny(elem)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	default:
		if v != nil && v.Kind() == value.KindNull {
			return nil, nil
		}
		return nil, unsupportedType("JSON/subprocess", kindOf(v))
	}
}

// FromForeign converts a value already decoded from JSON (via
// json.Decoder with UseNumber, or the output parser's own decode) back
// into a NAAb Value.
func (JSONMarshaller) FromForeign(raw any) (value.Value, error) {
	return fromJSONAny(raw)
}

func fromJSONAny(raw any) (value.Value, error) {
	switch v := raw.(type) {
	case nil:
		return value.Null, nil
	case bool:
		return value.Bool(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return value.Int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, errors.New(errors.Type, errors.Location{}, "marshalling: %q is not a representable number", v.String()).WithCode("E0702")
		}
		return value.Float(f), nil
	case int64:
		return value.Int(v), nil
	case float64:
		return value.Float(v), nil
	case string:
		return value.Str(v), nil
	case []any:
		items := make([]value.Value, len(v))
		for i, e := range v {
			conv, err := fromJSONAny(e)
			if err != nil {
				return nil, err
			}
			items[i] = conv
		}
		return value.NewList(items...), nil
	case map[string]any:
		d := value.NewDict()
		for k, e := range v {
			conv, err := fromJSONAny(e)
			if err != nil {
				return nil, err
			}
			d.Set(k, conv)
		}
		return d, nil
	default:
		return nil, errors.New(errors.Type, errors.Location{}, "marshalling: unrecognised decoded JSON type %T", v).WithCode("E0703")
	}
}

// MarshalArgs encodes args as a JSON array, the wire format subprocess
// executors write to stdin.
func MarshalArgs(args []value.Value) ([]byte, error) {
	out := make([]any, len(args))
	for i, a := range args {
		conv, err := toJSONAny(a)
		if err != nil {
			return nil, err
		}
		out[i] = conv
	}
	return json.Marshal(out)
}

// UnmarshalResult decodes a JSON payload (as recovered by the output
// parser) back into a Value, using json.Number so integers round-trip
// exactly instead of losing precision through float64.
func UnmarshalResult(data []byte) (value.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.New(errors.Type, errors.Location{}, "marshalling: malformed JSON result: %s", err).WithCode("E0704")
	}
	return fromJSONAny(raw)
}

func kindOf(v value.Value) value.Kind {
	if v == nil {
		return value.KindNull
	}
	return v.Kind()
}
