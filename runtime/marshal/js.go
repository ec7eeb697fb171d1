package marshal

import (
	"github.com/dop251/goja"

	"github.com/naab-lang/naab/core/value"
)

// JSMarshaller implements Marshaller for the embedded JavaScript runtime
// (spec.md §4.C7, "JS is analogous [to Python] with its own primitive
// mapping"): NAAb Null/Int/Float/Bool/String/List/Dict convert to/from
// goja's native JS values via the shared engine Runtime, so a List/Dict
// round-trips as a real JS array/object rather than an opaque handle.
type JSMarshaller struct {
	VM *goja.Runtime
}

// NewJSMarshaller binds a marshaller to the JS engine instance a block
// execution will run against. The engine is owned by the JS executor
// (one per NAAb process, per spec.md §4.C9); the marshaller never
// constructs its own.
func NewJSMarshaller(vm *goja.Runtime) *JSMarshaller {
	return &JSMarshaller{VM: vm}
}

// ToForeign converts v into a goja.Value live in m.VM.
func (m *JSMarshaller) ToForeign(v value.Value) (any, error) {
	native, err := toJSNative(v)
	if err != nil {
		return nil, err
	}
	return m.VM.ToValue(native), nil
}

func toJSNative(v value.Value) (any, error) {
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
			conv, err := toJSNative(elem)
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
			conv, err := toJSNative(elem)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	case *value.Foreign:
		if vv.Language == "javascript" {
			return vv.Handle, nil
		}
		return nil, unsupportedType("javascript", value.KindForeign)
	default:
		if v != nil && v.Kind() == value.KindNull {
			return nil, nil
		}
		return nil, unsupportedType("javascript", kindOf(v))
	}
}

// FromForeign converts a goja.Value (or a plain Go value already
// Export()-ed from one) back into a NAAb Value. Per spec.md §4.C7's
// int-fits-64-bit rule: a JS number with no fractional part and within
// int64 range becomes Int, otherwise Float — JS has no integer/float
// distinction of its own, so the decision is made on the exported value.
func (m *JSMarshaller) FromForeign(raw any) (value.Value, error) {
	if jv, ok := raw.(goja.Value); ok {
		if jv == nil || goja.IsUndefined(jv) || goja.IsNull(jv) {
			return value.Null, nil
		}
		raw = jv.Export()
	}
	return fromJSNative(raw)
}

func fromJSNative(raw any) (value.Value, error) {
	switch v := raw.(type) {
	case nil:
		return value.Null, nil
	case bool:
		return value.Bool(v), nil
	case int64:
		return value.Int(v), nil
	case int:
		return value.Int(v), nil
	case float64:
		if i := int64(v); float64(i) == v {
			return value.Int(i), nil
		}
		return value.Float(v), nil
	case string:
		return value.Str(v), nil
	case []any:
		items := make([]value.Value, len(v))
		for i, e := range v {
			conv, err := fromJSNative(e)
			if err != nil {
				return nil, err
			}
			items[i] = conv
		}
		return value.NewList(items...), nil
	case map[string]any:
		d := value.NewDict()
		for k, e := range v {
			conv, err := fromJSNative(e)
			if err != nil {
				return nil, err
			}
			d.Set(k, conv)
		}
		return d, nil
	default:
		return value.NewForeign("javascript", raw, func() {}), nil
	}
}
