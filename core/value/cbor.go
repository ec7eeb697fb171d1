package value

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// wireValue is the CBOR-serialisable shadow of Value. Function, Block, and
// Foreign have no stable cross-process representation and are rejected by
// Encode with a Type/unsupported-shaped error, mirroring the marshaller's
// "other variants fail with Type/unsupported" rule (spec §4.C7).
type wireValue struct {
	Kind   string      `cbor:"k"`
	Int    int64       `cbor:"i,omitempty"`
	Float  float64     `cbor:"f,omitempty"`
	Bool   bool        `cbor:"b,omitempty"`
	Str    string      `cbor:"s,omitempty"`
	List   []wireValue `cbor:"l,omitempty"`
	Dict   []wireEntry `cbor:"d,omitempty"`
	Struct *wireStruct `cbor:"st,omitempty"`
}

type wireEntry struct {
	Key   string    `cbor:"k"`
	Value wireValue `cbor:"v"`
}

type wireStruct struct {
	TypeName string      `cbor:"t"`
	Fields   []string    `cbor:"fn"`
	Types    []string    `cbor:"ft"`
	Values   []wireValue `cbor:"v"`
}

// UnsupportedEncodingError reports a Value kind with no CBOR wire form.
type UnsupportedEncodingError struct {
	Kind Kind
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("value of kind %s cannot be encoded", e.Kind)
}

// Encode produces a compact binary (CBOR) encoding of v. Lists, dicts, and
// structs encode recursively; Function, Block, and Foreign are unsupported.
// The executors and the block loader in this module do not call it: they
// exchange values as JSON or as C-ABI words.
func Encode(v Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(w)
}

// Decode is the inverse of Encode.
func Decode(data []byte) (Value, error) {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(w)
}

func toWire(v Value) (wireValue, error) {
	switch t := v.(type) {
	case nullValue:
		return wireValue{Kind: "null"}, nil
	case Int:
		return wireValue{Kind: "int", Int: int64(t)}, nil
	case Float:
		return wireValue{Kind: "float", Float: float64(t)}, nil
	case Bool:
		return wireValue{Kind: "bool", Bool: bool(t)}, nil
	case Str:
		return wireValue{Kind: "string", Str: string(t)}, nil
	case *List:
		items := make([]wireValue, len(t.Elems))
		for i, e := range t.Elems {
			w, err := toWire(e)
			if err != nil {
				return wireValue{}, err
			}
			items[i] = w
		}
		return wireValue{Kind: "list", List: items}, nil
	case *Dict:
		entries := make([]wireEntry, 0, t.Len())
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			w, err := toWire(val)
			if err != nil {
				return wireValue{}, err
			}
			entries = append(entries, wireEntry{Key: k, Value: w})
		}
		return wireValue{Kind: "dict", Dict: entries}, nil
	case *Struct:
		fields := make([]wireValue, len(t.Fields))
		for i, f := range t.Fields {
			w, err := toWire(f)
			if err != nil {
				return wireValue{}, err
			}
			fields[i] = w
		}
		return wireValue{Kind: "struct", Struct: &wireStruct{
			TypeName: t.Def.TypeName,
			Fields:   t.Def.FieldNames,
			Types:    t.Def.FieldTypes,
			Values:   fields,
		}}, nil
	default:
		return wireValue{}, &UnsupportedEncodingError{Kind: v.Kind()}
	}
}

func fromWire(w wireValue) (Value, error) {
	switch w.Kind {
	case "null":
		return Null, nil
	case "int":
		return Int(w.Int), nil
	case "float":
		return Float(w.Float), nil
	case "bool":
		return Bool(w.Bool), nil
	case "string":
		return Str(w.Str), nil
	case "list":
		elems := make([]Value, len(w.List))
		for i, item := range w.List {
			v, err := fromWire(item)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return NewList(elems...), nil
	case "dict":
		d := NewDict()
		for _, entry := range w.Dict {
			v, err := fromWire(entry.Value)
			if err != nil {
				return nil, err
			}
			d.Set(entry.Key, v)
		}
		return d, nil
	case "struct":
		def := NewStructDef(w.Struct.TypeName, w.Struct.Fields, w.Struct.Types)
		fields := make([]Value, len(w.Struct.Values))
		for i, item := range w.Struct.Values {
			v, err := fromWire(item)
			if err != nil {
				return nil, err
			}
			fields[i] = v
		}
		return NewStruct(def, fields), nil
	default:
		return nil, fmt.Errorf("unknown wire kind %q", w.Kind)
	}
}
