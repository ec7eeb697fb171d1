// Package value implements NAAb's runtime value model: a closed tagged
// union over Null, Int, Float, Bool, String, List, Dict, Struct, Function,
// Block, and Foreign, plus the lexically-scoped Environment that binds
// names to values.
//
// Composite values (List, Dict, Struct) are reference types: assigning or
// passing one shares the underlying storage, so mutation through one
// binding is observable through every other binding that holds the same
// pointer. Function, Block, and Foreign compare by reference identity;
// every other kind compares structurally.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/naab-lang/naab/core/invariant"
)

// Kind identifies which variant of the tagged union a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindList
	KindDict
	KindStruct
	KindFunction
	KindBlock
	KindForeign
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindStruct:
		return "struct"
	case KindFunction:
		return "function"
	case KindBlock:
		return "block"
	case KindForeign:
		return "foreign"
	default:
		return "unknown"
	}
}

// Value is the interface every runtime variant implements. It is a closed
// set by convention: every operator handler in the interpreter enumerates
// the Kind values it accepts and rejects the rest with a Type error that
// names both sides' Kind.
type Value interface {
	Kind() Kind
	Truthy() bool
	Display() string
	Equal(other Value) bool
	// Traverse invokes visit on every Value directly referenced by this
	// one (list elements, dict values, struct fields). Used for reference
	// walking (e.g. a future cycle collector, or export/encode passes).
	Traverse(visit func(Value))
}

// ---- Null ----

type nullValue struct{}

// Null is the single NAAb null value.
var Null Value = nullValue{}

func (nullValue) Kind() Kind              { return KindNull }
func (nullValue) Truthy() bool            { return false }
func (nullValue) Display() string         { return "null" }
func (nullValue) Traverse(func(Value))    {}
func (nullValue) Equal(other Value) bool  { return other.Kind() == KindNull }

// ---- Int ----

type Int int64

func (i Int) Kind() Kind           { return KindInt }
func (i Int) Truthy() bool         { return i != 0 }
func (i Int) Display() string      { return strconv.FormatInt(int64(i), 10) }
func (i Int) Traverse(func(Value)) {}
func (i Int) Equal(other Value) bool {
	o, ok := other.(Int)
	return ok && i == o
}

// ---- Float ----

type Float float64

func (f Float) Kind() Kind           { return KindFloat }
func (f Float) Truthy() bool         { return f != 0 }
func (f Float) Traverse(func(Value)) {}
func (f Float) Display() string {
	if math.IsInf(float64(f), 1) {
		return "inf"
	}
	if math.IsInf(float64(f), -1) {
		return "-inf"
	}
	if math.IsNaN(float64(f)) {
		return "nan"
	}
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}
func (f Float) Equal(other Value) bool {
	o, ok := other.(Float)
	return ok && f == o
}

// ---- Bool ----

type Bool bool

func (b Bool) Kind() Kind           { return KindBool }
func (b Bool) Truthy() bool         { return bool(b) }
func (b Bool) Display() string      { return strconv.FormatBool(bool(b)) }
func (b Bool) Traverse(func(Value)) {}
func (b Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && b == o
}

// ---- String ----

type Str string

func (s Str) Kind() Kind           { return KindString }
func (s Str) Truthy() bool         { return s != "" }
func (s Str) Display() string      { return string(s) }
func (s Str) Traverse(func(Value)) {}
func (s Str) Equal(other Value) bool {
	o, ok := other.(Str)
	return ok && s == o
}

// ---- List ----

// List is an ordered, shared, interior-mutable sequence of Value.
type List struct {
	Elems []Value
}

func NewList(elems ...Value) *List {
	return &List{Elems: elems}
}

func (l *List) Kind() Kind   { return KindList }
func (l *List) Truthy() bool { return len(l.Elems) > 0 }
func (l *List) Display() string {
	seen := make(map[identity]bool)
	return displayList(l, seen)
}
func (l *List) Traverse(visit func(Value)) {
	for _, e := range l.Elems {
		visit(e)
	}
}
func (l *List) Equal(other Value) bool {
	o, ok := other.(*List)
	if !ok || len(l.Elems) != len(o.Elems) {
		return false
	}
	for i := range l.Elems {
		if !l.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}

// Get returns the element at idx, or a Value/IndexOutOfBounds-shaped error
// via the ok flag (the caller maps this to an Error{Kind: Value}).
func (l *List) Get(idx int) (Value, bool) {
	if idx < 0 || idx >= len(l.Elems) {
		return nil, false
	}
	return l.Elems[idx], true
}

// Set mutates the element at idx in place; every binding sharing this List
// observes the change.
func (l *List) Set(idx int, v Value) bool {
	if idx < 0 || idx >= len(l.Elems) {
		return false
	}
	l.Elems[idx] = v
	return true
}

func (l *List) Append(v Value) {
	l.Elems = append(l.Elems, v)
}

func (l *List) Len() int { return len(l.Elems) }

// ---- Dict ----

// Dict is an insertion-order-preserving mapping from string key to Value.
type Dict struct {
	keys   []string
	values map[string]Value
}

func NewDict() *Dict {
	return &Dict{values: make(map[string]Value)}
}

func (d *Dict) Kind() Kind   { return KindDict }
func (d *Dict) Truthy() bool { return len(d.keys) > 0 }
func (d *Dict) Display() string {
	seen := make(map[identity]bool)
	return displayDict(d, seen)
}
func (d *Dict) Traverse(visit func(Value)) {
	for _, k := range d.keys {
		visit(d.values[k])
	}
}
func (d *Dict) Equal(other Value) bool {
	o, ok := other.(*Dict)
	if !ok || len(d.keys) != len(o.keys) {
		return false
	}
	for _, k := range d.keys {
		ov, ok := o.values[k]
		if !ok || !d.values[k].Equal(ov) {
			return false
		}
	}
	return true
}

// Get returns the value bound to key, or false if the key is absent (the
// caller maps that to an Error{Kind: Value, "dict key miss"}).
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Set inserts or overwrites key, preserving the original insertion position
// on overwrite.
func (d *Dict) Set(key string, v Value) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

func (d *Dict) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

func (d *Dict) Len() int { return len(d.keys) }

// ---- StructDef / Struct ----

// StructDef is the immutable type descriptor created by a `struct`
// declaration: an ordered field list plus a precomputed name->index map so
// that name access and index access agree and are both constant-time.
type StructDef struct {
	TypeName    string
	FieldNames  []string
	FieldTypes  []string // declared type name, "" / "any" if untyped
	nameToIndex map[string]int
}

func NewStructDef(typeName string, fields []string, types []string) *StructDef {
	invariant.Precondition(len(fields) == len(types), "field/type count mismatch")
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f] = i
	}
	return &StructDef{TypeName: typeName, FieldNames: fields, FieldTypes: types, nameToIndex: idx}
}

// IndexOf returns the field index for name, or -1 if no such field exists.
func (d *StructDef) IndexOf(name string) int {
	if i, ok := d.nameToIndex[name]; ok {
		return i
	}
	return -1
}

// Struct is a shared, named-type instance with index-addressable fields.
type Struct struct {
	Def    *StructDef
	Fields []Value
}

func NewStruct(def *StructDef, fields []Value) *Struct {
	invariant.Precondition(len(fields) == len(def.FieldNames), "struct field count must match definition")
	return &Struct{Def: def, Fields: fields}
}

func (s *Struct) Kind() Kind   { return KindStruct }
func (s *Struct) Truthy() bool { return true }
func (s *Struct) Display() string {
	seen := make(map[identity]bool)
	return displayStruct(s, seen)
}
func (s *Struct) Traverse(visit func(Value)) {
	for _, f := range s.Fields {
		visit(f)
	}
}
func (s *Struct) Equal(other Value) bool {
	o, ok := other.(*Struct)
	if !ok || s.Def.TypeName != o.Def.TypeName || len(s.Fields) != len(o.Fields) {
		return false
	}
	for i := range s.Fields {
		if !s.Fields[i].Equal(o.Fields[i]) {
			return false
		}
	}
	return true
}

// FieldByName returns the field value and true, or (nil, false) if name is
// not a field of this struct's definition.
func (s *Struct) FieldByName(name string) (Value, bool) {
	i := s.Def.IndexOf(name)
	if i < 0 {
		return nil, false
	}
	return s.Fields[i], true
}

func (s *Struct) SetFieldByName(name string, v Value) bool {
	i := s.Def.IndexOf(name)
	if i < 0 {
		return false
	}
	s.Fields[i] = v
	return true
}

// ---- identity & cycle-safe display ----

// identity is a pointer-identity key used only for cycle detection during
// Display; it never leaks outside this file.
type identity struct{ p any }

func idOf(p any) identity { return identity{p: p} }

func displayValue(v Value, seen map[identity]bool) string {
	switch t := v.(type) {
	case *List:
		return displayList(t, seen)
	case *Dict:
		return displayDict(t, seen)
	case *Struct:
		return displayStruct(t, seen)
	default:
		return v.Display()
	}
}

func displayList(l *List, seen map[identity]bool) string {
	key := idOf(l)
	if seen[key] {
		return "..."
	}
	seen[key] = true
	defer delete(seen, key)

	parts := make([]string, len(l.Elems))
	for i, e := range l.Elems {
		parts[i] = displayValue(e, seen)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func displayDict(d *Dict, seen map[identity]bool) string {
	key := idOf(d)
	if seen[key] {
		return "..."
	}
	seen[key] = true
	defer delete(seen, key)

	parts := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, displayValue(d.values[k], seen)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func displayStruct(s *Struct, seen map[identity]bool) string {
	key := idOf(s)
	if seen[key] {
		return "..."
	}
	seen[key] = true
	defer delete(seen, key)

	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = fmt.Sprintf("%s: %s", s.Def.FieldNames[i], displayValue(f, seen))
	}
	return s.Def.TypeName + "{" + strings.Join(parts, ", ") + "}"
}
