// Package object defines the runtime value universe for the toy language
// compiled and executed by this module.
//
// Values are a small closed tagged union: integers, strings, tuples,
// tuple-iterators, the none singleton, functions, and modules. There is no
// inheritance — each variant is its own Go type implementing the common
// [Value] interface, and code that needs to act differently per variant
// does so with a type switch rather than virtual dispatch.
//
// Key components:
//   - [Value]: the interface every runtime value implements
//   - [Integer], [String], [Tuple], [TupleIterator], [None], [Function], [Module]
//   - [Closure]: the chained-scope lookup structure functions capture
package object

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/dr8co/rainbow/code"
)

// Type identifies the variant of a [Value].
type Type string

//nolint:revive
const (
	IntegerType       Type = "INTEGER"
	StringType        Type = "STRING"
	TupleType         Type = "TUPLE"
	TupleIteratorType Type = "TUPLE_ITERATOR"
	NoneType          Type = "NONE"
	FunctionType      Type = "FUNCTION"
	ModuleType        Type = "MODULE"
	stopType          Type = "STOP"
)

// Value is the interface every runtime value implements.
type Value interface {
	// Type reports the value's variant.
	Type() Type

	// Inspect returns a human-readable representation, used by the
	// `print` opcode and by test failure messages.
	Inspect() string

	// Equal reports whether the receiver equals other. Integers and
	// strings compare by content; every other variant compares by
	// identity.
	Equal(other Value) bool
}

// ErrNotFound is returned by [Closure.Lookup] when no scope in the chain
// binds the requested name.
var ErrNotFound = errors.New("name not found")

// Integer is a signed machine-width integer value.
type Integer struct {
	Value int64
}

func (i *Integer) Type() Type      { return IntegerType }
func (i *Integer) Inspect() string { return strconv.FormatInt(i.Value, 10) }
func (i *Integer) Equal(o Value) bool {
	other, ok := o.(*Integer)
	return ok && other.Value == i.Value
}

// String is an immutable character sequence.
type String struct {
	Value string
}

func (s *String) Type() Type      { return StringType }
func (s *String) Inspect() string { return s.Value }
func (s *String) Equal(o Value) bool {
	other, ok := o.(*String)
	return ok && other.Value == s.Value
}

// Tuple is an immutable ordered sequence of values. Unroll marks a tuple
// produced by the `unroll` opcode, making it eligible for loop unrolling
// by the rainbow interpreter when it backs a `for` target.
type Tuple struct {
	Elems  []Value
	Unroll bool
}

func (t *Tuple) Type() Type { return TupleType }

func (t *Tuple) Inspect() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.Inspect()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (t *Tuple) Equal(o Value) bool { return o == Value(t) }

// Iter returns a fresh [TupleIterator] over t, carrying t's Unroll flag.
func (t *Tuple) Iter() *TupleIterator {
	return &TupleIterator{Tuple: t, Unroll: t.Unroll}
}

// TupleIterator references a tuple and a cursor position. Unroll mirrors
// the source tuple's flag so the rainbow interpreter can recognize an
// in-progress unrolling loop purely from the iterator local.
type TupleIterator struct {
	Tuple  *Tuple
	Pos    int
	Unroll bool
}

func (it *TupleIterator) Type() Type         { return TupleIteratorType }
func (it *TupleIterator) Inspect() string    { return "<tuple iterator>" }
func (it *TupleIterator) Equal(o Value) bool { return o == Value(it) }

// stop is the sentinel [TupleIterator.Next] returns once the tuple is
// exhausted.
type stop struct{}

func (*stop) Type() Type         { return stopType }
func (*stop) Inspect() string    { return "<stop>" }
func (*stop) Equal(o Value) bool { _, ok := o.(*stop); return ok }

// Stop is the exhaustion sentinel returned by [TupleIterator.Next].
var Stop Value = &stop{}

// IsStop reports whether v is the [Stop] sentinel.
func IsStop(v Value) bool { _, ok := v.(*stop); return ok }

// Next advances the iterator, returning the next element or [Stop].
func (it *TupleIterator) Next() Value {
	if it.Pos >= len(it.Tuple.Elems) {
		return Stop
	}
	v := it.Tuple.Elems[it.Pos]
	it.Pos++
	return v
}

// Remaining returns the elements not yet consumed, left to right. Used by
// the rainbow interpreter to drive loop unrolling without mutating the
// iterator seen by the rest of the evaluation.
func (it *TupleIterator) Remaining() []Value {
	return it.Tuple.Elems[it.Pos:]
}

// none is the singleton "no value" type.
type none struct{}

func (*none) Type() Type         { return NoneType }
func (*none) Inspect() string    { return "none" }
func (*none) Equal(o Value) bool { _, ok := o.(*none); return ok }

// None is the singleton none value.
var None Value = &none{}

// Closure is an ordered list of name→value scope frames, innermost last.
// It is built once, at function-definition time, and never mutated — a
// nested function's closure is a new list that appends a snapshot of its
// enclosing locals, never touching the parent's scopes.
type Closure struct {
	Scopes []map[string]Value
}

// NewClosure builds a closure from its scope frames, outermost first.
func NewClosure(scopes ...map[string]Value) *Closure {
	return &Closure{Scopes: scopes}
}

// Extend returns a new closure equal to c with an additional innermost
// scope appended. c itself is unmodified.
func (c *Closure) Extend(scope map[string]Value) *Closure {
	scopes := make([]map[string]Value, len(c.Scopes)+1)
	copy(scopes, c.Scopes)
	scopes[len(c.Scopes)] = scope
	return &Closure{Scopes: scopes}
}

// Lookup walks the closure from innermost outward, returning the first
// binding found for name. It fails with [ErrNotFound] if no scope binds it.
func (c *Closure) Lookup(name string) (Value, error) {
	for i := len(c.Scopes) - 1; i >= 0; i-- {
		if v, ok := c.Scopes[i][name]; ok {
			return v, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "name %q", name)
}

// Function is a compiled function value: its name, parameter names, code
// object, and the closure it captured at definition time.
type Function struct {
	Name    string
	Params  []string
	Code    *code.CodeObject
	Closure *Closure
}

func (f *Function) Type() Type         { return FunctionType }
func (f *Function) Inspect() string    { return "<function " + f.Name + ">" }
func (f *Function) Equal(o Value) bool { return o == Value(f) }

// Runner executes a function call by building and running a frame over its
// code object. Package vm sets this at init time; object cannot import vm
// directly (vm imports object for the value universe), so [Function.Call]
// is wired through this indirection rather than living here itself.
var Runner func(fn *Function, args ...Value) (Value, error)

// Call invokes f with args, matching them positionally to f.Params. Arity
// mismatches and type errors are reported by the runner (package vm).
func (f *Function) Call(args ...Value) (Value, error) {
	if Runner == nil {
		return nil, errors.New("object: no function runner registered")
	}
	return Runner(f, args...)
}

// Module is the top-level namespace produced by compiling a source file:
// a mapping from name to value (its globals), plus the set of names
// declared green by the `@green` decorator.
type Module struct {
	Globals map[string]Value
	Greens  map[string]bool
}

func (m *Module) Type() Type         { return ModuleType }
func (m *Module) Inspect() string    { return "<module>" }
func (m *Module) Equal(o Value) bool { return o == Value(m) }

// IsGreen reports whether name was declared green (via `@green` on a
// function definition) in this module.
func (m *Module) IsGreen(name string) bool { return m.Greens[name] }

// Lookup finds a global by name.
func (m *Module) Lookup(name string) (Value, error) {
	if v, ok := m.Globals[name]; ok {
		return v, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "global %q", name)
}
