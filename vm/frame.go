// Package vm implements the interpreter frame that executes a compiled
// [code.CodeObject] against an operand stack and a table of locals.
//
// A [Frame] is ephemeral: built once per call, it resolves every label in
// its code object to a program counter up front, then steps through the
// body opcode by opcode until a `return`. The same opcode dispatch ([Frame.Step])
// is reused by package rainbow to execute pure operations against an
// abstract "green" frame during partial evaluation — only a subset of ops
// (the ones marked pure in package code, green-local loads and stores, and
// get_iter over an unroll-tagged tuple) are ever asked to run there.
//
// Key components:
//   - [Frame]: the per-call execution state
//   - [NewFrame]: builds a frame's label table from a function's code object
//   - [Call]: runs a function to completion, used both by `call` and as the
//     object package's injected [object.Function.Call] runner
package vm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/dr8co/rainbow/code"
	"github.com/dr8co/rainbow/object"
)

func init() {
	object.Runner = Call
}

// ErrRuntimeType is the classification for RuntimeTypeError (spec.md §7):
// operand type mismatches on add/mul/lt/gt, wrong-arity calls, or
// `get_iter` on a non-iterable.
var ErrRuntimeType = errors.New("runtime type error")

// ErrStack is the classification for StackError (spec.md §7): a
// non-singleton operand stack at `return`, underflow, or falling off the
// end of a code object's body without returning.
var ErrStack = errors.New("stack error")

// Frame is the ephemeral execution state created per function call: the
// function being run, its operand stack, program counter, local-variable
// table, and the label→pc map built once at construction.
type Frame struct {
	// Fn is the function this frame executes.
	Fn *object.Function

	// Stack is the operand stack.
	Stack []object.Value

	// Locals maps local-variable name to its current value.
	Locals map[string]object.Value

	// PC is the index of the next instruction to execute in Fn.Code.Body.
	PC int

	// Labels maps label name to the pc of its `label` instruction.
	Labels map[string]int
}

// NewFrame builds a frame for fn, resolving its label table. Duplicate
// labels are a fatal construction error, per spec.md §4.3.
func NewFrame(fn *object.Function) (*Frame, error) {
	labels, err := fn.Code.Labels()
	if err != nil {
		return nil, errors.Wrapf(err, "building frame for %q", fn.Name)
	}
	return &Frame{
		Fn:     fn,
		Locals: make(map[string]object.Value),
		Labels: labels,
	}, nil
}

// Call builds a frame for fn, binds args to its parameters, and runs it to
// completion. This is the function registered as [object.Runner] and is
// also what the `call` opcode uses to invoke a callee.
func Call(fn *object.Function, args ...object.Value) (object.Value, error) {
	f, err := NewFrame(fn)
	if err != nil {
		return nil, err
	}
	return f.Run(args...)
}

// Run binds args to f.Fn's parameters in order and executes the frame's
// code body until a `return`, at which point the operand stack must hold
// exactly one value. Arity mismatches and any runtime failure are fatal,
// per spec.md §7.
func (f *Frame) Run(args ...object.Value) (object.Value, error) {
	if len(args) != len(f.Fn.Params) {
		return nil, errors.Wrapf(ErrRuntimeType, "%s: expected %d argument(s), got %d",
			f.Fn.Name, len(f.Fn.Params), len(args))
	}
	for i, p := range f.Fn.Params {
		f.Locals[p] = args[i]
	}

	body := f.Fn.Code.Body
	for {
		if f.PC < 0 || f.PC >= len(body) {
			return nil, errors.Wrapf(ErrStack, "%s: fell off the end without a return", f.Fn.Name)
		}
		ins := body[f.PC]
		if ins.Op == code.OpReturn {
			if n := len(f.Stack); n != 1 {
				return nil, errors.Wrapf(ErrStack, "%s: wrong stack size on return: %d", f.Fn.Name, n)
			}
			return f.Pop(), nil
		}
		if err := f.Step(ins); err != nil {
			return nil, err
		}
		f.PC++
	}
}

// Push pushes v onto the operand stack.
func (f *Frame) Push(v object.Value) { f.Stack = append(f.Stack, v) }

// Pop pops and returns the top of the operand stack.
func (f *Frame) Pop() object.Value {
	n := len(f.Stack)
	v := f.Stack[n-1]
	f.Stack = f.Stack[:n-1]
	return v
}

// PopN pops and returns the top n values of the operand stack, in
// bottom-to-top order.
func (f *Frame) PopN(n int) []object.Value {
	start := len(f.Stack) - n
	vs := make([]object.Value, n)
	copy(vs, f.Stack[start:])
	f.Stack = f.Stack[:start]
	return vs
}

// Jump sets the program counter to the pc of the named label.
func (f *Frame) Jump(label string) { f.PC = f.Labels[label] }

// Step executes the effect of a single instruction — everything but
// `return`, which [Run] handles explicitly since it terminates the frame.
// Branch/loop instructions adjust f.PC via [Frame.Jump]; Run increments PC
// by one afterward regardless, landing just past the target label exactly
// as it would for any other instruction.
//
// Step is also what package rainbow calls to execute pure operations,
// green-local loads and stores, and get_iter over an unroll-tagged tuple
// against its abstract green frame; print and call are never stepped
// there.
func (f *Frame) Step(ins code.Instruction) error {
	switch ins.Op {
	case code.OpLoadConst:
		v, ok := ins.Args[0].(object.Value)
		if !ok {
			return errors.Errorf("load_const: argument is not a value: %v", ins.Args[0])
		}
		f.Push(v)

	case code.OpLoadLocal, code.OpLoadLocalGreen:
		name, _ := ins.Name()
		v, ok := f.Locals[name]
		if !ok {
			return errors.Wrapf(ErrRuntimeType, "undefined local %q", name)
		}
		f.Push(v)

	case code.OpStoreLocal, code.OpStoreLocalGreen:
		name, _ := ins.Name()
		f.Locals[name] = f.Pop()

	case code.OpLoadNonlocal, code.OpLoadNonlocalGreen:
		name, _ := ins.Name()
		v, err := f.Fn.Closure.Lookup(name)
		if err != nil {
			return err
		}
		f.Push(v)

	case code.OpAdd:
		return f.opAdd()

	case code.OpMul:
		return f.opMul()

	case code.OpLt:
		return f.opCompare(ins.Op)

	case code.OpGt:
		return f.opCompare(ins.Op)

	case code.OpI32Add:
		return f.opI32Add()

	case code.OpMakeTuple:
		n, _ := ins.Args[0].(int)
		f.Push(&object.Tuple{Elems: f.PopN(n)})

	case code.OpUnroll:
		v := f.Pop()
		t, ok := v.(*object.Tuple)
		if !ok {
			return errors.Wrapf(ErrRuntimeType, "unroll: not a tuple: %s", v.Type())
		}
		f.Push(&object.Tuple{Elems: t.Elems, Unroll: true})

	case code.OpGetIter:
		name, _ := ins.Name()
		v := f.Pop()
		t, ok := v.(*object.Tuple)
		if !ok {
			return errors.Wrapf(ErrRuntimeType, "get_iter: not iterable: %s", v.Type())
		}
		f.Locals[name] = t.Iter()

	case code.OpForIter:
		return f.opForIter(ins)

	case code.OpPrint:
		n, _ := ins.Args[0].(int)
		items := f.PopN(n)
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = it.Inspect()
		}
		fmt.Println(strings.Join(parts, " "))
		f.Push(object.None)

	case code.OpCall:
		return f.opCall(ins)

	case code.OpPop:
		f.Pop()

	case code.OpLabel:
		name, _ := ins.Label(0)
		if f.Labels[name] != f.PC {
			return errors.Errorf("label %q: frame label table out of sync", name)
		}

	case code.OpBr:
		label, _ := ins.Label(0)
		f.Jump(label)

	case code.OpBrIf:
		return f.opBrIf(ins)

	case code.OpMakeFunction:
		co, ok := ins.Args[0].(*code.CodeObject)
		if !ok {
			return errors.Errorf("make_function: argument is not a code object: %v", ins.Args[0])
		}
		scope := make(map[string]object.Value, len(f.Locals))
		for k, v := range f.Locals {
			scope[k] = v
		}
		f.Push(&object.Function{
			Name:    co.Name,
			Params:  co.Params,
			Code:    co,
			Closure: f.Fn.Closure.Extend(scope),
		})

	case code.OpAbort:
		msg, _ := ins.Args[0].(string)
		return errors.Errorf("abort: %s", msg)

	default:
		return errors.Wrapf(code.ErrUnknownOp, "%q", ins.Op)
	}
	return nil
}

func (f *Frame) opAdd() error {
	b, a := f.Pop(), f.Pop()
	switch av := a.(type) {
	case *object.Integer:
		bv, ok := b.(*object.Integer)
		if !ok {
			return typeError("add", a, b)
		}
		f.Push(&object.Integer{Value: av.Value + bv.Value})
	case *object.String:
		bv, ok := b.(*object.String)
		if !ok {
			return typeError("add", a, b)
		}
		f.Push(&object.String{Value: av.Value + bv.Value})
	default:
		return typeError("add", a, b)
	}
	return nil
}

func (f *Frame) opMul() error {
	b, a := f.Pop(), f.Pop()
	switch av := a.(type) {
	case *object.Integer:
		bv, ok := b.(*object.Integer)
		if !ok {
			return typeError("mul", a, b)
		}
		f.Push(&object.Integer{Value: av.Value * bv.Value})
	case *object.String:
		bv, ok := b.(*object.Integer)
		if !ok {
			return typeError("mul", a, b)
		}
		n := bv.Value
		if n < 0 {
			n = 0
		}
		f.Push(&object.String{Value: strings.Repeat(av.Value, int(n))})
	default:
		return typeError("mul", a, b)
	}
	return nil
}

func (f *Frame) opCompare(op code.Op) error {
	b, a := f.Pop(), f.Pop()
	var result bool
	switch av := a.(type) {
	case *object.Integer:
		bv, ok := b.(*object.Integer)
		if !ok {
			return typeError(string(op), a, b)
		}
		if op == code.OpLt {
			result = av.Value < bv.Value
		} else {
			result = av.Value > bv.Value
		}
	case *object.String:
		bv, ok := b.(*object.String)
		if !ok {
			return typeError(string(op), a, b)
		}
		if op == code.OpLt {
			result = av.Value < bv.Value
		} else {
			result = av.Value > bv.Value
		}
	default:
		return typeError(string(op), a, b)
	}
	var n int64
	if result {
		n = 1
	}
	f.Push(&object.Integer{Value: n})
	return nil
}

func (f *Frame) opI32Add() error {
	b, a := f.Pop(), f.Pop()
	av, ok := a.(*object.Integer)
	if !ok {
		return typeError("i32_add", a, b)
	}
	bv, ok := b.(*object.Integer)
	if !ok {
		return typeError("i32_add", a, b)
	}
	f.Push(&object.Integer{Value: av.Value + bv.Value})
	return nil
}

func (f *Frame) opForIter(ins code.Instruction) error {
	itername, _ := ins.Name()
	target, _ := ins.Label(1)
	endlabel, _ := ins.Label(2)

	it, ok := f.Locals[itername].(*object.TupleIterator)
	if !ok {
		return errors.Wrapf(ErrRuntimeType, "for_iter: no iterator bound to %q", itername)
	}
	v := it.Next()
	if object.IsStop(v) {
		delete(f.Locals, itername)
		f.Jump(endlabel)
		return nil
	}
	f.Locals[target] = v
	return nil
}

func (f *Frame) opCall(ins code.Instruction) error {
	n, _ := ins.Args[0].(int)
	args := f.PopN(n)
	callee := f.Pop()
	fn, ok := callee.(*object.Function)
	if !ok {
		return errors.Wrapf(ErrRuntimeType, "call: not callable: %s", callee.Type())
	}
	res, err := fn.Call(args...)
	if err != nil {
		return err
	}
	f.Push(res)
	return nil
}

func (f *Frame) opBrIf(ins code.Instruction) error {
	then, _ := ins.Label(0)
	els, _ := ins.Label(1)
	cond := f.Pop()
	ci, ok := cond.(*object.Integer)
	if !ok {
		return errors.Wrapf(ErrRuntimeType, "br_if: condition is not an integer: %s", cond.Type())
	}
	if ci.Value != 0 {
		f.Jump(then)
	} else {
		f.Jump(els)
	}
	return nil
}

func typeError(op string, a, b object.Value) error {
	return errors.Wrapf(ErrRuntimeType, "%s: type mismatch: %s and %s", op, a.Type(), b.Type())
}
