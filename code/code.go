// Package code defines the bytecode instruction set for the toy language
// compiled and executed by this module.
//
// Unlike a byte-packed instruction stream, instructions here are symbolic
// records: an opcode name, an argument tuple, and derived attributes
// (how many values it pops/pushes, and whether it is pure). Branch and
// loop targets are label names, never absolute positions — labels are
// rewritten by [Relabel] when the rainbow interpreter duplicates a range
// of instructions (loop unrolling).
//
// Key components:
//   - [Op]: the fixed set of opcode names
//   - [Instruction]: one opcode plus its argument tuple
//   - [StackEffect] and [IsPure]: the per-op arity/purity table
//   - [Relabel]: rewrites the label-valued arguments of an instruction
package code

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Op identifies an opcode.
type Op string

//nolint:revive
const (
	OpLoadConst        Op = "load_const"
	OpLoadLocal        Op = "load_local"
	OpStoreLocal       Op = "store_local"
	OpLoadLocalGreen   Op = "load_local_green"
	OpStoreLocalGreen  Op = "store_local_green"
	OpLoadNonlocal     Op = "load_nonlocal"
	OpLoadNonlocalGreen Op = "load_nonlocal_green"
	OpAdd              Op = "add"
	OpMul              Op = "mul"
	OpLt               Op = "lt"
	OpGt               Op = "gt"
	OpI32Add           Op = "i32_add"
	OpMakeTuple        Op = "make_tuple"
	OpUnroll           Op = "unroll"
	OpGetIter          Op = "get_iter"
	OpForIter          Op = "for_iter"
	OpPrint            Op = "print"
	OpCall             Op = "call"
	OpPop              Op = "pop"
	OpLabel            Op = "label"
	OpBr               Op = "br"
	OpBrIf             Op = "br_if"
	OpMakeFunction     Op = "make_function"
	OpReturn           Op = "return"
	OpAbort            Op = "abort"
)

// Instruction is one opcode plus its argument tuple. The meaning of each
// argument position is opcode-specific — see the stackEffects and
// labelArgPositions tables below. Arguments are stored as `any` rather than a narrower
// type because `load_const`'s argument is a runtime value (an
// `object.Value`) and this package must not import the object package
// (object imports code, for [CodeObject] inside object.Function).
type Instruction struct {
	Op   Op
	Args []any
}

// New constructs an [Instruction], validating that op is in the known
// table. Constructing an instruction with an unrecognized opcode is an
// implementer bug, classified as an OpcodeArityError.
func New(op Op, args ...any) (Instruction, error) {
	if _, ok := stackEffects[op]; !ok {
		return Instruction{}, errors.Wrapf(ErrUnknownOp, "%q", op)
	}
	return Instruction{Op: op, Args: args}, nil
}

// ErrUnknownOp is returned by [New] and [StackEffect] for an opcode name
// outside the fixed table.
var ErrUnknownOp = errors.New("unknown opcode")

// effect describes a fixed or argument-dependent stack effect.
type effect struct {
	pops, pushes int
	// variadic reports that pops (make_tuple, print) or pops+1 (call) is
	// given by the first argument rather than being fixed.
	variadic bool
}

// stackEffects is the arity table: fixed (pops, pushes) per opcode, with
// `make_tuple`, `print`, and `call` resolved dynamically from their count
// argument by [StackEffect].
var stackEffects = map[Op]effect{
	OpLoadConst:         {0, 1, false},
	OpLoadLocal:         {0, 1, false},
	OpStoreLocal:        {1, 0, false},
	OpLoadLocalGreen:    {0, 1, false},
	OpStoreLocalGreen:   {1, 0, false},
	OpLoadNonlocal:      {0, 1, false},
	OpLoadNonlocalGreen: {0, 1, false},
	OpAdd:               {2, 1, false},
	OpMul:               {2, 1, false},
	OpLt:                {2, 1, false},
	OpGt:                {2, 1, false},
	OpI32Add:            {2, 1, false},
	OpMakeTuple:         {0, 1, true},
	OpUnroll:            {1, 1, false},
	OpGetIter:           {1, 0, false},
	OpForIter:           {0, 0, false},
	OpPrint:             {0, 1, true},
	OpCall:              {0, 1, true},
	OpPop:               {1, 0, false},
	OpLabel:             {0, 0, false},
	OpBr:                {0, 0, false},
	OpBrIf:              {1, 0, false},
	OpMakeFunction:      {0, 1, false},
	OpReturn:            {1, 0, false},
	OpAbort:             {0, 0, false},
}

// pureOps is the set of opcodes the rainbow interpreter may execute at
// analysis time: their effect depends only on their popped operands.
var pureOps = map[Op]bool{
	OpLoadConst:         true,
	OpLoadNonlocalGreen: true,
	OpAdd:               true,
	OpMul:               true,
	OpLt:                true,
	OpGt:                true,
	OpI32Add:            true,
	OpMakeTuple:         true,
	OpUnroll:            true,
}

// IsPure reports whether op may be executed during partial evaluation.
func IsPure(op Op) bool { return pureOps[op] }

// StackEffect returns the number of values ins pops and pushes. For
// `make_tuple`/`print`, the pop count is the instruction's count
// argument; for `call`, it is the count argument plus one (the callee).
func StackEffect(ins Instruction) (pops, pushes int, err error) {
	eff, ok := stackEffects[ins.Op]
	if !ok {
		return 0, 0, errors.Wrapf(ErrUnknownOp, "%q", ins.Op)
	}
	if !eff.variadic {
		return eff.pops, eff.pushes, nil
	}

	count, ok := argInt(ins, 0)
	if !ok {
		return 0, 0, errors.Errorf("%s: missing count argument", ins.Op)
	}
	switch ins.Op {
	case OpCall:
		return count + 1, eff.pushes, nil
	default: // OpMakeTuple, OpPrint
		return count, eff.pushes, nil
	}
}

func argInt(ins Instruction, i int) (int, bool) {
	if i >= len(ins.Args) {
		return 0, false
	}
	n, ok := ins.Args[i].(int)
	return n, ok
}

// labelArgPositions lists, per opcode, which argument indices hold label
// names (as opposed to local names, values, or counts) and are therefore
// subject to [Relabel].
var labelArgPositions = map[Op][]int{
	OpLabel:   {0},
	OpBr:      {0},
	OpBrIf:    {0, 1, 2},
	OpForIter: {2}, // args are (itername, targetname, endlabel); only endlabel is a label
}

// Relabel returns a copy of ins with every label-valued argument rewritten
// through m. Arguments not present in m are left unchanged — Relabel is
// used both for whole-program renaming (where every label is covered) and
// for the rainbow interpreter's per-iteration rewrite maps (where only the
// labels of the unrolled range are covered).
//
// Relabel never fails: a label argument absent from m is kept as is, and
// no check is made that m covers every label of ins.
func Relabel(ins Instruction, m map[string]string) Instruction {
	positions, ok := labelArgPositions[ins.Op]
	if !ok {
		return ins
	}
	args := make([]any, len(ins.Args))
	copy(args, ins.Args)
	for _, pos := range positions {
		if pos >= len(args) {
			continue
		}
		name, ok := args[pos].(string)
		if !ok {
			continue
		}
		if renamed, ok := m[name]; ok {
			args[pos] = renamed
		}
	}
	return Instruction{Op: ins.Op, Args: args}
}

// Name returns the argument at position 0 as a string (the local/global
// name for load_local/store_local/load_nonlocal and their green variants).
func (ins Instruction) Name() (string, bool) {
	if len(ins.Args) == 0 {
		return "", false
	}
	s, ok := ins.Args[0].(string)
	return s, ok
}

// Label returns the label-name argument at position i.
func (ins Instruction) Label(i int) (string, bool) {
	if i >= len(ins.Args) {
		return "", false
	}
	s, ok := ins.Args[i].(string)
	return s, ok
}

// String renders ins as "<op> arg1 arg2 ...", matching the dump format
// [CodeObject.Dump] uses for non-label instructions.
func (ins Instruction) String() string {
	if len(ins.Args) == 0 {
		return string(ins.Op)
	}
	parts := make([]string, len(ins.Args))
	for i, a := range ins.Args {
		// Runtime values (load_const) render through their Inspect form.
		if v, ok := a.(interface{ Inspect() string }); ok {
			parts[i] = v.Inspect()
			continue
		}
		parts[i] = fmt.Sprint(a)
	}
	return string(ins.Op) + " " + strings.Join(parts, " ")
}
