// Package rainbow implements the partial evaluator this module is really
// about: given a compiled function, it produces an equivalent function
// whose body has been rewritten by constant-folding every operation whose
// operands are statically knowable ("green") while preserving every
// operation that depends on something only known at call time ("red"),
// including controlled unrolling of loops whose iterable was produced by
// the `unroll` opcode.
//
// The evaluator does abstract interpretation of the input code object: it
// embeds a real [vm.Frame] (the "green frame") to execute pure operations
// at analysis time, and builds a new [code.CodeObject] by emitting red
// operations — and the flushed effects of any green values a red operation
// needs to see — in program order. There is no teacher equivalent for this
// package; it is a direct port of the partial evaluator's algorithm, the
// one piece of the source this module's docs call "the hard, educative
// part".
//
// The main entry point is [Peval].
package rainbow

import (
	"fmt"
	"unicode"

	"github.com/pkg/errors"

	"github.com/dr8co/rainbow/code"
	"github.com/dr8co/rainbow/object"
	"github.com/dr8co/rainbow/vm"
)

// ErrInvariant is the classification for EvaluatorInvariantError (spec.md
// §7): a structural guarantee the compiler is assumed to uphold, violated
// — `store_local_green`/`UNROLL` applied to a red value, or a back-branch
// missing where an unrolling loop expects one.
var ErrInvariant = errors.New("evaluator invariant violated")

// Peval partially evaluates fn, returning a new function with the same
// name, parameter names, and closure, but a rewritten code body.
func Peval(fn *object.Function) (*object.Function, error) {
	ip, err := newInterpreter(fn)
	if err != nil {
		return nil, err
	}
	if err := ip.run(); err != nil {
		return nil, err
	}
	return &object.Function{
		Name:    fn.Name,
		Params:  fn.Params,
		Code:    ip.out,
		Closure: fn.Closure,
	}, nil
}

// interpreter holds the rainbow evaluator's abstract state while it walks
// fn's body (spec.md §4.4 "Abstract state").
type interpreter struct {
	in  *object.Function
	out *code.CodeObject

	// stackLength is the size the *emitted* operand stack would have at
	// this program point if the output were run, excluding values held
	// only in green.Stack.
	stackLength int

	// green is a real frame over the input code, used only to execute
	// pure operations and hold the values and green locals known so far.
	// It is never run to completion — only [vm.Frame.Step] is called on
	// it: for pure ops, for green-local loads and stores, and for
	// get_iter over an unroll-tagged tuple.
	green *vm.Frame

	// labelMaps is a stack of label-rewrite maps, pushed per loop-unroll
	// iteration and consulted by emit when non-empty.
	labelMaps []map[string]string

	uniqueID int
}

func newInterpreter(fn *object.Function) (*interpreter, error) {
	green, err := vm.NewFrame(fn)
	if err != nil {
		return nil, err
	}
	return &interpreter{
		in:  fn,
		out: &code.CodeObject{Name: fn.Code.Name + "<peval>", Params: fn.Params},
		green: green,
	}, nil
}

// run does abstract interpretation of the whole function body.
func (ip *interpreter) run() error {
	return ip.runRange(0, len(ip.in.Code.Body))
}

// runRange does abstract interpretation of [pcStart, pcEnd), flushing any
// held green values at the end of the range (invariant 3, spec.md §4.4).
func (ip *interpreter) runRange(pcStart, pcEnd int) error {
	pc := pcStart
	for pc < pcEnd {
		next, err := ip.runSingleOp(pc)
		if err != nil {
			return err
		}
		pc = next
	}
	ip.flush()
	return nil
}

// runSingleOp evaluates the instruction at pc and returns the pc of the
// next instruction to evaluate.
func (ip *interpreter) runSingleOp(pc int) (int, error) {
	ins := ip.in.Code.Body[pc]

	switch ins.Op {
	case code.OpLoadLocalGreen:
		if err := ip.green.Step(ins); err != nil {
			return 0, err
		}
		return pc + 1, nil

	case code.OpStoreLocalGreen:
		if ip.nGreens() < 1 {
			return 0, errors.Wrap(ErrInvariant, "store_local_green called on a red value")
		}
		if err := ip.green.Step(ins); err != nil {
			return 0, err
		}
		return pc + 1, nil

	case code.OpUnroll:
		if ip.nGreens() < 1 {
			return 0, errors.Wrap(ErrInvariant, "UNROLL() called on a red value")
		}
		if err := ip.green.Step(ins); err != nil {
			return 0, err
		}
		return pc + 1, nil

	case code.OpGetIter:
		return ip.opGetIter(pc, ins)

	case code.OpBrIf:
		return ip.opBrIf(pc, ins)

	case code.OpForIter:
		return ip.opForIter(pc, ins)

	default:
		if err := ip.opDefault(ins); err != nil {
			return 0, err
		}
		return pc + 1, nil
	}
}

// nGreens is the number of values currently held on the green frame's
// operand stack.
func (ip *interpreter) nGreens() int { return len(ip.green.Stack) }

// opDefault colors an ordinary (non-special-cased) op: green if it is pure
// and enough operands are already green, red otherwise (spec.md §4.4
// "Coloring rule").
func (ip *interpreter) opDefault(ins code.Instruction) error {
	pops, _, err := code.StackEffect(ins)
	if err != nil {
		return err
	}
	if code.IsPure(ins.Op) && ip.nGreens() >= pops {
		return ip.green.Step(ins)
	}
	return ip.opRed(ins)
}

// opRed flushes any pending green values, emits ins, and adjusts the
// tracked emitted-stack length by its stack effect.
func (ip *interpreter) opRed(ins code.Instruction) error {
	ip.flush()
	pops, pushes, err := code.StackEffect(ins)
	if err != nil {
		return err
	}
	if ip.stackLength < pops {
		return errors.Wrapf(ErrInvariant, "%s: emitted stack underflow (have %d, need %d)",
			ins.Op, ip.stackLength, pops)
	}
	ip.stackLength += pushes - pops
	ip.emit(ins)
	return nil
}

// flush emits one load_const per value held on the green stack, in
// bottom-to-top order, and clears it.
func (ip *interpreter) flush() {
	for _, v := range ip.green.Stack {
		ip.emit(code.Instruction{Op: code.OpLoadConst, Args: []any{v}})
		ip.stackLength++
	}
	ip.green.Stack = nil
}

// emit appends ins to the output, relabeling it through the innermost
// active label-rewrite map, if any.
func (ip *interpreter) emit(ins code.Instruction) {
	if n := len(ip.labelMaps); n > 0 {
		ins = code.Relabel(ins, ip.labelMaps[n-1])
	}
	ip.out.Body = append(ip.out.Body, ins)
}

// getPC returns the pc of the named label in the *input* code, via the
// green frame's label table (built once at frame construction).
func (ip *interpreter) getPC(label string) int { return ip.green.Labels[label] }

// opBrIf specializes a branch (spec.md §4.4 "Branch specialization").
func (ip *interpreter) opBrIf(pc int, ins code.Instruction) (int, error) {
	then, _ := ins.Label(0)
	els, _ := ins.Label(1)
	endif, _ := ins.Label(2)
	pcThen, pcElse, pcEndif := ip.getPC(then), ip.getPC(els), ip.getPC(endif)

	if ip.nGreens() >= 1 {
		cond := ip.green.Pop()
		ci, ok := cond.(*object.Integer)
		if !ok {
			return 0, errors.Wrapf(vm.ErrRuntimeType, "br_if: condition is not an integer: %s", cond.Type())
		}
		var err error
		if ci.Value != 0 {
			err = ip.runRange(pcThen, pcElse)
		} else {
			err = ip.runRange(pcElse, pcEndif)
		}
		if err != nil {
			return 0, err
		}
		return pcEndif, nil
	}

	if err := ip.opRed(ins); err != nil {
		return 0, err
	}
	if err := ip.runRange(pcThen, pcEndif); err != nil {
		return 0, err
	}
	return pcEndif, nil
}

// opGetIter colors `get_iter` green only when the top of the green stack
// is an unroll-tagged tuple; otherwise it is red like any other op that
// consumes a value the evaluator doesn't statically know.
func (ip *interpreter) opGetIter(pc int, ins code.Instruction) (int, error) {
	red := true
	if ip.nGreens() >= 1 {
		top := ip.green.Stack[ip.nGreens()-1]
		if t, ok := top.(*object.Tuple); ok && t.Unroll {
			red = false
		}
	}
	if red {
		if err := ip.opRed(ins); err != nil {
			return 0, err
		}
		return pc + 1, nil
	}
	if err := ip.green.Step(ins); err != nil {
		return 0, err
	}
	return pc + 1, nil
}

// opForIter either preserves a red loop verbatim (evaluating its body
// once, red) or unrolls it when its iterator is a green local carrying
// the unroll flag (spec.md §4.4 "Loop handling").
func (ip *interpreter) opForIter(pc int, ins code.Instruction) (int, error) {
	itername, _ := ins.Name()
	targetname, _ := ins.Label(1)
	endlabel, _ := ins.Label(2)
	pcEndfor := ip.getPC(endlabel)

	it, ok := ip.green.Locals[itername].(*object.TupleIterator)
	if !ok {
		if err := ip.opRed(ins); err != nil {
			return 0, err
		}
		if err := ip.runRange(pc+1, pcEndfor); err != nil {
			return 0, err
		}
		return pcEndfor, nil
	}
	return ip.unrollForIter(pc, targetname, pcEndfor, it)
}

func (ip *interpreter) unrollForIter(pc int, targetname string, pcEndfor int, it *object.TupleIterator) (int, error) {
	if !it.Unroll {
		return 0, errors.Wrap(ErrInvariant, "for_iter: iterator is not unroll-tagged")
	}
	if !isGreenName(targetname) {
		return 0, errors.Wrapf(ErrInvariant, "unroll target %q must be a green (uppercase) name", targetname)
	}
	pcBr := pcEndfor - 1
	if pcBr < 0 || ip.in.Code.Body[pcBr].Op != code.OpBr {
		return 0, errors.Wrap(ErrInvariant, "back-branch not found at expected position before the loop's end label")
	}

	for _, item := range it.Remaining() {
		ip.green.Locals[targetname] = item
		ip.pushLabelMap(pc+1, pcBr)
		err := ip.runRange(pc+1, pcBr)
		ip.popLabelMap()
		if err != nil {
			return 0, err
		}
	}
	return pcEndfor + 1, nil
}

// pushLabelMap scans [pcStart, pcEnd) in the input code for `label` ops
// and builds a fresh rename, `name -> name#id`, so a replicated loop body
// keeps unique label names across iterations (spec.md §4.4 point 2,
// "Unrolled-label uniqueness", §8.5).
func (ip *interpreter) pushLabelMap(pcStart, pcEnd int) {
	id := ip.uniqueID
	ip.uniqueID++
	m := make(map[string]string)
	for pc := pcStart; pc < pcEnd; pc++ {
		ins := ip.in.Code.Body[pc]
		if ins.Op == code.OpLabel {
			name, _ := ins.Label(0)
			m[name] = fmt.Sprintf("%s#%d", name, id)
		}
	}
	ip.labelMaps = append(ip.labelMaps, m)
}

func (ip *interpreter) popLabelMap() {
	ip.labelMaps = ip.labelMaps[:len(ip.labelMaps)-1]
}

// isGreenName reports whether name follows the all-uppercase convention
// the compiler uses to mark a local green (spec.md §4.2, §6).
func isGreenName(name string) bool {
	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
