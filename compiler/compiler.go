// Package compiler translates a parsed module ([ast.Module]) into a
// runtime [object.Module]: one [code.CodeObject] (and its [object.Function]
// wrapper) per top-level function definition.
//
// Compilation is two-pass at the module level (spec.md §4.2, supplemented
// feature 2): every function decorated `@green` is recorded in the
// module's green-function set before any function body is compiled, so a
// forward reference to a green function defined later in the same module
// still compiles to the `_green` non-local load form. Within a function,
// local variables are discovered by walking assignment targets and `for`
// targets before any code is emitted, and names spelled in all-uppercase
// letters are green locals — both bound and read through the `_green`
// opcode variants.
//
// The main entry point is [Compile].
package compiler

import (
	"fmt"
	"unicode"

	"github.com/pkg/errors"

	"github.com/dr8co/rainbow/ast"
	"github.com/dr8co/rainbow/code"
	"github.com/dr8co/rainbow/object"
)

// ErrCompilation is the classification for CompilationError (spec.md §7):
// an unrecognized AST node, an unsupported operator, an unknown builtin,
// or a non-local assignment target.
var ErrCompilation = errors.New("compilation error")

// Compile translates mod into a runtime module: its globals hold one
// [object.Function] per function definition, and its green-function set
// records every `@green`-decorated name.
func Compile(mod *ast.Module) (*object.Module, error) {
	m := &object.Module{
		Globals: make(map[string]object.Value),
		Greens:  make(map[string]bool),
	}
	for _, fd := range mod.Funcs {
		if fd.IsGreen {
			m.Greens[fd.Name] = true
		}
	}
	for _, fd := range mod.Funcs {
		fn, err := newFuncCompiler(fd, m).compile()
		if err != nil {
			return nil, errors.Wrapf(err, "function %q", fd.Name)
		}
		m.Globals[fd.Name] = fn
	}
	return m, nil
}

// funcCompiler compiles a single function definition's body.
type funcCompiler struct {
	fd   *ast.FuncDef
	mod  *object.Module
	code *code.CodeObject

	localVars    map[string]bool
	labelCounter int
}

func newFuncCompiler(fd *ast.FuncDef, mod *object.Module) *funcCompiler {
	fc := &funcCompiler{
		fd:        fd,
		mod:       mod,
		code:      &code.CodeObject{Name: fd.Name, Params: append([]string(nil), fd.Params...)},
		localVars: make(map[string]bool),
	}
	for _, p := range fd.Params {
		fc.localVars[p] = true
	}
	fc.computeLocalVars(fd.Body)
	return fc
}

// computeLocalVars walks stmts (recursing into if/for bodies) recording
// every assignment target and for-loop target as a local variable, before
// any code is emitted — so a later read of a name assigned further down
// the same function resolves as local rather than non-local.
func (fc *funcCompiler) computeLocalVars(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.AssignStmt:
			fc.localVars[s.Name] = true
		case *ast.ForStmt:
			fc.localVars[s.Target] = true
			fc.computeLocalVars(s.Body)
		case *ast.IfStmt:
			fc.computeLocalVars(s.Then)
			fc.computeLocalVars(s.Else)
		}
	}
}

// newLabels mints len(stems) label names sharing one group id, so e.g.
// `then_3`, `else_3`, `endif_3` are produced together — labels carry a
// monotonically increasing group id per function (spec.md §4.2).
func (fc *funcCompiler) newLabels(stems ...string) []string {
	n := fc.labelCounter
	fc.labelCounter++
	out := make([]string, len(stems))
	for i, stem := range stems {
		out[i] = fmt.Sprintf("%s_%d", stem, n)
	}
	return out
}

func (fc *funcCompiler) emit(op code.Op, args ...any) {
	fc.code.Body = append(fc.code.Body, code.Instruction{Op: op, Args: args})
}

// compile compiles the function body, suffixes it with the implicit
// `load_const none; return` (spec.md §4.2), and returns the function
// value. Its closure captures the module's globals map directly (not a
// copy), so functions defined later in the same module are visible to
// closures captured earlier (spec.md §4.4 point 8, supplemented feature 2).
func (fc *funcCompiler) compile() (*object.Function, error) {
	if err := fc.compileStmts(fc.fd.Body); err != nil {
		return nil, err
	}
	fc.emit(code.OpLoadConst, object.None)
	fc.emit(code.OpReturn)

	if err := fc.code.CheckLabels(); err != nil {
		return nil, err
	}

	return &object.Function{
		Name:    fc.fd.Name,
		Params:  append([]string(nil), fc.fd.Params...),
		Code:    fc.code,
		Closure: object.NewClosure(fc.mod.Globals),
	}, nil
}

func (fc *funcCompiler) compileStmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := fc.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (fc *funcCompiler) compileStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.PassStmt:
		return nil

	case *ast.ReturnStmt:
		if err := fc.compileExpr(s.Value); err != nil {
			return err
		}
		fc.emit(code.OpReturn)
		return nil

	case *ast.AssignStmt:
		return fc.compileAssign(s)

	case *ast.IfStmt:
		return fc.compileIf(s)

	case *ast.ForStmt:
		return fc.compileFor(s)

	case *ast.ExprStmt:
		if err := fc.compileExpr(s.X); err != nil {
			return err
		}
		fc.emit(code.OpPop)
		return nil

	default:
		return errors.Wrapf(ErrCompilation, "unsupported statement %T", stmt)
	}
}

func (fc *funcCompiler) compileAssign(s *ast.AssignStmt) error {
	if !fc.localVars[s.Name] {
		return errors.Wrapf(ErrCompilation, "assignment target %q is not a single local name", s.Name)
	}
	if err := fc.compileExpr(s.Value); err != nil {
		return err
	}
	if isGreenName(s.Name) {
		fc.emit(code.OpStoreLocalGreen, s.Name)
	} else {
		fc.emit(code.OpStoreLocal, s.Name)
	}
	return nil
}

// compileIf emits `br_if T,X,X` for an if without an else, or `br_if
// T,E,X` plus an unconditional `br X` at the end of the then-arm when
// there is one (spec.md §4.2).
func (fc *funcCompiler) compileIf(s *ast.IfStmt) error {
	if err := fc.compileExpr(s.Cond); err != nil {
		return err
	}

	if s.Else == nil {
		labels := fc.newLabels("then", "endif")
		then, endif := labels[0], labels[1]
		fc.emit(code.OpBrIf, then, endif, endif)
		fc.emit(code.OpLabel, then)
		if err := fc.compileStmts(s.Then); err != nil {
			return err
		}
		fc.emit(code.OpLabel, endif)
		return nil
	}

	labels := fc.newLabels("then", "else", "endif")
	then, els, endif := labels[0], labels[1], labels[2]
	fc.emit(code.OpBrIf, then, els, endif)
	fc.emit(code.OpLabel, then)
	if err := fc.compileStmts(s.Then); err != nil {
		return err
	}
	fc.emit(code.OpBr, endif)
	fc.emit(code.OpLabel, els)
	if err := fc.compileStmts(s.Else); err != nil {
		return err
	}
	fc.emit(code.OpLabel, endif)
	return nil
}

// compileFor emits the `for x in e` shape from spec.md §4.2: compile e;
// get_iter @iter_N; label for_N; for_iter @iter_N, x, endfor_N; body; br
// for_N; label endfor_N.
func (fc *funcCompiler) compileFor(s *ast.ForStmt) error {
	labels := fc.newLabels("for", "@iter", "endfor")
	forLabel, iterName, endfor := labels[0], labels[1], labels[2]

	if err := fc.compileExpr(s.Iter); err != nil {
		return err
	}
	fc.emit(code.OpGetIter, iterName)
	fc.emit(code.OpLabel, forLabel)
	fc.emit(code.OpForIter, iterName, s.Target, endfor)
	if err := fc.compileStmts(s.Body); err != nil {
		return err
	}
	fc.emit(code.OpBr, forLabel)
	fc.emit(code.OpLabel, endfor)
	return nil
}

func (fc *funcCompiler) compileExpr(expr ast.Expr) error {
	switch e := expr.(type) {
	case *ast.IntLit:
		fc.emit(code.OpLoadConst, &object.Integer{Value: e.Value})
		return nil

	case *ast.StrLit:
		fc.emit(code.OpLoadConst, &object.String{Value: e.Value})
		return nil

	case *ast.Name:
		return fc.compileName(e.Value)

	case *ast.BinOp:
		if err := fc.compileExpr(e.Left); err != nil {
			return err
		}
		if err := fc.compileExpr(e.Right); err != nil {
			return err
		}
		switch e.Operator {
		case "+":
			fc.emit(code.OpAdd)
		case "*":
			fc.emit(code.OpMul)
		default:
			return errors.Wrapf(ErrCompilation, "unsupported binary operator %q", e.Operator)
		}
		return nil

	case *ast.Compare:
		if err := fc.compileExpr(e.Left); err != nil {
			return err
		}
		if err := fc.compileExpr(e.Right); err != nil {
			return err
		}
		switch e.Operator {
		case "<":
			fc.emit(code.OpLt)
		case ">":
			fc.emit(code.OpGt)
		default:
			return errors.Wrapf(ErrCompilation, "unsupported comparison operator %q", e.Operator)
		}
		return nil

	case *ast.TupleLit:
		for _, el := range e.Elems {
			if err := fc.compileExpr(el); err != nil {
				return err
			}
		}
		fc.emit(code.OpMakeTuple, len(e.Elems))
		return nil

	case *ast.Call:
		return fc.compileCall(e)

	default:
		return errors.Wrapf(ErrCompilation, "unsupported expression %T", expr)
	}
}

// compileName resolves name the way expr_Name does in the reference
// implementation: a local wins over a module global, and either form uses
// the `_green` variant when appropriate (an uppercase local name, or a
// non-local naming a `@green`-decorated function).
func (fc *funcCompiler) compileName(name string) error {
	if fc.localVars[name] {
		if isGreenName(name) {
			fc.emit(code.OpLoadLocalGreen, name)
		} else {
			fc.emit(code.OpLoadLocal, name)
		}
		return nil
	}
	if fc.mod.IsGreen(name) {
		fc.emit(code.OpLoadNonlocalGreen, name)
	} else {
		fc.emit(code.OpLoadNonlocal, name)
	}
	return nil
}

// compileCall recognizes the two builtins (`print`, `UNROLL`) and
// otherwise compiles a call-by-name: the callee resolved exactly like any
// other name read, then its arguments, then `call k` (spec.md §4.2).
func (fc *funcCompiler) compileCall(e *ast.Call) error {
	switch e.Function {
	case "print":
		for _, a := range e.Args {
			if err := fc.compileExpr(a); err != nil {
				return err
			}
		}
		fc.emit(code.OpPrint, len(e.Args))
		return nil

	case "UNROLL":
		if len(e.Args) != 1 {
			return errors.Wrapf(ErrCompilation, "UNROLL expects exactly one argument, got %d", len(e.Args))
		}
		if err := fc.compileExpr(e.Args[0]); err != nil {
			return err
		}
		fc.emit(code.OpUnroll)
		return nil

	default:
		if err := fc.compileName(e.Function); err != nil {
			return err
		}
		for _, a := range e.Args {
			if err := fc.compileExpr(a); err != nil {
				return err
			}
		}
		fc.emit(code.OpCall, len(e.Args))
		return nil
	}
}

// isGreenName reports whether name follows the all-uppercase convention
// that marks a local as green (spec.md §4.2, §6).
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
