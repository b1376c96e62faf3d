// Package ast defines the Abstract Syntax Tree (AST) for the toy language
// compiled by this module.
//
// The AST represents the structure of a program after parsing: a module is
// a flat sequence of function definitions, each with a parameter list and a
// body of statements. It is deliberately small — the front end is an
// external collaborator to the bytecode/interpreter core this module is
// really about, so the AST only needs to carry the handful of statement and
// expression shapes [package compiler] knows how to lower to bytecode.
//
// Key components:
//   - [Node]: the base interface for all AST nodes
//   - [Stmt]: interface for statement nodes (assignment, if, for, ...)
//   - [Expr]: interface for expression nodes (literals, names, calls, ...)
//   - [Module]: the root node, a sequence of [FuncDef]s
package ast

import (
	"strings"

	"github.com/dr8co/rainbow/token"
)

// Node is the base interface implemented by every AST node.
type Node interface {
	// TokenLiteral returns the literal of the token the node starts with,
	// useful for error messages.
	TokenLiteral() string

	// String returns a debug representation of the node.
	String() string
}

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Module is the root of the AST: an ordered sequence of function
// definitions.
type Module struct {
	Funcs []*FuncDef
}

func (m *Module) TokenLiteral() string {
	if len(m.Funcs) > 0 {
		return m.Funcs[0].TokenLiteral()
	}
	return ""
}

func (m *Module) String() string {
	var out strings.Builder
	for _, f := range m.Funcs {
		out.WriteString(f.String())
	}
	return out.String()
}

// FuncDef is a top-level function definition: `def name(params): body`,
// optionally preceded by a `@green` decorator line.
type FuncDef struct {
	Token   token.Token // the `def` token
	Name    string
	Params  []string
	Body    []Stmt
	IsGreen bool // decorated with `@green`
}

func (f *FuncDef) TokenLiteral() string { return f.Token.Literal }

func (f *FuncDef) String() string {
	var out strings.Builder
	if f.IsGreen {
		out.WriteString("@green\n")
	}
	out.WriteString("def ")
	out.WriteString(f.Name)
	out.WriteString("(")
	out.WriteString(strings.Join(f.Params, ", "))
	out.WriteString("):\n")
	for _, s := range f.Body {
		out.WriteString("    " + s.String() + "\n")
	}
	return out.String()
}

// PassStmt is the no-op statement.
type PassStmt struct{ Token token.Token }

func (s *PassStmt) stmtNode()            {}
func (s *PassStmt) TokenLiteral() string { return s.Token.Literal }
func (s *PassStmt) String() string       { return "pass" }

// ReturnStmt returns a value from the enclosing function.
type ReturnStmt struct {
	Token token.Token
	Value Expr
}

func (s *ReturnStmt) stmtNode()            {}
func (s *ReturnStmt) TokenLiteral() string { return s.Token.Literal }
func (s *ReturnStmt) String() string       { return "return " + s.Value.String() }

// AssignStmt assigns the value of an expression to a single name.
type AssignStmt struct {
	Token token.Token
	Name  string
	Value Expr
}

func (s *AssignStmt) stmtNode()            {}
func (s *AssignStmt) TokenLiteral() string { return s.Token.Literal }
func (s *AssignStmt) String() string       { return s.Name + " = " + s.Value.String() }

// ExprStmt is an expression evaluated for its side effect, its value
// discarded (e.g. a bare `print(x)` call).
type ExprStmt struct {
	Token token.Token
	X     Expr
}

func (s *ExprStmt) stmtNode()            {}
func (s *ExprStmt) TokenLiteral() string { return s.Token.Literal }
func (s *ExprStmt) String() string       { return s.X.String() }

// IfStmt is a conditional statement, with an optional else branch.
type IfStmt struct {
	Token token.Token
	Cond  Expr
	Then  []Stmt
	Else  []Stmt // nil when there is no else branch
}

func (s *IfStmt) stmtNode()            {}
func (s *IfStmt) TokenLiteral() string { return s.Token.Literal }
func (s *IfStmt) String() string {
	var out strings.Builder
	out.WriteString("if " + s.Cond.String() + ":\n")
	for _, st := range s.Then {
		out.WriteString("    " + st.String() + "\n")
	}
	if s.Else != nil {
		out.WriteString("else:\n")
		for _, st := range s.Else {
			out.WriteString("    " + st.String() + "\n")
		}
	}
	return out.String()
}

// ForStmt is a `for target in iter: body` loop.
type ForStmt struct {
	Token  token.Token
	Target string
	Iter   Expr
	Body   []Stmt
}

func (s *ForStmt) stmtNode()            {}
func (s *ForStmt) TokenLiteral() string { return s.Token.Literal }
func (s *ForStmt) String() string {
	var out strings.Builder
	out.WriteString("for " + s.Target + " in " + s.Iter.String() + ":\n")
	for _, st := range s.Body {
		out.WriteString("    " + st.String() + "\n")
	}
	return out.String()
}

// IntLit is an integer literal.
type IntLit struct {
	Token token.Token
	Value int64
}

func (e *IntLit) exprNode()            {}
func (e *IntLit) TokenLiteral() string { return e.Token.Literal }
func (e *IntLit) String() string       { return e.Token.Literal }

// StrLit is a string literal.
type StrLit struct {
	Token token.Token
	Value string
}

func (e *StrLit) exprNode()            {}
func (e *StrLit) TokenLiteral() string { return e.Token.Literal }
func (e *StrLit) String() string       { return `"` + e.Value + `"` }

// Name is a reference to an identifier: a local variable, parameter, or
// module-level function.
type Name struct {
	Token token.Token
	Value string
}

func (e *Name) exprNode()            {}
func (e *Name) TokenLiteral() string { return e.Token.Literal }
func (e *Name) String() string       { return e.Value }

// BinOp is a binary `+` or `*` expression.
type BinOp struct {
	Token    token.Token
	Left     Expr
	Operator string // "+" or "*"
	Right    Expr
}

func (e *BinOp) exprNode()            {}
func (e *BinOp) TokenLiteral() string { return e.Token.Literal }
func (e *BinOp) String() string {
	return "(" + e.Left.String() + " " + e.Operator + " " + e.Right.String() + ")"
}

// Compare is a `<` or `>` comparison expression.
type Compare struct {
	Token    token.Token
	Left     Expr
	Operator string // "<" or ">"
	Right    Expr
}

func (e *Compare) exprNode()            {}
func (e *Compare) TokenLiteral() string { return e.Token.Literal }
func (e *Compare) String() string {
	return "(" + e.Left.String() + " " + e.Operator + " " + e.Right.String() + ")"
}

// TupleLit is a tuple literal `(a, b, c)`.
type TupleLit struct {
	Token token.Token
	Elems []Expr
}

func (e *TupleLit) exprNode()            {}
func (e *TupleLit) TokenLiteral() string { return e.Token.Literal }
func (e *TupleLit) String() string {
	parts := make([]string, len(e.Elems))
	for i, el := range e.Elems {
		parts[i] = el.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Call is a call-by-name expression: a builtin (`print`, `UNROLL`) or a
// user-defined function looked up by name.
type Call struct {
	Token    token.Token
	Function string
	Args     []Expr
}

func (e *Call) exprNode()            {}
func (e *Call) TokenLiteral() string { return e.Token.Literal }
func (e *Call) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return e.Function + "(" + strings.Join(parts, ", ") + ")"
}
