// Package parser implements the syntactic analyzer for the toy language
// compiled by this module.
//
// The parser takes a stream of tokens from the lexer and constructs an
// Abstract Syntax Tree ([ast.Module]) representing a sequence of function
// definitions. It implements a recursive-descent parser for statements and
// blocks, and a Pratt parser (precedence climbing) for the small expression
// grammar spec allows: integer/string literals, names, `+`/`*`, `<`/`>`,
// tuple literals, and call-by-name.
//
// Key features:
//   - Indentation-aware block parsing (INDENT/DEDENT/NEWLINE from the lexer)
//   - Precedence-based expression parsing
//   - Error reporting for syntax errors (collected, not fatal mid-parse)
//
// The main entry point is [New], which creates a new [Parser], and
// [Parser.ParseModule], which parses a complete program and returns its AST.
package parser

import (
	"fmt"

	"github.com/dr8co/rainbow/ast"
	"github.com/dr8co/rainbow/lexer"
	"github.com/dr8co/rainbow/token"
)

const (
	_ int = iota

	// Lowest is the lowest possible precedence for parsing expressions.
	Lowest

	// Compare is the precedence of `<`/`>`.
	Compare

	// Sum is the precedence of `+`.
	Sum

	// Product is the precedence of `*`.
	Product

	// Call is the precedence of function-call-by-name.
	Call
)

// precedences maps token types to their infix precedence level.
var precedences = map[token.Type]int{
	token.Lt:       Compare,
	token.Gt:       Compare,
	token.Plus:     Sum,
	token.Asterisk: Product,
	token.Lparen:   Call,
}

type (
	prefixParseFn func() ast.Expr
	infixParseFn  func(ast.Expr) ast.Expr
)

// Parser implements a recursive-descent/Pratt parser for the toy language.
type Parser struct {
	l      *lexer.Lexer
	errors []string

	currentToken token.Token
	peekToken    token.Token

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a new [Parser] over the given [lexer.Lexer].
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}}

	p.prefixParseFns = make(map[token.Type]prefixParseFn)
	p.registerPrefix(token.Ident, p.parseIdentOrCall)
	p.registerPrefix(token.Int, p.parseIntLit)
	p.registerPrefix(token.String, p.parseStrLit)
	p.registerPrefix(token.Lparen, p.parseParenOrTuple)

	p.infixParseFns = make(map[token.Type]infixParseFn)
	p.registerInfix(token.Plus, p.parseBinOp)
	p.registerInfix(token.Asterisk, p.parseBinOp)
	p.registerInfix(token.Lt, p.parseCompare)
	p.registerInfix(token.Gt, p.parseCompare)

	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns the syntax errors accumulated while parsing.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) { p.prefixParseFns[t] = fn }
func (p *Parser) registerInfix(t token.Type, fn infixParseFn)   { p.infixParseFns[t] = fn }

func (p *Parser) nextToken() {
	p.currentToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) currentTokenIs(t token.Type) bool { return p.currentToken.Type == t }
func (p *Parser) peekTokenIs(t token.Type) bool    { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t token.Type) {
	p.errors = append(p.errors, fmt.Sprintf(
		"line %d: expected next token to be %s, got %s (%q) instead",
		p.peekToken.Line, t, p.peekToken.Type, p.peekToken.Literal))
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: ", p.currentToken.Line)+fmt.Sprintf(format, args...))
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return Lowest
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.currentToken.Type]; ok {
		return pr
	}
	return Lowest
}

// skipBlankLines consumes stray NEWLINE tokens between top-level
// definitions.
func (p *Parser) skipBlankLines() {
	for p.currentTokenIs(token.Newline) {
		p.nextToken()
	}
}

// ParseModule parses a complete program: a sequence of function
// definitions. Check [Parser.Errors] afterwards for syntax errors.
func (p *Parser) ParseModule() *ast.Module {
	mod := &ast.Module{}

	p.skipBlankLines()
	for !p.currentTokenIs(token.EOF) {
		isGreen := false
		if p.currentTokenIs(token.At) {
			p.nextToken()
			if !p.currentTokenIs(token.Ident) || p.currentToken.Literal != "green" {
				p.errorf("unsupported decorator %q", p.currentToken.Literal)
			} else {
				isGreen = true
			}
			p.nextToken()
			if p.currentTokenIs(token.Newline) {
				p.nextToken()
			}
		}

		if !p.currentTokenIs(token.Def) {
			p.errorf("expected a function definition, got %s", p.currentToken.Type)
			return mod
		}
		fn := p.parseFuncDef()
		fn.IsGreen = isGreen
		mod.Funcs = append(mod.Funcs, fn)
		p.skipBlankLines()
	}
	return mod
}

func (p *Parser) parseFuncDef() *ast.FuncDef {
	fn := &ast.FuncDef{Token: p.currentToken}
	if !p.expectPeek(token.Ident) {
		return fn
	}
	fn.Name = p.currentToken.Literal

	if !p.expectPeek(token.Lparen) {
		return fn
	}
	p.nextToken()
	for !p.currentTokenIs(token.Rparen) {
		if !p.currentTokenIs(token.Ident) {
			p.errorf("expected parameter name, got %s", p.currentToken.Type)
			return fn
		}
		fn.Params = append(fn.Params, p.currentToken.Literal)
		p.nextToken()
		if p.currentTokenIs(token.Comma) {
			p.nextToken()
		}
	}
	// currentToken is Rparen
	if !p.expectPeek(token.Colon) {
		return fn
	}
	fn.Body = p.parseBlock()
	return fn
}

// parseBlock parses the suite following a `:` — either a single simple
// statement on the same line, or a NEWLINE-INDENT-...-DEDENT block.
func (p *Parser) parseBlock() []ast.Stmt {
	if p.peekTokenIs(token.Newline) {
		p.nextToken() // consume ':' -> NEWLINE is now current after next call below
		p.nextToken() // now at token following NEWLINE, expect INDENT
		if !p.currentTokenIs(token.Indent) {
			p.errorf("expected an indented block, got %s", p.currentToken.Type)
			return nil
		}
		p.nextToken()
		var stmts []ast.Stmt
		for !p.currentTokenIs(token.Dedent) && !p.currentTokenIs(token.EOF) {
			stmts = append(stmts, p.parseLine()...)
		}
		if p.currentTokenIs(token.Dedent) {
			p.nextToken()
		}
		return stmts
	}

	// inline suite: one or more simple statements separated by ';' on
	// the same logical line.
	p.nextToken()
	return p.parseLine()
}

// parseLine parses one logical source line: one compound statement, or one
// or more simple statements separated by `;`, terminated by NEWLINE.
func (p *Parser) parseLine() []ast.Stmt {
	var stmts []ast.Stmt

	switch p.currentToken.Type {
	case token.If:
		stmts = append(stmts, p.parseIfStmt())
		return stmts
	case token.For:
		stmts = append(stmts, p.parseForStmt())
		return stmts
	}

	for {
		stmts = append(stmts, p.parseSimpleStmt())
		if p.currentTokenIs(token.Semicolon) {
			p.nextToken()
			continue
		}
		break
	}
	if p.currentTokenIs(token.Newline) {
		p.nextToken()
	}
	return stmts
}

func (p *Parser) parseSimpleStmt() ast.Stmt {
	switch p.currentToken.Type {
	case token.Pass:
		s := &ast.PassStmt{Token: p.currentToken}
		p.nextToken()
		return s
	case token.Return:
		tok := p.currentToken
		p.nextToken()
		val := p.parseExpr(Lowest)
		p.nextToken()
		return &ast.ReturnStmt{Token: tok, Value: val}
	case token.Ident:
		if p.peekTokenIs(token.Assign) {
			return p.parseAssignStmt()
		}
		tok := p.currentToken
		x := p.parseExpr(Lowest)
		p.nextToken()
		return &ast.ExprStmt{Token: tok, X: x}
	default:
		p.errorf("unexpected token %s at start of statement", p.currentToken.Type)
		p.nextToken()
		return &ast.PassStmt{Token: p.currentToken}
	}
}

func (p *Parser) parseAssignStmt() ast.Stmt {
	tok := p.currentToken
	name := p.currentToken.Literal
	p.nextToken() // '='
	p.nextToken() // first token of value
	val := p.parseExpr(Lowest)
	p.nextToken()
	return &ast.AssignStmt{Token: tok, Name: name, Value: val}
}

func (p *Parser) parseIfStmt() ast.Stmt {
	tok := p.currentToken
	p.nextToken()
	cond := p.parseExpr(Lowest)
	if !p.expectPeek(token.Colon) {
		return &ast.IfStmt{Token: tok, Cond: cond}
	}
	then := p.parseBlock()

	stmt := &ast.IfStmt{Token: tok, Cond: cond, Then: then}

	if p.currentTokenIs(token.Else) {
		if !p.expectPeek(token.Colon) {
			return stmt
		}
		stmt.Else = p.parseBlock()
	}
	return stmt
}

func (p *Parser) parseForStmt() ast.Stmt {
	tok := p.currentToken
	if !p.expectPeek(token.Ident) {
		return &ast.ForStmt{Token: tok}
	}
	target := p.currentToken.Literal
	if !p.expectPeek(token.In) {
		return &ast.ForStmt{Token: tok, Target: target}
	}
	p.nextToken()
	iter := p.parseExpr(Lowest)
	if !p.expectPeek(token.Colon) {
		return &ast.ForStmt{Token: tok, Target: target, Iter: iter}
	}
	body := p.parseBlock()
	return &ast.ForStmt{Token: tok, Target: target, Iter: iter, Body: body}
}

func (p *Parser) parseExpr(precedence int) ast.Expr {
	prefix, ok := p.prefixParseFns[p.currentToken.Type]
	if !ok {
		p.errorf("no prefix parse function for %s", p.currentToken.Type)
		return nil
	}
	left := prefix()

	for !p.peekTokenIs(token.Newline) && precedence < p.peekPrecedence() {
		infix, ok := p.infixParseFns[p.peekToken.Type]
		if !ok {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentOrCall() ast.Expr {
	name := p.currentToken.Literal
	tok := p.currentToken
	if p.peekTokenIs(token.Lparen) {
		p.nextToken()
		args := p.parseCallArgs()
		return &ast.Call{Token: tok, Function: name, Args: args}
	}
	return &ast.Name{Token: tok, Value: name}
}

func (p *Parser) parseCallArgs() []ast.Expr {
	var args []ast.Expr
	if p.peekTokenIs(token.Rparen) {
		p.nextToken()
		return args
	}
	p.nextToken()
	args = append(args, p.parseExpr(Lowest))
	for p.peekTokenIs(token.Comma) {
		p.nextToken()
		p.nextToken()
		args = append(args, p.parseExpr(Lowest))
	}
	if !p.expectPeek(token.Rparen) {
		return args
	}
	return args
}

func (p *Parser) parseIntLit() ast.Expr {
	tok := p.currentToken
	var v int64
	for _, ch := range tok.Literal {
		v = v*10 + int64(ch-'0')
	}
	return &ast.IntLit{Token: tok, Value: v}
}

func (p *Parser) parseStrLit() ast.Expr {
	return &ast.StrLit{Token: p.currentToken, Value: p.currentToken.Literal}
}

func (p *Parser) parseBinOp(left ast.Expr) ast.Expr {
	tok := p.currentToken
	op := p.currentToken.Literal
	prec := p.curPrecedence()
	p.nextToken()
	right := p.parseExpr(prec)
	return &ast.BinOp{Token: tok, Left: left, Operator: op, Right: right}
}

func (p *Parser) parseCompare(left ast.Expr) ast.Expr {
	tok := p.currentToken
	op := p.currentToken.Literal
	prec := p.curPrecedence()
	p.nextToken()
	right := p.parseExpr(prec)
	return &ast.Compare{Token: tok, Left: left, Operator: op, Right: right}
}

// parseParenOrTuple parses a parenthesized expression `(x)` or a tuple
// literal `(a, b, ...)`. A single element followed immediately by `)`
// (no trailing comma) is just a grouped expression, matching the grammar
// spec.md allows (tuple literals are always written with their elements).
func (p *Parser) parseParenOrTuple() ast.Expr {
	tok := p.currentToken
	p.nextToken()

	if p.currentTokenIs(token.Rparen) {
		return &ast.TupleLit{Token: tok}
	}

	first := p.parseExpr(Lowest)
	if !p.peekTokenIs(token.Comma) {
		if !p.expectPeek(token.Rparen) {
			return first
		}
		return first
	}

	elems := []ast.Expr{first}
	for p.peekTokenIs(token.Comma) {
		p.nextToken()
		if p.peekTokenIs(token.Rparen) {
			break
		}
		p.nextToken()
		elems = append(elems, p.parseExpr(Lowest))
	}
	if !p.expectPeek(token.Rparen) {
		return &ast.TupleLit{Token: tok, Elems: elems}
	}
	return &ast.TupleLit{Token: tok, Elems: elems}
}
