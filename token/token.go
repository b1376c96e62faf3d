// Package token defines the token types and structures for the toy language
// compiled by this module.
//
// Tokens are the smallest units of meaning in the language, produced by the
// lexer during lexical analysis. The language is a tiny, Python-flavored,
// indentation-sensitive imperative subset: function definitions, if/else,
// for/in, assignment, return, and a handful of builtins. Each token
// represents a keyword, identifier, literal, operator, delimiter, or
// layout marker (NEWLINE/INDENT/DEDENT).
//
// Key components:
//   - [Type]: a type representing the different categories of tokens
//   - [Token]: a structure containing the type, literal, and source line
//   - Constants for every token type the lexer can produce
//   - [LookupIdent] for recognizing reserved keywords
package token

// Type represents the category of a token.
type Type string

// Token represents a single token produced by the lexer.
type Token struct {
	// Type categorizes the token (keyword, operator, literal, ...).
	Type Type

	// Literal is the exact source text the token was scanned from.
	Literal string

	// Line is the 1-based source line the token starts on, used for
	// error messages.
	Line int
}

//nolint:revive
const (
	// Illegal marks a character the lexer could not classify.
	Illegal Type = "ILLEGAL"

	// EOF marks the end of the input.
	EOF Type = "EOF"

	// Newline marks the end of a logical line inside a function body.
	Newline Type = "NEWLINE"

	// Indent marks an increase in indentation, opening a new block.
	Indent Type = "INDENT"

	// Dedent marks a decrease in indentation, closing a block.
	Dedent Type = "DEDENT"

	// Ident is a user identifier (variable, function, or parameter name).
	Ident Type = "IDENT"

	// Int is an integer literal.
	Int Type = "INT"

	// String is a string literal.
	String Type = "STRING"

	// Assign is the assignment operator.
	Assign Type = "="

	// Plus is the addition/concatenation operator.
	Plus Type = "+"

	// Asterisk is the multiplication/repetition operator.
	Asterisk Type = "*"

	// Lt is the less-than comparison operator.
	Lt Type = "<"

	// Gt is the greater-than comparison operator.
	Gt Type = ">"

	// Comma separates arguments, parameters, and tuple elements.
	Comma Type = ","

	// Semicolon separates multiple simple statements on a single line.
	Semicolon Type = ";"

	// At introduces a decorator line, e.g. `@green`.
	At Type = "@"

	// Colon introduces a block (after `def ...():`, `if ...:`, `for ... :`).
	Colon Type = ":"

	// Lparen and Rparen delimit parameter lists, call arguments, and
	// parenthesized/tuple expressions.
	Lparen Type = "("
	Rparen Type = ")"

	// Def introduces a function definition.
	Def Type = "DEF"

	// If and Else introduce conditional statements.
	If   Type = "IF"
	Else Type = "ELSE"

	// For and In introduce a for-in loop.
	For Type = "FOR"
	In  Type = "IN"

	// Return introduces a return statement.
	Return Type = "RETURN"

	// Pass is a no-op statement.
	Pass Type = "PASS"
)

// keywords maps reserved words to their token type.
var keywords = map[string]Type{
	"def":    Def,
	"if":     If,
	"else":   Else,
	"for":    For,
	"in":     In,
	"return": Return,
	"pass":   Pass,
}

// LookupIdent reports the keyword [Type] for ident, or [Ident] if ident is
// not a reserved word.
func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return Ident
}
