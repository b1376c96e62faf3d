// Package lexer implements the lexical analyzer for the toy language
// compiled by this module.
//
// The lexer is responsible for breaking source text into tokens, the
// smallest units of meaning the parser consumes. Unlike a brace-delimited
// language, this language is indentation-sensitive (function and block
// bodies are marked by indent level, Python-style), so the lexer also
// synthesizes [token.Indent], [token.Dedent], and [token.Newline] tokens
// from the leading whitespace of each logical line.
//
// Key features:
//   - Tokenization of keywords, identifiers, literals, and operators
//   - Indentation tracking, producing INDENT/DEDENT/NEWLINE tokens
//   - `#`-to-end-of-line comments
//   - Error detection for illegal characters and unterminated strings
//
// The main entry point is [New], which creates a new [Lexer], and
// [Lexer.NextToken], which returns the next token from the input.
package lexer

import (
	"strings"

	"github.com/dr8co/rainbow/token"
)

// Lexer scans source text for the toy language into a stream of tokens.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
	line         int

	// atLineStart is true when the next token must be produced by
	// measuring the indentation of a fresh logical line.
	atLineStart bool

	// indents is the stack of indentation widths currently open,
	// bottom-most entry always 0.
	indents []int

	// pending holds DEDENT/EOF tokens queued up by a single indentation
	// change or by reaching end of input, to be drained before scanning
	// resumes.
	pending []token.Token

	// done is set once the final DEDENT/EOF burst has been queued, so it
	// is only produced once.
	done bool
}

// New creates a new [Lexer] over the given input.
func New(input string) *Lexer {
	l := &Lexer{
		input:       input,
		line:        1,
		atLineStart: true,
		indents:     []int{0},
	}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken returns the next token from the input, synthesizing
// INDENT/DEDENT/NEWLINE tokens as needed.
func (l *Lexer) NextToken() token.Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}

	if l.atLineStart {
		if tok, ok := l.scanIndentation(); ok {
			return tok
		}
	}

	l.skipSpacesAndComments()

	line := l.line
	switch l.ch {
	case '=':
		l.readChar()
		return token.Token{Type: token.Assign, Literal: "=", Line: line}
	case '+':
		l.readChar()
		return token.Token{Type: token.Plus, Literal: "+", Line: line}
	case '*':
		l.readChar()
		return token.Token{Type: token.Asterisk, Literal: "*", Line: line}
	case '<':
		l.readChar()
		return token.Token{Type: token.Lt, Literal: "<", Line: line}
	case '>':
		l.readChar()
		return token.Token{Type: token.Gt, Literal: ">", Line: line}
	case ',':
		l.readChar()
		return token.Token{Type: token.Comma, Literal: ",", Line: line}
	case ';':
		l.readChar()
		return token.Token{Type: token.Semicolon, Literal: ";", Line: line}
	case '@':
		l.readChar()
		return token.Token{Type: token.At, Literal: "@", Line: line}
	case ':':
		l.readChar()
		return token.Token{Type: token.Colon, Literal: ":", Line: line}
	case '(':
		l.readChar()
		return token.Token{Type: token.Lparen, Literal: "(", Line: line}
	case ')':
		l.readChar()
		return token.Token{Type: token.Rparen, Literal: ")", Line: line}
	case '"':
		lit, ok := l.readString()
		if !ok {
			return token.Token{Type: token.Illegal, Literal: "unterminated string", Line: line}
		}
		l.readChar()
		return token.Token{Type: token.String, Literal: lit, Line: line}
	case '\n':
		l.readChar()
		l.line++
		l.atLineStart = true
		return token.Token{Type: token.Newline, Literal: "\\n", Line: line}
	case 0:
		return l.finalDedents(line)
	default:
		if isLetter(l.ch) {
			lit := l.readIdentifier()
			return token.Token{Type: token.LookupIdent(lit), Literal: lit, Line: line}
		}
		if isDigit(l.ch) {
			return token.Token{Type: token.Int, Literal: l.readNumber(), Line: line}
		}
		ch := l.ch
		l.readChar()
		return token.Token{Type: token.Illegal, Literal: string(ch), Line: line}
	}
}

// scanIndentation measures the whitespace at the start of a logical line,
// skips blank/comment-only lines, and returns an INDENT or DEDENT token
// when the indentation level changes. ok is false when the caller should
// fall through to ordinary token scanning on the same line.
func (l *Lexer) scanIndentation() (token.Token, bool) {
	for {
		width := 0
		for l.ch == ' ' || l.ch == '\t' {
			if l.ch == '\t' {
				width += 8 - width%8
			} else {
				width++
			}
			l.readChar()
		}

		// Blank line or comment-only line: consume it and keep scanning
		// for the next real line without changing indentation.
		if l.ch == '\n' {
			l.readChar()
			l.line++
			continue
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		if l.ch == 0 {
			l.atLineStart = false
			tok := l.finalDedents(l.line)
			return tok, true
		}

		l.atLineStart = false
		top := l.indents[len(l.indents)-1]
		switch {
		case width > top:
			l.indents = append(l.indents, width)
			return token.Token{Type: token.Indent, Line: l.line}, true
		case width < top:
			var dedents []token.Token
			for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
				l.indents = l.indents[:len(l.indents)-1]
				dedents = append(dedents, token.Token{Type: token.Dedent, Line: l.line})
			}
			first := dedents[0]
			l.pending = dedents[1:]
			return first, true
		default:
			return token.Token{}, false
		}
	}
}

// finalDedents queues one DEDENT per indentation level still open, followed
// by EOF, so the parser sees every block close before the input ends.
func (l *Lexer) finalDedents(line int) token.Token {
	if l.done {
		return token.Token{Type: token.EOF, Line: line}
	}
	l.done = true

	var toks []token.Token
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		toks = append(toks, token.Token{Type: token.Dedent, Line: line})
	}
	toks = append(toks, token.Token{Type: token.EOF, Line: line})

	first := toks[0]
	l.pending = toks[1:]
	return first
}

// skipSpacesAndComments skips ordinary spacing and `#` comments within a
// line that has already had its indentation accounted for.
func (l *Lexer) skipSpacesAndComments() {
	for {
		if l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readChar()
			continue
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readString reads the content of a double-quoted string literal,
// interpreting backslash escapes. It returns the decoded content and
// whether the string was properly terminated.
func (l *Lexer) readString() (string, bool) {
	var b strings.Builder
	l.readChar()

	for {
		switch l.ch {
		case '"':
			return b.String(), true
		case 0:
			return b.String(), false
		case '\\':
			l.readChar()
			if l.ch == 0 {
				return b.String(), false
			}
			switch l.ch {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte('\\')
				b.WriteByte(l.ch)
			}
			l.readChar()
		default:
			b.WriteByte(l.ch)
			l.readChar()
		}
	}
}
