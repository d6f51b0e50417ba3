package querytext

import (
	"fmt"
	"strconv"
	"unicode"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenString
	tokenNumber
	tokenOperator
	tokenLeftParen
	tokenRightParen
	tokenLeftBracket
	tokenRightBracket
	tokenComma
	tokenStar
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of input"
	case tokenIdent:
		return "identifier"
	case tokenString:
		return "string"
	case tokenNumber:
		return "number"
	case tokenOperator:
		return "operator"
	case tokenLeftParen:
		return "'('"
	case tokenRightParen:
		return "')'"
	case tokenLeftBracket:
		return "'['"
	case tokenRightBracket:
		return "']'"
	case tokenComma:
		return "','"
	case tokenStar:
		return "'*'"
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

type token struct {
	typ   tokenType
	text  string // raw text; unquoted for strings
	pos   int    // byte offset into the input
	float bool   // number literal written with '.' or an exponent
}

// SyntaxError reports malformed query text with the byte offset it was
// detected at.
type SyntaxError struct {
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query text: %s at offset %d", e.Message, e.Pos)
}

func syntaxErrorf(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

type lexer struct {
	input string
	pos   int
}

func tokenize(input string) ([]token, error) {
	l := &lexer{input: input}
	var tokens []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.typ == tokenEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) peekByte(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.input) {
		return token{typ: tokenEOF, pos: start}, nil
	}

	ch := l.input[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return token{typ: tokenLeftParen, text: "(", pos: start}, nil
	case ch == ')':
		l.pos++
		return token{typ: tokenRightParen, text: ")", pos: start}, nil
	case ch == '[':
		l.pos++
		return token{typ: tokenLeftBracket, text: "[", pos: start}, nil
	case ch == ']':
		l.pos++
		return token{typ: tokenRightBracket, text: "]", pos: start}, nil
	case ch == ',':
		l.pos++
		return token{typ: tokenComma, text: ",", pos: start}, nil
	case ch == '*':
		l.pos++
		return token{typ: tokenStar, text: "*", pos: start}, nil
	case ch == '"':
		return l.readString()
	case isDigit(ch), (ch == '-' || ch == '+') && isDigit(l.peekByte(1)):
		return l.readNumber(), nil
	case ch == '=' || ch == '!' || ch == '<' || ch == '>':
		return l.readOperator()
	case isIdentStart(ch):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return token{typ: tokenIdent, text: l.input[start:l.pos], pos: start}, nil
	default:
		return token{}, syntaxErrorf(start, "unexpected character %q", ch)
	}
}

// readString scans a Go-syntax double-quoted literal, the form
// ir.FormatValue writes.
func (l *lexer) readString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case '\\':
			l.pos += 2
		case '"':
			l.pos++
			text, err := strconv.Unquote(l.input[start:l.pos])
			if err != nil {
				return token{}, syntaxErrorf(start, "malformed string %s", l.input[start:l.pos])
			}
			return token{typ: tokenString, text: text, pos: start}, nil
		default:
			l.pos++
		}
	}
	return token{}, syntaxErrorf(start, "unterminated string")
}

func (l *lexer) readNumber() token {
	start := l.pos
	isFloat := false
	if ch := l.input[l.pos]; ch == '-' || ch == '+' {
		l.pos++
	}
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case isDigit(ch):
			l.pos++
		case ch == '.':
			isFloat = true
			l.pos++
		case ch == 'e' || ch == 'E':
			isFloat = true
			l.pos++
			if next := l.peekByte(0); next == '-' || next == '+' {
				l.pos++
			}
		default:
			return token{typ: tokenNumber, text: l.input[start:l.pos], pos: start, float: isFloat}
		}
	}
	return token{typ: tokenNumber, text: l.input[start:l.pos], pos: start, float: isFloat}
}

func (l *lexer) readOperator() (token, error) {
	start := l.pos
	two := ""
	if l.pos+1 < len(l.input) {
		two = l.input[l.pos : l.pos+2]
	}
	switch two {
	case "==", "!=", "<=", ">=", "<>":
		l.pos += 2
		return token{typ: tokenOperator, text: two, pos: start}, nil
	}
	ch := l.input[l.pos]
	if ch == '!' {
		return token{}, syntaxErrorf(start, "expected !=")
	}
	l.pos++
	return token{typ: tokenOperator, text: string(ch), pos: start}, nil
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.'
}
