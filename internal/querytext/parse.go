// Package querytext parses the one-line query syntax used by the shell and
// by scenario files. It is the inverse of queryir.Query.String:
//
//	kind Task ancestor Key(Project, "apollo")
//	    where status != "done" and priority in [1, 3] and due exists
//	    order by due asc, __key__ desc
//	    keys only
//
// A statement may end with paging clauses that become fetch options:
//
//	kind Task order by due desc limit 10 offset 20
//
// Keywords are case-insensitive; kinds and property names are not.
package querytext

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/queryir"
)

// Statement is a parsed query plus its paging clauses.
type Statement struct {
	Query   queryir.Query
	Options native.FetchOptions
}

// Parse parses query text without paging clauses.
func Parse(input string) (queryir.Query, error) {
	st, err := ParseStatement(input)
	if err != nil {
		return queryir.Query{}, err
	}
	if st.Options != (native.FetchOptions{}) {
		return queryir.Query{}, errors.New("query text: limit and offset are not allowed here")
	}
	return st.Query, nil
}

// MustParse is Parse for literals in tests. Panics on error.
func MustParse(input string) queryir.Query {
	q, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return q
}

// ParseStatement parses query text with optional limit and offset clauses.
func ParseStatement(input string) (Statement, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return Statement{}, err
	}
	p := &parser{tokens: tokens}
	return p.statement()
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.typ != tokenEOF {
		p.pos++
	}
	return tok
}

// isKeyword reports whether the current token is the given keyword.
func (p *parser) isKeyword(word string) bool {
	tok := p.peek()
	return tok.typ == tokenIdent && strings.EqualFold(tok.text, word)
}

func (p *parser) acceptKeyword(word string) bool {
	if p.isKeyword(word) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectKeyword(word string) error {
	if !p.acceptKeyword(word) {
		tok := p.peek()
		return syntaxErrorf(tok.pos, "expected %q, found %s", word, describe(tok))
	}
	return nil
}

func (p *parser) expect(typ tokenType) (token, error) {
	tok := p.peek()
	if tok.typ != typ {
		return token{}, syntaxErrorf(tok.pos, "expected %s, found %s", typ, describe(tok))
	}
	return p.advance(), nil
}

func describe(tok token) string {
	if tok.typ == tokenEOF {
		return tok.typ.String()
	}
	return strconv.Quote(tok.text)
}

func (p *parser) statement() (Statement, error) {
	if err := p.expectKeyword("kind"); err != nil {
		return Statement{}, err
	}

	var kind string
	switch tok := p.peek(); tok.typ {
	case tokenStar:
		p.advance()
	case tokenIdent:
		kind = p.advance().text
	default:
		return Statement{}, syntaxErrorf(tok.pos, "expected a kind or '*', found %s", describe(tok))
	}
	b := queryir.NewQuery(kind)

	if p.acceptKeyword("ancestor") {
		key, err := p.key()
		if err != nil {
			return Statement{}, err
		}
		b.Ancestor(key)
	}

	if p.acceptKeyword("where") {
		for {
			f, err := p.filter()
			if err != nil {
				return Statement{}, err
			}
			b.Where(f)
			if !p.acceptKeyword("and") {
				break
			}
		}
	}

	if p.acceptKeyword("order") {
		if err := p.expectKeyword("by"); err != nil {
			return Statement{}, err
		}
		for {
			prop, err := p.expect(tokenIdent)
			if err != nil {
				return Statement{}, err
			}
			dir := queryir.Ascending
			if p.isKeyword("asc") || p.isKeyword("desc") {
				dir, _ = queryir.ParseDirection(p.advance().text)
			}
			b.Order(prop.text, dir)
			if p.peek().typ != tokenComma {
				break
			}
			p.advance()
		}
	}

	if p.acceptKeyword("keys") {
		if err := p.expectKeyword("only"); err != nil {
			return Statement{}, err
		}
		b.KeysOnly()
	}

	var opts native.FetchOptions
	if p.acceptKeyword("limit") {
		n, err := p.count("limit")
		if err != nil {
			return Statement{}, err
		}
		opts.Limit = n
	}
	if p.acceptKeyword("offset") {
		n, err := p.count("offset")
		if err != nil {
			return Statement{}, err
		}
		opts.Offset = n
	}

	if tok := p.peek(); tok.typ != tokenEOF {
		return Statement{}, syntaxErrorf(tok.pos, "unexpected %s", describe(tok))
	}

	q, err := b.Build()
	if err != nil {
		return Statement{}, fmt.Errorf("query text: %w", err)
	}
	return Statement{Query: q, Options: opts}, nil
}

func (p *parser) count(clause string) (int, error) {
	tok, err := p.expect(tokenNumber)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok.text)
	if err != nil || n < 0 {
		return 0, syntaxErrorf(tok.pos, "%s must be a non-negative integer, found %s", clause, tok.text)
	}
	return n, nil
}

func (p *parser) filter() (queryir.FilterPredicate, error) {
	prop, err := p.expect(tokenIdent)
	if err != nil {
		return queryir.FilterPredicate{}, err
	}

	switch {
	case p.acceptKeyword("exists"):
		return queryir.ExistsFilter(prop.text), nil
	case p.acceptKeyword("in"):
		values, err := p.list()
		if err != nil {
			return queryir.FilterPredicate{}, err
		}
		f, err := queryir.NewInFilter(prop.text, values...)
		if err != nil {
			return queryir.FilterPredicate{}, syntaxErrorf(prop.pos, "%v", err)
		}
		return f, nil
	}

	opTok, err := p.expect(tokenOperator)
	if err != nil {
		return queryir.FilterPredicate{}, err
	}
	op, err := queryir.ParseOperator(opTok.text)
	if err != nil {
		return queryir.FilterPredicate{}, syntaxErrorf(opTok.pos, "%v", err)
	}
	value, err := p.value()
	if err != nil {
		return queryir.FilterPredicate{}, err
	}
	return queryir.NewFilter(prop.text, op, value)
}

func (p *parser) list() ([]ir.Value, error) {
	if _, err := p.expect(tokenLeftBracket); err != nil {
		return nil, err
	}
	var values []ir.Value
	if p.peek().typ == tokenRightBracket {
		p.advance()
		return values, nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.peek().typ != tokenComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(tokenRightBracket); err != nil {
		return nil, err
	}
	return values, nil
}

func (p *parser) value() (ir.Value, error) {
	tok := p.peek()
	switch tok.typ {
	case tokenString:
		p.advance()
		return ir.String(tok.text), nil
	case tokenNumber:
		p.advance()
		return number(tok)
	case tokenIdent:
		switch tok.text {
		case "null":
			p.advance()
			return ir.Null{}, nil
		case "true":
			p.advance()
			return ir.Bool(true), nil
		case "false":
			p.advance()
			return ir.Bool(false), nil
		case "Key":
			return p.key()
		}
	}
	return nil, syntaxErrorf(tok.pos, "expected a value, found %s", describe(tok))
}

func number(tok token) (ir.Value, error) {
	if tok.float {
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, syntaxErrorf(tok.pos, "malformed number %s", tok.text)
		}
		return ir.Float(f), nil
	}
	n, err := strconv.ParseInt(tok.text, 10, 64)
	if err != nil {
		return nil, syntaxErrorf(tok.pos, "malformed integer %s", tok.text)
	}
	return ir.Int(n), nil
}

// key parses Key(Kind, id-or-"name", ...).
func (p *parser) key() (ir.Key, error) {
	start, err := p.expect(tokenIdent)
	if err != nil {
		return ir.Key{}, err
	}
	if start.text != "Key" {
		return ir.Key{}, syntaxErrorf(start.pos, "expected Key(...), found %s", describe(start))
	}
	if _, err := p.expect(tokenLeftParen); err != nil {
		return ir.Key{}, err
	}

	var parts []any
	for {
		kind, err := p.expect(tokenIdent)
		if err != nil {
			return ir.Key{}, err
		}
		if _, err := p.expect(tokenComma); err != nil {
			return ir.Key{}, err
		}
		switch id := p.advance(); id.typ {
		case tokenString:
			parts = append(parts, kind.text, id.text)
		case tokenNumber:
			n, err := strconv.ParseInt(id.text, 10, 64)
			if err != nil || id.float {
				return ir.Key{}, syntaxErrorf(id.pos, "key id must be an integer, found %s", id.text)
			}
			parts = append(parts, kind.text, n)
		default:
			return ir.Key{}, syntaxErrorf(id.pos, "expected a key id or name, found %s", describe(id))
		}
		if p.peek().typ != tokenComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(tokenRightParen); err != nil {
		return ir.Key{}, err
	}

	key, err := ir.NewKey(parts...)
	if err != nil {
		return ir.Key{}, syntaxErrorf(start.pos, "%v", err)
	}
	return key, nil
}
