// Package expr lexes and parses the condition, loop and variable grammars
// into domain descriptors and formats conditions back to text.
//
// Keywords come from a replaceable, case-insensitive table. Format spells
// every keyword with the parser's own table, so Parse(Format(x)) holds for
// any table, English or not.
package expr

import (
	"strconv"

	"github.com/aretw0/tendril/pkg/domain"
)

// Parser turns condition, loop and variable text into domain descriptors.
// A Parser is immutable and safe for concurrent use.
type Parser struct {
	keywords Keywords
	spell    map[spelling]string
}

// Option configures a Parser.
type Option func(*Parser)

// WithKeywords replaces the keyword table.
func WithKeywords(k Keywords) Option {
	return func(p *Parser) {
		p.keywords = k
	}
}

// NewParser creates a parser using DefaultKeywords unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{keywords: DefaultKeywords()}
	for _, opt := range opts {
		opt(p)
	}
	p.spell = p.keywords.spellings()
	return p
}

// Keywords returns the parser's keyword table.
func (p *Parser) Keywords() Keywords {
	return p.keywords
}

var defaultParser = NewParser()

// Parse parses a condition with the default parser.
func Parse(text string) (domain.Expression, error) { return defaultParser.Parse(text) }

// Format renders a condition with the default parser's keywords.
func Format(e domain.Expression) string { return defaultParser.Format(e) }

// Infer guesses a condition from free text with the default parser.
func Infer(text string) domain.Expression { return defaultParser.Infer(text) }

// ParseLoop parses a loop header with the default parser.
func ParseLoop(text string) (*domain.LoopConfig, error) { return defaultParser.ParseLoop(text) }

// ParseVariable parses a variable operation with the default parser.
func ParseVariable(text string) (*domain.VariableOperation, error) {
	return defaultParser.ParseVariable(text)
}

// Parse parses a condition using the strict grammar:
//
//	expr    := [if|while] or
//	or      := and { "or" and }
//	and     := unary { "and" unary }
//	unary   := "not" unary | primary
//	primary := "(" or ")" | element | text | state | variable
//	element := "element" target ["is" ["not"]] check
//	text    := "text" target ["is"] textop literal
//	state   := "state" ["is" ["not"]] (pagestate | ident | string)
//	variable:= ["variable"] (ident | ${name}) compare literal
func (p *Parser) Parse(text string) (domain.Expression, error) {
	tokens, err := Lex(text, p.keywords)
	if err != nil {
		return nil, err
	}
	st := &parseState{input: text, tokens: tokens}
	if st.at(TokenIf) || st.at(TokenWhile) {
		st.next()
	}
	e, err := st.parseCondition()
	if err != nil {
		return nil, err
	}
	if !st.at(TokenEOF) {
		return nil, st.unexpected()
	}
	return e, nil
}

type parseState struct {
	input  string
	tokens []Token
	pos    int
}

func (s *parseState) peek() Token {
	return s.tokens[s.pos]
}

func (s *parseState) at(t TokenType) bool {
	return s.tokens[s.pos].Type == t
}

func (s *parseState) next() Token {
	tok := s.tokens[s.pos]
	if tok.Type != TokenEOF {
		s.pos++
	}
	return tok
}

func (s *parseState) match(t TokenType) bool {
	if s.at(t) {
		s.next()
		return true
	}
	return false
}

func (s *parseState) expect(t TokenType) (Token, error) {
	if !s.at(t) {
		tok := s.peek()
		return tok, errorf(s.input, tok.Pos, "expected %s, found %s", t, describe(tok))
	}
	return s.next(), nil
}

func (s *parseState) unexpected() error {
	tok := s.peek()
	return errorf(s.input, tok.Pos, "unexpected %s", describe(tok))
}

func describe(tok Token) string {
	if tok.Type == TokenEOF {
		return tok.Type.String()
	}
	return strconv.Quote(tok.Text)
}

func (s *parseState) parseCondition() (domain.Expression, error) {
	return s.parseOr()
}

func (s *parseState) parseOr() (domain.Expression, error) {
	first, err := s.parseAnd()
	if err != nil {
		return nil, err
	}
	if !s.at(TokenOr) {
		return first, nil
	}
	children := []domain.Expression{first}
	for s.match(TokenOr) {
		child, err := s.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return domain.Or(children...), nil
}

func (s *parseState) parseAnd() (domain.Expression, error) {
	first, err := s.parseUnary()
	if err != nil {
		return nil, err
	}
	if !s.at(TokenAnd) {
		return first, nil
	}
	children := []domain.Expression{first}
	for s.match(TokenAnd) {
		child, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return domain.And(children...), nil
}

func (s *parseState) parseUnary() (domain.Expression, error) {
	if s.match(TokenNot) {
		child, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		return domain.Not(child), nil
	}
	return s.parsePrimary()
}

func (s *parseState) parsePrimary() (domain.Expression, error) {
	switch s.peek().Type {
	case TokenLParen:
		s.next()
		inner, err := s.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := s.expect(TokenRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenElement:
		s.next()
		return s.parseElement()
	case TokenText:
		s.next()
		return s.parseText()
	case TokenState:
		s.next()
		return s.parsePageState()
	case TokenVariable:
		s.next()
		return s.parseVariable()
	case TokenIdent, TokenVarRef:
		return s.parseVariable()
	default:
		return nil, s.unexpected()
	}
}

func (s *parseState) parseTarget() (string, error) {
	tok := s.peek()
	switch tok.Type {
	case TokenString, TokenIdent:
		s.next()
		return tok.Value, nil
	case TokenVarRef:
		s.next()
		return tok.Text, nil
	default:
		return "", errorf(s.input, tok.Pos, "expected target, found %s", describe(tok))
	}
}

// parseNegation consumes an optional "is" and "is not", reporting negation.
func (s *parseState) parseNegation() bool {
	if s.match(TokenIs) {
		return s.match(TokenNot)
	}
	return false
}

func (s *parseState) parseElement() (domain.Expression, error) {
	target, err := s.parseTarget()
	if err != nil {
		return nil, err
	}
	negated := s.parseNegation()
	tok, err := s.expect(TokenCheck)
	if err != nil {
		return nil, err
	}
	var e domain.Expression = &domain.ElementCondition{Target: target, Check: domain.ElementCheck(tok.Value)}
	if negated {
		e = domain.Not(e)
	}
	return e, nil
}

func (s *parseState) parseText() (domain.Expression, error) {
	target, err := s.parseTarget()
	if err != nil {
		return nil, err
	}
	s.match(TokenIs)
	op, err := s.expect(TokenTextOp)
	if err != nil {
		return nil, err
	}
	tok := s.peek()
	if tok.Type != TokenString && tok.Type != TokenNumber {
		return nil, errorf(s.input, tok.Pos, "expected string, found %s", describe(tok))
	}
	s.next()
	return &domain.TextCondition{Target: target, Operator: domain.TextOperator(op.Value), Value: tok.Value}, nil
}

func (s *parseState) parsePageState() (domain.Expression, error) {
	negated := s.parseNegation()
	tok := s.peek()
	var state domain.PageState
	switch tok.Type {
	case TokenPageState, TokenIdent, TokenString:
		s.next()
		state = domain.PageState(tok.Value)
	default:
		return nil, errorf(s.input, tok.Pos, "expected page state, found %s", describe(tok))
	}
	if state == "" {
		return nil, errorf(s.input, tok.Pos, "empty page state")
	}
	var e domain.Expression = &domain.StateCondition{State: state}
	if negated {
		e = domain.Not(e)
	}
	return e, nil
}

func (s *parseState) parseVariable() (domain.Expression, error) {
	tok := s.peek()
	if tok.Type != TokenIdent && tok.Type != TokenVarRef {
		return nil, errorf(s.input, tok.Pos, "expected variable name, found %s", describe(tok))
	}
	s.next()
	op, err := s.expect(TokenCompare)
	if err != nil {
		return nil, err
	}
	value, err := s.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &domain.VariableCondition{Name: tok.Value, Operator: domain.CompareOperator(op.Value), Value: value}, nil
}

// parseLiteral reads an int64 or a string. Bare identifiers are read as strings.
func (s *parseState) parseLiteral() (any, error) {
	tok := s.peek()
	switch tok.Type {
	case TokenNumber:
		s.next()
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, errorf(s.input, tok.Pos, "invalid number %q", tok.Text)
		}
		return n, nil
	case TokenString, TokenIdent:
		s.next()
		return tok.Value, nil
	default:
		return nil, errorf(s.input, tok.Pos, "expected literal, found %s", describe(tok))
	}
}
