package expr

import (
	"strconv"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
)

// ParseLoop parses a loop header:
//
//	repeat N times
//	while <condition>
//	for each <item> in <collection>
//
// The collection is an identifier, a ${name} reference or a quoted selector.
func (p *Parser) ParseLoop(text string) (*domain.LoopConfig, error) {
	tokens, err := Lex(text, p.keywords)
	if err != nil {
		return nil, err
	}
	st := &parseState{input: text, tokens: tokens}
	head := st.next()

	var cfg *domain.LoopConfig
	switch head.Type {
	case TokenRepeat:
		cfg, err = st.parseRepeat()
	case TokenWhile:
		cfg, err = st.parseWhile(text)
	case TokenFor:
		cfg, err = st.parseForEach()
	default:
		return nil, errorf(text, head.Pos, "expected repeat, while or for each, found %s", describe(head))
	}
	if err != nil {
		return nil, err
	}
	if !st.at(TokenEOF) {
		return nil, st.unexpected()
	}
	return cfg, nil
}

func (s *parseState) parseRepeat() (*domain.LoopConfig, error) {
	tok, err := s.expect(TokenNumber)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(tok.Value)
	if err != nil {
		return nil, errorf(s.input, tok.Pos, "invalid count %q", tok.Text)
	}
	if n <= 0 {
		return nil, errorf(s.input, tok.Pos, "count must be positive, got %d", n)
	}
	s.match(TokenTimes)
	return &domain.LoopConfig{Type: domain.LoopCount, Count: n}, nil
}

func (s *parseState) parseWhile(text string) (*domain.LoopConfig, error) {
	start := s.peek().Pos
	cond, err := s.parseCondition()
	if err != nil {
		return nil, err
	}
	return &domain.LoopConfig{
		Type:          domain.LoopWhile,
		Condition:     cond,
		ConditionText: strings.TrimSpace(text[start:]),
	}, nil
}

func (s *parseState) parseForEach() (*domain.LoopConfig, error) {
	s.match(TokenEach)
	item, err := s.expect(TokenIdent)
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(TokenIn); err != nil {
		return nil, err
	}
	tok := s.peek()
	switch tok.Type {
	case TokenIdent, TokenVarRef, TokenString:
		s.next()
	default:
		return nil, errorf(s.input, tok.Pos, "expected collection, found %s", describe(tok))
	}
	if tok.Value == "" {
		return nil, errorf(s.input, tok.Pos, "empty collection")
	}
	return &domain.LoopConfig{
		Type:         domain.LoopForEach,
		Collection:   tok.Value,
		ItemVariable: item.Value,
	}, nil
}

// ParseVariable parses a variable operation:
//
//	set <name> (= | to) <value>
//	<name> = <value>
//	increment <name> [by <n>]
//	extract <name> from <target>
//	delete <name>
func (p *Parser) ParseVariable(text string) (*domain.VariableOperation, error) {
	tokens, err := Lex(text, p.keywords)
	if err != nil {
		return nil, err
	}
	st := &parseState{input: text, tokens: tokens}

	var op *domain.VariableOperation
	switch head := st.peek(); head.Type {
	case TokenSet:
		st.next()
		op, err = st.parseAssignment(true)
	case TokenIdent, TokenVarRef:
		op, err = st.parseAssignment(false)
	case TokenIncrement:
		st.next()
		op, err = st.parseIncrement()
	case TokenExtract:
		st.next()
		op, err = st.parseExtract()
	case TokenDelete:
		st.next()
		var name string
		if name, err = st.parseName(); err == nil {
			op = &domain.VariableOperation{Type: domain.VarDelete, Name: name}
		}
	default:
		return nil, errorf(text, head.Pos, "expected set, increment, extract or delete, found %s", describe(head))
	}
	if err != nil {
		return nil, err
	}
	if !st.at(TokenEOF) {
		return nil, st.unexpected()
	}
	return op, nil
}

func (s *parseState) parseName() (string, error) {
	tok := s.peek()
	if tok.Type != TokenIdent && tok.Type != TokenVarRef {
		return "", errorf(s.input, tok.Pos, "expected variable name, found %s", describe(tok))
	}
	s.next()
	return tok.Value, nil
}

func (s *parseState) parseAssignment(allowTo bool) (*domain.VariableOperation, error) {
	name, err := s.parseName()
	if err != nil {
		return nil, err
	}
	if !(s.match(TokenAssign) || (allowTo && s.match(TokenTo))) {
		tok := s.peek()
		return nil, errorf(s.input, tok.Pos, "expected '=', found %s", describe(tok))
	}
	tok := s.peek()
	var value any
	switch tok.Type {
	case TokenNumber:
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, errorf(s.input, tok.Pos, "invalid number %q", tok.Text)
		}
		value = n
	case TokenString:
		value = tok.Value
	case TokenVarRef:
		value = tok.Text
	case TokenIdent:
		switch strings.ToLower(tok.Value) {
		case "true":
			value = true
		case "false":
			value = false
		default:
			value = tok.Value
		}
	default:
		return nil, errorf(s.input, tok.Pos, "expected value, found %s", describe(tok))
	}
	s.next()
	return &domain.VariableOperation{Type: domain.VarSet, Name: name, Value: value}, nil
}

func (s *parseState) parseIncrement() (*domain.VariableOperation, error) {
	name, err := s.parseName()
	if err != nil {
		return nil, err
	}
	op := &domain.VariableOperation{Type: domain.VarIncrement, Name: name, By: 1}
	if s.match(TokenBy) {
		tok, err := s.expect(TokenNumber)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, errorf(s.input, tok.Pos, "invalid number %q", tok.Text)
		}
		op.By = float64(n)
	}
	return op, nil
}

func (s *parseState) parseExtract() (*domain.VariableOperation, error) {
	name, err := s.parseName()
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(TokenFrom); err != nil {
		return nil, err
	}
	target, err := s.parseTarget()
	if err != nil {
		return nil, err
	}
	return &domain.VariableOperation{Type: domain.VarExtract, Name: name, Source: target}, nil
}
