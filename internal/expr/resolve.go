package expr

import (
	"errors"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
)

var (
	errNoCondition = errors.New("condition step has no expression")
	errNoLoop      = errors.New("loop step has no loop type or expression")
)

// ResolveCondition returns the expression of a condition step, parsing its
// text when no structured condition is attached. With natural set, text the
// strict grammar rejects is inferred instead.
func (p *Parser) ResolveCondition(s *domain.ConditionStep, natural bool) (domain.Expression, error) {
	if s.Condition != nil {
		return s.Condition, nil
	}
	if strings.TrimSpace(s.Expression) == "" {
		return nil, errNoCondition
	}
	if natural {
		return p.Infer(s.Expression), nil
	}
	return p.Parse(s.Expression)
}

// ResolveLoop returns the loop configuration of a loop step. A structured
// config wins; otherwise the expression header is parsed and the step's
// MaxIterations, Timeout and ItemVariable override the parsed defaults.
func (p *Parser) ResolveLoop(s *domain.LoopStep) (domain.LoopConfig, error) {
	if s.Loop.Type != "" {
		return s.Loop, nil
	}
	if strings.TrimSpace(s.Expression) == "" {
		return domain.LoopConfig{}, errNoLoop
	}
	parsed, err := p.ParseLoop(s.Expression)
	if err != nil {
		return domain.LoopConfig{}, err
	}
	cfg := *parsed
	if s.Loop.MaxIterations > 0 {
		cfg.MaxIterations = s.Loop.MaxIterations
	}
	if s.Loop.Timeout > 0 {
		cfg.Timeout = s.Loop.Timeout
	}
	if s.Loop.ItemVariable != "" {
		cfg.ItemVariable = s.Loop.ItemVariable
	}
	return cfg, nil
}
