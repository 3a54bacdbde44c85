package expr

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
)

// Infer guesses a condition from free text. It first tries the strict grammar,
// then splits on top-level and/or, then matches variable comparisons, text
// operators, element checks and page-state phrases. Text that matches nothing
// becomes an existence check on the whole input. Infer never fails.
func (p *Parser) Infer(text string) domain.Expression {
	text = strings.TrimSpace(text)
	if e, err := p.Parse(text); err == nil {
		return e
	}
	return p.infer(p.stripIntro(text))
}

func (p *Parser) infer(text string) domain.Expression {
	text = strings.TrimSpace(strings.TrimRight(text, ".?!"))

	if parts := p.splitTopLevel(text, TokenOr); len(parts) > 1 {
		return domain.Or(p.inferAll(parts)...)
	}
	if parts := p.splitTopLevel(text, TokenAnd); len(parts) > 1 {
		return domain.And(p.inferAll(parts)...)
	}
	if rest, ok := p.cutLeading(text, TokenNot); ok {
		return domain.Not(p.infer(rest))
	}
	if e := inferVariable(text); e != nil {
		return e
	}
	if e := p.inferText(text); e != nil {
		return e
	}
	if e := p.inferElement(text); e != nil {
		return e
	}
	if e := p.inferState(text); e != nil {
		return e
	}
	return &domain.ElementCondition{Target: targetOf(text), Check: domain.CheckExists}
}

func (p *Parser) inferAll(parts []string) []domain.Expression {
	out := make([]domain.Expression, 0, len(parts))
	for _, part := range parts {
		out = append(out, p.infer(part))
	}
	return out
}

func (p *Parser) stripIntro(text string) string {
	for _, t := range []TokenType{TokenIf, TokenWhile} {
		if rest, ok := p.cutLeading(text, t); ok {
			return rest
		}
	}
	return text
}

// cutLeading removes a leading keyword of type t.
func (p *Parser) cutLeading(text string, t TokenType) (string, bool) {
	word, rest, _ := strings.Cut(text, " ")
	if kw, ok := p.keywords.Lookup(word); ok && kw.Type == t && rest != "" {
		return strings.TrimSpace(rest), true
	}
	return text, false
}

type span struct {
	word       string
	start, end int
}

// words splits text on whitespace outside quotes, keeping byte offsets.
func words(text string) []span {
	var out []span
	var quote rune
	start := -1
	flush := func(end int) {
		if start >= 0 {
			out = append(out, span{text[start:end], start, end})
			start = -1
		}
	}
	for i, r := range text {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			if start < 0 {
				start = i
			}
			quote = r
		case r == ' ' || r == '\t' || r == '\n':
			flush(i)
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(text))
	return out
}

func (p *Parser) splitTopLevel(text string, t TokenType) []string {
	var parts []string
	last := 0
	for _, w := range words(text) {
		if kw, ok := p.keywords.Lookup(w.word); ok && kw.Type == t {
			if part := strings.TrimSpace(text[last:w.start]); part != "" {
				parts = append(parts, part)
			}
			last = w.end
		}
	}
	if last == 0 {
		return nil
	}
	if part := strings.TrimSpace(text[last:]); part != "" {
		parts = append(parts, part)
	}
	return parts
}

var variablePattern = regexp.MustCompile(`^(?:\$\{\s*([^}\s]+)\s*\}|([A-Za-z_][\w.]*))\s*(==|!=|>=|<=|>|<|=)\s*(.+)$`)

func inferVariable(text string) domain.Expression {
	m := variablePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	name := m[1]
	if name == "" {
		name = m[2]
	}
	op := m[3]
	if op == "=" {
		op = "=="
	}
	raw := strings.TrimSpace(m[4])
	var value any = unquote(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		value = n
	}
	return &domain.VariableCondition{Name: name, Operator: domain.CompareOperator(op), Value: value}
}

func (p *Parser) inferText(text string) domain.Expression {
	for _, w := range words(text) {
		kw, ok := p.keywords.Lookup(w.word)
		if !ok || kw.Type != TokenTextOp {
			continue
		}
		target := targetOf(p.stripFillers(text[:w.start], TokenText, TokenIs))
		value := unquote(strings.TrimSpace(text[w.end:]))
		if target == "" || value == "" {
			return nil
		}
		return &domain.TextCondition{Target: target, Operator: domain.TextOperator(kw.Value), Value: value}
	}
	return nil
}

// naturalChecks are element-check words accepted only by inference.
var naturalChecks = map[string]struct {
	check   domain.ElementCheck
	negated bool
}{
	"displayed":    {domain.CheckVisible, false},
	"shown":        {domain.CheckVisible, false},
	"showing":      {domain.CheckVisible, false},
	"appears":      {domain.CheckVisible, false},
	"present":      {domain.CheckExists, false},
	"ticked":       {domain.CheckSelected, false},
	"hidden":       {domain.CheckVisible, true},
	"disabled":     {domain.CheckEnabled, true},
	"aparece":      {domain.CheckVisible, false},
	"exibido":      {domain.CheckVisible, false},
	"presente":     {domain.CheckExists, false},
	"oculto":       {domain.CheckVisible, true},
	"desabilitado": {domain.CheckEnabled, true},
}

func (p *Parser) inferElement(text string) domain.Expression {
	for _, w := range words(text) {
		lower := strings.ToLower(w.word)
		var check domain.ElementCheck
		var negated bool
		if kw, ok := p.keywords.Lookup(lower); ok && kw.Type == TokenCheck {
			check = domain.ElementCheck(kw.Value)
		} else if nc, ok := naturalChecks[lower]; ok {
			check, negated = nc.check, nc.negated
		} else {
			continue
		}

		before := text[:w.start]
		if rest, ok := p.cutTrailing(before, TokenNot); ok {
			before, negated = rest, !negated
		}
		target := targetOf(p.stripFillers(before, TokenElement, TokenIs))
		if target == "" {
			return nil
		}
		var e domain.Expression = &domain.ElementCondition{Target: target, Check: check}
		if negated {
			e = domain.Not(e)
		}
		return e
	}
	return nil
}

// statePhrases maps multi-word phrases to page states for inference.
var statePhrases = []struct {
	phrase string
	state  domain.PageState
}{
	{"logged in", domain.StateLoggedIn},
	{"signed in", domain.StateLoggedIn},
	{"logged out", domain.StateLoggedOut},
	{"signed out", domain.StateLoggedOut},
	{"no results", domain.StateEmpty},
	{"sem resultados", domain.StateEmpty},
}

func (p *Parser) inferState(text string) domain.Expression {
	if strings.ContainsAny(text, `"'`) {
		return nil
	}
	lower := strings.ToLower(text)
	for _, sp := range statePhrases {
		if strings.Contains(lower, sp.phrase) {
			return &domain.StateCondition{State: sp.state}
		}
	}
	for _, w := range words(text) {
		if kw, ok := p.keywords.Lookup(w.word); ok && kw.Type == TokenPageState {
			return &domain.StateCondition{State: domain.PageState(kw.Value)}
		}
	}
	return nil
}

func (p *Parser) cutTrailing(text string, t TokenType) (string, bool) {
	text = strings.TrimSpace(text)
	idx := strings.LastIndexAny(text, " \t")
	word := text[idx+1:]
	if kw, ok := p.keywords.Lookup(word); ok && kw.Type == t {
		return strings.TrimSpace(text[:idx+1]), true
	}
	return text, false
}

var articles = map[string]bool{"the": true, "a": true, "an": true, "of": true, "o": true, "os": true, "as": true}

// stripFillers drops keywords of the given types and English articles.
func (p *Parser) stripFillers(text string, types ...TokenType) string {
	var kept []string
	for _, w := range words(text) {
		lower := strings.ToLower(w.word)
		if articles[lower] {
			continue
		}
		if kw, ok := p.keywords.Lookup(lower); ok {
			drop := false
			for _, t := range types {
				if kw.Type == t {
					drop = true
					break
				}
			}
			if drop {
				continue
			}
		}
		kept = append(kept, w.word)
	}
	return strings.Join(kept, " ")
}

// targetOf prefers the first quoted segment of text and falls back to the trimmed text.
func targetOf(text string) string {
	for _, w := range words(text) {
		if len(w.word) >= 2 && (w.word[0] == '"' || w.word[0] == '\'') {
			return unquote(w.word)
		}
	}
	return strings.TrimSpace(text)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
