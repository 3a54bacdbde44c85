package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
)

// Format renders e in the canonical strict syntax. For any expression produced
// by p.Parse, p.Parse(p.Format(e)) yields an equal expression.
func (p *Parser) Format(e domain.Expression) string {
	var sb strings.Builder
	p.format(&sb, e)
	return sb.String()
}

func (p *Parser) format(sb *strings.Builder, e domain.Expression) {
	switch v := e.(type) {
	case *domain.ElementCondition:
		sb.WriteString(p.word(TokenElement, "element"))
		sb.WriteString(" ")
		sb.WriteString(Quote(v.Target))
		if v.Check != domain.CheckExists {
			sb.WriteString(" ")
			sb.WriteString(p.word(TokenIs, "is"))
		}
		sb.WriteString(" ")
		sb.WriteString(p.word(TokenCheck, string(v.Check)))
	case *domain.TextCondition:
		fmt.Fprintf(sb, "%s %s %s %s", p.word(TokenText, "text"), Quote(v.Target), p.word(TokenTextOp, string(v.Operator)), Quote(v.Value))
	case *domain.StateCondition:
		sb.WriteString(p.word(TokenState, "state"))
		sb.WriteString(" ")
		sb.WriteString(p.word(TokenIs, "is"))
		sb.WriteString(" ")
		if w, ok := p.spell[spelling{TokenPageState, string(v.State)}]; ok && v.State.IsBuiltin() {
			sb.WriteString(w)
		} else {
			sb.WriteString(Quote(string(v.State)))
		}
	case *domain.VariableCondition:
		if IsIdentifier(v.Name, p.keywords) {
			sb.WriteString(v.Name)
		} else {
			sb.WriteString("${" + v.Name + "}")
		}
		sb.WriteString(" ")
		sb.WriteString(string(v.Operator))
		sb.WriteString(" ")
		sb.WriteString(FormatLiteral(v.Value))
	case *domain.CompoundCondition:
		p.formatCompound(sb, v)
	case nil:
	default:
		fmt.Fprintf(sb, "<%T>", e)
	}
}

// word returns the parser's spelling of the keyword with canonical value,
// or value itself when the table has no such keyword.
func (p *Parser) word(typ TokenType, value string) string {
	if w, ok := p.spell[spelling{typ, value}]; ok {
		return w
	}
	return value
}

func (p *Parser) formatCompound(sb *strings.Builder, c *domain.CompoundCondition) {
	if c.Operator == domain.LogicalNot {
		sb.WriteString(p.word(TokenNot, "not"))
		sb.WriteString(" ")
		if len(c.Children) > 0 {
			p.formatChild(sb, c.Children[0])
		}
		return
	}
	op := p.word(TokenAnd, "and")
	if c.Operator == domain.LogicalOr {
		op = p.word(TokenOr, "or")
	}
	for i, child := range c.Children {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(op)
			sb.WriteString(" ")
		}
		p.formatChild(sb, child)
	}
}

// formatChild parenthesises nested and/or compounds so their grouping survives a re-parse.
func (p *Parser) formatChild(sb *strings.Builder, child domain.Expression) {
	if c, ok := child.(*domain.CompoundCondition); ok && c.Operator != domain.LogicalNot {
		sb.WriteString("(")
		p.format(sb, c)
		sb.WriteString(")")
		return
	}
	p.format(sb, child)
}

// FormatLiteral renders a comparison literal: integers bare, everything else quoted.
func FormatLiteral(v any) string {
	switch n := v.(type) {
	case int64:
		return strconv.FormatInt(n, 10)
	case int:
		return strconv.Itoa(n)
	case string:
		return Quote(n)
	default:
		return Quote(fmt.Sprint(v))
	}
}

// Quote wraps s in double quotes, escaping backslashes, quotes and control whitespace.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
