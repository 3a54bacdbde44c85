package expr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type lexer struct {
	input    string
	pos      int
	keywords Keywords
	tokens   []Token
}

// Lex splits input into tokens using the given keyword table.
// Unknown words become identifiers.
func Lex(input string, keywords Keywords) ([]Token, error) {
	l := &lexer{input: input, keywords: keywords}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *lexer) peek() (rune, int) {
	if l.pos >= len(l.input) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.input[l.pos:])
}

func (l *lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) emit(t Token) {
	l.tokens = append(l.tokens, t)
}

func (l *lexer) run() error {
	for {
		r, size := l.peek()
		if size == 0 {
			l.emit(Token{Type: TokenEOF, Pos: l.pos})
			return nil
		}
		start := l.pos
		switch {
		case unicode.IsSpace(r):
			l.pos += size
		case r == '(':
			l.pos++
			l.emit(Token{Type: TokenLParen, Text: "(", Pos: start})
		case r == ')':
			l.pos++
			l.emit(Token{Type: TokenRParen, Text: ")", Pos: start})
		case r == '"' || r == '\'':
			if err := l.lexString(r); err != nil {
				return err
			}
		case r == '$' && l.peekAt(1) == '{':
			if err := l.lexVarRef(); err != nil {
				return err
			}
		case isDigit(r) || (r == '-' && isDigit(rune(l.peekAt(1)))):
			l.lexNumber()
		case strings.ContainsRune("=!<>&|", r):
			if err := l.lexOperator(); err != nil {
				return err
			}
		case isIdentStart(r):
			l.lexWord()
		default:
			return errorf(l.input, start, "unexpected character %q", r)
		}
	}
}

func (l *lexer) lexString(quote rune) error {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for {
		r, size := l.peek()
		if size == 0 {
			return errorf(l.input, start, "unterminated string")
		}
		l.pos += size
		switch r {
		case quote:
			l.emit(Token{Type: TokenString, Text: l.input[start:l.pos], Value: sb.String(), Pos: start})
			return nil
		case '\\':
			next, nsize := l.peek()
			if nsize == 0 {
				return errorf(l.input, start, "unterminated string")
			}
			l.pos += nsize
			switch next {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '"', '\'', '\\':
				sb.WriteRune(next)
			default:
				// Unknown escapes are kept verbatim so regex classes like \d survive.
				sb.WriteRune('\\')
				sb.WriteRune(next)
			}
		default:
			sb.WriteRune(r)
		}
	}
}

func (l *lexer) lexVarRef() error {
	start := l.pos
	end := strings.IndexByte(l.input[start:], '}')
	if end < 0 {
		return errorf(l.input, start, "unterminated variable reference")
	}
	name := strings.TrimSpace(l.input[start+2 : start+end])
	if name == "" {
		return errorf(l.input, start, "empty variable reference")
	}
	l.pos = start + end + 1
	l.emit(Token{Type: TokenVarRef, Text: l.input[start:l.pos], Value: name, Pos: start})
	return nil
}

func (l *lexer) lexNumber() {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && isDigit(rune(l.input[l.pos])) {
		l.pos++
	}
	text := l.input[start:l.pos]
	l.emit(Token{Type: TokenNumber, Text: text, Value: text, Pos: start})
}

func (l *lexer) lexOperator() error {
	start := l.pos
	two := l.input[start:min(start+2, len(l.input))]
	switch two {
	case "==", "!=", ">=", "<=":
		l.pos += 2
		l.emit(Token{Type: TokenCompare, Text: two, Value: two, Pos: start})
		return nil
	case "&&":
		l.pos += 2
		l.emit(Token{Type: TokenAnd, Text: two, Value: "and", Pos: start})
		return nil
	case "||":
		l.pos += 2
		l.emit(Token{Type: TokenOr, Text: two, Value: "or", Pos: start})
		return nil
	}
	one := l.input[start : start+1]
	l.pos++
	switch one {
	case ">", "<":
		l.emit(Token{Type: TokenCompare, Text: one, Value: one, Pos: start})
	case "=":
		l.emit(Token{Type: TokenAssign, Text: one, Value: one, Pos: start})
	case "!":
		l.emit(Token{Type: TokenNot, Text: one, Value: "not", Pos: start})
	default:
		return errorf(l.input, start, "unexpected character %q", one)
	}
	return nil
}

func (l *lexer) lexWord() {
	start := l.pos
	for {
		r, size := l.peek()
		if size == 0 || !isIdentPart(r) {
			break
		}
		l.pos += size
	}
	word := l.input[start:l.pos]
	if kw, ok := l.keywords.Lookup(word); ok {
		l.emit(Token{Type: kw.Type, Text: word, Value: kw.Value, Pos: start})
		return
	}
	l.emit(Token{Type: TokenIdent, Text: word, Value: word, Pos: start})
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// IsIdentifier reports whether s lexes as a single bare identifier under keywords.
func IsIdentifier(s string, keywords Keywords) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if !isIdentPart(r) {
			return false
		}
	}
	_, isKeyword := keywords.Lookup(s)
	return !isKeyword
}
