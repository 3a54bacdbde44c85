package expr

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"
)

// Keyword maps a word to a token type and its canonical value.
type Keyword struct {
	Type  TokenType
	Value string
}

// Keywords is a case-insensitive keyword table keyed by lowercase word.
type Keywords map[string]Keyword

// Merge returns a new table with the entries of k overridden by other.
func (k Keywords) Merge(other Keywords) Keywords {
	out := maps.Clone(k)
	if out == nil {
		out = make(Keywords, len(other))
	}
	maps.Copy(out, other)
	return out
}

// Lookup returns the keyword for word, ignoring case.
func (k Keywords) Lookup(word string) (Keyword, bool) {
	kw, ok := k[strings.ToLower(word)]
	return kw, ok
}

// English is the built-in English keyword table.
var English = Keywords{
	"element":  {TokenElement, "element"},
	"text":     {TokenText, "text"},
	"state":    {TokenState, "state"},
	"page":     {TokenState, "state"},
	"variable": {TokenVariable, "variable"},
	"var":      {TokenVariable, "variable"},

	"exists":   {TokenCheck, "exists"},
	"exist":    {TokenCheck, "exists"},
	"visible":  {TokenCheck, "visible"},
	"enabled":  {TokenCheck, "enabled"},
	"selected": {TokenCheck, "selected"},
	"checked":  {TokenCheck, "selected"},

	"equals":   {TokenTextOp, "equals"},
	"contains": {TokenTextOp, "contains"},
	"matches":  {TokenTextOp, "matches"},

	"logged_in":  {TokenPageState, "logged_in"},
	"logged_out": {TokenPageState, "logged_out"},
	"loading":    {TokenPageState, "loading"},
	"error":      {TokenPageState, "error"},
	"empty":      {TokenPageState, "empty"},

	"and": {TokenAnd, "and"},
	"or":  {TokenOr, "or"},
	"not": {TokenNot, "not"},
	"is":  {TokenIs, "is"},
	"if":  {TokenIf, "if"},

	"when":    {TokenIf, "if"},
	"while":   {TokenWhile, "while"},
	"repeat":  {TokenRepeat, "repeat"},
	"times":   {TokenTimes, "times"},
	"for":     {TokenFor, "for"},
	"foreach": {TokenFor, "for"},
	"each":    {TokenEach, "each"},
	"in":      {TokenIn, "in"},

	"set":       {TokenSet, "set"},
	"increment": {TokenIncrement, "increment"},
	"extract":   {TokenExtract, "extract"},
	"delete":    {TokenDelete, "delete"},
	"unset":     {TokenDelete, "delete"},
	"from":      {TokenFrom, "from"},
	"by":        {TokenBy, "by"},
	"to":        {TokenTo, "to"},
}

// Portuguese is the built-in Portuguese keyword table.
var Portuguese = Keywords{
	"elemento": {TokenElement, "element"},
	"texto":    {TokenText, "text"},
	"estado":   {TokenState, "state"},
	"página":   {TokenState, "state"},
	"pagina":   {TokenState, "state"},
	"variável": {TokenVariable, "variable"},
	"variavel": {TokenVariable, "variable"},

	"existe":      {TokenCheck, "exists"},
	"visível":     {TokenCheck, "visible"},
	"visivel":     {TokenCheck, "visible"},
	"habilitado":  {TokenCheck, "enabled"},
	"selecionado": {TokenCheck, "selected"},
	"marcado":     {TokenCheck, "selected"},

	"igual":       {TokenTextOp, "equals"},
	"contém":      {TokenTextOp, "contains"},
	"contem":      {TokenTextOp, "contains"},
	"corresponde": {TokenTextOp, "matches"},

	"logado":     {TokenPageState, "logged_in"},
	"deslogado":  {TokenPageState, "logged_out"},
	"carregando": {TokenPageState, "loading"},
	"erro":       {TokenPageState, "error"},
	"vazio":      {TokenPageState, "empty"},
	"vazia":      {TokenPageState, "empty"},

	"e":    {TokenAnd, "and"},
	"ou":   {TokenOr, "or"},
	"não":  {TokenNot, "not"},
	"nao":  {TokenNot, "not"},
	"é":    {TokenIs, "is"},
	"está": {TokenIs, "is"},
	"esta": {TokenIs, "is"},
	"se":   {TokenIf, "if"},

	"quando":   {TokenIf, "if"},
	"enquanto": {TokenWhile, "while"},
	"repetir":  {TokenRepeat, "repeat"},
	"repita":   {TokenRepeat, "repeat"},
	"vezes":    {TokenTimes, "times"},
	"para":     {TokenFor, "for"},
	"cada":     {TokenEach, "each"},
	"em":       {TokenIn, "in"},

	"definir":     {TokenSet, "set"},
	"defina":      {TokenSet, "set"},
	"incrementar": {TokenIncrement, "increment"},
	"extrair":     {TokenExtract, "extract"},
	"remover":     {TokenDelete, "delete"},
	"de":          {TokenFrom, "from"},
	"por":         {TokenBy, "by"},
	"como":        {TokenTo, "to"},
}

// DefaultKeywords returns English merged with Portuguese. The merged table
// reserves short Portuguese words such as e, de, em, se, por and para, so a
// variable with one of those names must be written ${de} and a string
// literal must be quoted.
func DefaultKeywords() Keywords {
	return English.Merge(Portuguese)
}

// spelling identifies the canonical meaning of a keyword.
type spelling struct {
	typ   TokenType
	value string
}

// spellings picks the word Format emits for each meaning in k: the word equal
// to the canonical value when the table has it, otherwise the shortest word,
// ties broken alphabetically.
func (k Keywords) spellings() map[spelling]string {
	out := make(map[spelling]string, len(k))
	for _, word := range slices.Sorted(maps.Keys(k)) {
		kw := k[word]
		key := spelling{kw.Type, kw.Value}
		cur, ok := out[key]
		switch {
		case !ok:
			out[key] = word
		case cur == kw.Value:
		case word == kw.Value || utf8.RuneCountInString(word) < utf8.RuneCountInString(cur):
			out[key] = word
		}
	}
	return out
}
