package dictionary

import (
	"context"
	"strings"
	"unicode"
)

// NameSep joins the tokens of a prepared name.
const NameSep = "~"

// Token is a word or punctuation mark. Start and End are rune offsets.
type Token struct {
	Text  string
	Lower string
	Start int
	End   int
	Punct bool
}

// tokenize splits runes into words (letters and digits) and single
// punctuation marks. Whitespace is dropped.
func tokenize(runes []rune) []Token {
	var tokens []Token
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		text := string(runes[start:end])
		tokens = append(tokens, Token{Text: text, Lower: strings.ToLower(text), Start: start, End: end})
		start = -1
	}
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			if start < 0 {
				start = i
			}
		case unicode.IsSpace(r):
			flush(i)
		default:
			flush(i)
			s := string(r)
			tokens = append(tokens, Token{Text: s, Lower: s, Start: i, End: i + 1, Punct: true})
		}
	}
	flush(len(runes))
	return tokens
}

// words returns the non-punctuation tokens.
func words(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if !t.Punct {
			out = append(out, t)
		}
	}
	return out
}

// Tokenizer is the first component of the chain.
type Tokenizer struct{}

// Name returns the component name.
func (Tokenizer) Name() string { return "tokenizer" }

// Process fills doc.Tokens.
func (Tokenizer) Process(_ context.Context, doc *Doc) error {
	doc.Tokens = tokenize(doc.Runes)
	return nil
}

// Normaliser prepares concept names the same way the recogniser builds
// lookup keys: lower-cased words joined by NameSep, punctuation dropped.
type Normaliser struct{}

// PrepareName returns the prepared form of name, or nothing for a name
// without words.
func (Normaliser) PrepareName(name string) []string {
	ws := words(tokenize([]rune(name)))
	if len(ws) == 0 {
		return nil
	}
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.Lower
	}
	return []string{strings.Join(parts, NameSep)}
}
