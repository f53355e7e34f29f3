// Package negation provides a rule-based meta classifier that marks
// entities preceded by a negation trigger, in the manner of NegEx.
package negation

import (
	"context"
	"strings"
	"unicode"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// Ensure Classifier implements the interface.
var _ driven.MetaClassifier = (*Classifier)(nil)

// Category and values of the annotations this classifier produces.
const (
	Category = "Status"
	Affirmed = "Affirmed"
	Negated  = "Negated"
)

// DefaultWindow is how many words before an entity are searched for a trigger.
const DefaultWindow = 5

// DefaultTriggers are the pre-entity negation phrases.
var DefaultTriggers = []string{
	"no", "not", "denies", "denied", "without", "negative for", "free of",
	"absence of", "ruled out", "no evidence of", "no sign of", "never had",
}

// scopeBreakers end a negation's scope.
var scopeBreakers = map[string]bool{
	"but": true, "however": true, "although": true, "except": true, "though": true,
}

// Classifier marks entities as Negated or Affirmed.
type Classifier struct {
	window   int
	triggers [][]string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithWindow sets how many words before an entity are searched.
func WithWindow(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.window = n
		}
	}
}

// WithTriggers replaces the trigger phrases.
func WithTriggers(phrases ...string) Option {
	return func(c *Classifier) {
		c.triggers = splitPhrases(phrases)
	}
}

// New creates a negation classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{window: DefaultWindow, triggers: splitPhrases(DefaultTriggers)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the meta annotation category.
func (c *Classifier) Name() string { return Category }

// ClassifyBatch annotates every entity of every document.
func (c *Classifier) ClassifyBatch(ctx context.Context, docs []*domain.AnnotatedDocument) error {
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if doc == nil {
			continue
		}
		runes := []rune(doc.Text)
		for _, set := range [][]domain.Entity{doc.Entities, doc.Nested} {
			for _, ent := range set {
				value := Affirmed
				if c.negated(runes, ent.Start) {
					value = Negated
				}
				doc.SetMeta(ent.ID, domain.MetaAnnotation{Name: Category, Value: value, Confidence: 1})
			}
		}
	}
	return nil
}

// negated reports whether a trigger ends within the window of words
// before offset, within the same clause.
func (c *Classifier) negated(runes []rune, offset int) bool {
	if offset > len(runes) {
		offset = len(runes)
	}
	before := lastWords(runes[:max(0, offset)], c.window)
	for end := len(before); end > 0; end-- {
		for _, trig := range c.triggers {
			if end >= len(trig) && equalWords(before[end-len(trig):end], trig) {
				return true
			}
		}
	}
	return false
}

// lastWords returns up to n lower-cased words preceding the end of runes,
// stopping at sentence punctuation or a scope breaker.
func lastWords(runes []rune, n int) []string {
	var out []string
	end := len(runes)
	for i := len(runes) - 1; i >= -1 && len(out) < n; i-- {
		if i >= 0 && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '\'') {
			continue
		}
		if i+1 < end {
			w := strings.ToLower(string(runes[i+1 : end]))
			if scopeBreakers[w] {
				break
			}
			out = append(out, w)
		}
		if i >= 0 && strings.ContainsRune(".;:!?\n", runes[i]) {
			break
		}
		end = i
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return len(a) == len(b)
}

func splitPhrases(phrases []string) [][]string {
	out := make([][]string, 0, len(phrases))
	for _, p := range phrases {
		if f := strings.Fields(strings.ToLower(p)); len(f) > 0 {
			out = append(out, f)
		}
	}
	return out
}
