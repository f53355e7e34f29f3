// Package vocab holds the word vectors used to build context embeddings.
//
// A vocabulary file has one word per line, tab separated:
//
//	word<TAB>count<TAB>v1 v2 v3 ...
//
// The vector column may be omitted for words that only carry a count.
package vocab

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// maxLineSize bounds one vocabulary line; vectors of a few hundred
// dimensions fit comfortably.
const maxLineSize = 1 << 20

// Word is one vocabulary entry.
type Word struct {
	Count  int64
	Vector []float64
}

// Vocab maps words to counts and vectors. It is safe for concurrent use.
type Vocab struct {
	mu    sync.RWMutex
	words map[string]Word
	dim   int
}

// New creates an empty vocabulary.
func New() *Vocab {
	return &Vocab{words: make(map[string]Word)}
}

// Load reads a vocabulary file. A missing or unreadable file is reported
// as domain.ErrMissingVocab.
func Load(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMissingVocab, err)
	}
	defer f.Close()

	v := New()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		word, w, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		if err := v.Add(word, w.Count, w.Vector); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return v, nil
}

func parseLine(text string) (string, Word, error) {
	fields := strings.Split(text, "\t")
	if len(fields) < 2 {
		return "", Word{}, fmt.Errorf("%w: want word and count", domain.ErrInvalidInput)
	}
	count, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return "", Word{}, fmt.Errorf("%w: count: %w", domain.ErrInvalidInput, err)
	}
	w := Word{Count: count}
	if len(fields) > 2 {
		for _, f := range strings.Fields(fields[2]) {
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return "", Word{}, fmt.Errorf("%w: vector: %w", domain.ErrInvalidInput, err)
			}
			w.Vector = append(w.Vector, x)
		}
	}
	return fields[0], w, nil
}

// Add inserts or replaces a word. All vectors must share one dimension.
func (v *Vocab) Add(word string, count int64, vector []float64) error {
	if word == "" {
		return fmt.Errorf("%w: empty word", domain.ErrInvalidInput)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if len(vector) > 0 {
		if v.dim == 0 {
			v.dim = len(vector)
		} else if len(vector) != v.dim {
			return fmt.Errorf("%w: vector for %q has %d dimensions, want %d",
				domain.ErrInvalidInput, word, len(vector), v.dim)
		}
	}
	v.words[word] = Word{Count: count, Vector: slices.Clone(vector)}
	return nil
}

// Has reports whether the word is known.
func (v *Vocab) Has(word string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.words[word]
	return ok
}

// Count returns the word's frequency, zero when unknown.
func (v *Vocab) Count(word string) int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.words[word].Count
}

// Vector returns the word's vector, or nil when the word is unknown or has none.
func (v *Vocab) Vector(word string) []float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.words[word].Vector
}

// Dim returns the vector dimension, zero before any vector is added.
func (v *Vocab) Dim() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dim
}

// Len returns the number of words.
func (v *Vocab) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.words)
}

// Embed averages the vectors of the known words, weighting each by
// 1/log(2+count) so frequent words contribute less. It returns nil when
// no word has a vector.
func (v *Vocab) Embed(words []string) []float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.dim == 0 {
		return nil
	}

	sum := make([]float64, v.dim)
	total := 0.0
	for _, w := range words {
		entry, ok := v.words[w]
		if !ok || len(entry.Vector) == 0 {
			continue
		}
		weight := 1 / math.Log(2+float64(entry.Count))
		for i, x := range entry.Vector {
			sum[i] += weight * x
		}
		total += weight
	}
	if total == 0 {
		return nil
	}
	for i := range sum {
		sum[i] /= total
	}
	return sum
}
