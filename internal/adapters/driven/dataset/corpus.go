package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// maxLineSize bounds one corpus line.
const maxLineSize = 16 << 20

// CorpusOption configures Corpus.
type CorpusOption func(*corpusConfig)

type corpusConfig struct {
	extractors driven.ExtractorSet
}

// WithExtractors reads every directory file the set has an extractor for,
// through that extractor. Without it only .txt files are read, verbatim.
func WithExtractors(set driven.ExtractorSet) CorpusOption {
	return func(c *corpusConfig) {
		c.extractors = set
	}
}

// Corpus streams inference items from path:
//   - a directory yields one item per note file, id = slash-separated relative path;
//   - a .jsonl file yields one item per {"id": ..., "text": ...} line;
//   - any other file yields one item per non-empty line, id = line number.
//
// Items are produced lazily in a stable order. The returned function
// reports the first read error once iteration has finished; iteration
// stops at that error.
func Corpus(path string, opts ...CorpusOption) (iter.Seq[domain.Item], func() error) {
	var cfg corpusConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	var firstErr error
	seq := func(yield func(domain.Item) bool) {
		info, err := os.Stat(path)
		if err != nil {
			firstErr = fmt.Errorf("open corpus: %w", err)
			return
		}
		switch {
		case info.IsDir():
			firstErr = walkTextFiles(path, cfg.extractors, yield)
		case strings.EqualFold(filepath.Ext(path), ".jsonl"):
			firstErr = scanLines(path, func(n int, line string) (domain.Item, error) {
				var rec struct {
					ID   domain.FlexString `json:"id"`
					Text string            `json:"text"`
				}
				if err := json.Unmarshal([]byte(line), &rec); err != nil {
					return domain.Item{}, fmt.Errorf("%w: line %d: %w", domain.ErrInvalidInput, n, err)
				}
				if rec.ID == "" {
					rec.ID = domain.FlexString(strconv.Itoa(n))
				}
				return domain.Item{ID: string(rec.ID), Text: rec.Text}, nil
			}, yield)
		default:
			firstErr = scanLines(path, func(n int, line string) (domain.Item, error) {
				return domain.Item{ID: strconv.Itoa(n), Text: line}, nil
			}, yield)
		}
	}
	return seq, func() error { return firstErr }
}

// Lines streams the texts of a corpus for self-supervised training.
func Lines(path string, opts ...CorpusOption) (iter.Seq[string], func() error) {
	items, errFn := Corpus(path, opts...)
	return func(yield func(string) bool) {
		for it := range items {
			if !yield(it.Text) {
				return
			}
		}
	}, errFn
}

// errStop ends a walk early without reporting an error.
var errStop = errors.New("stop")

func walkTextFiles(root string, extractors driven.ExtractorSet, yield func(domain.Item) bool) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		var extractor driven.TextExtractor
		if extractors != nil {
			e, ok := extractors.For(path)
			if !ok {
				return nil
			}
			extractor = e
		} else if !strings.EqualFold(filepath.Ext(path), ".txt") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		text := string(data)
		if extractor != nil {
			if text, err = extractor.Extract(data); err != nil {
				return fmt.Errorf("extract %s: %w", path, err)
			}
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if !yield(domain.Item{ID: filepath.ToSlash(rel), Text: text}) {
			return errStop
		}
		return nil
	})
	if errors.Is(err, errStop) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}
	return nil
}

func scanLines(path string, parse func(n int, line string) (domain.Item, error), yield func(domain.Item) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		it, err := parse(n, line)
		if err != nil {
			return err
		}
		if !yield(it) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}
	return nil
}
