package conceptdb

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// Column names understood by the CSV importer. Columns prefixed with
// cui2 (e.g. cui2icd10) are stored as additional info under that field.
const (
	colCUI        = "cui"
	colName       = "name"
	colNameStatus = "name_status"
	colTypeIDs    = "type_ids"
	colGroup      = "group"
	addlPrefix    = "cui2"

	// listSep separates multiple values within one cell.
	listSep = "|"

	// statusPreferred marks the row's name as the concept's preferred name.
	statusPreferred = "P"
)

// Load opens a concept CSV and builds a database from it. A missing or
// unreadable file is reported as domain.ErrMissingConceptDB.
func Load(path string, normaliser driven.NameNormaliser) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMissingConceptDB, err)
	}
	defer f.Close()

	db := New()
	if err := db.ImportCSV(f, normaliser); err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return db, nil
}

// ImportCSV adds one concept name per row. The header must contain cui
// and name columns. A nil normaliser lower-cases and trims names.
func (db *DB) ImportCSV(r io.Reader, normaliser driven.NameNormaliser) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty concept csv", domain.ErrInvalidInput)
		}
		return fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols[colCUI]; !ok {
		return fmt.Errorf("%w: concept csv has no %q column", domain.ErrInvalidInput, colCUI)
	}
	if _, ok := cols[colName]; !ok {
		return fmt.Errorf("%w: concept csv has no %q column", domain.ErrInvalidInput, colName)
	}

	prepare := prepareFunc(normaliser)
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		cell := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		cui := cell(colCUI)
		if cui == "" {
			continue
		}
		raw := cell(colName)
		c := domain.Concept{
			CUI:     cui,
			Names:   prepare(raw),
			TypeIDs: splitList(cell(colTypeIDs)),
			Group:   cell(colGroup),
		}
		if strings.EqualFold(cell(colNameStatus), statusPreferred) {
			c.PreferredName = raw
		}
		for col := range cols {
			if !strings.HasPrefix(col, addlPrefix) {
				continue
			}
			if values := splitList(cell(col)); len(values) > 0 {
				if c.AddlInfo == nil {
					c.AddlInfo = make(map[string][]string)
				}
				c.AddlInfo[col] = values
			}
		}
		if err := db.AddConcept(c); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

// LoadTypeNames reads a two-column type_id,name CSV into the database.
func (db *DB) LoadTypeNames(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open type names: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 2
	records, err := cr.ReadAll()
	if err != nil {
		return fmt.Errorf("read type names: %w", err)
	}
	for i, rec := range records {
		if i == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "type_id") {
			continue
		}
		db.SetTypeName(strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1]))
	}
	return nil
}

func prepareFunc(n driven.NameNormaliser) func(string) []string {
	if n != nil {
		return n.PrepareName
	}
	return func(name string) []string {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil
		}
		return []string{name}
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, listSep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
