package domain

import "unicode/utf8"

// Item is one document submitted for bulk inference.
type Item struct {
	ID   string
	Text string
}

// Chars returns the text length in characters.
func (i Item) Chars() int {
	return utf8.RuneCountInString(i.Text)
}

// Batch is an ordered group of items bounded by a character budget.
type Batch []Item

// Chars returns the summed character length of the batch.
func (b Batch) Chars() int {
	n := 0
	for _, it := range b {
		n += it.Chars()
	}
	return n
}

// IDs returns the item ids in batch order.
func (b Batch) IDs() []string {
	ids := make([]string, len(b))
	for i, it := range b {
		ids[i] = it.ID
	}
	return ids
}
