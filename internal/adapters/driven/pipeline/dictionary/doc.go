// Package dictionary implements the annotation pipeline as a chain of
// components over a concept database:
//
//	tokenizer -> ner -> linker -> overlaps
//
// The recogniser looks up every run of words in the concept database. The
// linker keeps the CUIs the filter allows and disambiguates shared names
// with context vectors learned from training. The last stage assigns
// entity ids and builds the nested and top-level entity sets; an entity
// has the same id in both.
//
// The pipeline also acts as the name normaliser and context trainer used
// by the training services.
package dictionary
