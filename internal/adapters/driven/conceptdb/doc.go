// Package conceptdb provides an in-memory concept database.
//
// Concepts are keyed by CUI and linked to prepared names, the normalised
// surface forms the recogniser looks up. A database is usually built from
// a CSV export with one name per row:
//
//	cui,name,name_status,type_ids,group,cui2icd10
//	C0015967,Fever,P,T184,,R50.9
//	C0015967,pyrexia,,,,
//
// All methods are safe for concurrent use.
package conceptdb
