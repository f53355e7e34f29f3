package domain

// Concept is one entry of the concept database.
type Concept struct {
	CUI           string
	Names         []string
	PreferredName string
	TypeIDs       []string
	Group         string

	// AddlInfo holds extra mappings such as cui2icd10, keyed by field name.
	AddlInfo map[string][]string

	// TrainCount is the number of training updates the concept received.
	TrainCount int
}

// DisplayName returns the preferred name, the first name, or the CUI.
func (c Concept) DisplayName() string {
	if c.PreferredName != "" {
		return c.PreferredName
	}
	if len(c.Names) > 0 {
		return c.Names[0]
	}
	return c.CUI
}
