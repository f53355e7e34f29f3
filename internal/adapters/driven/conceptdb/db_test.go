package conceptdb

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

func TestDB_AddConcept_MergesNames(t *testing.T) {
	db := New()

	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C1", Names: []string{"fever"}, TypeIDs: []string{"T1"}}))
	require.NoError(t, db.AddConcept(domain.Concept{
		CUI:           "C1",
		Names:         []string{"fever", "pyrexia"},
		TypeIDs:       []string{"T2"},
		PreferredName: "Fever",
	}))

	c, err := db.Concept("C1")
	require.NoError(t, err)
	assert.Equal(t, []string{"fever", "pyrexia"}, c.Names)
	assert.Equal(t, []string{"T1"}, c.TypeIDs)
	assert.Equal(t, "Fever", c.PreferredName)
	assert.Equal(t, []string{"C1"}, db.CUIsForName("pyrexia"))
	assert.Equal(t, []string{"C1"}, db.CUIsForTypeIDs([]string{"T1", "T2"}))
}

func TestDB_AddConcept_EmptyCUI(t *testing.T) {
	assert.ErrorIs(t, New().AddConcept(domain.Concept{Names: []string{"x"}}), domain.ErrInvalidInput)
}

func TestDB_Concept_NotFound(t *testing.T) {
	db := New()

	_, err := db.Concept("C9")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, db.HasConcept("C9"))
	assert.Equal(t, "C9", db.DisplayName("C9"))
}

func TestDB_Concept_ReturnsCopy(t *testing.T) {
	db := New()
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C1", Names: []string{"fever"}}))

	c, err := db.Concept("C1")
	require.NoError(t, err)
	c.Names[0] = "mutated"

	again, err := db.Concept("C1")
	require.NoError(t, err)
	assert.Equal(t, []string{"fever"}, again.Names)
}

func TestDB_CUIsForName_SharedName(t *testing.T) {
	db := New()
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C2", Names: []string{"cold"}}))
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C1", Names: []string{"cold"}}))

	assert.Equal(t, []string{"C1", "C2"}, db.CUIsForName("cold"))
	assert.Nil(t, db.CUIsForName("warm"))
}

func TestDB_RemoveNames(t *testing.T) {
	db := New()
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C1", Names: []string{"cold", "chill"}}))
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C2", Names: []string{"cold"}}))

	db.RemoveNames("C1", []string{"cold"})

	assert.Equal(t, []string{"C2"}, db.CUIsForName("cold"))
	c, err := db.Concept("C1")
	require.NoError(t, err)
	assert.Equal(t, []string{"chill"}, c.Names)

	db.RemoveNames("C2", []string{"cold"})
	_, names := db.Len()
	assert.Equal(t, 1, names)
}

func TestDB_DisplayName(t *testing.T) {
	db := New()
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C1", Names: []string{"fever"}}))
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C2", Names: []string{"cough"}, PreferredName: "Cough"}))
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C3"}))

	assert.Equal(t, "fever", db.DisplayName("C1"))
	assert.Equal(t, "Cough", db.DisplayName("C2"))
	assert.Equal(t, "C3", db.DisplayName("C3"))
}

func TestDB_TypeNames(t *testing.T) {
	db := New()
	db.SetTypeName("T184", "Sign or Symptom")

	assert.Equal(t, "Sign or Symptom", db.TypeName("T184"))
	assert.Equal(t, "T999", db.TypeName("T999"))
}

func TestDB_Groups(t *testing.T) {
	db := New()
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C1", Group: "G1"}))
	db.SetGroup("C9", "G9")

	g, ok := db.Group("C1")
	assert.True(t, ok)
	assert.Equal(t, "G1", g)

	g, ok = db.Group("C9")
	assert.True(t, ok)
	assert.Equal(t, "G9", g)

	_, ok = db.Group("C2")
	assert.False(t, ok)
}

func TestDB_TrainCount(t *testing.T) {
	db := New()
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C1"}))

	n, ok := db.TrainCount("C1")
	assert.True(t, ok)
	assert.Zero(t, n)

	assert.Equal(t, 1, db.IncrementTrainCount("C1"))
	db.SetTrainCount("C1", 10)
	db.SetTrainCount("C9", 10)

	n, _ = db.TrainCount("C1")
	assert.Equal(t, 10, n)
	_, ok = db.TrainCount("C9")
	assert.False(t, ok)
	assert.Zero(t, db.IncrementTrainCount("C9"))
}

func TestDB_AddlInfo_Merges(t *testing.T) {
	db := New()
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C1", AddlInfo: map[string][]string{"cui2icd10": {"R50"}}}))
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C1", AddlInfo: map[string][]string{"cui2icd10": {"R50", "R50.9"}}}))

	assert.Equal(t, []string{"R50", "R50.9"}, db.AddlInfo("cui2icd10", "C1"))
	assert.Nil(t, db.AddlInfo("cui2icd10", "C9"))
}

func TestDB_MaxNameTokens(t *testing.T) {
	db := New()
	require.NoError(t, db.AddConcept(domain.Concept{CUI: "C1", Names: []string{"fever", "high~grade~fever"}}))

	assert.Equal(t, 3, db.MaxNameTokens("~"))
	assert.Zero(t, New().MaxNameTokens("~"))
}

func TestDB_ConcurrentAccess(t *testing.T) {
	db := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = db.AddConcept(domain.Concept{CUI: "C1", Names: []string{"fever"}})
			db.IncrementTrainCount("C1")
			_ = db.CUIsForName("fever")
			_ = db.DisplayName("C1")
		}(i)
	}
	wg.Wait()

	n, _ := db.TrainCount("C1")
	assert.Equal(t, 20, n)
}

const conceptCSV = `cui,name,name_status,type_ids,group,cui2icd10
C1,Fever,P,T184|T033,G1,R50.9
C1,Pyrexia,,,,
C2, Cough ,P,T184,,R05|R05.9
,orphan,,,,
`

func TestDB_ImportCSV(t *testing.T) {
	db := New()

	require.NoError(t, db.ImportCSV(strings.NewReader(conceptCSV), nil))

	concepts, names := db.Len()
	assert.Equal(t, 2, concepts)
	assert.Equal(t, 3, names)

	c, err := db.Concept("C1")
	require.NoError(t, err)
	assert.Equal(t, "Fever", c.PreferredName)
	assert.Equal(t, []string{"fever", "pyrexia"}, c.Names)
	assert.Equal(t, []string{"T184", "T033"}, c.TypeIDs)
	assert.Equal(t, "G1", c.Group)
	assert.Equal(t, []string{"R50.9"}, db.AddlInfo("cui2icd10", "C1"))
	assert.Equal(t, []string{"R05", "R05.9"}, db.AddlInfo("cui2icd10", "C2"))
	assert.Equal(t, "Cough", db.DisplayName("C2"))
	assert.Equal(t, []string{"C1", "C2"}, db.CUIsForTypeIDs([]string{"T184"}))
}

type splitNormaliser struct{}

func (splitNormaliser) PrepareName(name string) []string {
	return []string{strings.Join(strings.Fields(strings.ToLower(name)), "~")}
}

func TestDB_ImportCSV_UsesNormaliser(t *testing.T) {
	db := New()

	require.NoError(t, db.ImportCSV(strings.NewReader("cui,name\nC1,High Fever\n"), splitNormaliser{}))

	assert.Equal(t, []string{"C1"}, db.CUIsForName("high~fever"))
}

func TestDB_ImportCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "no cui column", input: "id,name\nC1,fever\n"},
		{name: "no name column", input: "cui,label\nC1,fever\n"},
		{name: "bad quoting", input: "cui,name\nC1,\"fever\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, New().ImportCSV(strings.NewReader(tt.input), nil))
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cdb.csv")
	require.NoError(t, os.WriteFile(path, []byte(conceptCSV), 0o600))

	db, err := Load(path, nil)

	require.NoError(t, err)
	assert.True(t, db.HasConcept("C2"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"), nil)

	assert.ErrorIs(t, err, domain.ErrMissingConceptDB)
}

func TestDB_LoadTypeNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.csv")
	require.NoError(t, os.WriteFile(path, []byte("type_id,name\nT184,Sign or Symptom\nT047,Disease\n"), 0o600))
	db := New()

	require.NoError(t, db.LoadTypeNames(path))

	assert.Equal(t, "Sign or Symptom", db.TypeName("T184"))
	assert.Equal(t, "Disease", db.TypeName("T047"))
	assert.Error(t, db.LoadTypeNames(filepath.Join(t.TempDir(), "none.csv")))
}
