package services

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// SplitDataset splits every project's documents into disjoint train and
// test sets. The split is reproducible for a given seed. A project with at
// least two documents keeps at least one on each side.
func SplitDataset(ds *domain.Dataset, testSize float64, seed int64) (train, test *domain.Dataset, err error) {
	if ds == nil {
		return nil, nil, fmt.Errorf("%w: no dataset", domain.ErrInvalidDataset)
	}
	if testSize < 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("%w: test size %.3f outside [0,1)", domain.ErrInvalidInput, testSize)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	train = &domain.Dataset{Projects: make([]domain.Project, 0, len(ds.Projects))}
	test = &domain.Dataset{Projects: make([]domain.Project, 0, len(ds.Projects))}

	for _, p := range ds.Projects {
		n := len(p.Documents)
		nTest := testCount(n, testSize)

		perm := rng.Perm(n)
		testIdx := perm[:nTest]
		trainIdx := perm[nTest:]
		sort.Ints(testIdx)
		sort.Ints(trainIdx)

		train.Projects = append(train.Projects, withDocuments(p, trainIdx))
		test.Projects = append(test.Projects, withDocuments(p, testIdx))
	}
	return train, test, nil
}

func testCount(n int, testSize float64) int {
	if n < 2 || testSize == 0 {
		return 0
	}
	k := int(math.Round(float64(n) * testSize))
	return min(max(k, 1), n-1)
}

func withDocuments(p domain.Project, idx []int) domain.Project {
	out := p
	out.Documents = make([]domain.Document, 0, len(idx))
	for _, i := range idx {
		out.Documents = append(out.Documents, p.Documents[i])
	}
	return out
}
