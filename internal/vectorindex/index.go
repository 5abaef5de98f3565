// Package vectorindex is the normalized-inner-product nearest-neighbor
// store keyed by student id. It is an in-process structure: an
// append-only matrix of unit vectors plus a parallel id map, persisted to
// two companion files, with an optional IVF bucket-index upgrade once the
// flat index grows past 1,000 vectors.
package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	// ErrDimensionMismatch is returned by Add/AddBatch/Search when a
	// vector's length does not match the index's configured dimension.
	ErrDimensionMismatch = errors.New("vectorindex: vector dimension mismatch")
)

// Result is one search hit.
type Result struct {
	StudentID int64
	Score     float64
}

// Stats summarizes the index contents, grounded on
// VectorService.get_stats in original_source/backend/app/services/vector_service.py.
type Stats struct {
	TotalVectors   int
	Dimension      int
	Kind           string // "flat" or "ivf"
	DistinctStudents int
}

const ivfUpgradeThreshold = 1000

// Index is many-readers/one-writer: Search takes a read lock, every
// mutating operation (Add, AddBatch, RemoveStudent, UpgradeToIVF) takes
// the write lock.
type Index struct {
	mu sync.RWMutex

	dimension int
	threshold float64

	vectors [][]float32 // position -> unit vector
	ids     []int64     // position -> student internal id

	ivf *ivfIndex // nil until upgraded
}

// New constructs an empty flat index. threshold is the default minimum
// cosine similarity SearchWithThreshold requires to report a match
// (spec default 0.60).
func New(dimension int, threshold float64) *Index {
	if threshold <= 0 {
		threshold = 0.60
	}
	return &Index{dimension: dimension, threshold: threshold}
}

func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Add L2-normalizes vector and appends it, along with studentID, under
// the write lock so concurrent Search calls never observe a torn append.
func (idx *Index) Add(vector []float32, studentID int64) error {
	if len(vector) != idx.dimension {
		return ErrDimensionMismatch
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.vectors = append(idx.vectors, normalize(vector))
	idx.ids = append(idx.ids, studentID)
	idx.maybeUpgradeLocked()
	return nil
}

// AddBatch behaves like repeated Add calls but is atomic w.r.t. readers:
// the whole batch is appended inside a single write-lock critical section.
func (idx *Index) AddBatch(vectors [][]float32, studentIDs []int64) error {
	if len(vectors) != len(studentIDs) {
		return fmt.Errorf("vectorindex: vectors/ids length mismatch")
	}
	for _, v := range vectors {
		if len(v) != idx.dimension {
			return ErrDimensionMismatch
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, v := range vectors {
		idx.vectors = append(idx.vectors, normalize(v))
		idx.ids = append(idx.ids, studentIDs[i])
	}
	idx.maybeUpgradeLocked()
	return nil
}

// Search returns the top-k matches by inner product, descending. k is
// clamped to the current size; an empty index returns an empty slice.
func (idx *Index) Search(query []float32, k int) []Result {
	if len(query) != idx.dimension {
		return nil
	}
	q := normalize(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return []Result{}
	}

	if idx.ivf != nil {
		return idx.ivf.search(q, idx.vectors, idx.ids, k)
	}
	return flatSearch(q, idx.vectors, idx.ids, k)
}

func flatSearch(q []float32, vectors [][]float32, ids []int64, k int) []Result {
	if k > len(vectors) {
		k = len(vectors)
	}
	scored := make([]Result, len(vectors))
	for i, v := range vectors {
		scored[i] = Result{StudentID: ids[i], Score: dot(q, v)}
	}
	topK(scored, k)
	return scored[:k]
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// topK partial-sorts scored in place so the first k entries are the
// highest-scoring, descending.
func topK(scored []Result, k int) {
	for i := 0; i < k; i++ {
		maxIdx := i
		for j := i + 1; j < len(scored); j++ {
			if scored[j].Score > scored[maxIdx].Score {
				maxIdx = j
			}
		}
		scored[i], scored[maxIdx] = scored[maxIdx], scored[i]
	}
}

// SearchWithThreshold returns the top-1 match only if its score meets the
// index's configured confidence threshold.
func (idx *Index) SearchWithThreshold(query []float32) (Result, bool) {
	results := idx.Search(query, 1)
	if len(results) == 0 {
		return Result{}, false
	}
	if results[0].Score < idx.threshold {
		return Result{}, false
	}
	return results[0], true
}

// RemoveStudent rebuilds the index from survivors (positions whose id
// differs from studentID). A no-op if the student has no entries.
func (idx *Index) RemoveStudent(studentID int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	changed := false
	newVectors := make([][]float32, 0, len(idx.vectors))
	newIDs := make([]int64, 0, len(idx.ids))
	for i, id := range idx.ids {
		if id == studentID {
			changed = true
			continue
		}
		newVectors = append(newVectors, idx.vectors[i])
		newIDs = append(newIDs, id)
	}
	if !changed {
		return
	}
	idx.vectors = newVectors
	idx.ids = newIDs

	// The IVF bucket assignment is stale after rebuild; rebuild it too if
	// we were in IVF mode, preserving position -> student_id.
	if idx.ivf != nil {
		idx.ivf = buildIVF(idx.vectors, idx.ivf.nlist)
	}
}

func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	distinct := make(map[int64]struct{}, len(idx.ids))
	for _, id := range idx.ids {
		distinct[id] = struct{}{}
	}

	kind := "flat"
	if idx.ivf != nil {
		kind = "ivf"
	}

	return Stats{
		TotalVectors:     len(idx.vectors),
		Dimension:        idx.dimension,
		Kind:             kind,
		DistinctStudents: len(distinct),
	}
}

// Count returns the number of stored vectors without taking a Stats
// snapshot, used by callers that just need a size check.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}
