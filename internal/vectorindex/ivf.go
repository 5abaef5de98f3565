package vectorindex

import "math"

// ivfIndex is a minimal from-scratch IVF (inverted file) bucket index: a
// k-means partition of the vector space into nlist buckets, searched by
// probing only the nprobe closest buckets to the query. No FAISS/CGO
// binding is available in this codebase's dependency pack, so this
// achieves the same contract (nprobe-bounded candidate search, preserved
// position -> student_id mapping) rather than bit-for-bit FAISS behavior —
// called out in DESIGN.md as a deliberate simplification.
type ivfIndex struct {
	nlist    int
	nprobe   int
	centroids [][]float32
	// buckets[c] holds the positions (indices into the parent Index's
	// vectors/ids slices) assigned to centroid c.
	buckets [][]int
}

const defaultNProbe = 10

// maybeUpgradeLocked triggers the IVF upgrade once the flat index exceeds
// ivfUpgradeThreshold vectors. Must be called with idx.mu held for write.
func (idx *Index) maybeUpgradeLocked() {
	if idx.ivf != nil {
		return
	}
	if len(idx.vectors) <= ivfUpgradeThreshold {
		return
	}
	nlist := nlistFor(len(idx.vectors))
	idx.ivf = buildIVF(idx.vectors, nlist)
}

func nlistFor(n int) int {
	// A conventional rule of thumb is nlist ~= sqrt(n); clamp to a sane
	// floor so tiny collections still get multiple buckets.
	nlist := int(math.Sqrt(float64(n)))
	if nlist < 8 {
		nlist = 8
	}
	return nlist
}

// buildIVF runs a small, fixed number of k-means iterations over vectors
// (assumed already L2-normalized) and returns the resulting bucket index.
// The position -> student_id mapping is preserved because buildIVF only
// ever stores the *position* (index into vectors), never a copy of the
// vector or id.
func buildIVF(vectors [][]float32, nlist int) *ivfIndex {
	n := len(vectors)
	if n == 0 {
		return &ivfIndex{nlist: nlist, nprobe: defaultNProbe}
	}
	if nlist > n {
		nlist = n
	}

	dim := len(vectors[0])
	centroids := make([][]float32, nlist)
	for c := 0; c < nlist; c++ {
		// Deterministic seeding: stride through the dataset rather than
		// randomly sampling, so index builds are reproducible.
		src := vectors[(c*n)/nlist]
		cp := make([]float32, dim)
		copy(cp, src)
		centroids[c] = cp
	}

	const iterations = 5
	assignment := make([]int, n)

	for iter := 0; iter < iterations; iter++ {
		for i, v := range vectors {
			best, bestScore := 0, math.Inf(-1)
			for c, centroid := range centroids {
				score := dot(v, centroid)
				if score > bestScore {
					best, bestScore = c, score
				}
			}
			assignment[i] = best
		}

		sums := make([][]float64, nlist)
		counts := make([]int, nlist)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assignment[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c][d] += float64(v[d])
			}
		}
		for c := 0; c < nlist; c++ {
			if counts[c] == 0 {
				continue
			}
			newCentroid := make([]float32, dim)
			for d := 0; d < dim; d++ {
				newCentroid[d] = float32(sums[c][d] / float64(counts[c]))
			}
			centroids[c] = normalize(newCentroid)
		}
	}

	buckets := make([][]int, nlist)
	for i := range vectors {
		c := assignment[i]
		buckets[c] = append(buckets[c], i)
	}

	return &ivfIndex{
		nlist:     nlist,
		nprobe:    defaultNProbe,
		centroids: centroids,
		buckets:   buckets,
	}
}

// search probes the nprobe buckets whose centroid is closest to q, scores
// every candidate in those buckets, and returns the top-k.
func (iv *ivfIndex) search(q []float32, vectors [][]float32, ids []int64, k int) []Result {
	if len(iv.centroids) == 0 {
		return flatSearch(q, vectors, ids, k)
	}

	type centroidScore struct {
		idx   int
		score float64
	}
	cscores := make([]centroidScore, len(iv.centroids))
	for c, centroid := range iv.centroids {
		cscores[c] = centroidScore{idx: c, score: dot(q, centroid)}
	}

	nprobe := iv.nprobe
	if nprobe > len(cscores) {
		nprobe = len(cscores)
	}
	for i := 0; i < nprobe; i++ {
		maxIdx := i
		for j := i + 1; j < len(cscores); j++ {
			if cscores[j].score > cscores[maxIdx].score {
				maxIdx = j
			}
		}
		cscores[i], cscores[maxIdx] = cscores[maxIdx], cscores[i]
	}

	var candidates []Result
	for i := 0; i < nprobe; i++ {
		for _, pos := range iv.buckets[cscores[i].idx] {
			candidates = append(candidates, Result{StudentID: ids[pos], Score: dot(q, vectors[pos])})
		}
	}

	if k > len(candidates) {
		k = len(candidates)
	}
	topK(candidates, k)
	return candidates[:k]
}
