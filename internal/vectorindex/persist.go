package vectorindex

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log"
	"os"
)

const (
	blobMagic   uint32 = 0x43505649 // "CPVI"
	blobVersion uint32 = 1
)

// Save persists the vector matrix (indexPath) and the parallel id map
// (idMapPath, via encoding/gob — the idiomatic Go analogue of a pickled
// id-list sidecar). Both are encoded before either file is touched, and
// each file is replaced by writing a temp file and renaming it into place,
// so neither file is ever half-written. The two renames are separate: if
// writing the id map fails after the blob was replaced, the new blob is
// left beside the previous id map.
func (idx *Index) Save(indexPath, idMapPath string) error {
	idx.mu.RLock()
	vectors := make([][]float32, len(idx.vectors))
	copy(vectors, idx.vectors)
	ids := make([]int64, len(idx.ids))
	copy(ids, idx.ids)
	dim := idx.dimension
	idx.mu.RUnlock()

	var blobBuf bytes.Buffer
	header := []uint32{blobMagic, blobVersion, uint32(len(vectors)), uint32(dim)}
	for _, h := range header {
		if err := binary.Write(&blobBuf, binary.LittleEndian, h); err != nil {
			return fmt.Errorf("vectorindex: encode header: %w", err)
		}
	}
	for _, v := range vectors {
		if err := binary.Write(&blobBuf, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("vectorindex: encode vector: %w", err)
		}
	}

	var idMapBuf bytes.Buffer
	if err := gob.NewEncoder(&idMapBuf).Encode(ids); err != nil {
		return fmt.Errorf("vectorindex: encode id map: %w", err)
	}

	if err := writeAtomic(indexPath, blobBuf.Bytes()); err != nil {
		return fmt.Errorf("vectorindex: write index blob: %w", err)
	}
	if err := writeAtomic(idMapPath, idMapBuf.Bytes()); err != nil {
		return fmt.Errorf("vectorindex: write id map: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads the two companion files back into a new Index. On any
// mismatch or corruption it fails closed: logs a warning and returns a
// fresh empty index rather than propagating a partially-valid one, per
// spec's load-failure policy.
func Load(indexPath, idMapPath string, dimension int, threshold float64) *Index {
	idx, err := loadStrict(indexPath, idMapPath, dimension, threshold)
	if err != nil {
		log.Printf("[vectorindex] load failed (%v), starting with an empty index", err)
		return New(dimension, threshold)
	}
	return idx
}

func loadStrict(indexPath, idMapPath string, dimension int, threshold float64) (*Index, error) {
	blobData, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, err
	}
	idMapData, err := os.ReadFile(idMapPath)
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(blobData)
	var magic, version, count, dim uint32
	for _, target := range []*uint32{&magic, &version, &count, &dim} {
		if err := binary.Read(r, binary.LittleEndian, target); err != nil {
			return nil, fmt.Errorf("truncated header: %w", err)
		}
	}
	if magic != blobMagic {
		return nil, fmt.Errorf("bad magic %x", magic)
	}
	if version != blobVersion {
		return nil, fmt.Errorf("unsupported version %d", version)
	}
	if int(dim) != dimension {
		return nil, fmt.Errorf("dimension mismatch: file has %d, expected %d", dim, dimension)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("truncated vector %d: %w", i, err)
		}
		vectors[i] = v
	}

	var ids []int64
	if err := gob.NewDecoder(bytes.NewReader(idMapData)).Decode(&ids); err != nil {
		return nil, fmt.Errorf("decode id map: %w", err)
	}
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("position_count (%d) != id_map_length (%d)", len(vectors), len(ids))
	}

	idx := New(dimension, threshold)
	idx.vectors = vectors
	idx.ids = ids
	idx.maybeUpgradeLocked()
	return idx, nil
}
