package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

const (
	vectorsFile = "vectors.bin"
	idsFile     = "ids.bin"

	// normEpsilon keeps normalization defined for all-zero vectors.
	normEpsilon = 1e-12
)

// Hit is one nearest-neighbor result.
type Hit struct {
	ItemID     int64
	Similarity float64
}

// Index is an exact cosine-similarity search structure over a fixed set of
// vectors. Rows are stored L2-normalized, so similarity is the plain inner
// product. Derived, disposable state: always reconstructible from stored
// embeddings.
type Index struct {
	dim     int
	vectors [][]float32
	ids     []int64
}

// Build constructs an index over the given vectors and their parallel item
// ids. Returns (nil, nil) for empty input: callers treat that as "no index
// available", not an error.
func Build(vectors [][]float32, ids []int64) (*Index, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	if len(vectors) != len(ids) {
		return nil, fmt.Errorf("vectors/ids length mismatch: %d vs %d", len(vectors), len(ids))
	}

	dim := len(vectors[0])
	rows := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dim %d, want %d", i, len(v), dim)
		}
		rows[i] = normalize(v)
	}

	idsCopy := make([]int64, len(ids))
	copy(idsCopy, ids)

	return &Index{dim: dim, vectors: rows, ids: idsCopy}, nil
}

// Len reports the number of indexed vectors.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.vectors)
}

// Search returns up to k (item id, similarity) pairs sorted by descending
// similarity. A nil index yields no hits.
func (ix *Index) Search(query []float32, k int) []Hit {
	if ix == nil || len(ix.vectors) == 0 || k <= 0 {
		return nil
	}

	q := normalize(query)

	hits := make([]Hit, 0, len(ix.vectors))
	for i, row := range ix.vectors {
		hits = append(hits, Hit{ItemID: ix.ids[i], Similarity: dot(row, q)})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Similarity > hits[b].Similarity
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Save persists the index as a paired artifact: a vector blob and a parallel
// id list. Both files are written; validity is both-or-neither.
func Save(ix *Index, dir string) error {
	if ix == nil {
		return fmt.Errorf("cannot save nil index")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, vectorsFile), encodeVectors(ix), 0o644); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, idsFile), encodeIDs(ix.ids), 0o644); err != nil {
		return fmt.Errorf("write ids: %w", err)
	}
	return nil
}

// Load restores a previously saved index. Returns (nil, nil) when either
// artifact is absent: "not yet built" is not an error.
func Load(dir string) (*Index, error) {
	vecRaw, err := os.ReadFile(filepath.Join(dir, vectorsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read vectors: %w", err)
	}

	idsRaw, err := os.ReadFile(filepath.Join(dir, idsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ids: %w", err)
	}

	ix, err := decodeVectors(vecRaw)
	if err != nil {
		return nil, err
	}

	ix.ids, err = decodeIDs(idsRaw)
	if err != nil {
		return nil, err
	}
	if len(ix.ids) != len(ix.vectors) {
		return nil, fmt.Errorf("index artifacts out of sync: %d vectors, %d ids", len(ix.vectors), len(ix.ids))
	}

	return ix, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + normEpsilon

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// encodeVectors lays out: uint32 dim, uint32 count, then count*dim float32
// values, all little-endian.
func encodeVectors(ix *Index) []byte {
	buf := make([]byte, 8+len(ix.vectors)*ix.dim*4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(ix.dim))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(ix.vectors)))

	off := 8
	for _, row := range ix.vectors {
		for _, x := range row {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(x))
			off += 4
		}
	}
	return buf
}

func decodeVectors(raw []byte) (*Index, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("vector artifact truncated: %d bytes", len(raw))
	}
	dim := int(binary.LittleEndian.Uint32(raw[0:]))
	count := int(binary.LittleEndian.Uint32(raw[4:]))
	if dim <= 0 || count <= 0 || len(raw) != 8+count*dim*4 {
		return nil, fmt.Errorf("vector artifact corrupt: dim=%d count=%d size=%d", dim, count, len(raw))
	}

	vectors := make([][]float32, count)
	off := 8
	for i := range vectors {
		row := make([]float32, dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
			off += 4
		}
		vectors[i] = row
	}

	return &Index{dim: dim, vectors: vectors}, nil
}

func encodeIDs(ids []int64) []byte {
	buf := make([]byte, len(ids)*8)
	for i, id := range ids {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(id))
	}
	return buf
}

func decodeIDs(raw []byte) ([]int64, error) {
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("id artifact corrupt: %d bytes", len(raw))
	}
	ids := make([]int64, len(raw)/8)
	for i := range ids {
		ids[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return ids, nil
}
