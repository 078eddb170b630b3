// Package related suggests citations similar to a given text. Nodes are
// embedded locally as hashed character-trigram frequency vectors, so no
// external model is involved, and indexed in HNSW for nearest-neighbour
// lookup. The index persists through hackpadfs like the tree itself.
package related

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/fogfish/hnsw"
	"github.com/fogfish/hnsw/vector"
	"github.com/hack-pad/hackpadfs"
	kvector "github.com/kshard/vector"
)

// Dims is the embedding width. Trigram counts are folded into this many
// buckets and L2-normalized, which makes cosine distance meaningful.
const Dims = 128

// Embed maps text to its hashed-trigram vector. Short or empty text
// yields the zero vector.
func Embed(text string) []float32 {
	vec := make([]float32, Dims)
	normalized := strings.ToLower(strings.TrimSpace(text))
	if len(normalized) < 3 {
		return vec
	}

	for i := 0; i+3 <= len(normalized); i++ {
		h := fnv.New32a()
		h.Write([]byte(normalized[i : i+3]))
		vec[h.Sum32()%Dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

// Index manages the HNSW index and its persistence.
type Index struct {
	hnsw *hnsw.HNSW[vector.VF32]
	fs   hackpadfs.FS
	path string
	mu   sync.RWMutex
}

// NewIndex creates a similarity index backed by path on the given FS.
// If a valid index exists at path, it loads it; otherwise it
// initializes a fresh one.
func NewIndex(fsys hackpadfs.FS, path string) (*Index, error) {
	idx := &Index{
		fs:   fsys,
		path: path,
	}

	if err := idx.Load(); err != nil {
		idx.hnsw = hnsw.New[vector.VF32](vector.SurfaceVF32(kvector.Cosine()))
	}

	return idx, nil
}

// Add embeds text and inserts it under the node id. Node ids are small
// monotonic counters, so the uint32 key space is never a constraint.
func (x *Index) Add(id uint32, text string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.hnsw == nil {
		return fmt.Errorf("related: index not initialized")
	}
	x.hnsw.Insert(vector.VF32{Key: id, Vec: Embed(text)})
	return nil
}

// MoreLikeThis returns up to k node ids nearest to the given text.
func (x *Index) MoreLikeThis(text string, k int) ([]uint32, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.hnsw == nil {
		return nil, fmt.Errorf("related: index not initialized")
	}
	if x.hnsw.Size() == 0 || k <= 0 {
		return nil, nil
	}

	ef := k * 2
	if ef < 100 {
		ef = 100
	}
	results := x.hnsw.Search(vector.VF32{Vec: Embed(text)}, k, ef)

	ids := make([]uint32, len(results))
	for i, r := range results {
		ids[i] = r.Key
	}
	return ids, nil
}

// Size returns the number of indexed citations.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.hnsw == nil {
		return 0
	}
	return x.hnsw.Size()
}

// Save persists the index to the FS.
func (x *Index) Save() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.hnsw == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(x.hnsw.Nodes()); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := hackpadfs.WriteFullFile(x.fs, x.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

// Load reads the index from the FS.
func (x *Index) Load() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	content, err := hackpadfs.ReadFile(x.fs, x.path)
	if err != nil {
		return err
	}

	var nodes hnsw.Nodes[vector.VF32]
	if err := gob.NewDecoder(bytes.NewReader(content)).Decode(&nodes); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}

	x.hnsw = hnsw.FromNodes[vector.VF32](
		vector.SurfaceVF32(kvector.Cosine()),
		nodes,
	)
	return nil
}
