package vector

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
)

var (
	// ErrDimensionMismatch is returned when an upserted vector does not
	// match the store's fixed dimension
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Result is a single nearest-neighbor hit. Score is cosine similarity
// (1 - cosine distance), higher is better.
type Result struct {
	Path  string
	Score float64
}

// Store is a durable nearest-neighbor index over per-path embeddings.
// Vectors live in a flat matrix persisted alongside an ordered path list;
// the two files are kept mutually consistent by row count. Every mutation
// rewrites both files and rebuilds the normalized in-memory index under
// the write lock, so queries never observe a half-rebuilt structure.
//
// Search is brute-force cosine over the whole matrix. That is fine for a
// personal corpus; past roughly 50k vectors an ANN index is the answer,
// not this store.
type Store struct {
	mu sync.RWMutex

	dir         string
	dim         int // 0 until the first vector fixes it
	allowResize bool
	logger      *slog.Logger

	paths  []string
	rowOf  map[string]int
	vecs   [][]float32
	normed [][]float32 // unit rows, rebuilt after each mutation
}

// Option configures a Store
type Option func(*Store)

// WithAllowResize enables the pad/truncate compatibility shim for loading
// historical data written with a different embedding dimension. Routine
// use keeps this off: mixed dimensions are a hard error.
func WithAllowResize() Option {
	return func(s *Store) { s.allowResize = true }
}

// Open loads (or creates) a vector store in dir. If the on-disk matrix and
// path mapping disagree, the store resets to empty rather than serve an
// inconsistent index.
func Open(dir string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		dir:    dir,
		logger: logger,
		rowOf:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load vector store: %w", err)
	}
	s.rebuild()
	return s, nil
}

// Len returns the number of stored vectors
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// Dimension returns the store's fixed dimension, or 0 if empty
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Upsert inserts or replaces the vector for path. Vectors of the wrong
// dimension are rejected with ErrDimensionMismatch unless the resize shim
// is enabled, in which case all rows are zero-padded or truncated to the
// larger dimension.
func (s *Store) Upsert(path string, vec []float32) error {
	if path == "" || len(vec) == 0 {
		return fmt.Errorf("upsert: path and non-empty vector required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = len(vec)
	}

	if len(vec) != s.dim {
		if !s.allowResize {
			s.logger.Warn("rejecting vector with wrong dimension",
				"path", path, "got", len(vec), "want", s.dim)
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), s.dim)
		}
		vec = s.resizeAll(vec)
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)

	if row, ok := s.rowOf[path]; ok {
		s.vecs[row] = stored
	} else {
		s.rowOf[path] = len(s.paths)
		s.paths = append(s.paths, path)
		s.vecs = append(s.vecs, stored)
	}

	if err := s.persist(); err != nil {
		return err
	}
	s.rebuild()
	return nil
}

// Delete removes the vector for path. Unknown paths are a no-op. Row
// positions are reassigned after removal so no dangling indices remain.
func (s *Store) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rowOf[path]
	if !ok {
		return nil
	}

	s.paths = append(s.paths[:row], s.paths[row+1:]...)
	s.vecs = append(s.vecs[:row], s.vecs[row+1:]...)

	s.rowOf = make(map[string]int, len(s.paths))
	for i, p := range s.paths {
		s.rowOf[p] = i
	}
	if len(s.paths) == 0 {
		s.dim = 0
	}

	if err := s.persist(); err != nil {
		return err
	}
	s.rebuild()
	return nil
}

// Query returns up to topK nearest vectors by cosine similarity, ties
// broken by insertion order. An empty store yields an empty result, never
// an error; topK is clamped to the number of stored vectors.
func (s *Store) Query(vec []float32, topK int) []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.paths) == 0 || topK <= 0 {
		return []Result{}
	}
	if topK > len(s.paths) {
		topK = len(s.paths)
	}

	q := normalize(vec, s.dim)

	results := make([]Result, len(s.paths))
	for i, row := range s.normed {
		results[i] = Result{Path: s.paths[i], Score: dot(q, row)}
	}

	// Stable keeps insertion order for equal scores
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results[:topK]
}

// resizeAll pads or truncates every stored row and the incoming vector to
// the larger dimension. Compatibility shim for historical data only.
func (s *Store) resizeAll(vec []float32) []float32 {
	newDim := s.dim
	if len(vec) > newDim {
		newDim = len(vec)
	}
	s.logger.Warn("resizing vector store", "from", s.dim, "to", newDim)

	for i, row := range s.vecs {
		s.vecs[i] = resize(row, newDim)
	}
	s.dim = newDim
	return resize(vec, newDim)
}

func resize(vec []float32, dim int) []float32 {
	out := make([]float32, dim)
	copy(out, vec)
	return out
}

// rebuild recomputes the normalized matrix. Caller holds the write lock
// (or is still constructing the store).
func (s *Store) rebuild() {
	s.normed = make([][]float32, len(s.vecs))
	for i, row := range s.vecs {
		s.normed[i] = normalize(row, s.dim)
	}
}

// normalize returns a unit-length copy of vec, padded or truncated to dim.
// A zero vector normalizes to itself.
func normalize(vec []float32, dim int) []float32 {
	out := resize(vec, dim)

	var sum float64
	for _, v := range out {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return out
	}

	norm := float32(math.Sqrt(sum))
	for i := range out {
		out[i] /= norm
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
