package vector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// On-disk layout: a flat float32 matrix plus an ordered path list, written
// as separate files. The pair is valid only when the matrix row count
// equals the path count; any disagreement on load resets the store to
// empty (fail-safe-empty, not fail-safe-stale).

const (
	matrixFile = "vectors.bin"
	pathsFile  = "vectors.paths.json"

	matrixMagic   = 0x4d534b56 // "MSKV"
	matrixVersion = 1
)

func (s *Store) matrixPath() string { return filepath.Join(s.dir, matrixFile) }
func (s *Store) pathsPath() string  { return filepath.Join(s.dir, pathsFile) }

// load reads the file pair into memory. Missing files mean a fresh store.
func (s *Store) load() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	matrixRaw, matErr := os.ReadFile(s.matrixPath())
	pathsRaw, pathErr := os.ReadFile(s.pathsPath())

	if os.IsNotExist(matErr) && os.IsNotExist(pathErr) {
		return nil
	}
	if matErr != nil || pathErr != nil {
		// One file present, the other unreadable: inconsistent pair
		s.logger.Warn("vector store file pair incomplete, resetting to empty",
			"matrix_err", matErr, "paths_err", pathErr)
		s.reset()
		return nil
	}

	dim, vecs, err := decodeMatrix(matrixRaw)
	if err != nil {
		s.logger.Warn("vector matrix corrupt, resetting to empty", "error", err)
		s.reset()
		return nil
	}

	var paths []string
	if err := json.Unmarshal(pathsRaw, &paths); err != nil {
		s.logger.Warn("vector path mapping corrupt, resetting to empty", "error", err)
		s.reset()
		return nil
	}

	if len(paths) != len(vecs) {
		s.logger.Warn("vector store row count disagrees with path mapping, resetting to empty",
			"rows", len(vecs), "paths", len(paths))
		s.reset()
		return nil
	}

	s.dim = dim
	s.paths = paths
	s.vecs = vecs
	s.rowOf = make(map[string]int, len(paths))
	for i, p := range paths {
		s.rowOf[p] = i
	}
	return nil
}

// reset discards in-memory state and the on-disk pair. Everything will
// re-index on the next scan, which beats silently wrong answers.
func (s *Store) reset() {
	s.dim = 0
	s.paths = nil
	s.vecs = nil
	s.rowOf = make(map[string]int)
	_ = os.Remove(s.matrixPath())
	_ = os.Remove(s.pathsPath())
}

// persist writes both files. Each is written to a temp file and renamed so
// a crash mid-write leaves at worst a stale-but-consistent pair or a
// detectable count mismatch. Caller holds the write lock.
func (s *Store) persist() error {
	if err := writeAtomic(s.matrixPath(), encodeMatrix(s.dim, s.vecs)); err != nil {
		return fmt.Errorf("writing vector matrix: %w", err)
	}

	pathsRaw, err := json.Marshal(s.paths)
	if err != nil {
		return fmt.Errorf("encoding path mapping: %w", err)
	}
	if err := writeAtomic(s.pathsPath(), pathsRaw); err != nil {
		return fmt.Errorf("writing path mapping: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// encodeMatrix serializes the matrix: magic, version, dim, rows, then
// row-major float32 values, all little-endian.
func encodeMatrix(dim int, vecs [][]float32) []byte {
	buf := make([]byte, 16+len(vecs)*dim*4)
	binary.LittleEndian.PutUint32(buf[0:], matrixMagic)
	binary.LittleEndian.PutUint32(buf[4:], matrixVersion)
	binary.LittleEndian.PutUint32(buf[8:], uint32(dim))
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(vecs)))

	off := 16
	for _, row := range vecs {
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
	}
	return buf
}

func decodeMatrix(raw []byte) (dim int, vecs [][]float32, err error) {
	if len(raw) < 16 {
		return 0, nil, fmt.Errorf("matrix header truncated (%d bytes)", len(raw))
	}
	if binary.LittleEndian.Uint32(raw[0:]) != matrixMagic {
		return 0, nil, fmt.Errorf("bad matrix magic")
	}
	if v := binary.LittleEndian.Uint32(raw[4:]); v != matrixVersion {
		return 0, nil, fmt.Errorf("unsupported matrix version %d", v)
	}

	dim = int(binary.LittleEndian.Uint32(raw[8:]))
	rows := int(binary.LittleEndian.Uint32(raw[12:]))

	want := 16 + rows*dim*4
	if len(raw) != want {
		return 0, nil, fmt.Errorf("matrix size %d does not match header (want %d)", len(raw), want)
	}

	vecs = make([][]float32, rows)
	off := 16
	for i := range vecs {
		row := make([]float32, dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
			off += 4
		}
		vecs[i] = row
	}
	return dim, vecs, nil
}
