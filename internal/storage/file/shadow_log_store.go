// Package file implements a JSONL shadow log on the local filesystem. The
// log is append-only: one JSON object per line, flushed per batch, readable
// while the engine is still writing.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

// ShadowLogStore appends shadow predictions to a JSONL file.
type ShadowLogStore struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
}

// NewShadowLogStore opens (creating if needed) the JSONL file at path in
// append mode. Parent directories are created automatically.
func NewShadowLogStore(path string) (*ShadowLogStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create shadow log dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open shadow log: %w", err)
	}

	return &ShadowLogStore{
		path: path,
		f:    f,
		w:    bufio.NewWriter(f),
	}, nil
}

// Compile-time interface check.
var _ storage.ShadowLogStore = (*ShadowLogStore)(nil)

// AppendBatch writes each prediction as one JSON line and flushes.
func (s *ShadowLogStore) AppendBatch(_ context.Context, preds []*domain.ShadowPrediction) error {
	if len(preds) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	enc := json.NewEncoder(s.w)
	for _, p := range preds {
		if p == nil {
			return storage.ErrInvalidInput
		}
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("encode shadow prediction: %w", err)
		}
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush shadow log: %w", err)
	}
	return nil
}

// Path returns the log file path.
func (s *ShadowLogStore) Path() string {
	return s.path
}

// Close flushes buffered lines and closes the file.
func (s *ShadowLogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("flush shadow log: %w", err)
	}
	return s.f.Close()
}

// ReadShadowLog loads every prediction from a JSONL file written by
// ShadowLogStore. Blank lines are skipped; a malformed line aborts the read
// with its line number.
func ReadShadowLog(path string) ([]*domain.ShadowPrediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shadow log: %w", err)
	}
	defer f.Close()

	var preds []*domain.ShadowPrediction
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var p domain.ShadowPrediction
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode shadow log line %d: %w", line, err)
		}
		preds = append(preds, &p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read shadow log: %w", err)
	}
	return preds, nil
}
