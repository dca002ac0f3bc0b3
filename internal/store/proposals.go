// Package store persists analyzed governance proposals to a flat JSON file.
// The file is read fully, appended in memory and rewritten through a
// temporary file plus rename so a crash mid-write never corrupts it.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Record is one analyzed proposal.
type Record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	State       string `json:"state"`
	Space       string `json:"space"`
	Analysis    string `json:"analysis"`
	ProcessedAt int64  `json:"processed_at"`
}

// ProposalStore is a single-writer, full-file JSON collection keyed by
// proposal id.
type ProposalStore struct {
	path    string
	records []Record
	ids     map[string]struct{}
}

// Open loads the store from path, creating an empty file when missing.
func Open(path string) (*ProposalStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &ProposalStore{path: path, ids: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.flush(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read proposal store: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.records); err != nil {
			return nil, fmt.Errorf("decode proposal store %s: %w", path, err)
		}
	}
	for _, r := range s.records {
		s.ids[r.ID] = struct{}{}
	}
	return s, nil
}

// Has reports whether a proposal id is already stored.
func (s *ProposalStore) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Append adds rec and rewrites the file. Appending an id that is already
// present is a no-op, so duplicate analyses never accumulate.
func (s *ProposalStore) Append(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("proposal record without id")
	}
	if s.Has(rec.ID) {
		return nil
	}
	s.records = append(s.records, rec)
	s.ids[rec.ID] = struct{}{}
	return s.flush()
}

// All returns a copy of the stored records in insertion order.
func (s *ProposalStore) All() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of stored records.
func (s *ProposalStore) Len() int { return len(s.records) }

// FindAnalysis returns analyses whose text contains substr,
// case-insensitively, joined by a separator line.
func (s *ProposalStore) FindAnalysis(substr string) string {
	needle := strings.ToLower(substr)
	var found []string
	for _, r := range s.records {
		if strings.Contains(strings.ToLower(r.Analysis), needle) {
			found = append(found, r.Analysis)
		}
	}
	return strings.Join(found, "\n\n---\n\n")
}

// flush rewrites the whole file atomically: write a sibling temp file,
// then rename over the target.
func (s *ProposalStore) flush() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode proposal store: %w", err)
	}
	if s.records == nil {
		data = []byte("[]")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".proposals-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace proposal store: %w", err)
	}
	return nil
}
