package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/domain/model"
)

// FileStore is the durable local archive: one JSON document holding
// every wallet's record, keyed by normalized address. Survives
// disconnects and remote-store outages.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records map[string]*model.Record
}

// NewFileStore loads the archive at path, creating an empty one when
// the file does not exist yet.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		records: make(map[string]*model.Record),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger archive: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("parse ledger archive %s: %w", path, err)
	}
	return s, nil
}

// Get returns the record for a normalized address, or nil when the
// wallet has never checked in.
func (s *FileStore) Get(ctx context.Context, address string) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[address]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Put upserts a record and flushes the archive. The write goes through
// a temp file and rename so a crash never truncates the archive.
func (s *FileStore) Put(ctx context.Context, rec *model.Record) error {
	if rec == nil || rec.Address == "" {
		return fmt.Errorf("ledger record requires an address")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.Address] = &cp
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger archive: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write ledger archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close ledger temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace ledger archive: %w", err)
	}
	return nil
}
