package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mnemo/internal/fileutil"
)

// FileVersion is the registry file format version.
const FileVersion = "1"

// ErrCorrupt indicates the registry file exists but cannot be parsed.
// Callers must be able to distinguish this from an empty pending set.
var ErrCorrupt = errors.New("registry file is corrupt")

// TranscriptRecord describes one known transcript.
type TranscriptRecord struct {
	ID                string     `json:"id"`
	Path              string     `json:"path"`
	CreatedAt         time.Time  `json:"created_at"`
	Processed         bool       `json:"processed"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty"`
	MemoriesExtracted int        `json:"memories_extracted"`
}

type registryFile struct {
	Version     string             `json:"version"`
	Transcripts []TranscriptRecord `json:"transcripts"`
}

// Store persists transcript records in a JSON registry file.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore creates a registry store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

func (s *Store) load() (*registryFile, error) {
	var file registryFile
	if err := fileutil.ReadJSON(s.path, &file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &registryFile{Version: FileVersion}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	if file.Version == "" {
		return nil, fmt.Errorf("%w: missing version field", ErrCorrupt)
	}
	return &file, nil
}

func (s *Store) save(file *registryFile) error {
	file.Version = FileVersion
	return fileutil.WriteJSONAtomic(s.path, file)
}

// List returns all records in registration order.
func (s *Store) List() ([]TranscriptRecord, error) {
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	return file.Transcripts, nil
}

// ListPending returns unprocessed records in registration order, so the
// reprocessing order is deterministic across runs.
func (s *Store) ListPending() ([]TranscriptRecord, error) {
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	pending := make([]TranscriptRecord, 0, len(file.Transcripts))
	for _, record := range file.Transcripts {
		if !record.Processed {
			pending = append(pending, record)
		}
	}
	return pending, nil
}

// Register adds a transcript if its id is not already present. It reports
// whether a new record was created.
func (s *Store) Register(id, path string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, errors.New("transcript id required")
	}
	file, err := s.load()
	if err != nil {
		return false, err
	}
	for _, record := range file.Transcripts {
		if record.ID == id {
			return false, nil
		}
	}
	file.Transcripts = append(file.Transcripts, TranscriptRecord{
		ID:        id,
		Path:      path,
		CreatedAt: s.now().UTC(),
	})
	if err := s.save(file); err != nil {
		return false, err
	}
	return true, nil
}

// MarkProcessed flips a record's processed flag and stores the memory count.
// It is idempotent: repeat calls for an already-processed id are no-ops.
func (s *Store) MarkProcessed(id string, memoryCount int) error {
	file, err := s.load()
	if err != nil {
		return err
	}
	for i := range file.Transcripts {
		if file.Transcripts[i].ID != id {
			continue
		}
		if file.Transcripts[i].Processed {
			return nil
		}
		now := s.now().UTC()
		file.Transcripts[i].Processed = true
		file.Transcripts[i].ProcessedAt = &now
		file.Transcripts[i].MemoriesExtracted = memoryCount
		return s.save(file)
	}
	return fmt.Errorf("transcript %s not registered", id)
}

// Scan registers every .jsonl file under dir that is not yet known. Files are
// visited in name order so registration order is stable. It returns the
// number of newly registered transcripts.
func (s *Store) Scan(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read transcripts directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	added := 0
	for _, name := range names {
		path := filepath.Join(dir, name)
		id := strings.TrimSuffix(name, ".jsonl")
		created, err := s.Register(id, path)
		if err != nil {
			return added, err
		}
		if created {
			added++
		}
	}
	return added, nil
}
