package runstate

import (
	"errors"
	"fmt"
	"os"

	"mnemo/internal/fileutil"
)

// ErrCorrupt indicates the state file exists but cannot be parsed. It is
// distinct from an absent file so the recovery inspector can offer a
// salvage-or-delete choice instead of treating corruption as "no run".
var ErrCorrupt = errors.New("state file is corrupt")

// Store persists ExtractionState snapshots.
type Store struct {
	path string
}

// NewStore creates a state store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Save writes the state atomically.
func (s *Store) Save(state *ExtractionState) error {
	if state == nil {
		return errors.New("state required")
	}
	return fileutil.WriteJSONAtomic(s.path, state)
}

// Load reads the current state. A missing file returns (nil, nil); a
// structurally invalid file returns ErrCorrupt.
func (s *Store) Load() (*ExtractionState, error) {
	var state ExtractionState
	if err := fileutil.ReadJSON(s.path, &state); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	if state.Status == "" {
		return nil, fmt.Errorf("%w: missing status field", ErrCorrupt)
	}
	return &state, nil
}

// Clear removes the state file. Clearing an absent file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
