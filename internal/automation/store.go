package automation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists rule documents, one JSON file per device, written with
// the temp-file-and-rename dance so a crash never leaves a torn document.
type Store struct {
	dir string
}

// NewStore creates the rules directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("automation: creating rules dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(deviceID string) string {
	return filepath.Join(s.dir, "rules_"+deviceID+".json")
}

// Load reads a device's rules. A missing file yields an empty set.
func (s *Store) Load(deviceID string) ([]*Rule, error) {
	data, err := os.ReadFile(s.path(deviceID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("automation: reading rules: %w", err)
	}

	var rules []*Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("automation: parsing rules: %w", err)
	}
	return rules, nil
}

// Save atomically replaces a device's rules document.
func (s *Store) Save(deviceID string, rules []Rule) error {
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("automation: encoding rules: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "rules_*.tmp")
	if err != nil {
		return fmt.Errorf("automation: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("automation: writing rules: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("automation: syncing rules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("automation: closing rules: %w", err)
	}
	if err := os.Rename(tmpName, s.path(deviceID)); err != nil {
		return fmt.Errorf("automation: replacing rules: %w", err)
	}
	return nil
}

// Delete removes a device's rules file, used when the device is removed
// from the bridge.
func (s *Store) Delete(deviceID string) error {
	err := os.Remove(s.path(deviceID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
