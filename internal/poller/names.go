package poller

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// NameStore persists per-device outlet name overrides, one JSON object per
// device keyed by outlet number. Overrides exist for SNMP-only devices
// whose firmware names cannot be written over the wire.
type NameStore struct {
	dir string
}

// NewNameStore creates the overrides directory if needed.
func NewNameStore(dir string) (*NameStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("poller: creating names dir: %w", err)
	}
	return &NameStore{dir: dir}, nil
}

func (s *NameStore) path(deviceID string) string {
	return filepath.Join(s.dir, "outlet_names_"+deviceID+".json")
}

// Load reads a device's overrides. A missing file yields an empty map.
func (s *NameStore) Load(deviceID string) (map[int]string, error) {
	data, err := os.ReadFile(s.path(deviceID))
	if os.IsNotExist(err) {
		return map[int]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("poller: reading outlet names: %w", err)
	}

	// JSON object keys are strings; convert back to outlet numbers.
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("poller: parsing outlet names: %w", err)
	}
	names := make(map[int]string, len(raw))
	for k, v := range raw {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("poller: bad outlet key %q in names file", k)
		}
		names[n] = v
	}
	return names, nil
}

// Save atomically replaces a device's overrides document.
func (s *NameStore) Save(deviceID string, names map[int]string) error {
	raw := make(map[string]string, len(names))
	for n, name := range names {
		raw[strconv.Itoa(n)] = name
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("poller: encoding outlet names: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "names_*.tmp")
	if err != nil {
		return fmt.Errorf("poller: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("poller: writing outlet names: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("poller: closing outlet names: %w", err)
	}
	if err := os.Rename(tmpName, s.path(deviceID)); err != nil {
		return fmt.Errorf("poller: replacing outlet names: %w", err)
	}
	return nil
}

// Delete removes a device's overrides file when the device is removed.
func (s *NameStore) Delete(deviceID string) error {
	err := os.Remove(s.path(deviceID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
