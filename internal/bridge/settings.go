package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrInvalidSettings wraps runtime settings validation failures.
var ErrInvalidSettings = errors.New("bridge: invalid settings")

const settingsFile = "bridge_settings.json"

// Settings are the runtime knobs adjustable over HTTP. They override the
// config file values and persist across restarts.
type Settings struct {
	PollIntervalMs int `json:"poll_interval_ms"`
	RetentionDays  int `json:"retention_days"`
}

// Validate applies the same bounds as the config file.
func (s Settings) Validate() error {
	if s.PollIntervalMs < 1000 {
		return fmt.Errorf("%w: poll_interval_ms must be at least 1000", ErrInvalidSettings)
	}
	if s.RetentionDays < 1 {
		return fmt.Errorf("%w: retention_days must be at least 1", ErrInvalidSettings)
	}
	return nil
}

// loadSettings reads the persisted overrides. Missing file means no
// overrides.
func loadSettings(dataDir string) (*Settings, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, settingsFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bridge: reading settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("bridge: parsing settings: %w", err)
	}
	return &s, nil
}

func saveSettings(dataDir string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("bridge: encoding settings: %w", err)
	}
	tmp, err := os.CreateTemp(dataDir, "settings_*.tmp")
	if err != nil {
		return fmt.Errorf("bridge: creating temp settings: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("bridge: writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("bridge: closing settings: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dataDir, settingsFile)); err != nil {
		return fmt.Errorf("bridge: replacing settings: %w", err)
	}
	return nil
}

// Settings returns the effective runtime settings.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Settings{
		PollIntervalMs: int(m.pollInterval / time.Millisecond),
		RetentionDays:  m.retentionDays,
	}
}

// UpdateSettings validates, persists and applies new runtime settings.
// The poll interval applies to pollers started afterwards; running pollers
// keep their cycle until restarted.
func (m *Manager) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := saveSettings(m.cfg.Bridge.DataDir, s); err != nil {
		return err
	}

	m.mu.Lock()
	m.pollInterval = time.Duration(s.PollIntervalMs) * time.Millisecond
	m.retentionDays = s.RetentionDays
	m.mu.Unlock()

	if m.history != nil {
		m.history.SetRetention(s.RetentionDays)
	}
	m.logger.Info("settings updated",
		"poll_interval_ms", s.PollIntervalMs, "retention_days", s.RetentionDays)
	return nil
}
