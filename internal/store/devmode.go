package store

import "time"

// DevMode is the persisted shape of dev-mode.json: an owner-only override
// that relaxes auto-approval gating during active development.
type DevMode struct {
	Enabled   bool      `json:"enabled"`
	EnabledBy string    `json:"enabledBy,omitempty"`
	EnabledAt time.Time `json:"enabledAt,omitempty"`
}

// DevModeStore persists dev-mode.json.
type DevModeStore struct {
	layout Layout
}

// NewDevModeStore constructs a DevModeStore bound to an opened Store.
func NewDevModeStore(s *Store) *DevModeStore {
	return &DevModeStore{layout: s.Layout}
}

// Load reads dev-mode.json, defaulting to disabled if absent.
func (d *DevModeStore) Load() (DevMode, error) {
	var mode DevMode
	if err := readJSON(d.layout.DevMode, &mode); err != nil {
		return DevMode{}, err
	}
	return mode, nil
}

// Enable turns on dev mode, recording who enabled it and when.
func (d *DevModeStore) Enable(enabledBy string, now time.Time) error {
	return writeJSONAtomic(d.layout.DevMode, DevMode{
		Enabled:   true,
		EnabledBy: enabledBy,
		EnabledAt: now,
	})
}

// Disable turns off dev mode.
func (d *DevModeStore) Disable() error {
	return writeJSONAtomic(d.layout.DevMode, DevMode{Enabled: false})
}
