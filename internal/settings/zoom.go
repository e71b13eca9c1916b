package settings

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
)

const (
	zoomFileName = "zoom.json"

	// DefaultZoom is used when no zoom file exists yet.
	DefaultZoom = 1.0
	// MinZoom and MaxZoom bound the factor on both read and write, so a
	// hand-edited file cannot push the window to an unusable scale.
	MinZoom = 0.5
	MaxZoom = 3.0
)

type zoomFile struct {
	Factor float64 `json:"factor"`
}

func (s *Store) zoomPath() string {
	return filepath.Join(s.dir, zoomFileName)
}

// Zoom returns the persisted zoom factor, clamped to the allowed range.
func (s *Store) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.zoomPath())
	if err != nil {
		return DefaultZoom
	}
	var zf zoomFile
	if err := json.Unmarshal(data, &zf); err != nil {
		log.Printf("Zoom file '%s' is corrupt: %v. Using default zoom.", s.zoomPath(), err)
		return DefaultZoom
	}
	return ClampZoom(zf.Factor)
}

// SetZoom clamps and persists the zoom factor atomically.
func (s *Store) SetZoom(factor float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(zoomFile{Factor: ClampZoom(factor)})
	if err != nil {
		return err
	}
	return writeFileAtomic(s.zoomPath(), data, 0o600)
}

// ClampZoom forces factor into [MinZoom, MaxZoom]. A non-finite or zero value
// falls back to the default.
func ClampZoom(factor float64) float64 {
	if factor != factor || factor == 0 { // NaN or zero
		return DefaultZoom
	}
	if factor < MinZoom {
		return MinZoom
	}
	if factor > MaxZoom {
		return MaxZoom
	}
	return factor
}
