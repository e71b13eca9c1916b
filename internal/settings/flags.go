package settings

import (
	"os"
	"path/filepath"
)

// One-shot flags are presence-only marker files. They record events that must
// happen at most once per installation (first tray hint, autostart setup).
const (
	FlagAutostartInitialized = "autostart_initialized"
	FlagTrayHintShown        = "tray_hint_shown"
)

func (s *Store) flagPath(name string) string {
	return filepath.Join(s.dir, name+".flag")
}

// FlagSet reports whether the named flag file exists.
func (s *Store) FlagSet(name string) bool {
	_, err := os.Stat(s.flagPath(name))
	return err == nil
}

// MarkFlag creates the named flag file with exclusive-create semantics and
// reports whether this call was the one that created it. Two racing callers
// cannot both observe first=true.
func (s *Store) MarkFlag(name string) (first bool, err error) {
	f, err := os.OpenFile(s.flagPath(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	f.Close()
	return true, nil
}
