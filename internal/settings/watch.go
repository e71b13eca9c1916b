package settings

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch observes the settings blob on disk and invokes onChange whenever it is
// written or replaced, so an externally edited file takes effect without a
// restart. The returned stop function releases the watcher.
func (s *Store) Watch(onChange func()) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: the atomic rename replaces the inode.
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Base(s.Path())
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					// The Store's own saves land here too; only outside
					// edits propagate.
					if !s.externallyChanged() {
						continue
					}
					log.Printf("Settings file changed on disk (%s), refreshing.", ev.Op)
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Settings watcher error: %v", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
