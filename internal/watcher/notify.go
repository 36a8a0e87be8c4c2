package watcher

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// addNotifyPaths registers watch points: directories directly, single files
// via their parent directory (fsnotify delivers per-file events either way).
func (m *Monitor) addNotifyPaths(fsw *fsnotify.Watcher) error {
	added := make(map[string]bool)
	for _, p := range m.cfg.WatchPaths {
		info, err := os.Stat(p)
		if err != nil {
			// Missing watch paths are a per-path condition, not fatal
			// to the monitor.
			continue
		}
		dir := p
		if !info.IsDir() {
			dir = filepath.Dir(p)
		}
		if added[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			return err
		}
		added[dir] = true
	}
	return nil
}

// notifyLoop drains fsnotify events until stopped. Create and write signals
// become change events; everything else is ignored.
func (m *Monitor) notifyLoop(fsw *fsnotify.Watcher, done <-chan struct{}, loopDone chan<- struct{}) {
	defer close(loopDone)

	for {
		select {
		case <-done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Create):
				m.emit(ev.Name, "created")
			case ev.Op.Has(fsnotify.Write):
				m.emit(ev.Name, "modified")
			}
		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
			// Transient notification errors are dropped; the next
			// signal for the path will still be seen.
		}
	}
}
