package store

import (
	"github.com/fsnotify/fsnotify"
	"github.com/penwyp/go-tracker-monitor/internal/util"
)

// Watcher reports keys whose files were changed by another process
type Watcher struct {
	store   *FileStore
	watcher *fsnotify.Watcher
	events  chan string
	done    chan struct{}
}

// Watch starts watching the store directory. Writes made through this
// store do not produce events since the cached copy already matches.
func (fs *FileStore) Watch() (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(fs.baseDir); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &Watcher{
		store:   fs,
		watcher: watcher,
		events:  make(chan string, 16),
		done:    make(chan struct{}),
	}
	go w.processEvents()
	return w, nil
}

func (w *Watcher) processEvents() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			key := keyFromPath(event.Name)
			if key == "" || !w.store.refresh(key) {
				continue
			}
			util.LogDebug("Persisted state changed externally", util.F("key", key), util.F("op", event.Op.String()))
			select {
			case w.events <- key:
			default:
				// a pending event already triggers a full reload
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			util.LogErrorf("State watch error: %v", err)
		}
	}
}

// Events returns the channel of changed keys
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Close stops watching
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
