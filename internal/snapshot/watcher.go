package snapshot

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is a reload of the watched snapshot. Err is set when the file
// was removed or no longer parses.
type Change struct {
	Path   string
	Result *Result
	Err    error
}

// Watcher reloads a snapshot file whenever it changes on disk. The
// containing directory is watched so editors that replace the file on
// save are still seen.
type Watcher struct {
	Path    string
	Changes <-chan Change

	changes  chan Change
	stop     chan struct{}
	done     chan struct{}
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the snapshot at path.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan Change, 4)
	return &Watcher{
		Path:     abs,
		Changes:  ch,
		changes:  ch,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		debounce: 150 * time.Millisecond,
		watcher:  fw,
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.Path)); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop ends watching and closes Changes.
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	var pending time.Time
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.Path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending = time.Now()
			}

		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= w.debounce {
				pending = time.Time{}
				if !w.emit() {
					return
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are transient; keep going.
		}
	}
}

// emit reloads the snapshot and delivers it. It returns false once the
// watcher is stopping.
func (w *Watcher) emit() bool {
	res, err := Load(w.Path)
	select {
	case w.changes <- Change{Path: w.Path, Result: res, Err: err}:
		return true
	case <-w.stop:
		return false
	}
}
