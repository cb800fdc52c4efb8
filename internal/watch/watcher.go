// Package watch reports changes to documents and link rules under the library
// sources.
package watch

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MimeLyc/term-linker/pkg/file"
	"github.com/MimeLyc/term-linker/pkg/log"
)

const rulesPrefix = "link_rules"

// Watcher calls back once a burst of file events under the watched roots has
// settled.
type Watcher struct {
	fw         *fsnotify.Watcher
	extensions []string
	ignore     []string
	quiet      time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	done    chan struct{}
	stopped bool
}

type Option func(*Watcher)

// WithExtensions limits document events to files with these extensions.
// Rules files always count.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.extensions = make([]string, 0, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.extensions = append(w.extensions, ext)
		}
	}
}

// WithIgnore drops events below the given directories, e.g. an output
// directory inside a source.
func WithIgnore(dirs ...string) Option {
	return func(w *Watcher) {
		for _, dir := range dirs {
			if dir != "" {
				w.ignore = append(w.ignore, filepath.Clean(dir))
			}
		}
	}
}

// WithQuietPeriod sets how long events must stop before the callback fires.
func WithQuietPeriod(d time.Duration) Option {
	return func(w *Watcher) {
		w.quiet = d
	}
}

func NewWatcher(opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fw:      fw,
		quiet:   2 * time.Second,
		pending: make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch adds every directory under roots and starts delivering batches of
// changed paths to onChange, sorted. onChange runs on its own goroutine.
func (w *Watcher) Watch(roots []string, onChange func(paths []string)) error {
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			return err
		}
	}

	go w.loop(onChange)
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are left out
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (isHidden(d.Name()) || w.ignored(path)) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}

func (w *Watcher) loop(onChange func(paths []string)) {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(event, onChange)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn("File watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event, onChange func(paths []string)) {
	path := event.Name
	if w.ignored(path) || isHidden(filepath.Base(path)) {
		return
	}

	if event.Has(fsnotify.Create) {
		if file.IsDir(path) {
			if err := w.addTree(path); err != nil {
				log.Warn("Failed to watch %s: %v", path, err)
			}
			return
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !w.relevant(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.quiet, func() { w.flush(onChange) })
}

func (w *Watcher) flush(onChange func(paths []string)) {
	w.mu.Lock()
	if w.stopped || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	slices.Sort(paths)
	onChange(paths)
}

func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, rulesPrefix) && strings.HasSuffix(base, ".json") {
		return true
	}
	if len(w.extensions) == 0 {
		return true
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(base)))
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if file.IsWithin(dir, path) {
			return true
		}
	}
	return false
}

// Stop ends watching. No new batch starts after Stop returns. Safe to call
// more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	return w.fw.Close()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
