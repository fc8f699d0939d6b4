// Package filesystem watches a drop folder and reports the text documents
// that appear, change or disappear in it.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/webrage/internal/logger"
)

// DefaultExtensions are the file types ingested when none are given.
var DefaultExtensions = []string{".txt", ".md"}

// ChangeType identifies what happened to a file.
type ChangeType int

// Change types.
const (
	ChangeCreated ChangeType = iota
	ChangeUpdated
	ChangeDeleted
)

// String returns the change type name.
func (t ChangeType) String() string {
	switch t {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is a single file event.
type Change struct {
	Type ChangeType
	Path string
}

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watcher closed")

// Watcher reports changes to eligible files under a root directory.
// Hidden files and directories are skipped.
type Watcher struct {
	root       string
	extensions map[string]bool

	mu       sync.Mutex
	closed   bool
	watchers []*fsnotify.Watcher
}

// New creates a watcher for root. Extensions default to DefaultExtensions.
func New(root string, extensions ...string) *Watcher {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}
	return &Watcher{root: filepath.Clean(root), extensions: exts}
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Scan returns every eligible file currently under root, sorted.
func (w *Watcher) Scan() ([]string, error) {
	if err := w.checkRoot(); err != nil {
		return nil, err
	}

	var files []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != w.root && w.hidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && w.eligible(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", w.root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Watch starts watching root and its subdirectories. The returned channel is
// closed when ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if err := w.checkRoot(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.addTree(fw, w.root); err != nil {
		fw.Close()
		return nil, err
	}
	w.watchers = append(w.watchers, fw)

	changes := make(chan Change)
	go w.run(ctx, fw, changes)

	logger.Debug("Watching %s", w.root)
	return changes, nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, changes chan<- Change) {
	defer close(changes)
	defer fw.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.hidden(event.Name) {
					if err := w.addTree(fw, event.Name); err != nil {
						logger.Warn("watch %s: %v", event.Name, err)
					}
					continue
				}
			}
			change := w.handleFsEvent(event)
			if change == nil {
				continue
			}
			select {
			case changes <- *change:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch %s: %v", w.root, err)
		}
	}
}

// handleFsEvent maps an fsnotify event to a change, or nil if it is ignored.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *Change {
	if w.hidden(event.Name) || !w.eligible(event.Name) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &Change{Type: ChangeDeleted, Path: event.Name}

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		t := ChangeUpdated
		if event.Has(fsnotify.Create) {
			t = ChangeCreated
		}
		return &Change{Type: t, Path: event.Name}

	default:
		return nil
	}
}

// Close stops all active watches.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	var errs []error
	for _, fw := range w.watchers {
		errs = append(errs, fw.Close())
	}
	w.watchers = nil
	return errors.Join(errs...)
}

func (w *Watcher) checkRoot() error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory", w.root)
	}
	return nil
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.hidden(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) eligible(path string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

// hidden checks the path relative to root so a dotted parent of root
// does not hide everything.
func (w *Watcher) hidden(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}
	return isHidden(rel)
}

// isHidden reports whether any path component starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
