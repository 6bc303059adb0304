package intake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher emits candidate paths: first every file already in dir (oldest
// first), then files created or written afterwards. A file moved into dir
// arrives as a Create event.
type Watcher struct {
	dir string
	fs  *fsnotify.Watcher
	log *zerolog.Logger
}

func NewWatcher(dir string, logger *zerolog.Logger) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch dir: %s is not a directory", dir)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("fsnotify add %s: %w", dir, err)
	}
	return &Watcher{dir: dir, fs: fw, log: logger}, nil
}

// Run blocks until ctx is done, then closes out
func (w *Watcher) Run(ctx context.Context, out chan<- string) {
	defer close(out)
	defer w.fs.Close()

	send := func(p string) bool {
		select {
		case out <- p:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, p := range w.scan() {
		if !send(p) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !send(ev.Name) {
				return
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Str("dir", w.dir).Msg("watcher error")
		}
	}
}

func (w *Watcher) scan() []string {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Error().Err(err).Str("dir", w.dir).Msg("initial scan failed")
		return nil
	}
	type file struct {
		path string
		mod  int64
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{filepath.Join(w.dir, e.Name()), info.ModTime().UnixNano()})
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].mod < files[j].mod })
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out
}
