// Package seedwatch watches a seed directory and turns its files into
// seed samples. Files already present at startup come back from
// LoadExisting; files dropped in while the fuzzer runs are delivered over
// the Samples channel, so the fuzz loop stays the only goroutine touching
// the library.
package seedwatch

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/aledsdavies/covfuzz/internal/sampletree"
)

// Watcher watches a directory for new or modified regular files and loads
// each one as a seed exactly once.
type Watcher struct {
	dir     string
	log     *slog.Logger
	fsw     *fsnotify.Watcher
	samples chan *sampletree.Sample
	seen    map[string]bool
}

// New creates a Watcher over dir. Call LoadExisting before starting Run;
// Run then delivers later arrivals on Samples.
func New(dir string, log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		dir:     dir,
		log:     log,
		fsw:     fsw,
		samples: make(chan *sampletree.Sample, 16),
		seen:    map[string]bool{},
	}, nil
}

// Samples delivers seed samples loaded by Run, one per newly-seen file.
func (w *Watcher) Samples() <-chan *sampletree.Sample { return w.samples }

// LoadExisting reads every regular file already present in the directory,
// in directory-listing order, and returns the resulting samples.
func (w *Watcher) LoadExisting() ([]*sampletree.Sample, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}

	var out []*sampletree.Sample
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		sample, err := w.load(filepath.Join(w.dir, e.Name()))
		if err != nil {
			w.log.Warn("failed to load seed file", "path", e.Name(), "error", err)
			continue
		}
		if sample != nil {
			out = append(out, sample)
		}
	}
	return out, nil
}

// Run blocks, pushing newly-created or written files onto Samples until
// stop is closed.
func (w *Watcher) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			sample, err := w.load(ev.Name)
			if err != nil {
				w.log.Warn("failed to load seed file", "path", ev.Name, "error", err)
				continue
			}
			if sample == nil {
				continue
			}
			select {
			case w.samples <- sample:
			case <-stop:
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("seed watcher error", "error", err)
		}
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error { return w.fsw.Close() }

// load reads path as a seed, or returns (nil, nil) for paths already
// loaded and for directories.
func (w *Watcher) load(path string) (*sampletree.Sample, error) {
	if w.seen[path] {
		return nil, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	w.seen[path] = true
	return sampletree.NewSample(sampletree.NewData(data)), nil
}
