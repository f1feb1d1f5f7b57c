package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/circuit-index/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeConfig  ChangeType = iota // Config file written or created
	ChangeTypeRemoved                   // Config file removed or renamed away
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeConfig:
		return "config"
	case ChangeTypeRemoved:
		return "removed"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchWindow groups the burst of events a single editor save produces
const batchWindow = 100 * time.Millisecond

// FileWatcher watches a network config file for changes.
//
// The parent directory is watched rather than the file itself: editors that
// save by writing a temp file and renaming it over the original would
// otherwise detach the watch after the first save.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	events  chan ChangeEvent
}

// NewFileWatcher creates a watcher for the config file at path
func NewFileWatcher(path string) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		path:    abs,
		events:  make(chan ChangeEvent, 16),
	}, nil
}

// Start begins watching. Events stop and the channel is closed when ctx ends.
func (fw *FileWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(fw.path)
	if err := fw.watcher.Add(dir); err != nil {
		fw.watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logging.Info("watching network config", "path", fw.path)
	go fw.processEvents(ctx)
	return nil
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	var (
		pending = make(map[ChangeType][]string)
		timer   = time.NewTimer(batchWindow)
	)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}

			logging.Trace("config file event", "op", event.Op.String(), "path", event.Name)
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				pending[ChangeTypeConfig] = append(pending[ChangeTypeConfig], event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				pending[ChangeTypeRemoved] = append(pending[ChangeTypeRemoved], event.Name)
			default:
				continue
			}
			timer.Reset(batchWindow)

		case <-timer.C:
			for _, t := range []ChangeType{ChangeTypeRemoved, ChangeTypeConfig} {
				if len(pending[t]) == 0 {
					continue
				}
				select {
				case fw.events <- ChangeEvent{Type: t, Paths: pending[t], Timestamp: time.Now()}:
				case <-ctx.Done():
					return
				}
			}
			clear(pending)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Path returns the absolute path of the watched file
func (fw *FileWatcher) Path() string {
	return fw.path
}
