// Package watcher signals when agent workspace records change on disk.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
)

// Watcher watches the workspaces root, each agent directory below it and
// the fleet data directory. Bursts of changes collapse into one onChange
// call after the debounce period.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	roots    []string
	debounce time.Duration
	onChange func()
	log      *logging.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// New creates a watcher over the given directories. Missing directories
// are skipped when Start runs.
func New(debounce time.Duration, onChange func(), log *logging.Logger, roots ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		fsw:      fsw,
		roots:    roots,
		debounce: debounce,
		onChange: onChange,
		log:      log.Sub("watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds the watches and runs the event loop in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	watched := 0
	for _, root := range w.roots {
		n, err := w.addTree(root)
		if err != nil {
			return err
		}
		watched += n
	}
	w.running = true
	w.log.Info().Int("dirs", watched).Dur("debounce", w.debounce).Msg("watching workspaces")

	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.fsw.Close(); err != nil {
		w.log.Warn().Err(err).Msg("closing watcher")
	}
}

// addTree watches root and its immediate sub-directories. Agent records
// live one level below the root.
func (w *Watcher) addTree(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		w.log.Warn().Str("dir", root).Msg("watch root does not exist")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := w.fsw.Add(root); err != nil {
		return 0, err
	}
	n := 1
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := w.fsw.Add(filepath.Join(root, e.Name())); err != nil {
			w.log.Warn().Err(err).Str("dir", e.Name()).Msg("adding watch")
			continue
		}
		n++
	}
	return n, nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("workspace change")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("watcher error")

		case <-fire:
			fire = nil
			w.onChange()
		}
	}
}

// relevant reports whether event touches a record file or adds an agent
// directory. New directories are watched as they appear.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", event.Name).Msg("adding watch")
			}
			return true
		}
	}
	return strings.HasSuffix(base, ".json") || event.Op&(fsnotify.Remove|fsnotify.Rename) != 0
}
