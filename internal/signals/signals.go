// Package signals lets another process control a running orchestration by
// dropping files into the project's .swarm/signals directory.
//
// A "kill" file cancels the run. A "pause" file holds task dispatch until the
// file is removed.
package signals

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// KillFile cancels the run when created.
	KillFile = "kill"
	// PauseFile pauses dispatch while it exists.
	PauseFile = "pause"
)

// pollInterval is used when no file watcher can be created.
const pollInterval = 500 * time.Millisecond

// Controller is the dispatch control a Watcher drives.
type Controller interface {
	Pause()
	Resume()
	Stop()
}

// Dir returns the signals directory for a project.
func Dir(projectDir string) string {
	return filepath.Join(projectDir, ".swarm", "signals")
}

// Watcher turns signal files into controller calls.
type Watcher struct {
	dir    string
	ctrl   Controller
	onKill func()

	mu     sync.Mutex
	killed bool
	paused bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// Watch starts watching the signals directory of projectDir. onKill runs once
// when a kill file appears, after ctrl.Stop. Either may be nil.
// Signal files already present are applied immediately.
func Watch(projectDir string, ctrl Controller, onKill func()) (*Watcher, error) {
	dir := Dir(projectDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:    dir,
		ctrl:   ctrl,
		onKill: onKill,
		done:   make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err = watcher.Add(dir); err != nil {
			watcher.Close()
		}
	}

	w.wg.Add(1)
	if err != nil {
		// Continue without watcher - use polling fallback
		log.Printf("[signals] file watcher unavailable, polling %s: %v", dir, err)
		go w.poll()
	} else {
		w.watcher = watcher
		go w.watch()
	}

	w.Check()
	return w, nil
}

func (w *Watcher) watch() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore errors, keep watching
		}
	}
}

func (w *Watcher) poll() {
	defer w.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	switch filepath.Base(event.Name) {
	case KillFile:
		if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
			w.kill()
		}
	case PauseFile:
		switch {
		case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
			w.setPaused(true)
		case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
			w.setPaused(false)
		}
	}
}

// Check applies the current state of the signal files. The watcher calls it
// on start and on every poll; it also catches events the watcher missed.
func (w *Watcher) Check() {
	if exists(filepath.Join(w.dir, KillFile)) {
		w.kill()
	}
	w.setPaused(exists(filepath.Join(w.dir, PauseFile)))
}

func (w *Watcher) kill() {
	w.mu.Lock()
	if w.killed {
		w.mu.Unlock()
		return
	}
	w.killed = true
	w.mu.Unlock()

	log.Printf("[signals] kill signal received")
	if w.ctrl != nil {
		w.ctrl.Stop()
	}
	if w.onKill != nil {
		w.onKill()
	}
}

func (w *Watcher) setPaused(paused bool) {
	w.mu.Lock()
	if w.paused == paused {
		w.mu.Unlock()
		return
	}
	w.paused = paused
	w.mu.Unlock()

	if w.ctrl == nil {
		return
	}
	if paused {
		w.ctrl.Pause()
	} else {
		w.ctrl.Resume()
	}
}

// Killed reports whether a kill signal has been seen.
func (w *Watcher) Killed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.killed
}

// Paused reports whether a pause signal is in effect.
func (w *Watcher) Paused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
		w.wg.Wait()
	})
}

// SendKill creates a kill signal file.
func SendKill(projectDir string) error {
	return send(projectDir, KillFile)
}

// SendPause creates a pause signal file.
func SendPause(projectDir string) error {
	return send(projectDir, PauseFile)
}

// SendResume removes the pause signal file.
func SendResume(projectDir string) error {
	err := os.Remove(filepath.Join(Dir(projectDir), PauseFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Clear removes all signal files.
func Clear(projectDir string) {
	dir := Dir(projectDir)
	os.Remove(filepath.Join(dir, KillFile))
	os.Remove(filepath.Join(dir, PauseFile))
}

func send(projectDir, name string) error {
	dir := Dir(projectDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(time.Now().Format(time.RFC3339)), 0644)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
