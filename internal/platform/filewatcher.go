// Package platform provides the file-system watcher abstraction named as
// an external collaborator by the core spec, specified only through its
// event contract: it must not traverse or lock the graph during event
// intake, and it filters node_modules paths before they ever reach a
// caller.
package platform

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher abstracts filesystem watching so the dev orchestrator can
// be tested with an instant, in-memory fake instead of real disk events.
type FileWatcher interface {
	Add(name string) error
	Remove(name string) error
	Close() error
	Events() <-chan FileWatchEvent
	Errors() <-chan error
}

// FileWatchEvent is one filesystem change, already filtered of
// node_modules paths.
type FileWatchEvent struct {
	Name string
	Op   WatchOp
}

// WatchOp is a bitmask of filesystem operations.
type WatchOp uint32

const (
	Create WatchOp = 1 << iota
	Write
	Remove
	Rename
	Chmod
)

func (op WatchOp) String() string {
	var names []string
	if op&Create != 0 {
		names = append(names, "CREATE")
	}
	if op&Write != 0 {
		names = append(names, "WRITE")
	}
	if op&Remove != 0 {
		names = append(names, "REMOVE")
	}
	if op&Rename != 0 {
		names = append(names, "RENAME")
	}
	if op&Chmod != 0 {
		names = append(names, "CHMOD")
	}
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, "|")
}

// FSNotifyFileWatcher is the production FileWatcher, backed by fsnotify.
// It posts translated events onto a buffered channel; it never touches
// the module graph directly — the dev orchestrator drains Events() and
// applies updates under its own write lock.
type FSNotifyFileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan FileWatchEvent
	errors  chan error
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFSNotifyFileWatcher creates a watcher and starts its translation
// goroutine.
func NewFSNotifyFileWatcher() (*FSNotifyFileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FSNotifyFileWatcher{
		watcher: watcher,
		events:  make(chan FileWatchEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}

	fw.wg.Add(1)
	go func() {
		defer fw.wg.Done()
		fw.translateEvents()
	}()

	return fw, nil
}

func (fw *FSNotifyFileWatcher) Add(name string) error {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	if fw.closed {
		return fmt.Errorf("file watcher is closed")
	}
	return fw.watcher.Add(name)
}

func (fw *FSNotifyFileWatcher) Remove(name string) error {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	if fw.closed {
		return fmt.Errorf("file watcher is closed")
	}
	return fw.watcher.Remove(name)
}

func (fw *FSNotifyFileWatcher) Close() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return nil
	}
	fw.closed = true
	close(fw.done)
	fw.mu.Unlock()

	fw.wg.Wait()

	err := fw.watcher.Close()
	close(fw.events)
	close(fw.errors)
	return err
}

func (fw *FSNotifyFileWatcher) Events() <-chan FileWatchEvent { return fw.events }
func (fw *FSNotifyFileWatcher) Errors() <-chan error          { return fw.errors }

func (fw *FSNotifyFileWatcher) translateEvents() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if strings.Contains(event.Name, "node_modules") {
				continue
			}

			var op WatchOp
			if event.Op&fsnotify.Create != 0 {
				op |= Create
			}
			if event.Op&fsnotify.Write != 0 {
				op |= Write
			}
			if event.Op&fsnotify.Remove != 0 {
				op |= Remove
			}
			if event.Op&fsnotify.Rename != 0 {
				op |= Rename
			}
			if event.Op&fsnotify.Chmod != 0 {
				op |= Chmod
			}

			fw.mu.RLock()
			if !fw.closed {
				select {
				case fw.events <- FileWatchEvent{Name: event.Name, Op: op}:
				case <-fw.done:
					fw.mu.RUnlock()
					return
				}
			}
			fw.mu.RUnlock()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.mu.RLock()
			if !fw.closed {
				select {
				case fw.errors <- err:
				case <-fw.done:
					fw.mu.RUnlock()
					return
				}
			}
			fw.mu.RUnlock()

		case <-fw.done:
			return
		}
	}
}

// FakeFileWatcher is an in-memory FileWatcher for tests: Emit pushes an
// event synchronously, with no polling or debounce.
type FakeFileWatcher struct {
	events chan FileWatchEvent
	errors chan error
}

// NewFakeFileWatcher returns a FileWatcher whose events are driven
// entirely by calls to Emit.
func NewFakeFileWatcher() *FakeFileWatcher {
	return &FakeFileWatcher{
		events: make(chan FileWatchEvent, 100),
		errors: make(chan error, 10),
	}
}

func (f *FakeFileWatcher) Add(name string) error    { return nil }
func (f *FakeFileWatcher) Remove(name string) error { return nil }
func (f *FakeFileWatcher) Close() error {
	close(f.events)
	close(f.errors)
	return nil
}
func (f *FakeFileWatcher) Events() <-chan FileWatchEvent { return f.events }
func (f *FakeFileWatcher) Errors() <-chan error          { return f.errors }

// Emit pushes an event for tests to observe, filtering node_modules paths
// the same way the real watcher does.
func (f *FakeFileWatcher) Emit(name string, op WatchOp) {
	if strings.Contains(name, "node_modules") {
		return
	}
	f.events <- FileWatchEvent{Name: name, Op: op}
}
