package agentloop

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"archi/internal/logging"
)

// EmergencyStop tracks the presence of a sentinel file. Once set, it
// means the Agent Loop must exit at the start of its next tick. An
// fsnotify watch on the sentinel's directory keeps the flag current
// without a per-tick stat call; Check still works correctly (just with
// the latency of a filesystem poll) if the watch itself fails to start.
type EmergencyStop struct {
	stopFile string
	flag     atomic.Bool

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	closed  atomic.Bool
}

// NewEmergencyStop creates a stop checker for stopFile, starting a
// background watch on its containing directory.
func NewEmergencyStop(stopFile string) *EmergencyStop {
	e := &EmergencyStop{stopFile: stopFile}

	if _, err := os.Stat(stopFile); err == nil {
		e.flag.Store(true)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.AgentLoopWarn("emergency stop watcher unavailable, falling back to per-tick stat: %v", err)
		return e
	}
	dir := filepath.Dir(stopFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.AgentLoopWarn("emergency stop watch directory unavailable: %v", err)
		watcher.Close()
		return e
	}
	if err := watcher.Add(dir); err != nil {
		logging.AgentLoopWarn("emergency stop watch failed: %v", err)
		watcher.Close()
		return e
	}

	e.watcher = watcher
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	go e.run()
	return e
}

func (e *EmergencyStop) run() {
	defer close(e.doneCh)
	for {
		select {
		case <-e.stopCh:
			return
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(e.stopFile) {
				continue
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				e.flag.Store(true)
				logging.AgentLoopError("emergency stop sentinel created: %s", e.stopFile)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				e.flag.Store(false)
			}
		case _, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Check reports whether the emergency stop sentinel is currently present.
// Without a running watch it stats the sentinel on every call.
func (e *EmergencyStop) Check() bool {
	if e.watcher == nil {
		_, err := os.Stat(e.stopFile)
		return err == nil
	}
	return e.flag.Load()
}

// Close stops the background watch, if running. It is safe to call more
// than once.
func (e *EmergencyStop) Close() {
	if e.watcher == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	close(e.stopCh)
	<-e.doneCh
	e.watcher.Close()
}
