package content

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long a bank file must be stable before the
// directory is rescanned. Editors write in bursts.
const reloadDebounce = time.Second

// Watch begins reloading the library when bank files change. Stop
// pairs with it.
func (l *Library) Watch() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watching {
		return nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsWatcher.Add(l.dir); err != nil {
		fsWatcher.Close()
		return err
	}

	l.fsWatcher = fsWatcher
	l.done = make(chan struct{})
	l.watching = true

	l.wg.Add(2)
	go l.eventLoop()
	go l.debounceLoop()
	return nil
}

// Stop stops watching. The library keeps serving its last good state.
func (l *Library) Stop() error {
	l.mu.Lock()
	if !l.watching {
		l.mu.Unlock()
		return nil
	}
	l.watching = false
	close(l.done)
	fsWatcher := l.fsWatcher
	l.mu.Unlock()

	l.wg.Wait()
	return fsWatcher.Close()
}

func (l *Library) eventLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.done:
			return
		case event, ok := <-l.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isBankFile(event.Name) {
				continue
			}
			l.pendingMu.Lock()
			l.pending[event.Name] = time.Now()
			l.pendingMu.Unlock()
		case err, ok := <-l.fsWatcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("bank watcher error", "error", err)
		}
	}
}

// debounceLoop rescans once pending changes have settled.
func (l *Library) debounceLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.pendingMu.Lock()
			stable := false
			for path, ts := range l.pending {
				if now.Sub(ts) >= reloadDebounce {
					delete(l.pending, path)
					stable = true
				}
			}
			l.pendingMu.Unlock()

			if stable {
				if err := l.Reload(); err != nil {
					l.logger.Warn("bank reload failed", "error", err)
				}
			}
		}
	}
}
