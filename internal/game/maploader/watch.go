package maploader

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type watcher struct {
	fs      *fsnotify.Watcher
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Watch reloads the container whenever its file changes. The directory is
// watched rather than the file so replace-by-rename is seen too. Calling it
// again while watching is a no-op; after Close it returns ErrClosed.
func (l *Loader) Watch() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(l.cfg.Path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		_ = fw.Close()
		return ErrClosed
	}
	if l.watch != nil {
		_ = fw.Close()
		return nil
	}

	w := &watcher{
		fs:      fw,
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	l.watch = w
	go l.runWatch(w)

	l.log.Info("watching map container", zap.String("path", l.cfg.Path))
	return nil
}

func (w *watcher) close() {
	w.once.Do(func() {
		close(w.closeCh)
		_ = w.fs.Close()
		<-w.done
	})
}

func (l *Loader) runWatch(w *watcher) {
	defer close(w.done)

	target := filepath.Clean(l.cfg.Path)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// Large containers are written in many chunks; wait until the
			// file is quiet.
			timer.Reset(l.cfg.Debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			l.log.Warn("file watcher error", zap.Error(err))
		case <-timer.C:
			if err := l.reload(context.Background()); err != nil {
				l.log.Warn("container reload failed", zap.String("path", l.cfg.Path), zap.Error(err))
			}
		case <-w.closeCh:
			return
		}
	}
}
