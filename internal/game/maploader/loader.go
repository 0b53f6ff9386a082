// Package maploader loads map scenes off the render thread and publishes
// them atomically.
//
// The render loop only calls Scene and Busy. A load either completes and
// replaces the published scene, or fails and leaves the previous one in
// place; a partially assembled scene is never visible.
package maploader

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/maplemap/internal/assets"
	"github.com/Faultbox/maplemap/internal/game/world"
	"github.com/Faultbox/maplemap/internal/logger"
	"github.com/Faultbox/maplemap/internal/mapdata"
	"github.com/Faultbox/maplemap/pkg/nx"
)

// Loader errors.
var (
	ErrContainerUnavailable = errors.New("map container unavailable")
	ErrLoadInProgress       = errors.New("map load already in progress")
	ErrNoMaps               = errors.New("container has no maps")
	ErrClosed               = errors.New("loader closed")
)

// DefaultDebounce is the quiet period after the last file change before a
// watched container is reopened.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Loader.
type Config struct {
	// Path of the Map.nx container. It is opened on the first load.
	Path string

	// Assets is shared with other users of the container. A new manager is
	// created when nil.
	Assets *assets.Manager

	// Open opens the container. Defaults to nx.Open.
	Open func(path string) (*nx.File, error)

	// Debounce for Watch. Defaults to DefaultDebounce.
	Debounce time.Duration
}

// Loader owns the map container and the published scene.
type Loader struct {
	cfg       Config
	assembler *world.Assembler
	log       *zap.Logger

	// mu serializes loads and guards file, current, closed and watch.
	mu      sync.Mutex
	file    *nx.File
	current string
	closed  bool
	watch   *watcher

	scene atomic.Pointer[world.Scene]
	busy  atomic.Int32
	async atomic.Bool
}

// New creates a loader. No file is touched until the first load.
func New(cfg Config) *Loader {
	if cfg.Assets == nil {
		cfg.Assets = assets.NewManager()
	}
	if cfg.Open == nil {
		cfg.Open = nx.Open
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Loader{
		cfg:       cfg,
		assembler: world.NewAssembler(cfg.Assets),
		log:       logger.Named("maploader"),
	}
}

// Scene returns the last published scene, or nil before the first
// successful load.
func (l *Loader) Scene() *world.Scene {
	return l.scene.Load()
}

// Busy reports whether a load is running.
func (l *Loader) Busy() bool {
	return l.busy.Load() > 0
}

// Assets returns the loader's asset manager.
func (l *Loader) Assets() *assets.Manager {
	return l.cfg.Assets
}

// MapIDs returns the ids of all maps in the container.
func (l *Loader) MapIDs() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := l.containerLocked()
	if err != nil {
		return nil, err
	}
	return mapdata.NewReader(f).MapIDs(), nil
}

// Load assembles mapID and publishes it. Concurrent calls run one after
// another.
func (l *Loader) Load(ctx context.Context, mapID string) (*world.Scene, error) {
	l.busy.Add(1)
	defer l.busy.Add(-1)

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(ctx, mapID)
}

// LoadRandom loads a map picked uniformly from the container.
func (l *Loader) LoadRandom(ctx context.Context) (*world.Scene, error) {
	l.busy.Add(1)
	defer l.busy.Add(-1)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.containerLocked()
	if err != nil {
		return nil, err
	}
	ids := mapdata.NewReader(f).MapIDs()
	if len(ids) == 0 {
		return nil, ErrNoMaps
	}
	return l.loadLocked(ctx, ids[rand.IntN(len(ids))])
}

// LoadAsync starts Load in a goroutine. The returned channel receives the
// result once. Only one async load runs at a time; a second call while one
// is running fails with ErrLoadInProgress.
func (l *Loader) LoadAsync(ctx context.Context, mapID string) (<-chan error, error) {
	return l.startAsync(func() error {
		_, err := l.Load(ctx, mapID)
		return err
	})
}

// LoadRandomAsync starts LoadRandom in a goroutine.
func (l *Loader) LoadRandomAsync(ctx context.Context) (<-chan error, error) {
	return l.startAsync(func() error {
		_, err := l.LoadRandom(ctx)
		return err
	})
}

func (l *Loader) startAsync(fn func() error) (<-chan error, error) {
	if !l.async.CompareAndSwap(false, true) {
		return nil, ErrLoadInProgress
	}
	// Count the load before the goroutine starts so Busy is true as soon
	// as this returns.
	l.busy.Add(1)
	done := make(chan error, 1)
	go func() {
		err := fn()
		l.busy.Add(-1)
		l.async.Store(false)
		done <- err
	}()
	return done, nil
}

// Close stops watching and releases the container. The published scene
// stays readable.
func (l *Loader) Close() error {
	l.mu.Lock()
	l.closed = true
	w := l.watch
	l.watch = nil
	l.mu.Unlock()

	// A pending reload holds mu, so the watcher is stopped unlocked.
	if w != nil {
		w.close()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.cfg.Assets.Evict(l.file)
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Loader) loadLocked(ctx context.Context, mapID string) (*world.Scene, error) {
	f, err := l.containerLocked()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	scene, err := l.assembler.Assemble(ctx, f, mapID)
	if err != nil {
		l.log.Error("map load failed", zap.String("map", mapID), zap.Error(err))
		return nil, err
	}

	l.scene.Store(scene)
	l.current = mapID
	l.log.Info("map published",
		zap.String("map", mapID),
		zap.Duration("took", time.Since(start)))
	return scene, nil
}

func (l *Loader) containerLocked() (*nx.File, error) {
	if l.closed {
		return nil, ErrClosed
	}
	if l.file != nil {
		return l.file, nil
	}
	f, err := l.cfg.Open(l.cfg.Path)
	if err != nil {
		l.log.Error("cannot open map container", zap.String("path", l.cfg.Path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrContainerUnavailable, err)
	}
	l.log.Info("map container opened",
		zap.String("path", l.cfg.Path),
		zap.Uint32("nodes", f.Header().NodeCount))
	l.file = f
	return f, nil
}

// reload reopens the container and reassembles the current map. On any
// failure the old container and scene stay in use.
func (l *Loader) reload(ctx context.Context) error {
	l.busy.Add(1)
	defer l.busy.Add(-1)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	f, err := l.cfg.Open(l.cfg.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContainerUnavailable, err)
	}

	old := l.file
	l.file = f
	if l.current != "" {
		if _, err := l.loadLocked(ctx, l.current); err != nil {
			l.file = old
			l.cfg.Assets.Evict(f)
			_ = f.Close()
			return err
		}
	}
	if old != nil {
		n := l.cfg.Assets.Evict(old)
		_ = old.Close()
		l.log.Info("map container reloaded", zap.String("path", l.cfg.Path), zap.Int("evicted", n))
	}
	return nil
}
