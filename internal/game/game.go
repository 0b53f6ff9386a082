// Package game implements the map viewer loop.
package game

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/maplemap/internal/config"
	"github.com/Faultbox/maplemap/internal/engine/camera"
	"github.com/Faultbox/maplemap/internal/engine/debug"
	"github.com/Faultbox/maplemap/internal/engine/input"
	"github.com/Faultbox/maplemap/internal/engine/renderer"
	"github.com/Faultbox/maplemap/internal/engine/window"
	"github.com/Faultbox/maplemap/internal/game/maploader"
	"github.com/Faultbox/maplemap/internal/game/world"
	"github.com/Faultbox/maplemap/internal/logger"
)

const title = "MapleMap"

var clearColor = color.NRGBA{A: 255}

// Game is the viewer instance.
type Game struct {
	cfg      *config.Config
	running  bool
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.Camera
	loader   *maploader.Loader
	shots    *debug.Screenshots
	log      *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	pending <-chan error

	// scene is the last published scene seen by the render loop.
	scene     *world.Scene
	footholds bool
	capture   bool
}

// New creates the window, renderer and map loader.
func New(cfg *config.Config) (*Game, error) {
	g := &Game{
		cfg:       cfg,
		log:       logger.Named("game"),
		footholds: cfg.Game.ShowFootholds,
	}
	g.ctx, g.cancel = context.WithCancel(context.Background())

	var err error
	g.window, err = window.New(window.Config{
		Title:      title,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// The renderer needs the GL context created with the window.
	w, h := g.window.Size()
	g.renderer, err = renderer.New(w, h)
	if err != nil {
		g.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	g.input = input.New()
	g.camera = camera.New(w, h, cfg.Game.CameraSpeed)
	g.loader = maploader.New(maploader.Config{Path: cfg.Data.MapNX})
	g.shots = debug.NewScreenshots("screenshots", "maplemap")

	if cfg.Data.Watch {
		if err := g.loader.Watch(); err != nil {
			g.log.Warn("cannot watch map container", zap.String("path", cfg.Data.MapNX), zap.Error(err))
		}
	}

	g.log.Info("viewer initialized", zap.String("nx", cfg.Data.MapNX))
	return g, nil
}

// Run starts the first load and runs the loop until the window closes.
func (g *Game) Run() error {
	g.running = true
	if g.cfg.Game.StartMap != "" {
		g.request(func() (<-chan error, error) { return g.loader.LoadAsync(g.ctx, g.cfg.Game.StartMap) })
	} else {
		g.request(func() (<-chan error, error) { return g.loader.LoadRandomAsync(g.ctx) })
	}

	var frameBudget time.Duration
	if g.cfg.Graphics.FPSLimit > 0 {
		frameBudget = time.Second / time.Duration(g.cfg.Graphics.FPSLimit)
	}

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := lastTime

	g.log.Info("starting viewer loop")
	for g.running {
		now := time.Now()
		elapsed := now.Sub(lastTime)
		lastTime = now

		if g.input.Update() {
			g.running = false
			break
		}
		g.handleInput()
		g.poll()
		g.update(elapsed)
		g.render()
		if g.capture {
			g.capture = false
			g.screenshot()
		}
		g.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			g.log.Debug("fps", zap.Int("count", frameCount), zap.Duration("frame", elapsed))
			frameCount = 0
			fpsTimer = time.Now()
		}
		if frameBudget > 0 {
			if rest := frameBudget - time.Since(now); rest > 0 {
				time.Sleep(rest)
			}
		}
	}
	return nil
}

// Close cancels pending loads and releases resources.
func (g *Game) Close() {
	g.log.Info("closing viewer")
	g.cancel()
	if g.loader != nil {
		_ = g.loader.Close()
	}
	if g.renderer != nil {
		g.renderer.Close()
	}
	if g.window != nil {
		g.window.Close()
	}
}

func (g *Game) handleInput() {
	if w, h, ok := g.input.Resized(); ok {
		g.renderer.Resize(w, h)
		g.camera.Resize(w, h)
	}
	if g.input.Pressed(sdl.SCANCODE_ESCAPE) {
		g.running = false
	}
	if g.input.Pressed(sdl.SCANCODE_R) {
		g.request(func() (<-chan error, error) { return g.loader.LoadRandomAsync(g.ctx) })
	}
	if g.input.Pressed(sdl.SCANCODE_F) {
		g.footholds = !g.footholds
		if g.scene != nil {
			g.log.Info("foothold overlay",
				zap.Bool("enabled", g.footholds),
				zap.Int("segments", len(g.scene.Footholds())))
		}
	}

	if g.input.Pressed(sdl.SCANCODE_P) {
		g.capture = true
	}

	dx := g.input.Axis(sdl.SCANCODE_LEFT, sdl.SCANCODE_RIGHT)
	dy := g.input.Axis(sdl.SCANCODE_UP, sdl.SCANCODE_DOWN)
	if dx != 0 || dy != 0 {
		g.camera.Pan(dx, dy)
	}
}

// request starts an async load unless one is already running.
func (g *Game) request(start func() (<-chan error, error)) {
	done, err := start()
	if errors.Is(err, maploader.ErrLoadInProgress) {
		g.log.Debug("load request ignored, another load is running")
		return
	}
	if err != nil {
		g.log.Error("cannot start map load", zap.Error(err))
		return
	}
	g.pending = done
	g.window.SetTitle(title + " - loading...")
}

// poll picks up the async result and a newly published scene.
func (g *Game) poll() {
	if g.pending != nil {
		select {
		case err := <-g.pending:
			g.pending = nil
			if err != nil {
				g.log.Error("map load failed", zap.Error(err))
				g.setTitle()
			}
		default:
		}
	}

	s := g.loader.Scene()
	if s == nil || s == g.scene {
		return
	}
	g.scene = s
	g.renderer.Purge()
	g.camera.Frame(s.Bounds())
	g.setTitle()

	stats := g.loader.Assets().Stats()
	g.log.Info("showing map",
		zap.String("map", s.MapID),
		zap.String("bgm", s.Info.BGM),
		zap.Int("instances", s.InstanceCount()),
		zap.Int("skipped", s.Report.Len()),
		zap.Int("cached", stats.Entries))
}

func (g *Game) setTitle() {
	if g.scene == nil {
		g.window.SetTitle(title)
		return
	}
	g.window.SetTitle(fmt.Sprintf("%s - %s", title, g.scene.MapID))
}

func (g *Game) update(elapsed time.Duration) {
	if g.scene == nil {
		return
	}
	g.scene.Update(float32(elapsed.Microseconds()) / 1000)
}

func (g *Game) render() {
	g.renderer.Camera = g.camera.Pos
	g.renderer.Begin(clearColor)
	if g.scene != nil {
		g.scene.Draw(g.renderer)
		if g.footholds {
			g.renderer.DrawSegments(g.scene.Footholds(), world.FootholdColor)
		}
	}
	g.renderer.End()
}

// screenshot saves the frame just rendered, before the buffers swap.
func (g *Game) screenshot() {
	w, h := g.renderer.Size()
	img, err := debug.FromGL(g.renderer.ReadPixels(), w, h)
	if err != nil {
		g.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	id := "none"
	if g.scene != nil {
		id = g.scene.MapID
	}
	path, err := g.shots.Save(img, id)
	if err != nil {
		g.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	g.log.Info("screenshot saved", zap.String("path", path))
}
