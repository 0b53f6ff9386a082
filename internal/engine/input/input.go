// Package input polls SDL2 events for the viewer.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// Input tracks key presses for the current frame and keys held down.
type Input struct {
	pressed []sdl.Scancode
	keys    []uint8

	resized       bool
	width, height int
}

// New creates a new input handler.
func New() *Input {
	return &Input{pressed: make([]sdl.Scancode, 0, 8)}
}

// Update drains the SDL event queue. It returns true when the window was
// closed.
func (i *Input) Update() bool {
	i.pressed = i.pressed[:0]
	i.resized = false

	quit := false
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			quit = true
		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				i.resized = true
				i.width, i.height = int(e.Data1), int(e.Data2)
			}
		case *sdl.KeyboardEvent:
			// Auto-repeat is not a new press.
			if e.Type == sdl.KEYDOWN && e.Repeat == 0 {
				i.pressed = append(i.pressed, e.Keysym.Scancode)
			}
		}
	}
	i.keys = sdl.GetKeyboardState()
	return quit
}

// Pressed reports whether the key went down during the last Update.
func (i *Input) Pressed(sc sdl.Scancode) bool {
	for _, p := range i.pressed {
		if p == sc {
			return true
		}
	}
	return false
}

// Held reports whether the key is currently down.
func (i *Input) Held(sc sdl.Scancode) bool {
	return int(sc) < len(i.keys) && i.keys[sc] != 0
}

// Resized returns the new window size if it changed during the last Update.
func (i *Input) Resized() (int, int, bool) {
	return i.width, i.height, i.resized
}

// Axis returns -1, 0 or 1 from a pair of held keys.
func (i *Input) Axis(neg, pos sdl.Scancode) int {
	v := 0
	if i.Held(neg) {
		v--
	}
	if i.Held(pos) {
		v++
	}
	return v
}
