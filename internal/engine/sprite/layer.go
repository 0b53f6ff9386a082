package sprite

import (
	"errors"
	"image"
	"sort"
)

// ErrEmptyInstance is returned when adding an instance without canvases.
var ErrEmptyInstance = errors.New("instance has no canvases")

// Layer keeps instances sorted by ascending Z. Equal Z values keep their
// insertion order.
type Layer struct {
	Name      string
	instances []*Instance
}

// NewLayer creates an empty layer.
func NewLayer(name string) *Layer {
	return &Layer{Name: name}
}

// Add inserts inst after every instance with Z <= inst.Z.
func (l *Layer) Add(inst *Instance) error {
	if inst == nil || len(inst.canvases) == 0 {
		return ErrEmptyInstance
	}
	idx := sort.Search(len(l.instances), func(k int) bool {
		return l.instances[k].Z > inst.Z
	})
	l.instances = append(l.instances, nil)
	copy(l.instances[idx+1:], l.instances[idx:])
	l.instances[idx] = inst
	return nil
}

// Len returns the number of instances.
func (l *Layer) Len() int {
	return len(l.instances)
}

// Instances returns the instances in draw order.
func (l *Layer) Instances() []*Instance {
	return l.instances
}

// Update advances every instance's animation.
func (l *Layer) Update(elapsed float32) {
	for _, inst := range l.instances {
		inst.Update(elapsed)
	}
}

// Draw blits every instance in ascending Z order.
func (l *Layer) Draw(t Target) {
	for _, inst := range l.instances {
		inst.Draw(t)
	}
}

// Footholds collects the world-space segments of all instances.
func (l *Layer) Footholds() []Segment {
	var out []Segment
	for _, inst := range l.instances {
		out = append(out, inst.Footholds()...)
	}
	return out
}

// Bounds returns the union of the instance bounds.
func (l *Layer) Bounds() image.Rectangle {
	var r image.Rectangle
	for _, inst := range l.instances {
		r = r.Union(inst.Bounds())
	}
	return r
}
