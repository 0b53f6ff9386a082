// Package assets handles sprite loading and caching from NX containers.
package assets

import (
	"fmt"
	"image"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Faultbox/maplemap/internal/logger"
	"github.com/Faultbox/maplemap/pkg/nx"
)

// Metadata defaults applied when a sprite node omits the field.
const (
	DefaultDelay = 120
	DefaultAlpha = 255
)

// Data is the metadata stored next to a sprite bitmap.
type Data struct {
	Origin image.Point
	Z      int
	Delay  int
	Alpha0 int
	Alpha1 int

	// Footholds are origin-relative points of the sprite's walkable line,
	// in the order they are stored.
	Footholds []image.Point
}

// Sprite is a decoded bitmap together with its metadata. Sprites are shared
// by every caller asking for the same key and must not be modified.
type Sprite struct {
	Image *image.NRGBA
	Data  Data
}

// Key identifies one sprite: the container, a category ("Back", "Tile",
// "Obj") and the path below "{category}/{sheet}.img".
type Key struct {
	File     *nx.File
	Category string
	Path     string
}

// NewKey composes a key from a sheet name followed by sub keys. The last sub
// key is the frame index.
func NewKey(f *nx.File, category string, keys ...string) Key {
	var b strings.Builder
	for i, k := range keys {
		if i == 0 {
			b.WriteString(k)
			b.WriteString(".img")
			continue
		}
		b.WriteByte('/')
		b.WriteString(k)
	}
	return Key{File: f, Category: category, Path: b.String()}
}

// ParseKey splits a container path such as "Back/sky.img/back/0" into a
// key. The path needs a category and at least one element below it.
func ParseKey(f *nx.File, path string) (Key, bool) {
	category, rest, ok := strings.Cut(strings.Trim(path, "/"), "/")
	if !ok || category == "" || rest == "" {
		return Key{}, false
	}
	return Key{File: f, Category: category, Path: rest}, true
}

// NodePath returns the container path of the key.
func (k Key) NodePath() string {
	return k.Category + "/" + k.Path
}

func (k Key) String() string {
	return fmt.Sprintf("%p:%s", k.File, k.NodePath())
}

// Stats reports cache activity.
type Stats struct {
	Hits    int64
	Misses  int64
	Decodes int64
	Entries int
}

// Manager resolves sprite keys against NX containers and caches the result.
// It is safe for concurrent use; concurrent misses on the same key share one
// decode.
type Manager struct {
	cache *Cache
	group singleflight.Group
	log   *zap.Logger

	decodes atomic.Int64
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
		log:   logger.Named("assets"),
	}
}

// Sprite returns the sprite stored under (category, keys...). A missing path
// or an undecodable bitmap yields false; both outcomes are cached.
func (m *Manager) Sprite(f *nx.File, category string, keys ...string) (*Sprite, bool) {
	return m.Get(NewKey(f, category, keys...))
}

// Image returns only the decoded bitmap of a sprite.
func (m *Manager) Image(f *nx.File, category string, keys ...string) (*image.NRGBA, bool) {
	s, ok := m.Sprite(f, category, keys...)
	if !ok {
		return nil, false
	}
	return s.Image, true
}

// Data returns only the metadata of a sprite.
func (m *Manager) Data(f *nx.File, category string, keys ...string) (Data, bool) {
	s, ok := m.Sprite(f, category, keys...)
	if !ok {
		return Data{}, false
	}
	return s.Data, true
}

// Get returns the sprite for key, decoding it on the first request.
func (m *Manager) Get(key Key) (*Sprite, bool) {
	if key.File == nil {
		return nil, false
	}
	if s, ok := m.cache.Get(key); ok {
		return s, s != nil
	}

	v, _, _ := m.group.Do(key.String(), func() (any, error) {
		// Another caller may have finished the decode between our cache
		// check and entering the group.
		if s, ok := m.cache.Peek(key); ok {
			return s, nil
		}
		s := m.decode(key)
		m.cache.Set(key, s)
		return s, nil
	})
	s := v.(*Sprite)
	return s, s != nil
}

// Evict drops every cached entry that belongs to f. Call it before closing
// a container.
func (m *Manager) Evict(f *nx.File) int {
	return m.cache.Evict(f)
}

// Stats returns cache statistics.
func (m *Manager) Stats() Stats {
	hits, misses := m.cache.Stats()
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Decodes: m.decodes.Load(),
		Entries: m.cache.Len(),
	}
}

// decode resolves and decodes one sprite. It returns nil when the key does
// not name a bitmap or the bitmap is corrupt.
func (m *Manager) decode(key Key) *Sprite {
	node, ok := key.File.Resolve(key.NodePath())
	if !ok {
		return nil
	}
	if _, ok := node.Bitmap(); !ok {
		return nil
	}

	m.decodes.Add(1)
	img, err := node.Image()
	if err != nil {
		m.log.Warn("sprite decode failed",
			zap.String("path", key.NodePath()),
			zap.String("file", key.File.Name()),
			zap.Error(err))
		return nil
	}

	return &Sprite{Image: img, Data: readData(node)}
}

func readData(node nx.Node) Data {
	d := Data{
		Delay:  DefaultDelay,
		Alpha0: DefaultAlpha,
		Alpha1: DefaultAlpha,
	}
	if c, ok := node.Child("origin"); ok {
		if x, y, ok := c.Value().Vector(); ok {
			d.Origin = image.Pt(int(x), int(y))
		}
	}
	d.Z = childInt(node, "z", 0)
	d.Delay = childInt(node, "delay", DefaultDelay)
	d.Alpha0 = childInt(node, "a0", DefaultAlpha)
	d.Alpha1 = childInt(node, "a1", DefaultAlpha)

	if fh, ok := node.Child("foothold"); ok {
		for _, p := range fh.Elements() {
			if x, y, ok := p.Value().Vector(); ok {
				d.Footholds = append(d.Footholds, image.Pt(int(x), int(y)))
			}
		}
	}
	// Older exports store footholds as {x, y} integer pairs.
	if ext, ok := node.Child("extended"); ok {
		for _, p := range ext.Elements() {
			if p.ChildCount() == 0 {
				continue
			}
			d.Footholds = append(d.Footholds, image.Pt(childInt(p, "x", 0), childInt(p, "y", 0)))
		}
	}
	return d
}

func childInt(node nx.Node, name string, def int) int {
	c, ok := node.Child(name)
	if !ok {
		return def
	}
	v, ok := c.Value().AsInt()
	if !ok {
		return def
	}
	return v
}
