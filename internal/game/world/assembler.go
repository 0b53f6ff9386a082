package world

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/maplemap/internal/assets"
	"github.com/Faultbox/maplemap/internal/engine/sprite"
	"github.com/Faultbox/maplemap/internal/logger"
	"github.com/Faultbox/maplemap/internal/mapdata"
	"github.com/Faultbox/maplemap/pkg/nx"
)

// Assembly errors.
var (
	ErrMapNotFound    = errors.New("map not found")
	ErrSpriteNotFound = errors.New("sprite not found")
	ErrNoFrames       = errors.New("object has no frames")
)

// Sprite categories in the container.
const (
	categoryBack = "Back"
	categoryTile = "Tile"
	categoryObj  = "Obj"
)

// Assembler turns map records into layers of sprite instances.
type Assembler struct {
	assets *assets.Manager
	log    *zap.Logger
}

// NewAssembler creates an assembler resolving sprites through m.
func NewAssembler(m *assets.Manager) *Assembler {
	return &Assembler{
		assets: m,
		log:    logger.Named("world"),
	}
}

// Assets returns the asset manager used for sprite lookups.
func (a *Assembler) Assets() *assets.Manager {
	return a.assets
}

// Assemble builds the complete scene of mapID. Malformed entries are
// skipped and listed in the scene's report; only a missing map fails.
func (a *Assembler) Assemble(ctx context.Context, f *nx.File, mapID string) (*Scene, error) {
	r := mapdata.NewReader(f)
	if _, ok := r.MapNode(mapID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, mapID)
	}

	s := newScene(mapID)
	if info, ok := r.InfoData(mapID); ok {
		s.Info = parseInfo(info)
	}
	s.Minimap, _ = r.MinimapData(mapID)

	// Each goroutine owns its layers and skip list; nothing is shared until
	// Wait returns.
	var backSkipped []Skipped
	var layerSkipped [mapdata.LayerCount][]Skipped

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		s.Back, s.Front, backSkipped = a.LoadBackground(r, mapID)
		return nil
	})
	for i := range s.Tiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.Tiles[i], layerSkipped[i] = a.LoadLayer(r, mapID, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("assembling map %s: %w", mapID, err)
	}

	var portalSkipped []Skipped
	s.Portals, portalSkipped = a.loadPortals(r, mapID)

	s.Report.add(backSkipped...)
	for _, sk := range layerSkipped {
		s.Report.add(sk...)
	}
	s.Report.add(portalSkipped...)

	for _, sk := range s.Report.Skipped {
		a.log.Warn("skipped map entry",
			zap.String("map", mapID),
			zap.String("section", sk.Section),
			zap.Int("layer", sk.Layer),
			zap.String("entry", sk.Entry),
			zap.Error(sk.Err))
	}
	a.log.Info("map assembled",
		zap.String("map", mapID),
		zap.Int("instances", s.InstanceCount()),
		zap.Int("portals", len(s.Portals)),
		zap.Int("skipped", s.Report.Len()))

	return s, nil
}

// LoadBackground builds the back and front background layers. Entries with
// a non-zero front flag go to the front layer.
func (a *Assembler) LoadBackground(r *mapdata.Reader, mapID string) (back, front *sprite.Layer, skipped []Skipped) {
	back = sprite.NewLayer("back")
	front = sprite.NewLayer("front")

	records, ok := r.BackgroundData(mapID)
	if !ok {
		return back, front, nil
	}

	for _, rec := range records {
		inst, err := a.background(r.File(), rec)
		if err == nil {
			dst := back
			if inst.Front {
				dst = front
			}
			err = dst.Add(inst)
		}
		if err != nil {
			skipped = append(skipped, Skipped{Section: SectionBack, Layer: -1, Entry: rec.Name(), Err: err})
		}
	}
	return back, front, skipped
}

func (a *Assembler) background(f *nx.File, rec mapdata.Record) (*sprite.Instance, error) {
	fr := fields{rec: rec}
	x, y := fr.int("x"), fr.int("y")
	cx, cy := fr.int("cx"), fr.int("cy")
	rx, ry := fr.int("rx"), fr.int("ry")
	flip := fr.int("f")
	alpha := fr.int("a")
	typ := fr.int("type")
	frontFlag := fr.int("front")
	ani := fr.int("ani")
	bS := fr.str("bS")
	no := fr.int("no")
	if fr.err != nil {
		return nil, fr.err
	}

	spr, err := a.lookup(f, categoryBack, bS, "back", strconv.Itoa(no))
	if err != nil {
		return nil, err
	}

	inst := sprite.NewInstance(x, y)
	inst.CX, inst.CY = cx, cy
	inst.RX, inst.RY = rx, ry
	inst.Type = typ
	inst.Front = frontFlag != 0
	inst.Ani = ani
	inst.Flip = flip > 0
	inst.Opacity = float32(clamp(alpha, 0, sprite.OpaqueAlpha)) / sprite.OpaqueAlpha

	c := newCanvas(spr)
	if inst.Flip {
		c.Flip()
	}
	inst.AddCanvas(c)
	return inst, nil
}

// LoadLayer builds the tiles and objects of one numbered layer. A missing
// layer yields an empty one.
func (a *Assembler) LoadLayer(r *mapdata.Reader, mapID string, layer int) (*sprite.Layer, []Skipped) {
	out := sprite.NewLayer(layerName(layer))
	ld, ok := r.LayerData(mapID, layer)
	if !ok {
		return out, nil
	}

	var skipped []Skipped
	skip := func(section, entry string, err error) {
		skipped = append(skipped, Skipped{Section: section, Layer: layer, Entry: entry, Err: err})
	}

	forbidFallDown := ld.Info.IntOr("forbidFallDown", 0) != 0

	tS, tsErr := ld.Info.String("tS")
	for _, rec := range ld.Tiles {
		if tsErr != nil {
			skip(SectionTile, rec.Name(), fmt.Errorf("layer info: %w", tsErr))
			continue
		}
		inst, err := a.tile(r.File(), tS, rec)
		if err == nil {
			inst.ForbidFallDown = forbidFallDown
			err = out.Add(inst)
		}
		if err != nil {
			skip(SectionTile, rec.Name(), err)
		}
	}

	for _, rec := range ld.Objects {
		inst, err := a.object(r.File(), rec)
		if err == nil {
			inst.ForbidFallDown = forbidFallDown
			err = out.Add(inst)
		}
		if err != nil {
			skip(SectionObj, rec.Name(), err)
		}
	}
	return out, skipped
}

func (a *Assembler) tile(f *nx.File, tS string, rec mapdata.Record) (*sprite.Instance, error) {
	fr := fields{rec: rec}
	x, y := fr.int("x"), fr.int("y")
	u := fr.str("u")
	no := fr.int("no")
	fr.int("zM")
	if fr.err != nil {
		return nil, fr.err
	}

	spr, err := a.lookup(f, categoryTile, tS, u, strconv.Itoa(no))
	if err != nil {
		return nil, err
	}

	inst := sprite.NewInstance(x, y)
	inst.AddCanvas(newCanvas(spr))

	// Tiles order by their entry index; zM does not take part.
	if z, err := strconv.Atoi(rec.Name()); err == nil {
		inst.SetZ(z)
	}
	return inst, nil
}

func (a *Assembler) object(f *nx.File, rec mapdata.Record) (*sprite.Instance, error) {
	fr := fields{rec: rec}
	x, y := fr.int("x"), fr.int("y")
	oS := fr.str("oS")
	l0, l1, l2 := fr.str("l0"), fr.str("l1"), fr.str("l2")
	zM := fr.int("zM")
	flip := fr.int("f")
	// An explicit z wins over zM, but must be numeric when present.
	z := zM
	if rec.Has("z") {
		z = fr.int("z")
	}
	if fr.err != nil {
		return nil, fr.err
	}

	inst := sprite.NewInstance(x, y)
	inst.Flip = flip > 0
	inst.Rotation = rec.IntOr("r", 0)
	inst.Move = rec.IntOr("move", 0)
	inst.Dynamic = rec.IntOr("dynamic", 0)
	inst.Piece = rec.IntOr("piece", 0)

	// The frame list ends at the first missing index.
	for idx := 0; ; idx++ {
		spr, ok := a.assets.Sprite(f, categoryObj, oS, l0, l1+"/"+l2+"/"+strconv.Itoa(idx))
		if !ok {
			break
		}
		c := newCanvas(spr)
		if inst.Flip {
			c.Flip()
		}
		inst.AddCanvas(c)
	}
	if len(inst.Canvases()) == 0 {
		return nil, fmt.Errorf("%w: Obj/%s.img/%s/%s/%s", ErrNoFrames, oS, l0, l1, l2)
	}

	inst.SetZ(z)
	return inst, nil
}

func (a *Assembler) loadPortals(r *mapdata.Reader, mapID string) ([]Portal, []Skipped) {
	records, ok := r.PortalData(mapID)
	if !ok {
		return nil, nil
	}
	var portals []Portal
	var skipped []Skipped
	for _, rec := range records {
		p, err := parsePortal(rec)
		if err != nil {
			skipped = append(skipped, Skipped{Section: SectionPortal, Layer: -1, Entry: rec.Name(), Err: err})
			continue
		}
		portals = append(portals, p)
	}
	return portals, skipped
}

func (a *Assembler) lookup(f *nx.File, category string, keys ...string) (*assets.Sprite, error) {
	spr, ok := a.assets.Sprite(f, category, keys...)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSpriteNotFound, assets.NewKey(f, category, keys...).NodePath())
	}
	return spr, nil
}

// newCanvas builds a canvas carrying the sprite's metadata.
func newCanvas(spr *assets.Sprite) *sprite.Canvas {
	d := spr.Data
	c := sprite.NewCanvas(spr.Image, d.Origin, d.Z)
	c.SetDelay(d.Delay)
	c.SetAlpha(d.Alpha0, d.Alpha1)
	for _, p := range d.Footholds {
		c.AddFoothold(p)
	}
	return c
}

// fields reads required record fields and keeps the first error.
type fields struct {
	rec mapdata.Record
	err error
}

func (f *fields) int(name string) int {
	if f.err != nil {
		return 0
	}
	n, err := f.rec.Int(name)
	f.err = err
	return n
}

func (f *fields) str(name string) string {
	if f.err != nil {
		return ""
	}
	s, err := f.rec.String(name)
	f.err = err
	return s
}

func layerName(i int) string {
	return strconv.Itoa(i)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
