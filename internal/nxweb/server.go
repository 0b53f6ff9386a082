// Package nxweb serves a read-only browser over an NX map container:
// node listings as JSON, sprite bitmaps and rendered maps as PNG.
package nxweb

import (
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Faultbox/maplemap/internal/assets"
	"github.com/Faultbox/maplemap/internal/game/world"
	"github.com/Faultbox/maplemap/internal/logger"
	"github.com/Faultbox/maplemap/internal/mapdata"
	"github.com/Faultbox/maplemap/pkg/nx"
)

// Server exposes one container. It only reads from the container and is
// safe for concurrent requests.
type Server struct {
	file      *nx.File
	reader    *mapdata.Reader
	assets    *assets.Manager
	assembler *world.Assembler
	log       *zap.Logger
}

// NewServer creates a server for f. A nil manager gets a fresh one.
func NewServer(f *nx.File, m *assets.Manager) *Server {
	if m == nil {
		m = assets.NewManager()
	}
	return &Server{
		file:      f,
		reader:    mapdata.NewReader(f),
		assets:    m,
		assembler: world.NewAssembler(m),
		log:       logger.Named("nxweb"),
	}
}

// Handler returns the routed handler with request logging and panic
// recovery.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/json/node", s.handleNode).Methods(http.MethodGet)
	r.HandleFunc("/json/node/{path:.*}", s.handleNode).Methods(http.MethodGet)
	r.HandleFunc("/json/maps", s.handleMaps).Methods(http.MethodGet)
	r.HandleFunc("/json/map/{id}", s.handleMap).Methods(http.MethodGet)
	r.HandleFunc("/image/{path:.*}", s.handleImage).Methods(http.MethodGet)
	r.HandleFunc("/render/{id}", s.handleRender).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	stdlog := zap.NewStdLog(s.log)
	h := handlers.LoggingHandler(stdlog.Writer(), r)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(stdlog), handlers.PrintRecoveryStack(true))(h)
	return handlers.CompressHandler(h)
}

// NodeInfo describes one node and its direct children.
type NodeInfo struct {
	Path     string      `json:"path"`
	Name     string      `json:"name"`
	Kind     string      `json:"kind"`
	Value    any         `json:"value,omitempty"`
	Children []ChildInfo `json:"children,omitempty"`
}

// ChildInfo is a child entry of NodeInfo.
type ChildInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Children int    `json:"children"`
}

// MapSummary describes an assembled map.
type MapSummary struct {
	ID        string         `json:"id"`
	Info      world.MapInfo  `json:"info"`
	Portals   []world.Portal `json:"portals"`
	Layers    map[string]int `json:"layers"`
	Bounds    [4]int         `json:"bounds"`
	Footholds int            `json:"footholds"`
	Skipped   []string       `json:"skipped,omitempty"`
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(mux.Vars(r)["path"], "/")
	node := s.file.Root()
	if path != "" {
		var ok bool
		if node, ok = s.file.Resolve(path); !ok {
			writeError(w, http.StatusNotFound, errors.New("node not found: "+path))
			return
		}
	}

	info := NodeInfo{
		Path:  path,
		Name:  node.Name(),
		Kind:  node.Kind().String(),
		Value: node.Value().Interface(),
	}
	for _, c := range node.Children() {
		info.Children = append(info.Children, ChildInfo{
			Name:     c.Name(),
			Kind:     c.Kind().String(),
			Children: c.ChildCount(),
		})
	}
	writeJSON(w, info)
}

func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.reader.MapIDs())
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	scene, ok := s.scene(w, r)
	if !ok {
		return
	}
	b := scene.Bounds()
	sum := MapSummary{
		ID:        scene.MapID,
		Info:      scene.Info,
		Portals:   scene.Portals,
		Layers:    make(map[string]int),
		Bounds:    [4]int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y},
		Footholds: len(scene.Footholds()),
	}
	for _, l := range scene.Layers() {
		sum.Layers[l.Name] = l.Len()
	}
	for _, sk := range scene.Report.Skipped {
		sum.Skipped = append(sum.Skipped, sk.String())
	}
	writeJSON(w, sum)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	key, ok := assets.ParseKey(s.file, mux.Vars(r)["path"])
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("path needs a category and a sprite"))
		return
	}
	spr, ok := s.assets.Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("sprite not found: "+key.NodePath()))
		return
	}
	writePNG(w, spr.Image)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	scene, ok := s.scene(w, r)
	if !ok {
		return
	}
	img, err := scene.Render(r.URL.Query().Get("footholds") != "")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writePNG(w, img)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.assets.Stats())
}

func (s *Server) scene(w http.ResponseWriter, r *http.Request) (*world.Scene, bool) {
	id := mux.Vars(r)["id"]
	scene, err := s.assembler.Assemble(r.Context(), s.file, id)
	if errors.Is(err, world.ErrMapNotFound) {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return scene, true
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func writePNG(w http.ResponseWriter, img image.Image) {
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		logger.Named("nxweb").Warn("png encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
