// nxtool is a CLI utility for inspecting NX map containers.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/maplemap/internal/assets"
	"github.com/Faultbox/maplemap/internal/game/world"
	"github.com/Faultbox/maplemap/internal/logger"
	"github.com/Faultbox/maplemap/internal/mapdata"
	"github.com/Faultbox/maplemap/internal/nxweb"
	"github.com/Faultbox/maplemap/pkg/nx"
)

var spewConfig = &spew.ConfigState{
	Indent:                  "  ",
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "list", "ls":
		cmdList(args)
	case "dump":
		cmdDump(args)
	case "export", "x":
		cmdExport(args)
	case "maps":
		cmdMaps(args)
	case "render":
		cmdRender(args)
	case "serve":
		cmdServe(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`nxtool - NX map container utility

Usage:
  nxtool <command> [options]

Commands:
  info <file.nx>                      Show container information
  list <file.nx> [path]               List child nodes
  dump <file.nx> <path>               Dump a node, its children and sprite metadata
  export <file.nx> <path> [output]    Export a bitmap node as PNG or BMP
  maps <file.nx>                      List map ids
  render <file.nx> <map id> [output]  Render a whole map to PNG
  serve <file.nx>                     Browse the container over HTTP

Examples:
  nxtool info Map.nx
  nxtool list -r 2 Map.nx Back/grassySoil.img
  nxtool export -format bmp Map.nx Back/grassySoil.img/back/0 ./out
  nxtool render -footholds Map.nx 100000000 henesys.png
  nxtool serve -addr :8080 Map.nx`)
}

func open(path string) *nx.File {
	f, err := nx.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fail("Usage: nxtool info <file.nx>")
	}

	f := open(args[0])
	defer f.Close()

	h := f.Header()
	fmt.Printf("Container: %s\n", args[0])
	fmt.Printf("Size:      %.2f MB\n", float64(f.Size())/(1024*1024))
	fmt.Printf("Nodes:     %d\n", h.NodeCount)
	fmt.Printf("Strings:   %d\n", h.StringCount)
	fmt.Printf("Bitmaps:   %d\n", h.BitmapCount)
	fmt.Printf("Audio:     %d\n", h.AudioCount)
	fmt.Printf("Maps:      %d\n", len(mapdata.NewReader(f).MapIDs()))
	fmt.Println()
	fmt.Println("Top level:")
	for _, c := range f.Root().Children() {
		fmt.Printf("  %-12s %d\n", c.Name(), c.ChildCount())
	}
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	depth := fs.Int("r", 1, "Recursion depth")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fail("Usage: nxtool list [-r depth] <file.nx> [path]")
	}

	f := open(fs.Arg(0))
	defer f.Close()

	node := f.Root()
	if fs.NArg() > 1 {
		var ok bool
		if node, ok = f.Resolve(fs.Arg(1)); !ok {
			fail("Node not found: %s", fs.Arg(1))
		}
	}
	list(node, "", *depth)
}

func list(node nx.Node, indent string, depth int) {
	if depth <= 0 {
		return
	}
	for _, c := range node.Elements() {
		line := indent + c.Name()
		if v := c.Value(); !v.IsNone() {
			line += " = " + v.String()
		}
		if n := c.ChildCount(); n > 0 {
			line += fmt.Sprintf(" [%d]", n)
		}
		fmt.Println(line)
		list(c, indent+"  ", depth-1)
	}
}

func cmdDump(args []string) {
	if len(args) < 2 {
		fail("Usage: nxtool dump <file.nx> <path>")
	}

	f := open(args[0])
	defer f.Close()

	node, ok := f.Resolve(args[1])
	if !ok {
		fail("Node not found: %s", args[1])
	}

	fmt.Printf("%s (%s)\n", args[1], node.Kind())
	spewConfig.Dump(node.Value())
	if node.ChildCount() > 0 {
		spewConfig.Dump(mapdata.NewRecord(node))
	}
	if key, ok := assets.ParseKey(f, args[1]); ok {
		if spr, ok := assets.NewManager().Get(key); ok {
			fmt.Println("Sprite metadata:")
			spewConfig.Dump(spr.Data)
		}
	}
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "png", "Output format: png or bmp")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fail("Usage: nxtool export [-format png|bmp] <file.nx> <path> [output_dir]")
	}
	if *format != "png" && *format != "bmp" {
		fail("Unknown format: %s", *format)
	}

	outputDir := "."
	if fs.NArg() > 2 {
		outputDir = fs.Arg(2)
	}

	f := open(fs.Arg(0))
	defer f.Close()

	node, ok := f.Resolve(fs.Arg(1))
	if !ok {
		fail("Node not found: %s", fs.Arg(1))
	}
	img, err := node.Image()
	if err != nil {
		fail("Error decoding bitmap: %v", err)
	}

	name := strings.ReplaceAll(strings.Trim(fs.Arg(1), "/"), "/", "_") + "." + *format
	outputPath := filepath.Join(outputDir, name)
	if err := writeImage(outputPath, img, *format); err != nil {
		fail("Error writing file: %v", err)
	}

	b := img.Bounds()
	fmt.Printf("Exported: %s (%dx%d)\n", outputPath, b.Dx(), b.Dy())
}

func cmdMaps(args []string) {
	if len(args) < 1 {
		fail("Usage: nxtool maps <file.nx>")
	}

	f := open(args[0])
	defer f.Close()

	r := mapdata.NewReader(f)
	ids := r.MapIDs()
	for _, id := range ids {
		bgm := ""
		if info, ok := r.InfoData(id); ok {
			bgm = info.StringOr("bgm", "")
		}
		fmt.Printf("%s  %s\n", id, bgm)
	}
	fmt.Fprintf(os.Stderr, "\n(%d maps)\n", len(ids))
}

func cmdRender(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	footholds := fs.Bool("footholds", false, "Overlay foothold segments")
	verbose := fs.Bool("v", false, "Log skipped entries")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fail("Usage: nxtool render [-footholds] <file.nx> <map id> [output.png]")
	}
	if *verbose {
		if err := logger.Init("debug", ""); err != nil {
			fail("Logger error: %v", err)
		}
		defer logger.Sync()
	}

	mapID := fs.Arg(1)
	outputPath := mapID + ".png"
	if fs.NArg() > 2 {
		outputPath = fs.Arg(2)
	}

	f := open(fs.Arg(0))
	defer f.Close()

	scene, err := world.NewAssembler(assets.NewManager()).Assemble(context.Background(), f, mapID)
	if err != nil {
		fail("Error: %v", err)
	}
	img, err := scene.Render(*footholds)
	if err != nil {
		fail("Error rendering %s: %v", mapID, err)
	}
	if err := writeImage(outputPath, img, "png"); err != nil {
		fail("Error writing file: %v", err)
	}

	b := img.Bounds()
	fmt.Printf("Rendered: %s (%dx%d, %d instances, %d skipped)\n",
		outputPath, b.Dx(), b.Dy(), scene.InstanceCount(), scene.Report.Len())
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "localhost:8080", "Listen address")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fail("Usage: nxtool serve [-addr host:port] <file.nx>")
	}
	if err := logger.Init("info", ""); err != nil {
		fail("Logger error: %v", err)
	}
	defer logger.Sync()

	f := open(fs.Arg(0))
	defer f.Close()

	logger.Info("starting server", zap.String("addr", *addr), zap.String("nx", fs.Arg(0)))
	if err := http.ListenAndServe(*addr, nxweb.NewServer(f, nil).Handler()); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func writeImage(path string, img image.Image, format string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if format == "bmp" {
		err = bmp.Encode(out, img)
	} else {
		err = png.Encode(out, img)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
