package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"map_router/pkg/api"
	"map_router/pkg/graph"
	"map_router/pkg/routing"
)

func main() {
	graphPath := flag.String("graph", "graph.bin", "Path to a compact graph binary")
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	maxSnapMeters := flag.Float64("max-snap-meters", 500, "reject endpoints farther than this from the nearest node (0 disables the check)")
	flag.Parse()

	start := time.Now()

	log.Printf("Loading graph from %s...", *graphPath)
	g, err := graph.LoadGraph(*graphPath)
	if err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}
	defer g.Close()
	log.Printf("Loaded: %d nodes, %d directed edges, version %d",
		g.NumNodes(), g.NumDirectedEdges(), g.Version())

	service := routing.NewService(g, *maxSnapMeters)

	// Reclaim memory from init-time temporaries. Without this, Go's heap
	// retains peak RSS from mmap parsing (GC doubles heap each cycle).
	runtime.GC()
	debug.FreeOSMemory()

	loadTime := time.Since(start)
	log.Printf("Ready in %s", loadTime.Round(time.Millisecond))

	addr := fmt.Sprintf(":%d", *port)
	cfg := api.DefaultConfig(addr)
	cfg.CORSOrigin = *corsOrigin

	stats := api.StatsResponse{
		NumNodes:         g.NumNodes(),
		NumDirectedEdges: g.NumDirectedEdges(),
		Version:          g.Version(),
		HasMetadata:      g.HasMetadata(),
	}

	handlers := api.NewHandlers(service, stats)
	srv := api.NewServer(cfg, handlers)

	if err := api.ListenAndServe(srv); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}
