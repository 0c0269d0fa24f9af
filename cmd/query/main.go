// Command query runs shortest-path, novelty-route, and instruction
// queries against a compact graph binary from the command line.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"map_router/pkg/graph"
	"map_router/pkg/instructions"
	"map_router/pkg/routing"
)

func main() {
	graphPath := flag.String("graph", "graph.bin", "Path to a compact graph binary")
	src := flag.Int64("src", 0, "Source external node id")
	tgt := flag.Int64("tgt", 0, "Target external node id")
	novelty := flag.Bool("novelty", false, "Search for a novelty route instead of the plain shortest path")
	walkedFlag := flag.String("walked", "", "Comma-separated a:b edge pairs already walked, e.g. 10:20,20:30")
	minNovelty := flag.Float64("min-novelty", routing.DefaultMinNovelty, "Minimum fraction of unwalked edges required")
	maxOverhead := flag.Float64("max-overhead", routing.DefaultMaxOverhead, "Maximum allowed distance overhead over the shortest path")
	withInstructions := flag.Bool("instructions", false, "Include turn-by-turn instructions in the output")
	flag.Parse()

	if *src == 0 || *tgt == 0 {
		fmt.Fprintln(os.Stderr, "Usage: query --graph graph.bin --src <id> --tgt <id> [--novelty] [--walked a:b,c:d] [--instructions]")
		os.Exit(1)
	}

	g, err := graph.LoadGraph(*graphPath)
	if err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}
	defer g.Close()

	walked, err := parseWalked(*walkedFlag)
	if err != nil {
		log.Fatalf("Invalid --walked value: %v", err)
	}

	pf := routing.NewPathFinder(g)

	var result *routing.RouteResult
	var found bool
	if *novelty {
		result, found, err = pf.NoveltyRoute(*src, *tgt, walked, *minNovelty, *maxOverhead)
	} else {
		var pr *routing.PathResult
		pr, found, err = pf.ShortestPath(*src, *tgt)
		if found {
			result = &routing.RouteResult{Path: pr.Path, Distance: pr.Distance, ShortestDistance: pr.Distance, Novelty: 1.0}
		}
	}
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	if !found {
		fmt.Println(`{"found":false}`)
		return
	}

	output := struct {
		Found            bool                           `json:"found"`
		Path             []int64                        `json:"path"`
		Distance         float64                         `json:"distance_meters"`
		ShortestDistance float64                         `json:"shortest_distance_meters"`
		Novelty          float64                         `json:"novelty"`
		Overhead         float64                         `json:"overhead"`
		Instructions     []instructions.NavigationStep `json:"instructions,omitempty"`
	}{
		Found:            true,
		Path:             result.Path,
		Distance:         result.Distance,
		ShortestDistance: result.ShortestDistance,
		Novelty:          result.Novelty,
		Overhead:         result.Overhead,
	}

	if *withInstructions {
		if steps, ok := instructions.Generate(g, result.Path); ok {
			output.Instructions = steps
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}

func parseWalked(s string) (routing.WalkedSet, error) {
	walked := routing.WalkedSet{}
	if s == "" {
		return walked, nil
	}
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed edge pair %q", pair)
		}
		a, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed edge endpoint %q: %w", parts[0], err)
		}
		b, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed edge endpoint %q: %w", parts[1], err)
		}
		walked[routing.NewEdgeKey(a, b)] = struct{}{}
	}
	return walked, nil
}
