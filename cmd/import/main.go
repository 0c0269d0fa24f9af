// Command import converts an OSM PBF extract into a compact pedestrian
// routing graph binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"map_router/pkg/graph"
	"map_router/pkg/osmimport"
)

func main() {
	input := flag.String("input", "", "Path to .osm.pbf file")
	output := flag.String("output", "graph.bin", "Output compact graph binary path")
	bbox := flag.String("bbox", "", "Bounding box filter: minLat,minLng,maxLat,maxLng")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: import --input <file.osm.pbf> [--output graph.bin] [--bbox minLat,minLng,maxLat,maxLng]")
		os.Exit(1)
	}

	var opts osmimport.ParseOptions
	if *bbox != "" {
		var minLat, minLng, maxLat, maxLng float64
		if _, err := fmt.Sscanf(*bbox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
			log.Fatalf("Invalid bbox format (expected minLat,minLng,maxLat,maxLng): %v", err)
		}
		opts.BBox = osmimport.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
		log.Printf("Using bounding box filter: lat [%.4f, %.4f], lng [%.4f, %.4f]", minLat, maxLat, minLng, maxLng)
	}

	start := time.Now()

	log.Println("Opening OSM file...")
	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("Failed to open input file: %v", err)
	}
	defer f.Close()

	log.Println("Parsing OSM data...")
	parseResult, err := osmimport.Parse(context.Background(), f, opts)
	if err != nil {
		log.Fatalf("Failed to parse OSM data: %v", err)
	}
	log.Printf("Parsed %d edges, %d nodes", len(parseResult.Edges), len(parseResult.NodeLat))

	log.Println("Building graph...")
	b := osmimport.ToBuildGraph(parseResult)
	log.Printf("Graph: %d nodes, %d directed edges", b.NumNodes(), len(parseResult.Edges))

	log.Println("Extracting largest connected component...")
	componentNodes := graph.LargestComponent(b)
	log.Printf("Largest component: %d nodes (%.1f%%)", len(componentNodes), float64(len(componentNodes))/float64(b.NumNodes())*100)
	b = graph.FilterToComponent(b, componentNodes)
	b.Finalize()
	log.Printf("Filtered graph: %d nodes, %d directed edges", b.NumNodes(), len(b.AdjTargets))

	log.Printf("Writing binary to %s...", *output)
	if err := graph.WriteBinary(*output, b); err != nil {
		log.Fatalf("Failed to write binary: %v", err)
	}

	info, _ := os.Stat(*output)
	elapsed := time.Since(start)
	log.Printf("Done in %s. Output: %s (%.1f MB)", elapsed.Round(time.Second), *output, float64(info.Size())/(1024*1024))
}
