// Command demo loads a navigation mesh set and runs queries against it.
//
//	demo -config navquery.yaml path 1,0,1 25,0,14
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gorustyt/navquery/common/message"
	"github.com/gorustyt/navquery/config"
	"github.com/gorustyt/navquery/logger"
)

var (
	flagConfig = flag.String("config", "", "Path to config file (.yaml, .yml or .toml)")
	flagMesh   = flag.String("mesh", "", "Mesh set file, overrides mesh_path")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
	flagSeed   = flag.Int64("seed", 0, "Seed for random queries, 0 uses the clock")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	cfg := config.Default()
	if *flagConfig != "" {
		var err error
		if cfg, err = config.Load(*flagConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
	}
	if *flagMesh != "" {
		cfg.MeshPath = *flagMesh
	}
	if *flagDebug {
		cfg.Log.Level = "debug"
	}
	if cfg.MeshPath == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	mesh, err := message.LoadFile(cfg.MeshPath, log)
	if err != nil {
		log.Error("failed to load mesh", zap.String("path", cfg.MeshPath), zap.Error(err))
		os.Exit(1)
	}

	seed := *flagSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r, err := newRunner(mesh, cfg, log, rand.New(rand.NewSource(seed)))
	if err != nil {
		log.Error("failed to create query", zap.Error(err))
		os.Exit(1)
	}
	if err := r.run(os.Stdout, flag.Args()); err != nil {
		log.Error("query failed", zap.Strings("args", flag.Args()), zap.Error(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: demo [flags] <command> [args]

commands:
  nearest X,Y,Z            nearest polygon to a point
  path    X,Y,Z X,Y,Z      corridor and straight path between two points
  move    X,Y,Z X,Y,Z      slide along the surface from the first point to the second
  circle  X,Y,Z RADIUS     polygons reachable within a walkable radius
  walls   X,Y,Z            wall and portal segments of the polygon under a point
  random  [COUNT]          random points on the mesh
  raycast X,Y,Z X,Y,Z      walkability ray from the first point toward the second
  wall    X,Y,Z RADIUS     distance to the nearest wall within a radius

flags:
`)
	flag.PrintDefaults()
}
