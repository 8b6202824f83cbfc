// Command vtinfo inspects, dumps, scans and encodes Mapnik vector tiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
)

const usage = `usage: vtinfo [-config file] <command> [flags] args

commands:
  info    print layers of tile files or of one tile in an archive
  dump    print features as GeoJSON
  scan    compute tilestats for an .mbtiles, .pmtiles or tile directory
  encode  build a point tile from a CSV file
`

func main() {
	configPath := flag.String("config", os.Getenv("VTINFO_CONFIG"), "TOML configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	config, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := config.SetupLogging(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "info":
		err = runInfo(ctx, config, args, os.Stdout)
	case "dump":
		err = runDump(ctx, config, args, os.Stdout)
	case "scan":
		err = runScan(ctx, config, args, os.Stdout)
	case "encode":
		err = runEncode(ctx, config, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}
