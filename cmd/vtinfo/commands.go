package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"

	vectortile "github.com/flippmoke/mapnik-vector-tile"
)

type tileFlags struct {
	z, x, y int
}

func (tf *tileFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&tf.z, "z", -1, "tile zoom (inferred from z/x/y paths when omitted)")
	fs.IntVar(&tf.x, "x", -1, "tile column")
	fs.IntVar(&tf.y, "y", -1, "tile row (XYZ scheme)")
}

func (tf tileFlags) set() bool {
	return tf.z >= 0 && tf.x >= 0 && tf.y >= 0
}

// zxyFromPath reads a trailing z/x/y.ext from a tile file path.
func zxyFromPath(path string) (tileFlags, bool) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) < 3 {
		return tileFlags{}, false
	}
	n := len(parts)
	z, errz := strconv.Atoi(parts[n-3])
	x, errx := strconv.Atoi(parts[n-2])
	y, erry := strconv.Atoi(strings.TrimSuffix(parts[n-1], filepath.Ext(parts[n-1])))
	if errz != nil || errx != nil || erry != nil {
		return tileFlags{}, false
	}
	return tileFlags{z: z, x: x, y: y}, true
}

func isSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mbtiles", ".pmtiles":
		return true
	}
	return isDir(path)
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

type namedTile struct {
	name string
	vt   *vectortile.VectorTile
}

// loadTiles resolves args into parsed tiles: either one tile of an archive or
// any number of tile files and glob patterns.
func loadTiles(ctx context.Context, config *Config, tf tileFlags, args []string) ([]namedTile, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no input given")
	}
	if len(args) == 1 && isSource(args[0]) {
		if !tf.set() {
			return nil, fmt.Errorf("%s: -z, -x and -y are required for archives", args[0])
		}
		src, err := vectortile.OpenSource(args[0])
		if err != nil {
			return nil, err
		}
		defer src.Close()
		data, err := src.ReadTile(ctx, tf.z, tf.x, tf.y)
		if err != nil {
			return nil, err
		}
		vt, err := parseTile(config, tf, data)
		if err != nil {
			return nil, err
		}
		return []namedTile{{name: fmt.Sprintf("%s#%d/%d/%d", args[0], tf.z, tf.x, tf.y), vt: vt}}, nil
	}

	var tiles []namedTile
	for _, pattern := range args {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%s: no such file", pattern)
		}
		for _, path := range matches {
			at := tf
			if !tf.set() {
				var ok bool
				if at, ok = zxyFromPath(path); !ok {
					at = tileFlags{}
					log.Debugf("%s: no z/x/y in path, using 0/0/0", path)
				}
			}
			data, err := vectortile.ReadTileFile(path)
			if err != nil {
				return nil, err
			}
			vt, err := parseTile(config, at, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			tiles = append(tiles, namedTile{name: path, vt: vt})
		}
	}
	return tiles, nil
}

func parseTile(config *Config, tf tileFlags, data []byte) (*vectortile.VectorTile, error) {
	vt, err := vectortile.NewVectorTile(tf.x, tf.y, tf.z, config.Tile.Size)
	if err != nil {
		return nil, err
	}
	if err := vt.ParseFromCompressed(data); err != nil {
		return nil, err
	}
	return vt, nil
}

func runInfo(ctx context.Context, config *Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	var tf tileFlags
	tf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	tiles, err := loadTiles(ctx, config, tf, fs.Args())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, t := range tiles {
		b := t.vt.BBox()
		fmt.Fprintf(w, "%s\ttile %s\tbbox %.2f,%.2f,%.2f,%.2f\n", t.name, t.vt, b.Min[0], b.Min[1], b.Max[0], b.Max[1])
		for i := 0; i < t.vt.LayersSize(); i++ {
			ds, err := t.vt.LayerDatasource(i)
			if err != nil {
				return err
			}
			var fields []string
			for _, f := range ds.Fields() {
				fields = append(fields, f.Name+":"+f.Type.String())
			}
			fmt.Fprintf(w, "  %s\t%d features\t%s\t%s\n", ds.Name(), ds.Len(), ds.GeometryType(), strings.Join(fields, ","))
		}
	}
	return w.Flush()
}

func runDump(ctx context.Context, config *Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	var tf tileFlags
	tf.register(fs)
	layer := fs.String("layer", "", "only dump this layer")
	srs := fs.String("srs", config.Tile.SRS, "output projection, EPSG:4326 or EPSG:3857")
	if err := fs.Parse(args); err != nil {
		return err
	}
	proj, err := vectortile.ProjectionByName(*srs)
	if err != nil {
		return err
	}
	tiles, err := loadTiles(ctx, config, tf, fs.Args())
	if err != nil {
		return err
	}

	fc := geojson.NewFeatureCollection()
	for _, t := range tiles {
		for i := 0; i < t.vt.LayersSize(); i++ {
			ds, err := t.vt.LayerDatasource(i)
			if err != nil {
				return err
			}
			if *layer != "" && ds.Name() != *layer {
				continue
			}
			features, err := ds.Features(vectortile.Query{Projection: proj})
			if err != nil {
				return err
			}
			for _, df := range features {
				f := geojson.NewFeature(df.Geometry)
				for k, v := range df.Properties {
					f.Properties[k] = v
				}
				f.Properties["vt_layer"] = ds.Name()
				if df.HasID {
					f.ID = df.ID
				}
				fc.Append(f)
			}
		}
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

type scanReport struct {
	Tiles     int                  `json:"tiles"`
	Bytes     int64                `json:"bytes"`
	Errors    int                  `json:"errors"`
	Tilestats vectortile.TileStats `json:"tilestats"`
}

func runScan(ctx context.Context, config *Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	workers := fs.Int("workers", config.Scan.Workers, "decode goroutines")
	minzoom := fs.Int("minzoom", config.Scan.MinZoom, "skip tiles below this zoom")
	maxzoom := fs.Int("maxzoom", config.Scan.MaxZoom, "skip tiles above this zoom, -1 for none")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("scan takes exactly one archive")
	}
	src, err := vectortile.OpenSource(fs.Arg(0))
	if err != nil {
		return err
	}
	defer src.Close()

	stats, err := vectortile.Scan(ctx, src, vectortile.ScanOptions{
		Workers:       *workers,
		MinFreeMemory: config.Scan.MinFreeMemoryMB << 20,
		MinZoom:       *minzoom,
		MaxZoom:       *maxzoom,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(scanReport{
		Tiles:     stats.Tiles,
		Bytes:     stats.Bytes,
		Errors:    stats.Errors,
		Tilestats: stats.TileStats(),
	})
}

// parseTypes reads "col:type,col:type".
func parseTypes(s string) (map[string]vectortile.ValueType, error) {
	types := make(map[string]vectortile.ValueType)
	if s == "" {
		return types, nil
	}
	for _, kv := range strings.Split(s, ",") {
		name, typ, ok := strings.Cut(kv, ":")
		if !ok {
			return nil, fmt.Errorf("attribute type %q: want name:type", kv)
		}
		t, err := vectortile.ParseValueType(typ)
		if err != nil {
			return nil, err
		}
		types[name] = t
	}
	return types, nil
}

func runEncode(ctx context.Context, config *Config, args []string) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	var tf tileFlags
	tf.register(fs)
	csvPath := fs.String("csv", "", "input CSV of points")
	layer := fs.String("layer", "", "layer name, defaults to the CSV file name")
	output := fs.String("o", "", "output .mvt/.pbf file, .mbtiles or tile directory")
	types := fs.String("types", "", "attribute types, e.g. id:int,name:string")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *csvPath == "" || *output == "" || !tf.set() {
		return fmt.Errorf("encode needs -csv, -o, -z, -x and -y")
	}
	if *layer == "" {
		*layer = strings.TrimSuffix(filepath.Base(*csvPath), filepath.Ext(*csvPath))
	}
	attrTypes, err := parseTypes(*types)
	if err != nil {
		return err
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		return err
	}
	defer f.Close()
	l, err := vectortile.ParseGeoCSV(f, vectortile.CSVOptions{
		Layer:          *layer,
		X:              tf.x,
		Y:              tf.y,
		Z:              tf.z,
		TileSize:       config.Tile.Size,
		Extent:         config.Tile.Extent,
		Buffer:         config.Tile.Buffer,
		AttributeTypes: attrTypes,
	})
	if err != nil {
		return err
	}
	tile := &vectortile.Tile{Layers: []vectortile.Layer{*l}}
	raw, err := vectortile.Marshal(tile)
	if err != nil {
		return err
	}
	data, err := vectortile.Compress(raw, vectortile.Encoding(config.Tile.Encoding))
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"layer": l.Name, "features": len(l.Features), "bytes": len(data)}).Info("encoded tile")

	if !isDir(*output) && !strings.EqualFold(filepath.Ext(*output), ".mbtiles") {
		return os.WriteFile(*output, data, 0644)
	}
	w, err := vectortile.CreateWriter(*output)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.WriteTile(ctx, tf.z, tf.x, tf.y, data); err != nil {
		return err
	}
	if db, ok := w.(*vectortile.MBTiles); ok {
		return writeMetadata(ctx, db, *output, tf, tile, data)
	}
	return nil
}

// writeMetadata fills the MBTiles metadata table for a single tile archive.
func writeMetadata(ctx context.Context, db *vectortile.MBTiles, path string, tf tileFlags, tile *vectortile.Tile, data []byte) error {
	vt, err := vectortile.NewVectorTile(tf.x, tf.y, tf.z, vectortile.DefaultTileSize)
	if err != nil {
		return err
	}
	stats := vectortile.NewStats()
	stats.AddTile(tf.z, tile, len(data))
	var vectorLayers []map[string]interface{}
	for _, l := range tile.Layers {
		fields := make(map[string]string)
		for k, fk := range stats.Layers[l.Name].FileKeys {
			fields[k] = fk.TypeName()
		}
		vectorLayers = append(vectorLayers, map[string]interface{}{
			"id":      l.Name,
			"fields":  fields,
			"minzoom": tf.z,
			"maxzoom": tf.z,
		})
	}
	js, err := json.Marshal(map[string]interface{}{
		"vector_layers": vectorLayers,
		"tilestats":     stats.TileStats(),
	})
	if err != nil {
		return err
	}
	b := vt.LonLatBound()
	return db.WriteMetadata(ctx, map[string]string{
		"name":    filepath.Base(path),
		"format":  "pbf",
		"minzoom": strconv.Itoa(tf.z),
		"maxzoom": strconv.Itoa(tf.z),
		"bounds":  fmt.Sprintf("%f,%f,%f,%f", b.Min[0], b.Min[1], b.Max[0], b.Max[1]),
		"json":    string(js),
	})
}
