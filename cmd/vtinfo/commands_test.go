package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vectortile "github.com/flippmoke/mapnik-vector-tile"
)

const citiesCSV = `name,lng,lat,pop
paris,2.35,48.85,2100000
berlin,13.4,52.52,3600000
`

func encodeFixture(t *testing.T, output string) {
	t.Helper()
	csvPath := filepath.Join(t.TempDir(), "cities.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(citiesCSV), 0644))
	err := runEncode(context.Background(), DefaultConfig(), []string{
		"-csv", csvPath, "-z", "2", "-x", "2", "-y", "1", "-types", "pop:int", "-o", output,
	})
	require.NoError(t, err)
}

func TestZxyFromPath(t *testing.T) {
	tf, ok := zxyFromPath("tiles/14/8192/5461.mvt")
	assert.True(t, ok)
	assert.Equal(t, tileFlags{z: 14, x: 8192, y: 5461}, tf)

	_, ok = zxyFromPath("tile.mvt")
	assert.False(t, ok)
	_, ok = zxyFromPath("a/b/c.mvt")
	assert.False(t, ok)
}

func TestParseTypes(t *testing.T) {
	types, err := parseTypes("pop:int,name:string")
	require.NoError(t, err)
	assert.Len(t, types, 2)

	_, err = parseTypes("pop")
	assert.Error(t, err)
	_, err = parseTypes("pop:date")
	assert.Error(t, err)
}

func TestEncodeInfoDump(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2", "2"), 0755))
	tilePath := filepath.Join(root, "2", "2", "1.mvt")
	encodeFixture(t, tilePath)

	var out bytes.Buffer
	require.NoError(t, runInfo(context.Background(), DefaultConfig(), []string{tilePath}, &out))
	assert.Contains(t, out.String(), "2/2/1@256")
	assert.Contains(t, out.String(), "cities")
	assert.Contains(t, out.String(), "2 features")
	assert.Contains(t, out.String(), "pop:Number")

	out.Reset()
	require.NoError(t, runDump(context.Background(), DefaultConfig(), []string{"-layer", "cities", tilePath}, &out))
	fc, err := geojson.UnmarshalFeatureCollection(out.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	f := fc.Features[0]
	assert.Equal(t, "paris", f.Properties["name"])
	assert.Equal(t, "cities", f.Properties["vt_layer"])
	p, ok := f.Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, 2.35, p[0], 0.1)
	assert.InDelta(t, 48.85, p[1], 0.1)

	out.Reset()
	require.NoError(t, runDump(context.Background(), DefaultConfig(), []string{"-layer", "roads", tilePath}, &out))
	fc, err = geojson.UnmarshalFeatureCollection(out.Bytes())
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
}

func TestEncodeMBTilesAndScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.mbtiles")
	encodeFixture(t, path)

	var out bytes.Buffer
	require.NoError(t, runInfo(context.Background(), DefaultConfig(), []string{"-z", "2", "-x", "2", "-y", "1", path}, &out))
	assert.Contains(t, out.String(), "cities")

	err := runInfo(context.Background(), DefaultConfig(), []string{path}, &out)
	assert.Error(t, err, "archives need a tile address")

	out.Reset()
	require.NoError(t, runScan(context.Background(), DefaultConfig(), []string{"-workers", "1", path}, &out))
	var report scanReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 1, report.Tiles)
	assert.Equal(t, 0, report.Errors)
	require.Len(t, report.Tilestats.Layers, 1)
	assert.Equal(t, "cities", report.Tilestats.Layers[0].Layer)
	assert.Equal(t, uint(2), report.Tilestats.Layers[0].Count)

	src, err := vectortile.OpenSource(path)
	require.NoError(t, err)
	defer src.Close()
	md, err := src.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pbf", md["format"])
	assert.Equal(t, "2", md["minzoom"])
	assert.Contains(t, md["json"], `"vector_layers"`)
}

func TestEncodeDirectory(t *testing.T) {
	dir := t.TempDir()
	encodeFixture(t, dir)
	_, err := os.Stat(filepath.Join(dir, "2", "2", "1.pbf"))
	assert.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), DefaultConfig(), []string{dir}, &out))
	assert.Contains(t, out.String(), `"tiles": 1`)
}

func TestCommandErrors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, runInfo(context.Background(), DefaultConfig(), nil, &out))
	assert.Error(t, runInfo(context.Background(), DefaultConfig(), []string{"missing/*.mvt"}, &out))
	assert.Error(t, runScan(context.Background(), DefaultConfig(), nil, &out))
	assert.Error(t, runDump(context.Background(), DefaultConfig(), []string{"-srs", "EPSG:2154", "x.mvt"}, &out))
	assert.Error(t, runEncode(context.Background(), DefaultConfig(), []string{"-csv", "x.csv"}))
}
