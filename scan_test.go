package vectortile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkers(t *testing.T) {
	assert.Equal(t, 2, Workers(3))
	assert.Equal(t, 8, Workers(8))
	assert.Equal(t, 1, Workers(1))

	t.Setenv("MAX_THREADS", "6")
	assert.Equal(t, 4, Workers(0))
	assert.Equal(t, 16, Workers(17), "explicit count wins over MAX_THREADS")

	t.Setenv("MAX_THREADS", "junk")
	assert.GreaterOrEqual(t, Workers(0), 1)
}

func TestCheckMemory(t *testing.T) {
	assert.Greater(t, CheckMemory(0), uint64(0))
}

func scanArchive(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scan.mbtiles")
	db, err := CreateMBTiles(path)
	require.NoError(t, err)

	raw, err := Marshal(statsTile(t, map[string]interface{}{"name": "a"}))
	require.NoError(t, err)
	gz, err := Compress(raw, GZIP)
	require.NoError(t, err)

	require.NoError(t, db.WriteTile(ctx, 0, 0, 0, raw))
	require.NoError(t, db.WriteTile(ctx, 1, 0, 0, gz))
	require.NoError(t, db.WriteTile(ctx, 1, 1, 0, gz))
	require.NoError(t, db.WriteTile(ctx, 2, 0, 0, []byte{0xff, 0xff}))
	require.NoError(t, db.Close())
	return path
}

func TestScan(t *testing.T) {
	src, err := OpenSource(scanArchive(t))
	require.NoError(t, err)
	defer src.Close()

	stats, err := Scan(context.Background(), src, ScanOptions{Workers: 2, MaxZoom: -1})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tiles)
	assert.Equal(t, 1, stats.Errors)
	le := stats.Layers["pois"]
	require.NotNil(t, le)
	assert.Equal(t, 3, le.Tiles)
	assert.Equal(t, 0, le.Minzoom)
	assert.Equal(t, 1, le.Maxzoom)
	assert.Equal(t, 3, le.FileKeys["name"].Count)
}

func TestScanZoomRange(t *testing.T) {
	src, err := OpenSource(scanArchive(t))
	require.NoError(t, err)
	defer src.Close()

	stats, err := Scan(context.Background(), src, ScanOptions{Workers: 4, MinZoom: 1, MaxZoom: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Tiles)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 1, stats.Layers["pois"].Minzoom)
}

func TestScanCanceled(t *testing.T) {
	src, err := OpenSource(scanArchive(t))
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Scan(ctx, src, ScanOptions{Workers: 1, MaxZoom: -1})
	assert.ErrorIs(t, err, context.Canceled)
}
