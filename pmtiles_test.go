package vectortile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/protomaps/go-pmtiles/pmtiles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePMTiles lays out header, root directory, metadata, one leaf directory
// and gzip tile data. 0/0/0 sits in the root, zoom 1 tiles in the leaf.
func writePMTiles(t *testing.T, tiles map[[3]int][]byte) string {
	t.Helper()
	var (
		data        bytes.Buffer
		root, leafs []pmtiles.EntryV3
	)
	type keyed struct {
		id  uint64
		raw []byte
	}
	var sorted []keyed
	for zxy, raw := range tiles {
		sorted = append(sorted, keyed{pmtiles.ZxyToID(uint8(zxy[0]), uint32(zxy[1]), uint32(zxy[2])), raw})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })
	for _, k := range sorted {
		c, err := Compress(k.raw, GZIP)
		require.NoError(t, err)
		e := pmtiles.EntryV3{TileID: k.id, Offset: uint64(data.Len()), Length: uint32(len(c)), RunLength: 1}
		data.Write(c)
		if k.id == 0 {
			root = append(root, e)
		} else {
			leafs = append(leafs, e)
		}
	}
	leaf := pmtiles.SerializeEntries(leafs, pmtiles.NoCompression)
	if len(leafs) > 0 {
		root = append(root, pmtiles.EntryV3{TileID: leafs[0].TileID, Offset: 0, Length: uint32(len(leaf)), RunLength: 0})
	}
	dir := pmtiles.SerializeEntries(root, pmtiles.NoCompression)
	metadata := []byte(`{"name":"archive","vector_layers":[{"id":"pois"}]}`)

	var h pmtiles.HeaderV3
	h.SpecVersion = 3
	h.RootOffset = uint64(pmtiles.HeaderV3LenBytes)
	h.RootLength = uint64(len(dir))
	h.MetadataOffset = h.RootOffset + h.RootLength
	h.MetadataLength = uint64(len(metadata))
	h.LeafDirectoryOffset = h.MetadataOffset + h.MetadataLength
	h.LeafDirectoryLength = uint64(len(leaf))
	h.TileDataOffset = h.LeafDirectoryOffset + h.LeafDirectoryLength
	h.TileDataLength = uint64(data.Len())
	h.AddressedTilesCount = uint64(len(tiles))
	h.TileEntriesCount = uint64(len(tiles))
	h.TileContentsCount = uint64(len(tiles))
	h.InternalCompression = pmtiles.NoCompression
	h.TileCompression = pmtiles.Gzip
	h.TileType = pmtiles.Mvt
	h.MaxZoom = 1

	var out bytes.Buffer
	out.Write(pmtiles.SerializeHeader(h))
	out.Write(dir)
	out.Write(metadata)
	out.Write(leaf)
	out.Write(data.Bytes())

	path := filepath.Join(t.TempDir(), "test.pmtiles")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0644))
	return path
}

func TestPMTiles(t *testing.T) {
	ctx := context.Background()
	path := writePMTiles(t, map[[3]int][]byte{
		{0, 0, 0}: []byte("world"),
		{1, 0, 0}: []byte("north west"),
		{1, 1, 1}: []byte("south east"),
	})

	src, err := OpenSource(path)
	require.NoError(t, err)
	defer src.Close()
	p, ok := src.(*PMTiles)
	require.True(t, ok)
	assert.Equal(t, pmtiles.Mvt, p.Header().TileType)

	data, err := p.ReadTile(ctx, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), data)

	data, err = p.ReadTile(ctx, 1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("south east"), data)

	_, err = p.ReadTile(ctx, 1, 1, 0)
	assert.ErrorIs(t, err, ErrTileNotFound)
	_, err = p.ReadTile(ctx, 1, 5, 0)
	assert.ErrorIs(t, err, ErrInvalidTile)

	tiles, err := p.Tiles(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []maptile.Tile{
		maptile.New(0, 0, 0),
		maptile.New(0, 0, 1),
		maptile.New(1, 1, 1),
	}, tiles)

	md, err := p.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "archive", md["name"])
	assert.JSONEq(t, `[{"id":"pois"}]`, md["vector_layers"])
}

func TestOpenPMTilesBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pmtiles")
	require.NoError(t, os.WriteFile(path, []byte("not an archive"), 0644))
	_, err := OpenPMTiles(path)
	assert.Error(t, err)
}
