package vectortile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/paulmach/orb/maptile"
	"github.com/protomaps/go-pmtiles/pmtiles"
)

// directories nest at most this deep
const maxDirDepth = 4

//PMTiles 只读 PMTiles v3 归档
type PMTiles struct {
	file   *os.File
	header pmtiles.HeaderV3
}

//OpenPMTiles xx
func OpenPMTiles(path string) (*PMTiles, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, pmtiles.HeaderV3LenBytes)
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	h, err := pmtiles.DeserializeHeader(buf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &PMTiles{file: f, header: h}, nil
}

//Header 归档头
func (p *PMTiles) Header() pmtiles.HeaderV3 {
	return p.header
}

func (p *PMTiles) read(offset, length uint64) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := p.file.ReadAt(buf, int64(offset)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *PMTiles) directory(offset, length uint64) ([]pmtiles.EntryV3, error) {
	data, err := p.read(offset, length)
	if err != nil {
		return nil, err
	}
	return pmtiles.DeserializeEntries(bytes.NewBuffer(data), p.header.InternalCompression), nil
}

func (p *PMTiles) tileData(e pmtiles.EntryV3) ([]byte, error) {
	data, err := p.read(p.header.TileDataOffset+e.Offset, uint64(e.Length))
	if err != nil {
		return nil, err
	}
	if p.header.TileCompression == pmtiles.Gzip {
		return Decompress(data)
	}
	return data, nil
}

//ReadTile 按xyz读取，返回解压后的数据
func (p *PMTiles) ReadTile(ctx context.Context, z, x, y int) ([]byte, error) {
	if err := ValidateTile(x, y, z); err != nil {
		return nil, err
	}
	id := pmtiles.ZxyToID(uint8(z), uint32(x), uint32(y))
	offset, length := p.header.RootOffset, p.header.RootLength
	for depth := 0; depth < maxDirDepth; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := p.directory(offset, length)
		if err != nil {
			return nil, err
		}
		e, ok := pmtiles.FindTile(entries, id)
		if !ok {
			break
		}
		if e.RunLength > 0 {
			return p.tileData(e)
		}
		offset, length = p.header.LeafDirectoryOffset+e.Offset, uint64(e.Length)
	}
	return nil, fmt.Errorf("%w: %d/%d/%d", ErrTileNotFound, z, x, y)
}

//Tiles 遍历全部目录
func (p *PMTiles) Tiles(ctx context.Context) ([]maptile.Tile, error) {
	var ids []uint64
	var visit func(offset, length uint64, depth int) error
	visit = func(offset, length uint64, depth int) error {
		if depth >= maxDirDepth {
			return fmt.Errorf("pmtiles: directory nesting deeper than %d", maxDirDepth)
		}
		entries, err := p.directory(offset, length)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.RunLength == 0 {
				if err := visit(p.header.LeafDirectoryOffset+e.Offset, uint64(e.Length), depth+1); err != nil {
					return err
				}
				continue
			}
			for i := uint32(0); i < e.RunLength; i++ {
				ids = append(ids, e.TileID+uint64(i))
			}
		}
		return ctx.Err()
	}
	if err := visit(p.header.RootOffset, p.header.RootLength, 0); err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	tiles := make([]maptile.Tile, 0, len(ids))
	for _, id := range ids {
		z, x, y := pmtiles.IDToZxy(id)
		tiles = append(tiles, maptile.New(x, y, maptile.Zoom(z)))
	}
	return tiles, nil
}

//Metadata 归档JSON元数据
func (p *PMTiles) Metadata(ctx context.Context) (map[string]string, error) {
	if p.header.MetadataLength == 0 {
		return map[string]string{}, nil
	}
	data, err := p.read(p.header.MetadataOffset, p.header.MetadataLength)
	if err != nil {
		return nil, err
	}
	if p.header.InternalCompression == pmtiles.Gzip {
		if data, err = Decompress(data); err != nil {
			return nil, err
		}
	}
	return flattenMetadata(data)
}

//Close xx
func (p *PMTiles) Close() error {
	return p.file.Close()
}
