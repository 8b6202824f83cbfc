package vectortile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/paulmach/orb/maptile"
)

//DirSource z/x/y.pbf 目录瓦片
type DirSource struct {
	Root string
	Ext  string
}

//OpenDir xx
func OpenDir(root string) (*DirSource, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", root)
	}
	return &DirSource{Root: root, Ext: ".pbf"}, nil
}

func (d *DirSource) path(z, x, y int, ext string) string {
	return filepath.Join(d.Root, strconv.Itoa(z), strconv.Itoa(x), strconv.Itoa(y)+ext)
}

//ReadTile 依次尝试.pbf与.mvt
func (d *DirSource) ReadTile(ctx context.Context, z, x, y int) ([]byte, error) {
	if err := ValidateTile(x, y, z); err != nil {
		return nil, err
	}
	for _, ext := range []string{d.Ext, ".pbf", ".mvt"} {
		data, err := ReadTileFile(d.path(z, x, y, ext))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %d/%d/%d", ErrTileNotFound, z, x, y)
}

//WriteTile 写入 root/z/x/y.ext
func (d *DirSource) WriteTile(ctx context.Context, z, x, y int, data []byte) error {
	if err := ValidateTile(x, y, z); err != nil {
		return err
	}
	p := d.path(z, x, y, d.Ext)
	if err := os.MkdirAll(filepath.Dir(p), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}

//Tiles 遍历目录中的瓦片文件
func (d *DirSource) Tiles(ctx context.Context) ([]maptile.Tile, error) {
	matches, err := doublestar.Glob(os.DirFS(d.Root), "*/*/*.{pbf,mvt}")
	if err != nil {
		return nil, err
	}
	var tiles []maptile.Tile
	for _, m := range matches {
		parts := strings.Split(m, "/")
		z, errz := strconv.Atoi(parts[0])
		x, errx := strconv.Atoi(parts[1])
		y, erry := strconv.Atoi(strings.TrimSuffix(parts[2], filepath.Ext(parts[2])))
		if errz != nil || errx != nil || erry != nil || ValidateTile(x, y, z) != nil {
			continue
		}
		tiles = append(tiles, maptile.New(uint32(x), uint32(y), maptile.Zoom(z)))
	}
	return tiles, nil
}

//Metadata 读取 metadata.json 中的字符串字段
func (d *DirSource) Metadata(ctx context.Context) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(d.Root, "metadata.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return flattenMetadata(data)
}

//Close xx
func (d *DirSource) Close() error { return nil }
