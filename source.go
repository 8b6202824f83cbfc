package vectortile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/maptile"
)

//Source 瓦片数据源
type Source interface {
	ReadTile(ctx context.Context, z, x, y int) ([]byte, error)
	Tiles(ctx context.Context) ([]maptile.Tile, error)
	Metadata(ctx context.Context) (map[string]string, error)
	Close() error
}

//Writer 可写瓦片库
type Writer interface {
	WriteTile(ctx context.Context, z, x, y int, data []byte) error
	Close() error
}

var (
	_ Writer = (*MBTiles)(nil)
	_ Writer = (*DirSource)(nil)
)

//CreateWriter .mbtiles 新建或追加，已有目录按 z/x/y 写入
func CreateWriter(path string) (Writer, error) {
	if strings.EqualFold(filepath.Ext(path), ".mbtiles") {
		return CreateMBTiles(path)
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s: not a tile archive or directory", path)
	}
	return OpenDir(path)
}

//OpenSource 按扩展名打开数据源
func OpenSource(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mbtiles":
		return OpenMBTiles(path)
	case ".pmtiles":
		return OpenPMTiles(path)
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return OpenDir(path)
	}
	return nil, fmt.Errorf("%s: unknown tile source", path)
}

// flattenMetadata keeps string members as-is and re-encodes everything else
// as JSON, matching the MBTiles metadata table.
func flattenMetadata(data []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	md := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			md[k] = s
			continue
		}
		md[k] = string(v)
	}
	return md, nil
}
