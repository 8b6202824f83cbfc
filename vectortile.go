// Package vectortile reads and writes Mapnik vector tiles: protobuf encoded
// tiles of points, lines and polygons quantized to an integer grid.
//
// A VectorTile is bound to a tile address (x, y, z) and a tile size. After a
// buffer is parsed, each layer is exposed as a TileDatasource whose features
// carry spherical mercator geometries and their attributes.
//
//	vt, err := vectortile.NewVectorTile(0, 0, 0, 256)
//	err = vt.ParseFromBuffer(buf)
//	ds, err := vt.LayerDatasource(0)
//	features, err := ds.Features(vectortile.Query{})
package vectortile

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

//VectorTile 绑定瓦片行列号的矢量瓦片
type VectorTile struct {
	tile     Tile
	x, y, z  int
	tileSize int
	bbox     orb.Bound
	merc     *SphericalMercator
}

//NewVectorTile xx
func NewVectorTile(x, y, z, tileSize int) (*VectorTile, error) {
	if err := ValidateTile(x, y, z); err != nil {
		return nil, err
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size %d", ErrInvalidTile, tileSize)
	}
	merc := NewSphericalMercator(tileSize)
	return &VectorTile{
		x:        x,
		y:        y,
		z:        z,
		tileSize: tileSize,
		merc:     merc,
		bbox:     merc.XYZ(x, y, z),
	}, nil
}

// ParseFromBuffer loads an uncompressed protobuf buffer, replacing any
// previously parsed layers. On error the tile is left unchanged.
func (vt *VectorTile) ParseFromBuffer(buf []byte) error {
	t, err := Unmarshal(buf)
	if err != nil {
		return err
	}
	vt.tile = *t
	return nil
}

//ParseFromCompressed 自动识别gzip/zlib后解析
func (vt *VectorTile) ParseFromCompressed(buf []byte) error {
	raw, err := Decompress(buf)
	if err != nil {
		return err
	}
	return vt.ParseFromBuffer(raw)
}

//LayersSize 图层数
func (vt *VectorTile) LayersSize() int {
	return len(vt.tile.Layers)
}

func (vt *VectorTile) layer(i int) (*Layer, error) {
	if i < 0 || i >= len(vt.tile.Layers) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrLayerIndex, i, len(vt.tile.Layers))
	}
	return &vt.tile.Layers[i], nil
}

//LayerName 图层名
func (vt *VectorTile) LayerName(i int) (string, error) {
	l, err := vt.layer(i)
	if err != nil {
		return "", err
	}
	return l.Name, nil
}

//LayerNames 全部图层名
func (vt *VectorTile) LayerNames() []string {
	names := make([]string, 0, len(vt.tile.Layers))
	for _, l := range vt.tile.Layers {
		names = append(names, l.Name)
	}
	return names
}

//LayerDatasource 图层数据源，范围为瓦片范围
func (vt *VectorTile) LayerDatasource(i int) (*TileDatasource, error) {
	l, err := vt.layer(i)
	if err != nil {
		return nil, err
	}
	ds := NewTileDatasource(l, vt.x, vt.y, vt.z, vt.tileSize)
	ds.SetEnvelope(vt.bbox)
	return ds, nil
}

//LayerByName 按名称获取数据源
func (vt *VectorTile) LayerByName(name string) (*TileDatasource, bool) {
	for i := range vt.tile.Layers {
		if vt.tile.Layers[i].Name == name {
			ds, _ := vt.LayerDatasource(i)
			return ds, true
		}
	}
	return nil, false
}

//BBox 瓦片墨卡托范围
func (vt *VectorTile) BBox() orb.Bound {
	return vt.bbox
}

//LonLatBound 瓦片经纬度范围
func (vt *VectorTile) LonLatBound() orb.Bound {
	return maptile.New(uint32(vt.x), uint32(vt.y), maptile.Zoom(vt.z)).Bound()
}

//Tile 底层瓦片数据
func (vt *VectorTile) Tile() *Tile {
	return &vt.tile
}

func (vt *VectorTile) String() string {
	return fmt.Sprintf("%d/%d/%d@%d", vt.z, vt.x, vt.y, vt.tileSize)
}
