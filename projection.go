package vectortile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	earthRadius  = 6378137.0
	originShift  = math.Pi * earthRadius
	maxTileZoom  = 30
	webMercator  = "EPSG:3857"
	geographical = "EPSG:4326"
)

//SphericalMercator 球面墨卡托，按瓦片像素大小换算
type SphericalMercator struct {
	TileSize int
}

//NewSphericalMercator xx
func NewSphericalMercator(tileSize int) *SphericalMercator {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	return &SphericalMercator{TileSize: tileSize}
}

//Resolution 每像素米数
func (m *SphericalMercator) Resolution(z int) float64 {
	return 2 * originShift / (float64(m.TileSize) * math.Exp2(float64(z)))
}

//FromPixels 像素坐标转墨卡托米
func (m *SphericalMercator) FromPixels(px, py float64, z int) orb.Point {
	res := m.Resolution(z)
	return orb.Point{px*res - originShift, originShift - py*res}
}

//ToPixels 墨卡托米转像素坐标
func (m *SphericalMercator) ToPixels(p orb.Point, z int) (px, py float64) {
	res := m.Resolution(z)
	return (p[0] + originShift) / res, (originShift - p[1]) / res
}

//XYZ 瓦片范围（米），y轴向北
func (m *SphericalMercator) XYZ(x, y, z int) orb.Bound {
	ts := float64(m.TileSize)
	lo := m.FromPixels(float64(x)*ts, float64(y+1)*ts, z)
	hi := m.FromPixels(float64(x+1)*ts, float64(y)*ts, z)
	return orb.Bound{Min: lo, Max: hi}
}

// TileTransform returns a function mapping EPSG:3857 meters into the integer
// coordinate space of tile x/y/z with the given extent.
func (m *SphericalMercator) TileTransform(x, y, z int, extent uint32) func(orb.Point) orb.Point {
	ts := float64(m.TileSize)
	scale := float64(extent) / ts
	return func(p orb.Point) orb.Point {
		px, py := m.ToPixels(p, z)
		return orb.Point{(px - float64(x)*ts) * scale, (py - float64(y)*ts) * scale}
	}
}

//ValidateTile 检查瓦片行列号
func ValidateTile(x, y, z int) error {
	if z < 0 || z > maxTileZoom {
		return fmt.Errorf("%w: zoom %d", ErrInvalidTile, z)
	}
	n := 1 << uint(z)
	if x < 0 || x >= n || y < 0 || y >= n {
		return fmt.Errorf("%w: %d/%d/%d", ErrInvalidTile, z, x, y)
	}
	return nil
}

//Projection 投影，输入为墨卡托米
type Projection interface {
	Name() string
	Project(p orb.Point) orb.Point
	UnProject(p orb.Point) orb.Point
}

//EPSG projection info
type EPSG struct {
	Code string
}

//Name xx
func (e EPSG) Name() string { return e.Code }

//EPSG4326 plate
type EPSG4326 struct{ EPSG }

//EPSG3857 webmecarto
type EPSG3857 struct{ EPSG }

//Project 墨卡托转经纬度
func (EPSG4326) Project(p orb.Point) orb.Point { return project.Mercator.ToWGS84(p) }

//UnProject 经纬度转墨卡托
func (EPSG4326) UnProject(p orb.Point) orb.Point {
	lat := math.Max(math.Min(p[1], 85.0511287798), -85.0511287798)
	return project.WGS84.ToMercator(orb.Point{p[0], lat})
}

//Project identity
func (EPSG3857) Project(p orb.Point) orb.Point { return p }

//UnProject identity
func (EPSG3857) UnProject(p orb.Point) orb.Point { return p }

//ProjectionByName 按名称获取投影
func ProjectionByName(name string) (Projection, error) {
	switch name {
	case geographical, "WGS84", "CRS84":
		return EPSG4326{EPSG{geographical}}, nil
	case webMercator, "EPSG:900913", "":
		return EPSG3857{EPSG{webMercator}}, nil
	}
	return nil, fmt.Errorf("unsupported projection %q", name)
}
