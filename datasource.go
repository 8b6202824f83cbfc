package vectortile

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	log "github.com/sirupsen/logrus"
)

// Query selects features. Bound is given in the query projection (EPSG:3857
// meters when Projection is nil); the zero Bound keeps every feature.
type Query struct {
	Bound      orb.Bound
	Projection Projection
}

//DecodedFeature 解码后的要素
type DecodedFeature struct {
	ID         uint64
	HasID      bool
	Type       GeomType
	Geometry   orb.Geometry
	Properties map[string]interface{}
}

//Field 属性字段描述
type Field struct {
	Name string
	Type ValueType
}

//TileDatasource 单个图层的数据源
type TileDatasource struct {
	layer    *Layer
	x, y, z  int
	tileSize int
	merc     *SphericalMercator
	envelope orb.Bound
}

//NewTileDatasource xx
func NewTileDatasource(layer *Layer, x, y, z, tileSize int) *TileDatasource {
	merc := NewSphericalMercator(tileSize)
	return &TileDatasource{
		layer:    layer,
		x:        x,
		y:        y,
		z:        z,
		tileSize: merc.TileSize,
		merc:     merc,
		envelope: merc.XYZ(x, y, z),
	}
}

//Name 图层名
func (ds *TileDatasource) Name() string {
	return ds.layer.Name
}

//Envelope 数据范围
func (ds *TileDatasource) Envelope() orb.Bound {
	return ds.envelope
}

//SetEnvelope xx
func (ds *TileDatasource) SetEnvelope(b orb.Bound) {
	ds.envelope = b
}

//Len 要素数
func (ds *TileDatasource) Len() int {
	return len(ds.layer.Features)
}

// transform maps extent coordinates of the layer to mercator meters.
func (ds *TileDatasource) transform() func(x, y int64) orb.Point {
	ts := float64(ds.tileSize)
	scale := ts / float64(ds.layer.Extent)
	tx, ty := float64(ds.x)*ts, float64(ds.y)*ts
	return func(x, y int64) orb.Point {
		return ds.merc.FromPixels(tx+float64(x)*scale, ty+float64(y)*scale, ds.z)
	}
}

// Features decodes the layer. Features with broken geometry or attributes are
// logged and skipped rather than failing the whole layer.
func (ds *TileDatasource) Features(q Query) ([]DecodedFeature, error) {
	fn := ds.transform()
	filter := !q.Bound.IsZero()
	bound := q.Bound
	if filter && q.Projection != nil {
		bound = orb.Bound{Min: q.Projection.UnProject(q.Bound.Min), Max: q.Projection.UnProject(q.Bound.Max)}
	}
	out := make([]DecodedFeature, 0, len(ds.layer.Features))
	for i := range ds.layer.Features {
		f := &ds.layer.Features[i]
		dv, err := DecodeGeometry(f.Type, f.Geometry)
		if err != nil {
			log.WithFields(log.Fields{"layer": ds.layer.Name, "feature": i}).Warn(err)
			continue
		}
		g, err := dv.Geometry(f.Type, fn)
		if err != nil {
			log.WithFields(log.Fields{"layer": ds.layer.Name, "feature": i}).Warn(err)
			continue
		}
		if filter && !g.Bound().Intersects(bound) {
			continue
		}
		props, err := ds.layer.Properties(f)
		if err != nil {
			log.WithFields(log.Fields{"layer": ds.layer.Name, "feature": i}).Warn(err)
			continue
		}
		if q.Projection != nil {
			g = project.Geometry(g, q.Projection.Project)
		}
		out = append(out, DecodedFeature{
			ID:         f.ID,
			HasID:      f.HasID,
			Type:       f.Type,
			Geometry:   g,
			Properties: props,
		})
	}
	return out, nil
}

//Fields 属性字段及类型，按名称排序
func (ds *TileDatasource) Fields() []Field {
	types := make(map[string]ValueType)
	for i := range ds.layer.Features {
		tags := ds.layer.Features[i].Tags
		for j := 0; j+1 < len(tags); j += 2 {
			k, v := int(tags[j]), int(tags[j+1])
			if k >= len(ds.layer.Keys) || v >= len(ds.layer.Values) {
				continue
			}
			name := ds.layer.Keys[k]
			if _, ok := types[name]; !ok {
				types[name] = ds.layer.Values[v].Type
			}
		}
	}
	fields := make([]Field, 0, len(types))
	for name, t := range types {
		fields = append(fields, Field{Name: name, Type: t})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

//GeometryType 图层几何类型，混合时为Collection
func (ds *TileDatasource) GeometryType() string {
	var seen GeomType
	for i := range ds.layer.Features {
		t := ds.layer.Features[i].Type
		if t == Unknown {
			continue
		}
		if seen != Unknown && seen != t {
			return "Collection"
		}
		seen = t
	}
	return seen.String()
}
