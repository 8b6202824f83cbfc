package vectortile

import (
	"math"
	"sort"
	"strings"
)

var (
	maxTilestatsAttributes   = 1000
	maxTilestatsSampleValues = 1000
	maxTilestatsValues       = 100
)

//TypeAndString xx
type TypeAndString struct {
	Type   ValueType
	String string
}

func (a TypeAndString) less(b TypeAndString) bool {
	if a.String != b.String {
		return a.String < b.String
	}
	return a.Type < b.Type
}

//TypeAndStringStats 属性统计
type TypeAndStringStats struct {
	SampleValues []TypeAndString
	Min          float64
	Max          float64
	Type         int // bit set of ValueType
	Count        int // occurrences, not distinct values
}

//LayerEntry 图层统计
type LayerEntry struct {
	Name     string
	FileKeys map[string]*TypeAndStringStats
	Minzoom  int
	Maxzoom  int
	Tiles    int

	Points   uint
	Lines    uint
	Polygons uint
}

//AddToFileKeys 累计属性值
func AddToFileKeys(fileKeys map[string]*TypeAndStringStats, key string, val Value) {
	if val.Type == 0 {
		return
	}
	fka, ok := fileKeys[key]
	if !ok {
		if len(fileKeys) >= maxTilestatsAttributes {
			return
		}
		fka = &TypeAndStringStats{Min: math.Inf(1), Max: math.Inf(-1)}
		fileKeys[key] = fka
	}
	fka.Count++
	if f, ok := val.Number(); ok {
		fka.Min = math.Min(fka.Min, f)
		fka.Max = math.Max(fka.Max, f)
	}
	addSample(fka, TypeAndString{Type: val.Type, String: val.Text()})
	fka.Type |= 1 << uint(val.Type)
}

func addSample(fka *TypeAndStringStats, ts TypeAndString) {
	pos := sort.Search(len(fka.SampleValues), func(i int) bool {
		return !fka.SampleValues[i].less(ts)
	})
	if pos < len(fka.SampleValues) && fka.SampleValues[pos] == ts {
		return
	}
	if len(fka.SampleValues) >= maxTilestatsSampleValues && pos == len(fka.SampleValues) {
		return
	}
	fka.SampleValues = append(fka.SampleValues, TypeAndString{})
	copy(fka.SampleValues[pos+1:], fka.SampleValues[pos:])
	fka.SampleValues[pos] = ts
	if len(fka.SampleValues) > maxTilestatsSampleValues {
		fka.SampleValues = fka.SampleValues[:maxTilestatsSampleValues]
	}
}

//Stats 瓦片集统计
type Stats struct {
	Layers map[string]*LayerEntry
	Tiles  int
	Bytes  int64
	Errors int
}

//NewStats xx
func NewStats() *Stats {
	return &Stats{Layers: make(map[string]*LayerEntry)}
}

//AddTile 统计一个已解析的瓦片
func (s *Stats) AddTile(z int, t *Tile, size int) {
	s.Tiles++
	s.Bytes += int64(size)
	for i := range t.Layers {
		l := &t.Layers[i]
		le := s.layer(l.Name, z)
		le.Tiles++
		for j := range l.Features {
			f := &l.Features[j]
			switch f.Type {
			case Point:
				le.Points++
			case LineString:
				le.Lines++
			case Polygon:
				le.Polygons++
			}
			for k := 0; k+1 < len(f.Tags); k += 2 {
				ki, vi := int(f.Tags[k]), int(f.Tags[k+1])
				if ki < len(l.Keys) && vi < len(l.Values) {
					AddToFileKeys(le.FileKeys, l.Keys[ki], l.Values[vi])
				}
			}
		}
	}
}

func (s *Stats) layer(name string, z int) *LayerEntry {
	le, ok := s.Layers[name]
	if !ok {
		le = &LayerEntry{Name: name, FileKeys: make(map[string]*TypeAndStringStats), Minzoom: z, Maxzoom: z}
		s.Layers[name] = le
	}
	if z < le.Minzoom {
		le.Minzoom = z
	}
	if z > le.Maxzoom {
		le.Maxzoom = z
	}
	return le
}

//Merge 合并其他统计
func (s *Stats) Merge(o *Stats) {
	s.Tiles += o.Tiles
	s.Bytes += o.Bytes
	s.Errors += o.Errors
	for name, ol := range o.Layers {
		le := s.layer(name, ol.Minzoom)
		s.layer(name, ol.Maxzoom)
		le.Tiles += ol.Tiles
		le.Points += ol.Points
		le.Lines += ol.Lines
		le.Polygons += ol.Polygons
		for key, ofk := range ol.FileKeys {
			fka, ok := le.FileKeys[key]
			if !ok {
				if len(le.FileKeys) >= maxTilestatsAttributes {
					continue
				}
				fka = &TypeAndStringStats{Min: math.Inf(1), Max: math.Inf(-1)}
				le.FileKeys[key] = fka
			}
			fka.Count += ofk.Count
			fka.Min = math.Min(fka.Min, ofk.Min)
			fka.Max = math.Max(fka.Max, ofk.Max)
			fka.Type |= ofk.Type
			for _, sv := range ofk.SampleValues {
				addSample(fka, sv)
			}
		}
	}
}

//TileStats tilestats JSON
type TileStats struct {
	LayerCount int              `json:"layerCount"`
	Layers     []LayerTileStats `json:"layers"`
}

//LayerTileStats xx
type LayerTileStats struct {
	Layer          string               `json:"layer"`
	Count          uint                 `json:"count"`
	Geometry       string               `json:"geometry"`
	Minzoom        int                  `json:"minzoom"`
	Maxzoom        int                  `json:"maxzoom"`
	AttributeCount int                  `json:"attributeCount"`
	Attributes     []AttributeTileStats `json:"attributes"`
}

//AttributeTileStats xx
type AttributeTileStats struct {
	Attribute string   `json:"attribute"`
	Count     int      `json:"count"`
	Type      string   `json:"type"`
	Values    []string `json:"values"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

func geometryName(le *LayerEntry) string {
	switch {
	case le.Points >= le.Lines && le.Points >= le.Polygons:
		return "Point"
	case le.Lines >= le.Polygons:
		return "LineString"
	}
	return "Polygon"
}

func typeName(bits int) string {
	kinds := make(map[string]bool)
	for t := mvtString; t <= mvtBool; t++ {
		if bits&(1<<uint(t)) != 0 {
			kinds[strings.ToLower(t.String())] = true
		}
	}
	switch len(kinds) {
	case 0:
		return "null"
	case 1:
		for k := range kinds {
			return k
		}
	}
	return "mixed"
}

//TypeName string/number/boolean/mixed/null
func (fka *TypeAndStringStats) TypeName() string {
	return typeName(fka.Type)
}

//TileStats 输出为 tilestats 结构，图层与属性按名称排序
func (s *Stats) TileStats() TileStats {
	ts := TileStats{LayerCount: len(s.Layers), Layers: []LayerTileStats{}}
	names := make([]string, 0, len(s.Layers))
	for name := range s.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		le := s.Layers[name]
		lts := LayerTileStats{
			Layer:          name,
			Count:          le.Points + le.Lines + le.Polygons,
			Geometry:       geometryName(le),
			Minzoom:        le.Minzoom,
			Maxzoom:        le.Maxzoom,
			AttributeCount: len(le.FileKeys),
			Attributes:     []AttributeTileStats{},
		}
		keys := make([]string, 0, len(le.FileKeys))
		for k := range le.FileKeys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fka := le.FileKeys[k]
			// count is the number of distinct values, bounded by the sample limit
			ats := AttributeTileStats{Attribute: k, Count: len(fka.SampleValues), Type: typeName(fka.Type), Values: []string{}}
			for i, sv := range fka.SampleValues {
				if i >= maxTilestatsValues {
					break
				}
				ats.Values = append(ats.Values, sv.String)
			}
			if !math.IsInf(fka.Min, 0) {
				lo, hi := fka.Min, fka.Max
				ats.Min, ats.Max = &lo, &hi
			}
			lts.Attributes = append(lts.Attributes, ats)
		}
		ts.Layers = append(ts.Layers, lts)
	}
	return ts
}
