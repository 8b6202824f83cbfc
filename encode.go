package vectortile

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"google.golang.org/protobuf/encoding/protowire"
)

//Marshal 序列化瓦片（未压缩）
func Marshal(t *Tile) ([]byte, error) {
	var out []byte
	for i := range t.Layers {
		l := &t.Layers[i]
		if l.Name == "" {
			return nil, fmt.Errorf("%w: layer %d has no name", ErrMalformed, i)
		}
		out = protowire.AppendTag(out, tileLayers, protowire.BytesType)
		out = protowire.AppendBytes(out, marshalLayer(l))
	}
	return out, nil
}

func marshalLayer(l *Layer) []byte {
	version := l.Version
	if version == 0 {
		version = 2
	}
	extent := l.Extent
	if extent == 0 {
		extent = DefaultExtent
	}
	var b []byte
	b = protowire.AppendTag(b, layerName, protowire.BytesType)
	b = protowire.AppendString(b, l.Name)
	for i := range l.Features {
		b = protowire.AppendTag(b, layerFeatures, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalFeature(&l.Features[i]))
	}
	for _, k := range l.Keys {
		b = protowire.AppendTag(b, layerKeys, protowire.BytesType)
		b = protowire.AppendString(b, k)
	}
	for _, v := range l.Values {
		b = protowire.AppendTag(b, layerValues, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalValue(v))
	}
	b = protowire.AppendTag(b, layerExtent, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(extent))
	b = protowire.AppendTag(b, layerVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(version))
	return b
}

func marshalFeature(f *Feature) []byte {
	var b []byte
	if f.HasID {
		b = protowire.AppendTag(b, featureID, protowire.VarintType)
		b = protowire.AppendVarint(b, f.ID)
	}
	if len(f.Tags) > 0 {
		b = protowire.AppendTag(b, featureTags, protowire.BytesType)
		b = protowire.AppendBytes(b, packUint32s(f.Tags))
	}
	b = protowire.AppendTag(b, featureType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Type))
	if len(f.Geometry) > 0 {
		b = protowire.AppendTag(b, featureGeometry, protowire.BytesType)
		b = protowire.AppendBytes(b, packUint32s(f.Geometry))
	}
	return b
}

func marshalValue(v Value) []byte {
	var b []byte
	num := protowire.Number(v.Type)
	switch v.Type {
	case mvtString:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v.String)
	case mvtFloat:
		b = protowire.AppendTag(b, num, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(float32(v.Float)))
	case mvtDouble:
		b = protowire.AppendTag(b, num, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v.Float))
	case mvtInt:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.Int))
	case mvtUint:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, v.Uint)
	case mvtSint:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v.Int))
	case mvtBool:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(v.Bool))
	}
	return b
}

func packUint32s(vs []uint32) []byte {
	b := make([]byte, 0, len(vs)*2)
	for _, v := range vs {
		b = protowire.AppendVarint(b, uint64(v))
	}
	return b
}

//LayerBuilder 图层构建器，键值去重
type LayerBuilder struct {
	layer    Layer
	keymap   map[string]int
	valuemap map[valueKey]int
	fn       func(orb.Point) orb.Point
}

// valueKey compares floats by bit pattern so -0 and 0 stay apart and NaN
// matches itself.
type valueKey struct {
	Type   ValueType
	String string
	Bits   uint64
	Int    int64
	Uint   uint64
	Bool   bool
}

func keyOf(v Value) valueKey {
	bits := math.Float64bits(v.Float)
	if math.IsNaN(v.Float) {
		bits = math.Float64bits(math.NaN())
	}
	return valueKey{Type: v.Type, String: v.String, Bits: bits, Int: v.Int, Uint: v.Uint, Bool: v.Bool}
}

// NewLayerBuilder starts a version 2 layer. fn maps input coordinates into
// the layer's extent space; nil means the input already is in extent space.
func NewLayerBuilder(name string, extent uint32, fn func(orb.Point) orb.Point) *LayerBuilder {
	if extent == 0 {
		extent = DefaultExtent
	}
	if fn == nil {
		fn = func(p orb.Point) orb.Point { return p }
	}
	return &LayerBuilder{
		layer:    Layer{Version: 2, Name: name, Extent: extent},
		keymap:   make(map[string]int),
		valuemap: make(map[valueKey]int),
		fn:       fn,
	}
}

func (lb *LayerBuilder) key(k string) uint32 {
	if i, ok := lb.keymap[k]; ok {
		return uint32(i)
	}
	i := len(lb.layer.Keys)
	lb.layer.Keys = append(lb.layer.Keys, k)
	lb.keymap[k] = i
	return uint32(i)
}

func (lb *LayerBuilder) value(v Value) uint32 {
	k := keyOf(v)
	if i, ok := lb.valuemap[k]; ok {
		return uint32(i)
	}
	i := len(lb.layer.Values)
	lb.layer.Values = append(lb.layer.Values, v)
	lb.valuemap[k] = i
	return uint32(i)
}

//AddFeature 添加要素，nil属性值被忽略
func (lb *LayerBuilder) AddFeature(g orb.Geometry, props map[string]interface{}) error {
	return lb.add(g, props, 0, false)
}

//AddFeatureWithID 添加带ID要素
func (lb *LayerBuilder) AddFeatureWithID(id uint64, g orb.Geometry, props map[string]interface{}) error {
	return lb.add(g, props, id, true)
}

func (lb *LayerBuilder) add(g orb.Geometry, props map[string]interface{}, id uint64, hasID bool) error {
	t, dv, err := DrawGeometry(g, lb.fn)
	if err != nil {
		return err
	}
	// sorted keys keep the output deterministic
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tags := make([]uint32, 0, 2*len(keys))
	for _, k := range keys {
		if props[k] == nil {
			continue
		}
		v, err := NewValue(props[k])
		if err != nil {
			return fmt.Errorf("property %q: %w", k, err)
		}
		tags = append(tags, lb.key(k), lb.value(v))
	}
	lb.layer.Features = append(lb.layer.Features, Feature{
		ID:       id,
		HasID:    hasID,
		Type:     t,
		Tags:     tags,
		Geometry: EncodeGeometry(dv),
	})
	return nil
}

//Len 要素数
func (lb *LayerBuilder) Len() int {
	return len(lb.layer.Features)
}

//Layer 返回构建完成的图层
func (lb *LayerBuilder) Layer() Layer {
	return lb.layer
}
