package vectortile

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// field numbers of vector_tile.proto
const (
	tileLayers = 3

	layerVersion  = 15
	layerName     = 1
	layerFeatures = 2
	layerKeys     = 3
	layerValues   = 4
	layerExtent   = 5

	featureID       = 1
	featureTags     = 2
	featureType     = 3
	featureGeometry = 4
)

//Unmarshal 解析未压缩的瓦片
func Unmarshal(data []byte) (*Tile, error) {
	t := &Tile{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != tileLayers || typ != protowire.BytesType {
			return skip(num, typ, b)
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		l, err := unmarshalLayer(v)
		if err != nil {
			return 0, err
		}
		t.Layers = append(t.Layers, *l)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func unmarshalLayer(data []byte) (*Layer, error) {
	l := &Layer{Version: 1, Extent: DefaultExtent}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == layerVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			l.Version = uint32(v)
			return n, nil
		case num == layerName && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			l.Name = string(v)
			return n, nil
		case num == layerExtent && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			l.Extent = uint32(v)
			return n, nil
		case num == layerKeys && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			l.Keys = append(l.Keys, string(v))
			return n, nil
		case num == layerValues && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			val, err := unmarshalValue(v)
			if err != nil {
				return 0, err
			}
			l.Values = append(l.Values, val)
			return n, nil
		case num == layerFeatures && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			f, err := unmarshalFeature(v)
			if err != nil {
				return 0, err
			}
			l.Features = append(l.Features, f)
			return n, nil
		}
		return skip(num, typ, b)
	})
	if err != nil {
		return nil, err
	}
	if l.Version > 2 {
		return nil, fmt.Errorf("%w: layer %q has version %d", ErrUnsupportedVersion, l.Name, l.Version)
	}
	if l.Extent == 0 {
		return nil, fmt.Errorf("%w: layer %q has zero extent", ErrMalformed, l.Name)
	}
	return l, nil
}

func unmarshalFeature(data []byte) (Feature, error) {
	var f Feature
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case featureID:
			if typ == protowire.VarintType {
				v, n := protowire.ConsumeVarint(b)
				f.ID, f.HasID = v, true
				return n, nil
			}
		case featureType:
			if typ == protowire.VarintType {
				v, n := protowire.ConsumeVarint(b)
				f.Type = GeomType(v)
				return n, nil
			}
		case featureTags:
			return consumeUint32s(typ, b, &f.Tags)
		case featureGeometry:
			return consumeUint32s(typ, b, &f.Geometry)
		}
		return skip(num, typ, b)
	})
	return f, err
}

func unmarshalValue(data []byte) (Value, error) {
	var val Value
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == protowire.Number(mvtString) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			val = StringValue(string(v))
			return n, nil
		case num == protowire.Number(mvtFloat) && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			val = FloatValue(math.Float32frombits(v))
			return n, nil
		case num == protowire.Number(mvtDouble) && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			val = DoubleValue(math.Float64frombits(v))
			return n, nil
		case num == protowire.Number(mvtInt) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			val = IntValue(int64(v))
			return n, nil
		case num == protowire.Number(mvtUint) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			val = UintValue(v)
			return n, nil
		case num == protowire.Number(mvtSint) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			val = SintValue(protowire.DecodeZigZag(v))
			return n, nil
		case num == protowire.Number(mvtBool) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			val = BoolValue(v != 0)
			return n, nil
		}
		return skip(num, typ, b)
	})
	return val, err
}

// walk calls fn for every field of a message. fn returns the number of bytes
// consumed after the tag, or a negative protowire error code.
func walk(data []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]
		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		data = data[m:]
	}
	return nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return protowire.ConsumeFieldValue(num, typ, b), nil
}

// consumeUint32s accepts both packed and unpacked encodings.
func consumeUint32s(typ protowire.Type, b []byte, out *[]uint32) (int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n >= 0 {
			*out = append(*out, uint32(v))
		}
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return m, nil
			}
			*out = append(*out, uint32(v))
			packed = packed[m:]
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: wire type %d for repeated uint32", ErrMalformed, typ)
}
