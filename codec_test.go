package vectortile

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func testLayer(t *testing.T) Layer {
	t.Helper()
	lb := NewLayerBuilder("poi", 0, nil)
	require.NoError(t, lb.AddFeatureWithID(7, orb.Point{25, 17}, map[string]interface{}{
		"name": "a",
		"n":    3,
		"neg":  -2,
		"f":    1.5,
		"b":    true,
	}))
	require.NoError(t, lb.AddFeature(orb.LineString{{0, 0}, {10, 10}}, map[string]interface{}{
		"name": "a",
		"skip": nil,
	}))
	assert.Equal(t, 2, lb.Len())
	return lb.Layer()
}

func TestMarshalUnmarshal(t *testing.T) {
	l := testLayer(t)
	assert.Equal(t, []string{"b", "f", "n", "name", "neg"}, l.Keys)
	assert.Len(t, l.Values, 5, "string value shared by both features")

	data, err := Marshal(&Tile{Layers: []Layer{l}})
	require.NoError(t, err)

	tile, err := Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, tile.Layers, 1)
	got := tile.Layers[0]
	assert.Equal(t, l, got)
	assert.Equal(t, uint32(2), got.Version)
	assert.Equal(t, uint32(DefaultExtent), got.Extent)

	props, err := got.Properties(&got.Features[0])
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name": "a",
		"n":    int64(3),
		"neg":  int64(-2),
		"f":    1.5,
		"b":    true,
	}, props)
	assert.Equal(t, SintValue(-2), got.Values[4])

	_, ok := tile.Layer("poi")
	assert.True(t, ok)
	_, ok = tile.Layer("roads")
	assert.False(t, ok)
}

func TestUnmarshalValues(t *testing.T) {
	l := Layer{
		Name: "values",
		Values: []Value{
			StringValue("s"),
			FloatValue(2.5),
			DoubleValue(-1.25),
			IntValue(42),
			UintValue(1 << 40),
			SintValue(-9),
			BoolValue(false),
		},
	}
	data, err := Marshal(&Tile{Layers: []Layer{l}})
	require.NoError(t, err)
	tile, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, l.Values, tile.Layers[0].Values)
}

// layerBytes builds a raw layer message field by field.
func layerBytes(fields ...func([]byte) []byte) []byte {
	var b []byte
	for _, f := range fields {
		b = f(b)
	}
	var tile []byte
	tile = protowire.AppendTag(tile, tileLayers, protowire.BytesType)
	return protowire.AppendBytes(tile, b)
}

func nameField(name string) func([]byte) []byte {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, layerName, protowire.BytesType)
		return protowire.AppendString(b, name)
	}
}

func varintField(num protowire.Number, v uint64) func([]byte) []byte {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, num, protowire.VarintType)
		return protowire.AppendVarint(b, v)
	}
}

func TestUnmarshalUnpackedAndUnknown(t *testing.T) {
	var feature []byte
	feature = protowire.AppendTag(feature, featureType, protowire.VarintType)
	feature = protowire.AppendVarint(feature, uint64(Point))
	for _, v := range []uint64{0, 0} {
		feature = protowire.AppendTag(feature, featureTags, protowire.VarintType)
		feature = protowire.AppendVarint(feature, v)
	}
	for _, v := range []uint64{9, 50, 34} {
		feature = protowire.AppendTag(feature, featureGeometry, protowire.VarintType)
		feature = protowire.AppendVarint(feature, v)
	}
	feature = protowire.AppendTag(feature, 42, protowire.BytesType)
	feature = protowire.AppendString(feature, "ignored")

	data := layerBytes(
		nameField("raw"),
		varintField(99, 1),
		func(b []byte) []byte {
			b = protowire.AppendTag(b, layerFeatures, protowire.BytesType)
			return protowire.AppendBytes(b, feature)
		},
		func(b []byte) []byte {
			b = protowire.AppendTag(b, layerKeys, protowire.BytesType)
			return protowire.AppendString(b, "k")
		},
		func(b []byte) []byte {
			b = protowire.AppendTag(b, layerValues, protowire.BytesType)
			return protowire.AppendBytes(b, marshalValue(StringValue("v")))
		},
	)
	tile, err := Unmarshal(data)
	require.NoError(t, err)
	l := tile.Layers[0]
	assert.Equal(t, uint32(1), l.Version, "version defaults to 1")
	assert.Equal(t, uint32(DefaultExtent), l.Extent)
	require.Len(t, l.Features, 1)
	assert.Equal(t, []uint32{0, 0}, l.Features[0].Tags)
	assert.Equal(t, []uint32{9, 50, 34}, l.Features[0].Geometry)
	assert.False(t, l.Features[0].HasID)
}

func TestUnmarshalErrors(t *testing.T) {
	good, err := Marshal(&Tile{Layers: []Layer{{Name: "a"}}})
	require.NoError(t, err)

	cases := []struct {
		name string
		data []byte
		err  error
	}{
		{"truncated", good[:len(good)-1], ErrMalformed},
		{"garbage", []byte{0xff}, ErrMalformed},
		{"version 3", layerBytes(nameField("a"), varintField(layerVersion, 3)), ErrUnsupportedVersion},
		{"zero extent", layerBytes(nameField("a"), varintField(layerExtent, 0)), ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Unmarshal(tc.data)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestMarshalUnnamedLayer(t *testing.T) {
	_, err := Marshal(&Tile{Layers: []Layer{{}}})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestProperties(t *testing.T) {
	l := Layer{Keys: []string{"k"}, Values: []Value{IntValue(1)}}
	_, err := l.Properties(&Feature{Tags: []uint32{0}})
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = l.Properties(&Feature{Tags: []uint32{1, 0}})
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = l.Properties(&Feature{Tags: []uint32{0, 3}})
	assert.ErrorIs(t, err, ErrMalformed)

	props, err := l.Properties(&Feature{Tags: []uint32{0, 0}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"k": int64(1)}, props)
}

func TestNewValue(t *testing.T) {
	cases := []struct {
		in   interface{}
		want Value
	}{
		{"x", StringValue("x")},
		{true, BoolValue(true)},
		{1.5, DoubleValue(1.5)},
		{float32(0.5), FloatValue(0.5)},
		{5, IntValue(5)},
		{-5, SintValue(-5)},
		{uint8(3), UintValue(3)},
		{IntValue(9), IntValue(9)},
	}
	for _, tc := range cases {
		v, err := NewValue(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, v)
	}

	_, err := NewValue(struct{}{})
	assert.Error(t, err)
}

func TestValueText(t *testing.T) {
	assert.Equal(t, "1.5", DoubleValue(1.5).Text())
	assert.Equal(t, "-3", SintValue(-3).Text())
	assert.Equal(t, "true", BoolValue(true).Text())
	assert.Equal(t, "null", Value{}.Text())
	assert.Equal(t, "Number", UintValue(1).Type.String())

	_, ok := StringValue("1").Number()
	assert.False(t, ok)
	f, ok := UintValue(7).Number()
	assert.True(t, ok)
	assert.Equal(t, 7.0, f)
}

func TestLayerBuilderSignedZeroAndNaN(t *testing.T) {
	lb := NewLayerBuilder("zero", 0, nil)
	for _, v := range []float64{0, math.Copysign(0, -1), math.NaN(), math.NaN()} {
		require.NoError(t, lb.AddFeature(orb.Point{1, 1}, map[string]interface{}{"v": v}))
	}
	l := lb.Layer()
	require.Len(t, l.Values, 3)
	assert.False(t, math.Signbit(l.Values[0].Float))
	assert.True(t, math.Signbit(l.Values[1].Float))
	assert.True(t, math.IsNaN(l.Values[2].Float))
	assert.Equal(t, l.Features[2].Tags, l.Features[3].Tags)
}
