package vectortile

import (
	"fmt"
	"math"
	"strconv"
)

//DefaultExtent 图层默认坐标范围
const DefaultExtent = 4096

//DefaultTileSize 默认瓦片像素大小
const DefaultTileSize = 256

//GeomType 要素几何类型
type GeomType uint8

const (
	//Unknown 未知
	Unknown GeomType = 0
	//Point 点
	Point GeomType = 1
	//LineString 线
	LineString GeomType = 2
	//Polygon 面
	Polygon GeomType = 3
)

func (t GeomType) String() string {
	switch t {
	case Point:
		return "Point"
	case LineString:
		return "LineString"
	case Polygon:
		return "Polygon"
	}
	return "Unknown"
}

//ValueType 属性值类型，顺序与protobuf字段号一致
type ValueType uint8

const (
	mvtString ValueType = iota + 1
	mvtFloat
	mvtDouble
	mvtInt
	mvtUint
	mvtSint
	mvtBool
)

func (t ValueType) String() string {
	switch t {
	case mvtString:
		return "String"
	case mvtFloat, mvtDouble, mvtInt, mvtUint, mvtSint:
		return "Number"
	case mvtBool:
		return "Boolean"
	}
	return "Null"
}

//Value 属性值
type Value struct {
	Type   ValueType
	String string
	Float  float64
	Int    int64
	Uint   uint64
	Bool   bool
}

//StringValue xx
func StringValue(s string) Value { return Value{Type: mvtString, String: s} }

//DoubleValue xx
func DoubleValue(f float64) Value { return Value{Type: mvtDouble, Float: f} }

//FloatValue xx
func FloatValue(f float32) Value { return Value{Type: mvtFloat, Float: float64(f)} }

//IntValue xx
func IntValue(i int64) Value { return Value{Type: mvtInt, Int: i} }

//UintValue xx
func UintValue(u uint64) Value { return Value{Type: mvtUint, Uint: u} }

//SintValue xx
func SintValue(i int64) Value { return Value{Type: mvtSint, Int: i} }

//BoolValue xx
func BoolValue(b bool) Value { return Value{Type: mvtBool, Bool: b} }

//NewValue converts a Go value into the closest tile value type.
func NewValue(v interface{}) (Value, error) {
	switch t := v.(type) {
	case Value:
		return t, nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return DoubleValue(t), nil
	case float32:
		return FloatValue(t), nil
	case int:
		return intValue(int64(t)), nil
	case int8:
		return intValue(int64(t)), nil
	case int16:
		return intValue(int64(t)), nil
	case int32:
		return intValue(int64(t)), nil
	case int64:
		return intValue(t), nil
	case uint:
		return UintValue(uint64(t)), nil
	case uint8:
		return UintValue(uint64(t)), nil
	case uint16:
		return UintValue(uint64(t)), nil
	case uint32:
		return UintValue(uint64(t)), nil
	case uint64:
		return UintValue(t), nil
	case fmt.Stringer:
		return StringValue(t.String()), nil
	}
	return Value{}, fmt.Errorf("unsupported property type %T", v)
}

// negative integers are cheaper as sint
func intValue(i int64) Value {
	if i < 0 {
		return SintValue(i)
	}
	return IntValue(i)
}

//Interface 转换为go值
func (v Value) Interface() interface{} {
	switch v.Type {
	case mvtString:
		return v.String
	case mvtFloat, mvtDouble:
		return v.Float
	case mvtInt, mvtSint:
		return v.Int
	case mvtUint:
		return v.Uint
	case mvtBool:
		return v.Bool
	}
	return nil
}

//Text 值的文本形式，用于统计
func (v Value) Text() string {
	switch v.Type {
	case mvtString:
		return v.String
	case mvtFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 32)
	case mvtDouble:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case mvtInt, mvtSint:
		return strconv.FormatInt(v.Int, 10)
	case mvtUint:
		return strconv.FormatUint(v.Uint, 10)
	case mvtBool:
		return strconv.FormatBool(v.Bool)
	}
	return "null"
}

//Number 数值形式，非数值返回false
func (v Value) Number() (float64, bool) {
	switch v.Type {
	case mvtFloat, mvtDouble:
		return v.Float, !math.IsNaN(v.Float)
	case mvtInt, mvtSint:
		return float64(v.Int), true
	case mvtUint:
		return float64(v.Uint), true
	}
	return 0, false
}

//Feature 瓦片要素
type Feature struct {
	ID       uint64
	HasID    bool
	Type     GeomType
	Tags     []uint32
	Geometry []uint32
}

//Layer 瓦片图层
type Layer struct {
	Version  uint32
	Name     string
	Extent   uint32
	Features []Feature
	Keys     []string
	Values   []Value
}

//Properties resolves a feature's tag pairs against the layer tables.
func (l *Layer) Properties(f *Feature) (map[string]interface{}, error) {
	if len(f.Tags)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of tags (%d)", ErrMalformed, len(f.Tags))
	}
	props := make(map[string]interface{}, len(f.Tags)/2)
	for i := 0; i < len(f.Tags); i += 2 {
		k, v := f.Tags[i], f.Tags[i+1]
		if int(k) >= len(l.Keys) {
			return nil, fmt.Errorf("%w: key index %d out of range", ErrMalformed, k)
		}
		if int(v) >= len(l.Values) {
			return nil, fmt.Errorf("%w: value index %d out of range", ErrMalformed, v)
		}
		props[l.Keys[k]] = l.Values[v].Interface()
	}
	return props, nil
}

//Tile 矢量瓦片
type Tile struct {
	Layers []Layer
}

//Layer 按名称查找图层
func (t *Tile) Layer(name string) (*Layer, bool) {
	for i := range t.Layers {
		if t.Layers[i].Name == name {
			return &t.Layers[i], true
		}
	}
	return nil, false
}
