package vectortile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"google.golang.org/protobuf/encoding/protowire"
)

//常量定义
const (
	vtMoveto    int8 = 1
	vtLineto    int8 = 2
	vtClosePath int8 = 7

	cmdBits = 3
)

//Draw 绘制结构
type Draw struct {
	X   int64
	Y   int64
	Opt int8
}

//DrawVec 定义Draw数组
type DrawVec []Draw

//Equal a equal to b
func (a Draw) Equal(b Draw) bool {
	return a.X == b.X && a.Y == b.Y
}

func command(op int8, count int) uint32 {
	return uint32(count)<<cmdBits | uint32(op)
}

func zigzag(v int64) uint32 {
	return uint32(protowire.EncodeZigZag(v))
}

func unzigzag(v uint32) int64 {
	return protowire.DecodeZigZag(uint64(v))
}

// DecodeGeometry expands a command stream into absolute vertices. Points take
// only MoveTo; lines need a MoveTo before each LineTo run; every polygon ring
// must end with ClosePath before the next MoveTo or the end of the stream.
func DecodeGeometry(t GeomType, cmds []uint32) (DrawVec, error) {
	var (
		dv   DrawVec
		x, y int64
		open bool // a path was started and, for polygons, not yet closed
	)
	for i := 0; i < len(cmds); {
		op := int8(cmds[i] & (1<<cmdBits - 1))
		count := int(cmds[i] >> cmdBits)
		i++
		switch op {
		case vtMoveto, vtLineto:
			if op == vtLineto && t == Point {
				return nil, fmt.Errorf("%w: lineto in point", ErrGeometry)
			}
			if op == vtLineto && !open {
				return nil, fmt.Errorf("%w: lineto without open moveto", ErrGeometry)
			}
			if op == vtMoveto && t != Point && count != 1 {
				return nil, fmt.Errorf("%w: moveto count %d for %s", ErrGeometry, count, t)
			}
			if op == vtMoveto && t == Polygon && open {
				return nil, fmt.Errorf("%w: ring not closed before moveto", ErrGeometry)
			}
			if count == 0 || i+2*count > len(cmds) {
				return nil, fmt.Errorf("%w: command needs %d parameters, %d left", ErrGeometry, 2*count, len(cmds)-i)
			}
			for n := 0; n < count; n++ {
				x += unzigzag(cmds[i])
				y += unzigzag(cmds[i+1])
				i += 2
				dv = append(dv, Draw{X: x, Y: y, Opt: op})
			}
			if op == vtMoveto {
				open = true
			}
		case vtClosePath:
			if t != Polygon {
				return nil, fmt.Errorf("%w: closepath in %s", ErrGeometry, t)
			}
			if count != 1 {
				return nil, fmt.Errorf("%w: closepath count %d", ErrGeometry, count)
			}
			if !open {
				return nil, fmt.Errorf("%w: closepath without open ring", ErrGeometry)
			}
			dv = append(dv, Draw{Opt: vtClosePath})
			open = false
		default:
			return nil, fmt.Errorf("%w: unknown command %d", ErrGeometry, op)
		}
	}
	if t == Polygon && open {
		return nil, fmt.Errorf("%w: ring not closed", ErrGeometry)
	}
	return dv, nil
}

//EncodeGeometry 编码为几何命令序列
func EncodeGeometry(dv DrawVec) []uint32 {
	var (
		out    []uint32
		cx, cy int64
	)
	for i := 0; i < len(dv); {
		op := dv[i].Opt
		if op == vtClosePath {
			out = append(out, command(vtClosePath, 1))
			i++
			continue
		}
		j := i
		for j < len(dv) && dv[j].Opt == op {
			j++
		}
		out = append(out, command(op, j-i))
		for k := i; k < j; k++ {
			out = append(out, zigzag(dv[k].X-cx), zigzag(dv[k].Y-cy))
			cx, cy = dv[k].X, dv[k].Y
		}
		i = j
	}
	return out
}

//GetArea 计算环面积，y轴向下时外环为正
func GetArea(ring DrawVec) float64 {
	var area float64
	n := len(ring)
	for k := 0; k < n; k++ {
		area += float64(ring[k].X) * float64(ring[(k+1)%n].Y)
		area -= float64(ring[k].Y) * float64(ring[(k+1)%n].X)
	}
	return area / 2
}

// Geometry converts the command stream into an orb geometry, passing every
// vertex through fn.
func (dv DrawVec) Geometry(t GeomType, fn func(x, y int64) orb.Point) (orb.Geometry, error) {
	switch t {
	case Point:
		var mp orb.MultiPoint
		for _, d := range dv {
			if d.Opt == vtMoveto {
				mp = append(mp, fn(d.X, d.Y))
			}
		}
		switch len(mp) {
		case 0:
			return nil, fmt.Errorf("%w: empty point", ErrGeometry)
		case 1:
			return mp[0], nil
		}
		return mp, nil
	case LineString:
		var mls orb.MultiLineString
		for _, part := range dv.split() {
			if len(part) < 2 {
				continue
			}
			ls := make(orb.LineString, 0, len(part))
			for _, d := range part {
				ls = append(ls, fn(d.X, d.Y))
			}
			mls = append(mls, ls)
		}
		switch len(mls) {
		case 0:
			return nil, fmt.Errorf("%w: empty linestring", ErrGeometry)
		case 1:
			return mls[0], nil
		}
		return mls, nil
	case Polygon:
		var (
			mp       orb.MultiPolygon
			exterior float64
		)
		for _, ring := range dv.split() {
			if len(ring) < 3 {
				continue
			}
			area := GetArea(ring)
			if area == 0 {
				continue
			}
			r := make(orb.Ring, 0, len(ring)+1)
			for _, d := range ring {
				r = append(r, fn(d.X, d.Y))
			}
			r = append(r, r[0])
			if exterior == 0 {
				exterior = area
			}
			if (area > 0) == (exterior > 0) {
				mp = append(mp, orb.Polygon{r})
			} else if len(mp) > 0 {
				mp[len(mp)-1] = append(mp[len(mp)-1], r)
			}
		}
		switch len(mp) {
		case 0:
			return nil, fmt.Errorf("%w: empty polygon", ErrGeometry)
		case 1:
			return mp[0], nil
		}
		return mp, nil
	}
	return nil, fmt.Errorf("%w: unknown geometry type %d", ErrGeometry, t)
}

// split cuts the vector at every moveto, dropping closepath markers.
func (dv DrawVec) split() []DrawVec {
	var parts []DrawVec
	for _, d := range dv {
		switch d.Opt {
		case vtMoveto:
			parts = append(parts, DrawVec{d})
		case vtLineto:
			if len(parts) > 0 {
				parts[len(parts)-1] = append(parts[len(parts)-1], d)
			}
		}
	}
	return parts
}

//DrawGeometry 将orb几何量化为绘制命令，fn返回瓦片坐标
func DrawGeometry(g orb.Geometry, fn func(orb.Point) orb.Point) (GeomType, DrawVec, error) {
	quantize := func(p orb.Point) Draw {
		q := fn(p)
		return Draw{X: int64(math.Round(q[0])), Y: int64(math.Round(q[1]))}
	}
	switch g := g.(type) {
	case orb.Point:
		d := quantize(g)
		d.Opt = vtMoveto
		return Point, DrawVec{d}, nil
	case orb.MultiPoint:
		if len(g) == 0 {
			break
		}
		dv := make(DrawVec, 0, len(g))
		for _, p := range g {
			d := quantize(p)
			d.Opt = vtMoveto
			dv = append(dv, d)
		}
		return Point, dv, nil
	case orb.LineString:
		dv := drawLine(g, quantize)
		if len(dv) == 0 {
			break
		}
		return LineString, dv, nil
	case orb.MultiLineString:
		var dv DrawVec
		for _, ls := range g {
			dv = append(dv, drawLine(ls, quantize)...)
		}
		if len(dv) == 0 {
			break
		}
		return LineString, dv, nil
	case orb.Polygon:
		dv := drawPolygon(g, quantize)
		if len(dv) == 0 {
			break
		}
		return Polygon, dv, nil
	case orb.MultiPolygon:
		var dv DrawVec
		for _, p := range g {
			dv = append(dv, drawPolygon(p, quantize)...)
		}
		if len(dv) == 0 {
			break
		}
		return Polygon, dv, nil
	case orb.Bound:
		return DrawGeometry(g.ToPolygon(), fn)
	default:
		return Unknown, nil, fmt.Errorf("%w: unsupported geometry %T", ErrGeometry, g)
	}
	return Unknown, nil, fmt.Errorf("%w: geometry collapsed after quantization", ErrGeometry)
}

func dedup(pts []orb.Point, quantize func(orb.Point) Draw) DrawVec {
	var dv DrawVec
	for _, p := range pts {
		d := quantize(p)
		if len(dv) > 0 && dv[len(dv)-1].Equal(d) {
			continue
		}
		dv = append(dv, d)
	}
	return dv
}

func drawLine(ls orb.LineString, quantize func(orb.Point) Draw) DrawVec {
	dv := dedup(ls, quantize)
	if len(dv) < 2 {
		return nil
	}
	dv[0].Opt = vtMoveto
	for i := 1; i < len(dv); i++ {
		dv[i].Opt = vtLineto
	}
	return dv
}

// drawPolygon writes the exterior ring with positive area and holes with
// negative area, as required by version 2 of the format.
func drawPolygon(p orb.Polygon, quantize func(orb.Point) Draw) DrawVec {
	var out DrawVec
	for i, r := range p {
		ring := dedup(r, quantize)
		if len(ring) > 1 && ring[0].Equal(ring[len(ring)-1]) {
			ring = ring[:len(ring)-1]
		}
		if len(ring) < 3 {
			if i == 0 {
				return nil
			}
			continue
		}
		area := GetArea(ring)
		if area == 0 {
			if i == 0 {
				return nil
			}
			continue
		}
		if (i == 0) != (area > 0) {
			for lo, hi := 0, len(ring)-1; lo < hi; lo, hi = lo+1, hi-1 {
				ring[lo], ring[hi] = ring[hi], ring[lo]
			}
		}
		ring[0].Opt = vtMoveto
		for k := 1; k < len(ring); k++ {
			ring[k].Opt = vtLineto
		}
		out = append(out, ring...)
		out = append(out, Draw{Opt: vtClosePath})
	}
	return out
}
