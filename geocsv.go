package vectortile

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	log "github.com/sirupsen/logrus"
)

//CSVOptions CSV转瓦片参数
type CSVOptions struct {
	Layer    string
	X, Y, Z  int
	TileSize int
	Extent   uint32
	Buffer   int // pixels around the tile that are kept

	// AttributeTypes forces the type of named columns
	AttributeTypes map[string]ValueType
}

//ParseGeoCSV 处理csv格式数据，只支持点类型数据
func ParseGeoCSV(r io.Reader, opts CSVOptions) (*Layer, error) {
	if err := ValidateTile(opts.X, opts.Y, opts.Z); err != nil {
		return nil, err
	}
	if opts.Extent == 0 {
		opts.Extent = DefaultExtent
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	var records [][]string
	rownum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rownum++
		if err != nil {
			log.Warningf("reader line(%d) failed, error: %s", rownum, err)
			continue
		}
		records = append(records, row)
	}

	ix, iy := GetGeomCol(headers, records)
	if ix < 0 || iy < 0 {
		return nil, fmt.Errorf(`no "x", "lon", "longitude", "经度" coordinate columns found in %v`, headers)
	}

	merc := NewSphericalMercator(opts.TileSize)
	toTile := merc.TileTransform(opts.X, opts.Y, opts.Z, opts.Extent)
	margin := float64(opts.Buffer) * float64(opts.Extent) / float64(merc.TileSize)
	lo, hi := -margin, float64(opts.Extent)+margin

	lb := NewLayerBuilder(opts.Layer, opts.Extent, nil)
	for n, row := range records {
		if ix >= len(row) || iy >= len(row) || len(row[ix]) == 0 || len(row[iy]) == 0 {
			log.Warningf("line(%d) nil geomtry.", n+2)
			continue
		}
		lon, errx := strconv.ParseFloat(row[ix], 64)
		lat, erry := strconv.ParseFloat(row[iy], 64)
		if errx != nil || erry != nil || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
			log.Warningf("line(%d) bad coordinate %q,%q", n+2, row[ix], row[iy])
			continue
		}
		lat = math.Max(math.Min(lat, 85.0511287798), -85.0511287798)
		p := toTile(project.WGS84.ToMercator(orb.Point{lon, lat}))
		if p[0] < lo || p[0] > hi || p[1] < lo || p[1] > hi {
			continue
		}

		props := make(map[string]interface{})
		for i, c := range row {
			if i == ix || i == iy || i >= len(headers) {
				continue
			}
			if v, ok := CoerceValue(headers[i], c, opts.AttributeTypes); ok {
				props[headers[i]] = v
			}
		}
		if err := lb.AddFeature(p, props); err != nil {
			log.Warningf("line(%d): %v", n+2, err)
		}
	}
	l := lb.Layer()
	return &l, nil
}

//GetGeomCol 获取空间字段
func GetGeomCol(headers []string, records [][]string) (ix, iy int) {
	if len(records) > 7 {
		records = records[:7]
	}

	getColumn := func(cols []string, skip int) int {
		for _, c := range cols {
			for i, n := range headers {
				if i != skip && c == strings.ToLower(strings.TrimSpace(n)) {
					return i
				}
			}
		}
		return -1
	}

	detectColumn := func(minv, maxv float64, skip int) int {
		if len(records) == 0 {
			return -1
		}
		for i := range headers {
			if i == skip {
				continue
			}
			num := 0
			for _, row := range records {
				if i >= len(row) {
					break
				}
				f, err := strconv.ParseFloat(row[i], 64)
				if err != nil || f < minv || f > maxv {
					break
				}
				num++
			}
			if num == len(records) {
				return i
			}
		}
		return -1
	}

	xcols := []string{"x", "lon", "lng", "longitude", "经度"}
	ycols := []string{"y", "lat", "latitude", "纬度"}
	ix = getColumn(xcols, -1)
	iy = getColumn(ycols, ix)
	if ix < 0 {
		ix = detectColumn(-180, 180, iy)
	}
	if iy < 0 {
		iy = detectColumn(-90, 90, ix)
	}
	return
}

// CoerceValue types a CSV cell: numbers become doubles, empty cells are
// dropped, anything else is a string. attrTypes overrides the guess.
func CoerceValue(key, val string, attrTypes map[string]ValueType) (interface{}, bool) {
	if atype, ok := attrTypes[key]; ok {
		switch atype {
		case mvtString:
			return val, true
		case mvtFloat, mvtDouble:
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, false
			}
			return f, true
		case mvtInt, mvtUint, mvtSint:
			if len(val) == 0 {
				val = "0"
			}
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, false
			}
			return int64(math.Round(f)), true
		case mvtBool:
			f, err := strconv.ParseFloat(val, 64)
			if val == "false" || val == "0" || val == "null" || len(val) == 0 || (err == nil && f == 0) {
				return false, true
			}
			return true, true
		}
	}
	if len(val) == 0 {
		return nil, false
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return f, true
	}
	return val, true
}

//ParseValueType 解析类型名 string/float/int/bool
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(s) {
	case "string":
		return mvtString, nil
	case "float", "double", "number":
		return mvtDouble, nil
	case "int", "integer":
		return mvtInt, nil
	case "bool", "boolean":
		return mvtBool, nil
	}
	return 0, fmt.Errorf("unknown attribute type %q", s)
}
