package vectortile

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

//Encoding 瓦片压缩格式
type Encoding string

// Constants representing tile encodings
const (
	Raw  Encoding = "raw"
	GZIP Encoding = "gzip" // encoding = gzip
	ZLIB Encoding = "zlib" // encoding = deflate
)

//IsGzip gzip魔数 1f 8b
func IsGzip(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}

//IsZlib zlib头 78 01/5e/9c/da
func IsZlib(data []byte) bool {
	if len(data) <= 2 || data[0] != 0x78 {
		return false
	}
	switch data[1] {
	case 0x01, 0x5e, 0x9c, 0xda:
		return true
	}
	return false
}

//DetectEncoding 判断压缩格式
func DetectEncoding(data []byte) Encoding {
	switch {
	case IsGzip(data):
		return GZIP
	case IsZlib(data):
		return ZLIB
	}
	return Raw
}

//Decompress 解压，未压缩数据原样返回
func Decompress(data []byte) ([]byte, error) {
	var (
		r   io.ReadCloser
		err error
	)
	switch DetectEncoding(data) {
	case GZIP:
		r, err = gzip.NewReader(bytes.NewReader(data))
	case ZLIB:
		r, err = zlib.NewReader(bytes.NewReader(data))
	default:
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}

//Compress 压缩
func Compress(data []byte, enc Encoding) ([]byte, error) {
	var (
		buf bytes.Buffer
		w   io.WriteCloser
	)
	switch enc {
	case GZIP:
		w = gzip.NewWriter(&buf)
	case ZLIB:
		w = zlib.NewWriter(&buf)
	case Raw, "":
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
