package vectortile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("vector tile "), 100)
	for _, enc := range []Encoding{GZIP, ZLIB} {
		t.Run(string(enc), func(t *testing.T) {
			c, err := Compress(data, enc)
			require.NoError(t, err)
			assert.Less(t, len(c), len(data))
			assert.Equal(t, enc, DetectEncoding(c))

			out, err := Decompress(c)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestDecompressRaw(t *testing.T) {
	data := []byte{0x1a, 0x03, 0x0a, 0x01, 0x61}
	assert.Equal(t, Raw, DetectEncoding(data))
	out, err := Decompress(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	out, err = Compress(data, Raw)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestCompressionErrors(t *testing.T) {
	_, err := Compress([]byte("x"), Encoding("brotli"))
	assert.Error(t, err)

	_, err = Decompress([]byte{0x1f, 0x8b, 0x08, 0x00, 0x01})
	assert.Error(t, err)

	assert.False(t, IsZlib([]byte{0x78, 0x02, 0x00}))
	assert.True(t, IsZlib([]byte{0x78, 0x9c, 0x00}))
	assert.False(t, IsGzip([]byte{0x1f}))
}
