package filestore

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the codec content files are written with.
type Compression string

const (
	// Zstd gives the better ratio and is the default.
	Zstd Compression = "zstd"
	// LZ4 is faster to write and read.
	LZ4 Compression = "lz4"
)

// Ext returns the file extension for the codec.
func (c Compression) Ext() string {
	if c == LZ4 {
		return ".json.lz4"
	}
	return ".json.zst"
}

// ParseCompression maps a config value to a codec.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "zstd", "zst":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	}
	return "", fmt.Errorf("unknown compression %q", s)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case LZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, nil), nil
	}
}

func decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case LZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	default:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		return dec.DecodeAll(data, nil)
	}
}
