package export

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the stream codec wrapped around the JSON document.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression parses a --compression value
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return c, nil
	case "":
		return CompressionNone, nil
	}
	return "", fmt.Errorf("unknown compression %q", s)
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Watch mode re-exports on every config change, so encoders are reused.
var zstdEncoderPool sync.Pool

func getZstdEncoder(w io.Writer) (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		enc := v.(*zstd.Encoder)
		enc.Reset(w)
		return enc, nil
	}
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

type zstdWriter struct {
	*zstd.Encoder
}

func (z zstdWriter) Close() error {
	err := z.Encoder.Close()
	z.Encoder.Reset(nil)
	zstdEncoderPool.Put(z.Encoder)
	return err
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func compressor(w io.Writer, comp Compression) (io.WriteCloser, error) {
	switch comp {
	case CompressionNone, "":
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		enc, err := getZstdEncoder(w)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return zstdWriter{enc}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	}
	return nil, fmt.Errorf("unknown compression %q", comp)
}

func detect(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(head, lz4Magic):
		return CompressionLZ4
	}
	return CompressionNone
}

type zstdReader struct {
	*zstd.Decoder
}

func (z zstdReader) Close() error {
	z.Decoder.Close()
	return nil
}

func decompressor(r io.Reader, comp Compression) (io.ReadCloser, error) {
	switch comp {
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		return zstdReader{dec}, nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return io.NopCloser(r), nil
}
