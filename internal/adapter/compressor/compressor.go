package compressor

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type Format string

const (
	FormatNone Format = "none"
	FormatGzip Format = "gz"
	FormatXz   Format = "xz"
	FormatZstd Format = "zst"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatNone, FormatGzip, FormatXz, FormatZstd:
		return f, nil
	case "":
		return FormatXz, nil
	default:
		return "", fmt.Errorf("unsupported compression format: %q", s)
	}
}

// Extension is appended after ".tar".
func (f Format) Extension() string {
	if f == FormatNone {
		return ""
	}
	return "." + string(f)
}

// NewWriter wraps w so that everything written to it is compressed. Closing
// the returned writer flushes the stream but does not close w.
func NewWriter(w io.Writer, f Format) (io.WriteCloser, error) {
	switch f {
	case FormatNone:
		return nopWriteCloser{w}, nil
	case FormatGzip:
		gw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		return gw, nil
	case FormatXz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return xw, nil
	case FormatZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("unsupported compression format: %q", f)
	}
}

// NewReader decompresses r. It is the inverse of NewWriter; backups are
// only ever written by this tool, so it serves to inspect archives, as the
// packager and compressor tests do when reading their output back.
func NewReader(r io.Reader, f Format) (io.ReadCloser, error) {
	switch f {
	case FormatNone:
		return io.NopCloser(r), nil
	case FormatGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gr, nil
	case FormatXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return io.NopCloser(xr), nil
	case FormatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression format: %q", f)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
