package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// Open opens a trace file. Files ending in .sz or .snappy are read as snappy
// framed streams and files ending in .lz4 as lz4 frames. Other files are read
// directly, memory-mapped where the platform supports it.
func Open(path string, format Format) (ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sz", ".snappy":
		return openCompressed(path, format, func(r io.Reader) io.Reader {
			return snappy.NewReader(r)
		})
	case ".lz4":
		return openCompressed(path, format, func(r io.Reader) io.Reader {
			return lz4.NewReader(r)
		})
	default:
		in, closer, err := openMapped(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace %s: %w", path, err)
		}

		return &readCloser{
			Reader:  NewReader(in, format),
			closers: []io.Closer{closer},
		}, nil
	}
}

func openCompressed(
	path string,
	format Format,
	decompress func(io.Reader) io.Reader,
) (ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace %s: %w", path, err)
	}

	return &readCloser{
		Reader:  NewReader(decompress(f), format),
		closers: []io.Closer{f},
	}, nil
}
