//go:build !unix

package trace

import (
	"io"
	"os"
)

func openMapped(path string) (io.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	return f, f, nil
}
