package acquire

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// compressTo wraps w in a gzip writer. Closing the writer flushes the gzip
// trailer but does not close w.
func compressTo(w io.Writer) (io.WriteCloser, error) {
	gz, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	return gz, nil
}
