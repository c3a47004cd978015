// Package compression packs object contents before they hit disk.
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// level trades CPU for size; snapshots are written once per checkpoint and
// read once at startup.
const level = 9

func Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	buf := new(bytes.Buffer)
	w := brotli.NewWriterLevel(buf, level)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to brotli writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush brotli writer: %w", err)
	}

	return buf.Bytes(), nil
}

func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}
