package journal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Compressed snapshot files are recognised by extension.
const (
	ExtXZ  = ".xz"
	ExtLZ4 = ".lz4"
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// compressor wraps w according to the extension of name. Closing the
// result flushes the compressed stream but leaves w open.
func compressor(name string, w io.Writer) (io.WriteCloser, error) {
	switch {
	case strings.HasSuffix(name, ExtXZ):
		return xz.NewWriter(w)
	case strings.HasSuffix(name, ExtLZ4):
		return lz4.NewWriter(w), nil
	}
	return nopWriteCloser{w}, nil
}

func decompressor(name string, r io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ExtXZ):
		return xz.NewReader(r)
	case strings.HasSuffix(name, ExtLZ4):
		return lz4.NewReader(r), nil
	}
	return r, nil
}

// WriteSnapshotFile writes Snapshot(data) to path, compressed with xz or
// lz4 when path ends in .xz or .lz4. It returns the number of bytes on
// disk.
func WriteSnapshotFile(path string, data map[string]interface{}) (int64, error) {
	raw, err := Snapshot(data)
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	zw, err := compressor(path, &buf)
	if err != nil {
		return 0, err
	}
	if _, err := zw.Write(raw); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	return int64(buf.Len()), nil
}

// ReadSnapshotFile reads a file written by WriteSnapshotFile.
func ReadSnapshotFile(path string) (map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := decompressor(path, f)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	return ParseSnapshot(raw)
}
