package trace

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"tracediff/internal/model"
)

// Compression identifies how a trace file is stored on disk.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionXZ   Compression = "xz"
)

// TraceFile is a parsed trace plus what we know about its source.
type TraceFile struct {
	Info    model.TraceInfo
	Entries []model.TraceEntry
}

// detectCompression checks the magic bytes at the head of the stream.
func detectCompression(br *bufio.Reader) Compression {
	magic, _ := br.Peek(6)
	if len(magic) >= 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip
	}
	if len(magic) == 6 && magic[0] == 0xfd && magic[1] == 0x37 && magic[2] == 0x7a &&
		magic[3] == 0x58 && magic[4] == 0x5a && magic[5] == 0x00 {
		return CompressionXZ
	}
	return CompressionNone
}

type traceReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (t *traceReadCloser) Close() error {
	var first error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Decompress wraps r so that gzip and xz streams read as plain text.
// Uncompressed input passes through unchanged.
func Decompress(r io.Reader) (io.ReadCloser, Compression, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	switch c := detectCompression(br); c {
	case CompressionGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, c, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return &traceReadCloser{Reader: gz, closers: []io.Closer{gz}}, c, nil
	case CompressionXZ:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, c, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return &traceReadCloser{Reader: xzr}, c, nil
	default:
		return &traceReadCloser{Reader: br}, CompressionNone, nil
	}
}

// OpenTrace opens a trace file for reading, transparently decompressing it.
// The caller must close the returned reader.
func OpenTrace(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace %s: %w", path, err)
	}
	rc, _, err := Decompress(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open trace %s: %w", path, err)
	}
	t := rc.(*traceReadCloser)
	t.closers = append([]io.Closer{f}, t.closers...)
	return t, nil
}

// LoadTrace reads and parses the trace at path. A nil dialect means "sniff
// it from the file head".
func LoadTrace(ctx context.Context, path string, dialect Dialect) (TraceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return TraceFile{}, fmt.Errorf("open trace %s: %w", path, err)
	}
	defer f.Close()

	tf, err := ReadTrace(ctx, filepath.Base(path), f, dialect)
	if err != nil {
		return TraceFile{}, fmt.Errorf("read trace %s: %w", path, err)
	}
	return tf, nil
}

// ReadTrace parses an already-open (possibly compressed) trace stream and
// fingerprints its decompressed bytes with BLAKE3.
func ReadTrace(ctx context.Context, name string, r io.Reader, dialect Dialect) (TraceFile, error) {
	rc, _, err := Decompress(r)
	if err != nil {
		return TraceFile{}, err
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 64*1024)
	if dialect == nil {
		head, _ := br.Peek(4096)
		dialect = SniffDialect(head)
	}

	hasher := blake3.New()
	parser := NewParser(dialect)
	entries, lines, err := parser.ParseAll(ctx, io.TeeReader(br, hasher))
	if err != nil {
		return TraceFile{}, err
	}

	return TraceFile{
		Info: model.TraceInfo{
			Name:   name,
			Digest: hex.EncodeToString(hasher.Sum(nil)),
			Lines:  lines,
		},
		Entries: entries,
	}, nil
}
