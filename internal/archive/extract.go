// Package archive unpacks uploaded zip bundles into a byte store.
//
// Entry names are attacker controlled. Every name goes through
// safeio.SanitizeEntryName before it reaches the sink, so extraction can only
// ever address keys below the sink's root.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"summeriq/internal/bytestore"
	"summeriq/internal/logging"
	"summeriq/internal/metrics"
	"summeriq/internal/safeio"
)

var (
	ErrNotArchive    = errors.New("archive: payload is not a valid zip archive")
	ErrLimitExceeded = errors.New("archive: extraction limit exceeded")
)

// ExtractionError reports which entry failed and at which step.
type ExtractionError struct {
	Entry string
	Op    string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("extract: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("extract %q: %s: %v", e.Entry, e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Sink receives extracted entries. Every bytestore.Store is a Sink; stores
// that implement bytestore.StreamWriter are written without buffering.
type Sink interface {
	MakeDir(ctx context.Context, rel string) error
	Write(ctx context.Context, rel string, data []byte) error
}

type Limits struct {
	MaxEntries    int
	MaxFileBytes  int64
	MaxTotalBytes int64
}

func DefaultLimits() Limits {
	return Limits{
		MaxEntries:    20_000,
		MaxFileBytes:  32 << 20,
		MaxTotalBytes: 256 << 20,
	}
}

type Extractor struct {
	limits Limits
	log    *zap.Logger
}

type Option func(*Extractor)

func WithLimits(l Limits) Option { return func(e *Extractor) { e.limits = l } }

func WithLogger(l *zap.Logger) Option { return func(e *Extractor) { e.log = logging.OrNop(l) } }

func New(opts ...Option) *Extractor {
	e := &Extractor{limits: DefaultLimits(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract unpacks data into sink and returns the sanitized relative paths of
// the files written, in archive order.
func (e *Extractor) Extract(ctx context.Context, data []byte, sink Sink) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ExtractionError{Op: "open", Err: fmt.Errorf("%w: %v", ErrNotArchive, err)}
	}
	if e.limits.MaxEntries > 0 && len(zr.File) > e.limits.MaxEntries {
		return nil, &ExtractionError{Op: "open", Err: fmt.Errorf("%w: %d entries (max %d)", ErrLimitExceeded, len(zr.File), e.limits.MaxEntries)}
	}

	var (
		written []string
		seen    = make(map[string]bool)
		total   int64
	)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		rel, ok := safeio.SanitizeEntryName(f.Name)
		if !ok {
			e.log.Debug("skipping entry with empty sanitized name", zap.String("entry", f.Name))
			continue
		}
		if rel != f.Name && rel+"/" != f.Name {
			e.log.Warn("sanitized archive entry name", zap.String("entry", f.Name), zap.String("path", rel))
		}

		mode := f.Mode()
		switch {
		case f.FileInfo().IsDir():
			if err := sink.MakeDir(ctx, rel); err != nil {
				return written, &ExtractionError{Entry: f.Name, Op: "mkdir", Err: err}
			}
			continue
		case mode&fs.ModeSymlink != 0, mode&(fs.ModeDevice|fs.ModeNamedPipe|fs.ModeSocket) != 0:
			e.log.Debug("skipping non-regular entry", zap.String("entry", f.Name))
			continue
		case f.Flags&0x1 != 0:
			return written, &ExtractionError{Entry: f.Name, Op: "open", Err: errors.New("encrypted entries are not supported")}
		}

		budget := int64(-1)
		if e.limits.MaxFileBytes > 0 {
			budget = e.limits.MaxFileBytes
		}
		if e.limits.MaxTotalBytes > 0 {
			if remaining := e.limits.MaxTotalBytes - total; budget < 0 || remaining < budget {
				budget = remaining
			}
		}
		n, err := e.copyEntry(ctx, f, rel, sink, budget)
		if err != nil {
			return written, &ExtractionError{Entry: f.Name, Op: "write", Err: err}
		}
		total += n
		if !seen[rel] {
			seen[rel] = true
			written = append(written, rel)
		}
	}
	metrics.RecordExtracted(len(written))
	e.log.Info("archive extracted", zap.Int("files", len(written)), zap.Int64("bytes", total))
	return written, nil
}

func (e *Extractor) copyEntry(ctx context.Context, f *zip.File, rel string, sink Sink, budget int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if budget >= 0 {
		r = &capReader{r: rc, left: budget}
	}
	if sw, ok := sink.(bytestore.StreamWriter); ok {
		return sw.WriteFrom(ctx, rel, r)
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	return int64(len(buf)), sink.Write(ctx, rel, buf)
}

// capReader fails once more than left bytes are read. Header sizes are not
// trusted, the decompressed stream is.
type capReader struct {
	r    io.Reader
	left int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.left < 0 {
		return 0, ErrLimitExceeded
	}
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return n, ErrLimitExceeded
	}
	return n, err
}

// ExtractToDir unpacks data below dir on the local filesystem.
func ExtractToDir(ctx context.Context, data []byte, dir string, opts ...Option) ([]string, error) {
	st, err := bytestore.NewFileStore(dir)
	if err != nil {
		return nil, &ExtractionError{Op: "open destination", Err: err}
	}
	return New(opts...).Extract(ctx, data, st)
}
