// Package source opens documents for analysis. It detects compressed input by
// its magic bytes, enforces a size limit on the decompressed stream, computes
// a fingerprint while reading and transcodes UTF-16 input to UTF-8.
package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/jacoelho/jsontally/internal/ratelimit"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

var (
	ErrTooLarge            = errors.New("document exceeds size limit")
	ErrUnsupportedEncoding = errors.New("unsupported text encoding")
)

// Codec names the compression detected on a document.
type Codec string

const (
	CodecNone Codec = "none"
	CodecGzip Codec = "gzip"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

var magics = []struct {
	codec Codec
	magic []byte
}{
	{codec: CodecGzip, magic: []byte{0x1f, 0x8b}},
	{codec: CodecZstd, magic: []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{codec: CodecLZ4, magic: []byte{0x04, 0x22, 0x4d, 0x18}},
}

var (
	bomUTF32BE = []byte{0x00, 0x00, 0xfe, 0xff}
	bomUTF32LE = []byte{0xff, 0xfe, 0x00, 0x00}
	bomUTF16BE = []byte{0xfe, 0xff}
	bomUTF16LE = []byte{0xff, 0xfe}
)

// Options configure how a document is read.
type Options struct {
	// MaxSize caps the decompressed size in bytes. Zero means unlimited.
	MaxSize int64
	// Limiter throttles reads. Nil means unlimited.
	Limiter *ratelimit.Limiter
}

// Document is an opened, decoded document stream.
type Document struct {
	name    string
	codec   Codec
	r       io.Reader
	counter *countingReader
	closers []io.Closer
}

// Open opens path, or standard input when path is "-".
func Open(ctx context.Context, path string, opts Options) (*Document, error) {
	if path == Stdin {
		return New(ctx, os.Stdin, "stdin", opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}

	doc, err := New(ctx, f, path, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	doc.closers = append(doc.closers, f)
	return doc, nil
}

// New wraps r. The caller keeps ownership of r; closing the Document releases
// only the decoders New created.
func New(ctx context.Context, r io.Reader, name string, opts Options) (*Document, error) {
	if opts.MaxSize < 0 {
		return nil, fmt.Errorf("invalid max size %d", opts.MaxSize)
	}

	doc := &Document{name: name}

	br := bufio.NewReader(&ctxReader{ctx: ctx, r: r})
	codec, err := detectCodec(br)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	doc.codec = codec

	plain, err := doc.decompress(br)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", name, codec, err)
	}

	var stream io.Reader = plain
	if opts.MaxSize > 0 {
		stream = &limitReader{r: stream, remaining: opts.MaxSize, max: opts.MaxSize}
	}

	doc.counter = &countingReader{r: stream, digest: xxhash.New()}
	stream = opts.Limiter.Reader(ctx, doc.counter)

	stream, err = decodeText(stream)
	if err != nil {
		_ = doc.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	doc.r = stream

	return doc, nil
}

func detectCodec(br *bufio.Reader) (Codec, error) {
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	for _, m := range magics {
		if bytes.HasPrefix(head, m.magic) {
			return m.codec, nil
		}
	}
	return CodecNone, nil
}

func (d *Document) decompress(r io.Reader) (io.Reader, error) {
	switch d.codec {
	case CodecGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, zr)
		return zr, nil
	case CodecZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		rc := zr.IOReadCloser()
		d.closers = append(d.closers, rc)
		return rc, nil
	case CodecLZ4:
		return lz4.NewReader(r), nil
	default:
		return r, nil
	}
}

// decodeText transcodes UTF-16 to UTF-8. A UTF-8 byte order mark is left in
// place for the tokenizer to skip.
func decodeText(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, bomUTF32BE), bytes.HasPrefix(head, bomUTF32LE):
		return nil, fmt.Errorf("%w: UTF-32", ErrUnsupportedEncoding)
	case bytes.HasPrefix(head, bomUTF16BE), bytes.HasPrefix(head, bomUTF16LE):
		decoder := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		return transform.NewReader(br, decoder), nil
	default:
		return br, nil
	}
}

// Name returns the display name of the document.
func (d *Document) Name() string {
	return d.name
}

// Codec returns the detected compression.
func (d *Document) Codec() Codec {
	return d.codec
}

// BytesRead returns the number of decompressed bytes consumed so far.
func (d *Document) BytesRead() int64 {
	return d.counter.n
}

// Fingerprint returns the hex xxhash64 of the decompressed bytes read so far.
func (d *Document) Fingerprint() string {
	return fmt.Sprintf("%016x", d.counter.digest.Sum64())
}

func (d *Document) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

// Close releases decoders and the underlying file, if Open created it.
func (d *Document) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

type limitReader struct {
	r         io.Reader
	remaining int64
	max       int64
	err       error
}

// Read allows one byte past the limit so that a document of exactly max bytes
// is accepted and a larger one is rejected.
func (l *limitReader) Read(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.remaining {
		n = int(l.remaining)
		l.remaining = 0
		l.err = fmt.Errorf("%w of %d bytes", ErrTooLarge, l.max)
		return n, l.err
	}
	l.remaining -= int64(n)
	return n, err
}

type countingReader struct {
	r      io.Reader
	n      int64
	digest *xxhash.Digest
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n += int64(n)
		_, _ = c.digest.Write(p[:n])
	}
	return n, err
}
