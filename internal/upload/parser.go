package upload

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"path/filepath"

	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"dirdrop/internal/fsutil"
)

// Wire format handled here (single part, field "file"):
//
//	--<boundary>
//	Content-Disposition: form-data; name="file"; filename="notes.txt"
//	Content-Type: text/plain
//
//	<payload bytes>
//	--<boundary>--
//
// The body is read line by line against a byte budget (Content-Length). The
// payload has no length field, so the last payload line is only known once the
// following line turns out to be the boundary; one line is always held back.

const defaultBufferSize = 64 << 10

var tracer = otel.Tracer("dirdrop/internal/upload")

// Header is the read side of request headers (http.Header satisfies it).
type Header interface {
	Get(key string) string
}

type Options struct {
	// FS is where uploads are written. Default: fsutil.OS{}.
	FS fsutil.FS
	// SafeNames keeps only the base name of the client-supplied filename.
	// When false the name is joined to the destination directory verbatim,
	// so "../x" and absolute names escape it.
	SafeNames bool
	// BufferSize sizes the body reader.
	BufferSize int
}

type Parser struct {
	fs        fsutil.FS
	safeNames bool
	bufSize   int
}

func NewParser(opts Options) *Parser {
	p := &Parser{
		fs:        opts.FS,
		safeNames: opts.SafeNames,
		bufSize:   opts.BufferSize,
	}
	if p.fs == nil {
		p.fs = fsutil.OS{}
	}
	if p.bufSize <= 0 {
		p.bufSize = defaultBufferSize
	}
	return p
}

// ParseRequest extracts the boundary from the Content-Type header and parses
// body into destDir. contentLength < 0 means the length is unknown, which is
// rejected.
func (p *Parser) ParseRequest(ctx context.Context, h Header, contentLength int64, body io.Reader, destDir string) Outcome {
	boundary, err := ExtractBoundary(h.Get("Content-Type"))
	if err != nil {
		return failure(errNoBoundary)
	}
	if contentLength < 0 {
		return failure(errNoLength)
	}
	return p.Parse(ctx, body, boundary, contentLength, destDir)
}

// Parse streams the single file part of body into destDir. At most
// contentLength bytes are consumed. The destination is closed on every path;
// a body that ends before the closing boundary leaves the truncated file in
// place.
func (p *Parser) Parse(ctx context.Context, body io.Reader, boundary []byte, contentLength int64, destDir string) Outcome {
	_, span := tracer.Start(ctx, "upload.Parse")
	defer span.End()
	span.SetAttributes(attribute.Int64("upload.content_length", contentLength))

	out := p.parse(body, boundary, contentLength, destDir)
	if out.OK {
		span.SetAttributes(
			attribute.String("upload.path", out.Path),
			attribute.Int64("upload.bytes", out.Bytes),
		)
		span.SetStatus(codes.Ok, "")
	} else {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Kind.String())
	}
	return out
}

func (p *Parser) parse(body io.Reader, boundary []byte, contentLength int64, destDir string) Outcome {
	if len(boundary) == 0 {
		return failure(errNoBoundary)
	}
	lr := &lineReader{
		r:         bufio.NewReaderSize(io.LimitReader(body, contentLength), p.bufSize),
		remaining: contentLength,
	}

	line, _ := lr.next()
	if !bytes.Contains(line, boundary) {
		return failure(errNotBoundary)
	}

	line, _ = lr.next()
	name, err := parseFilename(line)
	if err != nil {
		return failure(errNoFilename)
	}
	candidate, ok := p.candidatePath(destDir, name)
	if !ok {
		return failure(errNoFilename)
	}

	// Part Content-Type and the blank separator line. A body that ends here
	// surfaces as UnexpectedEndOfData from copyPart.
	_, _ = lr.next()
	_, _ = lr.next()

	dst := ResolveFilename(p.fs, candidate)
	w, cerr := p.fs.Create(dst)
	if cerr != nil {
		return failure(unwritable(cerr))
	}
	n, sum, fail := copyPart(lr, w, boundary)
	if fail != nil {
		return failure(fail)
	}
	return success(dst, n, sum)
}

func (p *Parser) candidatePath(destDir, name string) (string, bool) {
	if p.safeNames {
		name = fsutil.SafeName(name)
		if name == "" {
			return "", false
		}
		return filepath.Join(destDir, name), true
	}
	if filepath.IsAbs(name) {
		return name, true
	}
	return filepath.Join(destDir, name), true
}

// copyPart writes payload lines to dst until a line containing boundary is
// seen, stripping the line terminator that belongs to the delimiter from the
// last payload line. dst is always closed.
func copyPart(lr *lineReader, dst io.WriteCloser, boundary []byte) (n int64, sum string, fail *Error) {
	defer func() {
		if err := dst.Close(); err != nil && fail == nil {
			fail = unwritable(err)
		}
	}()

	h := blake3.New()
	out := io.MultiWriter(dst, h)
	write := func(b []byte) *Error {
		w, err := out.Write(b)
		n += int64(w)
		if err != nil {
			return unwritable(err)
		}
		return nil
	}

	pending, err := lr.next()
	if err != nil {
		return n, "", errEndOfData
	}
	for lr.remaining > 0 {
		line, err := lr.next()
		if err != nil {
			break
		}
		if bytes.Contains(line, boundary) {
			if f := write(trimEOL(pending)); f != nil {
				return n, "", f
			}
			return n, hex.EncodeToString(h.Sum(nil)), nil
		}
		if f := write(pending); f != nil {
			return n, "", f
		}
		pending = line
	}
	return n, "", errEndOfData
}

// lineReader hands out "\n"-terminated lines and tracks the byte budget.
type lineReader struct {
	r         *bufio.Reader
	remaining int64
}

// next returns the next line including its terminator. The final line of the
// stream may lack one. An error is returned only when no bytes were read.
func (lr *lineReader) next() ([]byte, error) {
	line, err := lr.r.ReadBytes('\n')
	lr.remaining -= int64(len(line))
	if len(line) > 0 {
		return line, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}
