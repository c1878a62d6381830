package nus

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/spf13/afero"
)

// Reader is a lazy sequence of byte chunks returned by RequestLayer.
// CurrentOffset reports the *compressed* offset into the upstream byte
// stream; Size is the compressed size for HTTP responses, the exact size
// for local files, or -1 if unknown.
type Reader interface {
	io.Reader
	// Next returns the next chunk, or an empty slice exactly once at
	// end-of-stream.
	Next() ([]byte, error)
	ReadAll() ([]byte, error)
	CurrentOffset() int64
	Size() int64
	Metadata() (Metadata, bool)
}

type baseReader struct {
	readChunk func() ([]byte, error)
	offset    func() int64
	size      int64
	meta      Metadata
	hasMeta   bool

	buf []byte
}

func (r *baseReader) Next() ([]byte, error) {
	return r.readChunk()
}

func (r *baseReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, err := r.readChunk()
		if err != nil {
			return 0, err
		}
		if len(chunk) == 0 {
			return 0, io.EOF
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *baseReader) ReadAll() ([]byte, error) {
	var out bytes.Buffer
	if len(r.buf) > 0 {
		out.Write(r.buf)
		r.buf = nil
	}
	for {
		chunk, err := r.readChunk()
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		out.Write(chunk)
	}
	return out.Bytes(), nil
}

func (r *baseReader) CurrentOffset() int64 {
	return r.offset()
}

func (r *baseReader) Size() int64 {
	return r.size
}

func (r *baseReader) Metadata() (Metadata, bool) {
	return r.meta, r.hasMeta
}

// NewFileReader wraps an already-open afero file as a Reader with no
// associated Metadata (a cache replay, or a plain local file load).
func NewFileReader(f afero.File, chunkSize int) (Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	var offset int64
	return &baseReader{
		size: info.Size(),
		readChunk: func() ([]byte, error) {
			buf := make([]byte, chunkSize)
			n, err := f.Read(buf)
			if n > 0 {
				offset += int64(n)
				return buf[:n], nil
			}
			if err == io.EOF {
				return nil, nil
			}
			return nil, err
		},
		offset: func() int64 { return offset },
	}, nil
}

// NewResponseReader wraps an in-flight HTTP response body as a Reader,
// capturing Metadata immediately (the response headers/status are already
// known once headers arrive, before the body is read).
func NewResponseReader(res *http.Response, chunkSize int, started time.Time) Reader {
	var offset int64
	size := res.ContentLength
	return &baseReader{
		size: size,
		meta: MetadataFromResponse(res, time.Since(started)),
		hasMeta: true,
		readChunk: func() ([]byte, error) {
			buf := make([]byte, chunkSize)
			n, err := res.Body.Read(buf)
			if n > 0 {
				offset += int64(n)
				return buf[:n], nil
			}
			if err == io.EOF {
				return nil, nil
			}
			return nil, err
		},
		offset: func() int64 { return offset },
	}
}

// cachingReader tees a Reader's chunks into a ".tmp" sibling of its final
// path, committing (atomic rename) or discarding (unlink) on Close
// depending on how the read ended. This implements the COMMIT_OR_DISCARD
// state described in spec.md §4.5.
type cachingReader struct {
	inner     Reader
	fs        afero.Fs
	finalPath string
	tmpPath   string
	tmpFile   afero.File
	commitErr error // sticky: set once Close has decided and run

	storeOnStatusError bool
	// writeMetadata persists the sidecar once the body has committed;
	// nil when metadata storage is disabled. It shares the body's
	// atomic fate: it only ever runs in the commit branch of
	// closeCommit, never when the tmp body is discarded.
	writeMetadata func() error
	closed        bool
}

// newCachingReader opens the ".tmp" sibling for writing and returns a
// Reader whose chunks are simultaneously teed to disk. writeMetadata, if
// non-nil, is invoked only once the body itself has been committed.
func newCachingReader(fs afero.Fs, finalPath string, storeOnStatusError bool, writeMetadata func() error, inner Reader) (*cachingReader, error) {
	tmpPath := TmpPath(finalPath)
	if err := fs.MkdirAll(parentDir(tmpPath), 0o755); err != nil {
		return nil, err
	}
	f, err := fs.Create(tmpPath)
	if err != nil {
		return nil, err
	}
	return &cachingReader{
		inner:              inner,
		fs:                 fs,
		finalPath:          finalPath,
		tmpPath:            tmpPath,
		tmpFile:            f,
		storeOnStatusError: storeOnStatusError,
		writeMetadata:      writeMetadata,
	}, nil
}

func (c *cachingReader) Next() ([]byte, error) {
	chunk, err := c.inner.Next()
	if err != nil {
		return nil, err
	}
	if len(chunk) > 0 {
		if _, werr := c.tmpFile.Write(chunk); werr != nil {
			return nil, werr
		}
	}
	return chunk, nil
}

func (c *cachingReader) Read(p []byte) (int, error) {
	chunk, err := c.Next()
	if err != nil {
		return 0, err
	}
	if len(chunk) == 0 {
		return 0, io.EOF
	}
	return copy(p, chunk), nil
}

func (c *cachingReader) ReadAll() ([]byte, error) {
	var out bytes.Buffer
	for {
		chunk, err := c.Next()
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		out.Write(chunk)
	}
	return out.Bytes(), nil
}

func (c *cachingReader) CurrentOffset() int64   { return c.inner.CurrentOffset() }
func (c *cachingReader) Size() int64            { return c.inner.Size() }
func (c *cachingReader) Metadata() (Metadata, bool) { return c.inner.Metadata() }

// closeCommit finishes draining the stream (if err is nil, or the error
// qualifies under storeOnStatusError) and either renames the tmp file into
// place or discards it.
func (c *cachingReader) closeCommit(causeErr error) error {
	if c.closed {
		return c.commitErr
	}
	c.closed = true

	_, isStatusErr := causeErr.(*ResponseStatusError)
	commit := causeErr == nil || (isStatusErr && c.storeOnStatusError)

	if commit {
		for {
			chunk, err := c.inner.Next()
			if err != nil || len(chunk) == 0 {
				break
			}
			if _, werr := c.tmpFile.Write(chunk); werr != nil {
				commit = false
				break
			}
		}
	}

	if err := c.tmpFile.Close(); err != nil && commit {
		commit = false
	}

	if commit {
		c.commitErr = c.fs.Rename(c.tmpPath, c.finalPath)
		if c.commitErr == nil && c.writeMetadata != nil {
			c.commitErr = c.writeMetadata()
		}
	} else {
		c.commitErr = c.fs.Remove(c.tmpPath)
	}
	return c.commitErr
}

func parentDir(p string) string {
	i := len(p) - 1
	for i >= 0 && p[i] != '/' {
		i--
	}
	if i < 0 {
		return "."
	}
	return p[:i]
}
