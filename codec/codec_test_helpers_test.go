package codec

import (
	"bytes"

	"github.com/bodgit/nus"
)

// testReader is a minimal nus.Reader over a fixed byte slice, for Load
// tests that need to pass a non-default NUSTypeLoadConfig (LoadBytes
// always uses the default).
type testReader struct {
	*bytes.Reader
	data []byte
}

func byteReaderForTest(data []byte) nus.Reader {
	return &testReader{Reader: bytes.NewReader(data), data: data}
}

func (r *testReader) Next() ([]byte, error) {
	if r.Reader.Len() == 0 {
		return nil, nil
	}
	buf := make([]byte, r.Reader.Len())
	_, err := r.Reader.Read(buf)
	return buf, err
}

func (r *testReader) ReadAll() ([]byte, error) { return r.data, nil }

func (r *testReader) CurrentOffset() int64 { return int64(len(r.data) - r.Reader.Len()) }

func (r *testReader) Size() int64 { return int64(len(r.data)) }

func (r *testReader) Metadata() (nus.Metadata, bool) { return nus.Metadata{}, false }
