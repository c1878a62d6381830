package nus

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// Metadata is the sidecar describing a cached response: everything needed
// to answer status/size/header questions about a cached body without
// re-issuing the request.
type Metadata struct {
	HTTPVersion     string              `json:"http_version"`
	Status          int                 `json:"status"`
	StatusReason    string              `json:"status_reason"`
	ResponseHeaders map[string][]string `json:"response_headers"`
	URL             string              `json:"url"`
	Timestamp       int64               `json:"timestamp"`
	ElapsedMS       int64               `json:"elapsed_ms"`
}

// httpVersionString maps net/http's ProtoMajor/ProtoMinor to the "0.9" |
// "1.0" | "1.1" strings spec.md's Metadata requires.
func httpVersionString(res *http.Response) string {
	switch {
	case res.ProtoMajor == 1 && res.ProtoMinor == 0:
		return "1.0"
	case res.ProtoMajor == 1 && res.ProtoMinor == 1:
		return "1.1"
	case res.ProtoMajor == 0:
		return "0.9"
	default:
		return "1.1"
	}
}

// MetadataFromResponse captures the parts of an HTTP response that
// constitute its Metadata, to be written once when the body is first
// cached.
func MetadataFromResponse(res *http.Response, elapsed time.Duration) Metadata {
	return Metadata{
		HTTPVersion:     httpVersionString(res),
		Status:          res.StatusCode,
		StatusReason:    http.StatusText(res.StatusCode),
		ResponseHeaders: map[string][]string(res.Header),
		URL:             res.Request.URL.String(),
		Timestamp:       time.Now().Unix(),
		ElapsedMS:       elapsed.Milliseconds(),
	}
}

// MarshalJSON-equivalent helpers used by Cache, which owns the afero.Fs
// the sidecar is actually written through.

func marshalMetadata(m Metadata) ([]byte, error) {
	return json.Marshal(m)
}

func unmarshalMetadata(data []byte) (Metadata, error) {
	var m Metadata
	err := json.Unmarshal(data, &m)
	return m, err
}
