package nus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
)

func TestBaseSourceGetReaderFetchAndCacheThenReplay(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("fetched-body"))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	cache := NewCache(fs, "/cache")
	config := DefaultSourceConfig()
	config.VerifyTLS = false
	config.HTTPRetries = 0
	config.RequestsPerSecond = 0

	base := NewBaseSource(ReqData{Path: srv.URL + "/"}, config, cache, "test-agent")

	reader, closer, err := base.GetReader(context.Background(), ReqData{Path: "a/b"})
	if err != nil {
		t.Fatalf("GetReader() error = %v", err)
	}
	data, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if err := closer(nil); err != nil {
		t.Fatalf("closer() error = %v", err)
	}
	if string(data) != "fetched-body" {
		t.Errorf("ReadAll() = %q, want %q", data, "fetched-body")
	}
	if hits != 1 {
		t.Fatalf("server hit %d times, want 1", hits)
	}

	// Second GetReader for the same request should replay from cache,
	// not hit the server again.
	reader2, closer2, err := base.GetReader(context.Background(), ReqData{Path: "a/b"})
	if err != nil {
		t.Fatalf("second GetReader() error = %v", err)
	}
	data2, err := reader2.ReadAll()
	if err != nil {
		t.Fatalf("second ReadAll() error = %v", err)
	}
	_ = closer2(nil)
	if string(data2) != "fetched-body" {
		t.Errorf("second ReadAll() = %q, want %q", data2, "fetched-body")
	}
	if hits != 1 {
		t.Errorf("server hit %d times after cache replay, want 1", hits)
	}
}

func TestBaseSourceGetReaderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	cache := NewCache(fs, "/cache")
	config := DefaultSourceConfig()
	config.VerifyTLS = false
	config.HTTPRetries = 0
	config.RequestsPerSecond = 0
	config.StoreToCache = false

	base := NewBaseSource(ReqData{Path: srv.URL + "/"}, config, cache, "test-agent")

	_, _, err := base.GetReader(context.Background(), ReqData{Path: "x"})
	if err == nil {
		t.Fatal("GetReader() error = nil, want ResponseStatusError")
	}
	if _, ok := err.(*ResponseStatusError); !ok {
		t.Errorf("error = %v (%T), want *ResponseStatusError", err, err)
	}
}

// TestBaseSourceGetReaderStatusErrorNoMetaLeftBehind covers spec.md
// scenario 8: with store_to_cache=true and store_failed_requests=false,
// a 500 response must leave neither the ".tmp" body nor a ".meta"
// sidecar behind.
func TestBaseSourceGetReaderStatusErrorNoMetaLeftBehind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	cache := NewCache(fs, "/cache")
	config := DefaultSourceConfig()
	config.VerifyTLS = false
	config.HTTPRetries = 0
	config.RequestsPerSecond = 0
	config.StoreToCache = true
	config.StoreMetadata = true
	config.StoreFailedRequests = false

	base := NewBaseSource(ReqData{Path: srv.URL + "/"}, config, cache, "test-agent")

	req := ReqData{Path: "x"}
	r, closer, err := base.GetReader(context.Background(), req)
	if _, ok := err.(*ResponseStatusError); !ok {
		t.Fatalf("GetReader() error = %v (%T), want *ResponseStatusError", err, err)
	}
	if r != nil {
		if _, cerr := r.ReadAll(); cerr != nil && cerr != err {
			t.Fatalf("ReadAll() = %v", cerr)
		}
	}
	if closer != nil {
		if cerr := closer(err); cerr != err {
			t.Fatalf("closer() = %v, want the status error %v", cerr, err)
		}
	}

	bodyPath := cache.Path(base.base.Merge(req))
	if exists, _ := afero.Exists(fs, bodyPath); exists {
		t.Errorf("body present at %s, want absent", bodyPath)
	}
	if exists, _ := afero.Exists(fs, TmpPath(bodyPath)); exists {
		t.Errorf("tmp file present at %s, want removed", TmpPath(bodyPath))
	}
	if exists, _ := afero.Exists(fs, MetadataPath(bodyPath)); exists {
		t.Errorf("meta file present at %s, want absent", MetadataPath(bodyPath))
	}
}

func TestBaseSourceGetNoCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("direct"))
	}))
	defer srv.Close()

	config := DefaultSourceConfig()
	config.VerifyTLS = false
	config.HTTPRetries = 0
	config.RequestsPerSecond = 0

	base := NewBaseSource(ReqData{Path: srv.URL + "/"}, config, NewCache(afero.NewMemMapFs(), "/cache"), "test-agent")

	res, err := base.GetNoCache(context.Background(), ReqData{Path: "y"})
	if err != nil {
		t.Fatalf("GetNoCache() error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", res.StatusCode)
	}
}
