package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bodgit/nus"
	"github.com/spf13/afero"
)

func testConfig() nus.SourceConfig {
	c := nus.DefaultSourceConfig()
	c.VerifyTLS = false
	c.LoadFromCache = false
	c.StoreToCache = false
	c.HTTPRetries = 0
	c.RequestsPerSecond = 0
	return c
}

func testCache(t *testing.T) *nus.Cache {
	t.Helper()
	return nus.NewCache(afero.NewMemMapFs(), "/cache")
}

func TestContentSourceGetApp(t *testing.T) {
	titleID, err := nus.NewTitleID(nus.NewTitleType(nus.PlatformWiiU, nus.CategoryGame), 0x10000100)
	if err != nil {
		t.Fatalf("NewTitleID() error = %v", err)
	}
	wantPath := fmt.Sprintf("/%s/%08x", titleID, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		w.Write([]byte("content-bytes"))
	}))
	defer srv.Close()

	base := nus.NewBaseSource(nus.ReqData{Path: srv.URL + "/"}, testConfig(), testCache(t), "test-agent")
	cs := newContentSource(base, nus.DefaultNUSTypeLoadConfig())

	reader, closer, err := cs.GetApp(context.Background(), titleID, 1)
	if err != nil {
		t.Fatalf("GetApp() error = %v", err)
	}
	defer closer(nil)

	data, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "content-bytes" {
		t.Errorf("ReadAll() = %q, want %q", data, "content-bytes")
	}
}

func TestContentSourceGetH3(t *testing.T) {
	titleID, err := nus.NewTitleID(nus.NewTitleType(nus.PlatformWiiU, nus.CategoryGame), 0x10000100)
	if err != nil {
		t.Fatalf("NewTitleID() error = %v", err)
	}
	wantPath := fmt.Sprintf("/%s/%08x.h3", titleID, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		w.Write([]byte("h3-table"))
	}))
	defer srv.Close()

	base := nus.NewBaseSource(nus.ReqData{Path: srv.URL + "/"}, testConfig(), testCache(t), "test-agent")
	cs := newContentSource(base, nus.DefaultNUSTypeLoadConfig())

	data, err := cs.GetH3(context.Background(), titleID, 2)
	if err != nil {
		t.Fatalf("GetH3() error = %v", err)
	}
	if string(data) != "h3-table" {
		t.Errorf("GetH3() = %q, want %q", data, "h3-table")
	}
}

func TestContentSourceGetAppNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	config := testConfig()
	config.ResponseStatusChecking = nus.StatusCheckRequire200
	base := nus.NewBaseSource(nus.ReqData{Path: srv.URL + "/"}, config, testCache(t), "test-agent")
	cs := newContentSource(base, nus.DefaultNUSTypeLoadConfig())

	titleID, err := nus.NewTitleID(nus.NewTitleType(nus.PlatformWiiU, nus.CategoryGame), 1)
	if err != nil {
		t.Fatalf("NewTitleID() error = %v", err)
	}

	if _, err := cs.GetH3(context.Background(), titleID, 1); err == nil {
		t.Fatal("GetH3() error = nil, want ResponseStatusError")
	}
}
