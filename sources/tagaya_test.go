package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bodgit/nus"
)

func TestTagayaGetLatestUpdateListVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest_version" {
			t.Errorf("path = %q, want /latest_version", r.URL.Path)
		}
		w.Write([]byte{0x00, 0x00, 0x00, 0x2a})
	}))
	defer srv.Close()

	base := nus.NewBaseSource(nus.ReqData{Path: srv.URL + "/"}, testConfig(), testCache(t), "test-agent")
	tag := &Tagaya{base: base, load: nus.DefaultNUSTypeLoadConfig()}

	v, err := tag.GetLatestUpdateListVersion(context.Background())
	if err != nil {
		t.Fatalf("GetLatestUpdateListVersion() error = %v", err)
	}
	if v.Value != 42 {
		t.Errorf("Value = %d, want 42", v.Value)
	}
}

func TestTagayaGetUpdateList(t *testing.T) {
	titleID, err := nus.NewTitleID(nus.NewTitleType(nus.PlatformWiiU, nus.CategoryGame), 7)
	if err != nil {
		t.Fatalf("NewTitleID() error = %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list/300.versionlist" {
			t.Errorf("path = %q, want /list/300.versionlist", r.URL.Path)
		}
		w.Write(append(titleID.Bytes(), 0x00, 0x01))
	}))
	defer srv.Close()

	base := nus.NewBaseSource(nus.ReqData{Path: srv.URL + "/"}, testConfig(), testCache(t), "test-agent")
	tag := &Tagaya{base: base, load: nus.DefaultNUSTypeLoadConfig()}

	list, err := tag.GetUpdateList(context.Background(), 300)
	if err != nil {
		t.Fatalf("GetUpdateList() error = %v", err)
	}
	if len(list.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(list.Entries))
	}
	if list.Entries[0].TitleVersion != 1 {
		t.Errorf("TitleVersion = %d, want 1", list.Entries[0].TitleVersion)
	}
}
