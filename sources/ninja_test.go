package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bodgit/nus"
)

func TestNinjaGetECInfo(t *testing.T) {
	contentID, err := nus.ParseContentID("20010000000042")
	if err != nil {
		t.Fatalf("ParseContentID() error = %v", err)
	}

	wantPath := "/EUR/title/" + contentID.String() + "/ec_info"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		w.Write([]byte(`<title_ec_info><title_id>0005000010000100</title_id><price>4.99</price><currency>EUR</currency><in_catalog>true</in_catalog></title_ec_info>`))
	}))
	defer srv.Close()

	base := nus.NewBaseSource(nus.ReqData{Path: srv.URL + "/"}, testConfig(), testCache(t), "test-agent")
	ninja := &Ninja{base: base, region: "EUR"}

	info, err := ninja.GetECInfo(context.Background(), contentID)
	if err != nil {
		t.Fatalf("GetECInfo() error = %v", err)
	}
	if !info.InCatalog {
		t.Error("InCatalog = false, want true")
	}
	if info.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", info.Currency)
	}
}

func TestNinjaGetContentIDForTitle(t *testing.T) {
	titleID, err := nus.NewTitleID(nus.NewTitleType(nus.PlatformWiiU, nus.CategoryGame), 0x10000100)
	if err != nil {
		t.Fatalf("NewTitleID() error = %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/titles/id_pair" {
			t.Errorf("path = %q, want /titles/id_pair", r.URL.Path)
		}
		if got := r.URL.Query().Get("title_id[]"); got != titleID.String() {
			t.Errorf("title_id[] = %q, want %q", got, titleID.String())
		}
		w.Write([]byte(`<id_pair><content_id>20010000000042</content_id><title_id>` + titleID.String() + `</title_id></id_pair>`))
	}))
	defer srv.Close()

	base := nus.NewBaseSource(nus.ReqData{Path: srv.URL + "/"}, testConfig(), testCache(t), "test-agent")
	ninja := &Ninja{base: base, region: "EUR"}

	contentID, err := ninja.GetContentIDForTitle(context.Background(), titleID)
	if err != nil {
		t.Fatalf("GetContentIDForTitle() error = %v", err)
	}
	if contentID.String() != "20010000000042" {
		t.Errorf("ContentID = %q, want %q", contentID.String(), "20010000000042")
	}
}
