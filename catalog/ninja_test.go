package catalog

import (
	"strings"
	"testing"
)

func TestDecodeECInfo(t *testing.T) {
	doc := `<title_ec_info>
		<title_id>0005000010000100</title_id>
		<price>9.99</price>
		<currency>USD</currency>
		<in_catalog>true</in_catalog>
	</title_ec_info>`
	info, err := DecodeECInfo(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeECInfo() error = %v", err)
	}
	if !info.InCatalog {
		t.Errorf("InCatalog = false, want true")
	}
	if info.Currency != "USD" {
		t.Errorf("Currency = %q, want %q", info.Currency, "USD")
	}
}

func TestDecodeIDPair(t *testing.T) {
	doc := `<id_pair><content_id>0005000010000100</content_id><title_id>00040000000C0000</title_id></id_pair>`
	pair, err := DecodeIDPair(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeIDPair() error = %v", err)
	}
	if pair.ContentID != "0005000010000100" || pair.TitleID != "00040000000C0000" {
		t.Errorf("DecodeIDPair() = %+v", pair)
	}
}
