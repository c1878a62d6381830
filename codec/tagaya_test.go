package codec

import (
	"bytes"
	"testing"

	"github.com/bodgit/nus"
)

func TestUpdateListVersionLoadAndBuild(t *testing.T) {
	data := []byte{0x00, 0x00, 0x01, 0x2c} // 300

	var v UpdateListVersion
	if err := nus.LoadBytes(&v, data); err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	if v.Value != 300 {
		t.Errorf("Value = %d, want 300", v.Value)
	}

	rebuilt, err := v.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !bytes.Equal(rebuilt, data) {
		t.Errorf("Build() = %x, want %x", rebuilt, data)
	}
}

func TestUpdateListLoadAndBuild(t *testing.T) {
	titleID, err := nus.NewTitleID(nus.NewTitleType(nus.PlatformWiiU, nus.CategoryGame), 1)
	if err != nil {
		t.Fatalf("NewTitleID() error = %v", err)
	}

	var buf bytes.Buffer
	buf.Write(titleID.Bytes())
	buf.Write([]byte{0x00, 0x05})

	var list UpdateList
	if err := nus.LoadBytes(&list, buf.Bytes()); err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	if len(list.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(list.Entries))
	}
	if list.Entries[0].TitleVersion != 5 {
		t.Errorf("TitleVersion = %d, want 5", list.Entries[0].TitleVersion)
	}
	if list.Entries[0].TitleID != titleID {
		t.Errorf("TitleID = %v, want %v", list.Entries[0].TitleID, titleID)
	}

	rebuilt, err := list.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !bytes.Equal(rebuilt, buf.Bytes()) {
		t.Errorf("Build() did not round-trip")
	}
}

func TestUpdateListTruncated(t *testing.T) {
	var list UpdateList
	if err := nus.LoadBytes(&list, []byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("LoadBytes() error = nil, want TruncatedError")
	}
}
