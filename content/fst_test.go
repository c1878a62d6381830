package content

import (
	"testing"

	"github.com/bodgit/nus/codec"
)

// sampleFST builds a small tree:
//
//	/
//	  root.bin      (secondary 0, offset 0, size 10)
//	  sub/
//	    a.bin       (secondary 1, offset 0, size 20)
//	    b.bin       (secondary 1, offset 20, size 5, deleted)
func sampleFST() *codec.FST {
	return &codec.FST{
		OffsetFactor: 1,
		Entries: []codec.FSTEntry{
			{IsDirectory: true, NextEntryIndex: 5},
			{Name: "root.bin", OffsetRaw: 0, Size: 10, OffsetInBytes: true, SecondaryIndex: 0},
			{IsDirectory: true, Name: "sub", NextEntryIndex: 5},
			{Name: "a.bin", OffsetRaw: 0, Size: 20, OffsetInBytes: true, SecondaryIndex: 1},
			{Name: "b.bin", OffsetRaw: 20, Size: 5, OffsetInBytes: true, SecondaryIndex: 1, Deleted: true},
		},
	}
}

func TestBuildTree(t *testing.T) {
	tree, err := Build(sampleFST())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(tree.Root.Children) != 2 {
		t.Fatalf("len(Root.Children) = %d, want 2", len(tree.Root.Children))
	}

	subDir, ok := tree.Dirs["/sub"]
	if !ok {
		t.Fatal(`Dirs["/sub"] missing`)
	}
	if len(subDir.Children) != 2 {
		t.Fatalf("len(sub.Children) = %d, want 2", len(subDir.Children))
	}

	if _, ok := tree.Files["/root.bin"]; !ok {
		t.Fatal(`Files["/root.bin"] missing`)
	}
	if f, ok := tree.Files["/sub/a.bin"]; !ok || f.Size != 20 {
		t.Fatalf(`Files["/sub/a.bin"] = %+v, ok = %v`, f, ok)
	}
}

func TestBuildTreeMalformed(t *testing.T) {
	fst := &codec.FST{
		OffsetFactor: 1,
		Entries: []codec.FSTEntry{
			{IsDirectory: true, NextEntryIndex: 2},
			{IsDirectory: true, Name: "bad", NextEntryIndex: 0},
		},
	}
	_, err := Build(fst)
	if err == nil {
		t.Fatal("Build() error = nil, want MalformedFSTError")
	}
}

func TestBuildTreeEmpty(t *testing.T) {
	_, err := Build(&codec.FST{})
	if err == nil {
		t.Fatal("Build() error = nil, want EmptyFSTError")
	}
}

func TestTreeBySecondary(t *testing.T) {
	tree, err := Build(sampleFST())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	groups := tree.BySecondary()

	if len(groups[0]) != 1 {
		t.Fatalf("len(groups[0]) = %d, want 1", len(groups[0]))
	}
	// b.bin is deleted and must be excluded even though it shares
	// secondary index 1 with a.bin.
	if len(groups[1]) != 1 {
		t.Fatalf("len(groups[1]) = %d, want 1 (deleted file excluded)", len(groups[1]))
	}
	if groups[1][0].Name != "a.bin" {
		t.Errorf("groups[1][0].Name = %q, want %q", groups[1][0].Name, "a.bin")
	}
}
