package content

import (
	"fmt"
	"path"
	"sort"

	"github.com/bodgit/nus/codec"
)

// Directory is a node of the nested FST tree.
type Directory struct {
	Name     string
	Children []Node
}

// Node is either a directory or a file child of a Directory.
type Node struct {
	Dir  *Directory
	File *File
}

// IsDir reports whether n holds a directory.
func (n Node) IsDir() bool { return n.Dir != nil }

// File is a leaf FST entry: which content file holds its bytes, and its
// offset/size within that content file.
type File struct {
	Path           string
	Name           string
	SecondaryIndex uint16
	Offset         uint64
	Size           uint64
	Deleted        bool
}

// Tree is the result of processing an FST: a nested directory tree plus
// the two flat path maps spec.md §4.9 says are derivable from each
// other.
type Tree struct {
	Root  *Directory
	Dirs  map[string]*Directory
	Files map[string]*File
}

// MalformedFSTError reports a directory entry whose NextEntryIndex
// doesn't describe a valid, forward-moving subtree bound.
type MalformedFSTError struct {
	Index int
}

func (e *MalformedFSTError) Error() string {
	return fmt.Sprintf("nus/content: malformed fst: bad next_entry_index at entry %d", e.Index)
}

// EmptyFSTError reports an FST with no entries at all (not even a root).
type EmptyFSTError struct{}

func (e *EmptyFSTError) Error() string { return "nus/content: fst has no entries" }

// Build walks fst's flat entry array using NextEntryIndex as the
// exclusive upper bound of each directory's children (spec.md §4.9),
// producing both the nested tree and the two flat path maps.
func Build(fst *codec.FST) (*Tree, error) {
	entries := fst.Entries
	if len(entries) == 0 {
		return nil, &EmptyFSTError{}
	}

	dirs := make(map[string]*Directory)
	files := make(map[string]*File)

	root := &Directory{Name: ""}
	dirs["/"] = root

	index := 1
	var walk func(parent *Directory, parentPath string, end int) error
	walk = func(parent *Directory, parentPath string, end int) error {
		for index < end {
			entry := entries[index]
			entryPath := path.Join(parentPath, entry.Name)

			if entry.IsDirectory {
				childEnd := int(entry.NextEntryIndex)
				if childEnd > len(entries) || childEnd <= index {
					return &MalformedFSTError{Index: index}
				}
				child := &Directory{Name: entry.Name}
				parent.Children = append(parent.Children, Node{Dir: child})
				dirs[entryPath] = child
				index++
				if err := walk(child, entryPath, childEnd); err != nil {
					return err
				}
			} else {
				f := &File{
					Path:           entryPath,
					Name:           entry.Name,
					SecondaryIndex: entry.SecondaryIndex,
					Offset:         entry.RealOffset(fst.OffsetFactor),
					Size:           uint64(entry.Size),
					Deleted:        entry.Deleted,
				}
				parent.Children = append(parent.Children, Node{File: f})
				files[entryPath] = f
				index++
			}
		}
		return nil
	}

	if err := walk(root, "/", int(entries[0].NextEntryIndex)); err != nil {
		return nil, err
	}

	return &Tree{Root: root, Dirs: dirs, Files: files}, nil
}

// BySecondary groups every non-deleted file by the content file
// (secondary index) that physically holds it, each group sorted by
// offset ascending — the order the Extractor opens and reads in
// (spec.md §4.10, step 1).
func (t *Tree) BySecondary() map[uint16][]*File {
	groups := make(map[uint16][]*File)
	for _, f := range t.Files {
		if f.Deleted {
			continue
		}
		groups[f.SecondaryIndex] = append(groups[f.SecondaryIndex], f)
	}
	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool { return g[i].Offset < g[j].Offset })
	}
	return groups
}
