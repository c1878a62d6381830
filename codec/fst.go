package codec

import (
	"bytes"

	"github.com/bodgit/nus"
)

const fstMagic uint32 = 0x46535400 // "FST\x00"

const (
	fstEntryTypeFile      = 0
	fstEntryTypeDirectory = 1
)

// FSTEntry is one row of an FST's flat entry array. Directories use
// ParentOffset/NextEntryIndex; files use OffsetRaw/Size/SecondaryIndex.
// Index 0 is always the root directory.
type FSTEntry struct {
	IsDirectory bool
	Name        string

	// Directory fields.
	ParentOffset   uint32
	NextEntryIndex uint32

	// File fields.
	OffsetRaw      uint32
	Size           uint32
	OffsetInBytes  bool
	SecondaryIndex uint16
	Deleted        bool
}

// RealOffset returns the entry's real byte offset into its secondary
// content file: OffsetRaw unchanged when OffsetInBytes is set, otherwise
// OffsetRaw scaled by offsetFactor (spec.md §4.9).
func (e FSTEntry) RealOffset(offsetFactor uint32) uint64 {
	if e.OffsetInBytes {
		return uint64(e.OffsetRaw)
	}
	return uint64(e.OffsetRaw) * uint64(offsetFactor)
}

// fstEntryFlags bit layout, as observed on both 3DS and WiiU titles.
const (
	fstFlagOffsetInBytes = 0x01
	fstFlagDeleted       = 0x02
)

// FST is the File System Table embedded in the first content file of a
// title: a flat array of directory/file entries plus a contiguous
// null-terminated name blob.
//
// ref: https://www.3dbrew.org/wiki/NCCH/FST, https://wiiubrew.org/wiki/Title_metadata#FST
type FST struct {
	nus.LoadGuard

	OffsetFactor uint32
	Entries      []FSTEntry
}

// Load parses an FST from reader. config.VerifyChecksums has no effect
// here: the FST carries no self-describing hash, only the header magic
// and root-entry shape checks that always run.
func (f *FST) Load(reader nus.Reader, config nus.NUSTypeLoadConfig) error {
	if err := f.Enter("FST"); err != nil {
		return err
	}
	defer f.Done()

	data, err := reader.ReadAll()
	if err != nil {
		return err
	}
	c := newCursor(data)

	magic, err := c.u32("fst.magic")
	if err != nil {
		return err
	}
	if magic != fstMagic {
		return &FormatError{Field: "fst.magic", Expected: fstMagic, Actual: magic}
	}
	offsetFactor, err := c.u32("fst.offset_factor")
	if err != nil {
		return err
	}
	secondaryCount, err := c.u32("fst.secondary_header_count")
	if err != nil {
		return err
	}
	if _, err := c.take(20, "fst.reserved"); err != nil {
		return err
	}
	if _, err := c.take(int(secondaryCount)*0x20, "fst.secondary_headers"); err != nil {
		return err
	}

	entriesStart := c.pos

	rootTypeName, err := c.u32("fst.root.type_name")
	if err != nil {
		return err
	}
	rootOffset, err := c.u32("fst.root.offset")
	if err != nil {
		return err
	}
	rootSize, err := c.u32("fst.root.size")
	if err != nil {
		return err
	}
	if _, err := c.u16("fst.root.flags"); err != nil {
		return err
	}
	if _, err := c.u16("fst.root.secondary_index"); err != nil {
		return err
	}
	if rootTypeName>>24 != fstEntryTypeDirectory || rootTypeName&0xffffff != 0 {
		return &FormatError{Field: "fst.root.type_name", Expected: "directory at name offset 0", Actual: rootTypeName}
	}

	count := int(rootSize)
	entries := make([]FSTEntry, count)
	entries[0] = FSTEntry{
		IsDirectory:    true,
		ParentOffset:   rootOffset,
		NextEntryIndex: rootSize,
	}
	nameOffsets := make([]uint32, count)

	for i := 1; i < count; i++ {
		typeName, err := c.u32("fst.entry.type_name")
		if err != nil {
			return err
		}
		offset, err := c.u32("fst.entry.offset")
		if err != nil {
			return err
		}
		size, err := c.u32("fst.entry.size")
		if err != nil {
			return err
		}
		flags, err := c.u16("fst.entry.flags")
		if err != nil {
			return err
		}
		secondaryIndex, err := c.u16("fst.entry.secondary_index")
		if err != nil {
			return err
		}

		nameOffsets[i] = typeName & 0xffffff
		isDir := typeName>>24 == fstEntryTypeDirectory

		e := FSTEntry{IsDirectory: isDir, Deleted: flags&fstFlagDeleted != 0}
		if isDir {
			e.ParentOffset = offset
			e.NextEntryIndex = size
		} else {
			e.OffsetRaw = offset
			e.Size = size
			e.OffsetInBytes = flags&fstFlagOffsetInBytes != 0
			e.SecondaryIndex = secondaryIndex
		}
		entries[i] = e
	}

	nameTableOffset := entriesStart + count*16
	for i, off := range nameOffsets {
		if i == 0 {
			continue
		}
		name, err := readCString(data, nameTableOffset+int(off))
		if err != nil {
			return err
		}
		entries[i].Name = name
	}

	f.OffsetFactor = offsetFactor
	f.Entries = entries

	return nil
}

// readCString reads a null-terminated string starting at the given
// absolute offset into data.
func readCString(data []byte, offset int) (string, error) {
	if offset < 0 || offset > len(data) {
		return "", &TruncatedError{Field: "fst.name"}
	}
	rest := data[offset:]
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return "", &TruncatedError{Field: "fst.name"}
	}
	return string(rest[:i]), nil
}

// Build re-serializes the FST. Names are laid out in entry order as a
// fresh contiguous blob; this need not reproduce the exact input bytes
// of a name table built with suffix sharing (spec.md only requires
// byte-perfect round-trip for Ticket/TMD), but every field the parser
// reads back out matches.
func (f *FST) Build() ([]byte, error) {
	var w writer
	w.u32(fstMagic)
	w.u32(f.OffsetFactor)
	w.u32(0) // secondary_header_count: none tracked post-parse

	w.zero(20)

	nameBlob := new(bytes.Buffer)
	nameOffsets := make([]uint32, len(f.Entries))
	for i, e := range f.Entries {
		if i == 0 {
			continue
		}
		nameOffsets[i] = uint32(nameBlob.Len())
		nameBlob.WriteString(e.Name)
		nameBlob.WriteByte(0)
	}

	for i, e := range f.Entries {
		if i == 0 {
			w.u32(fstEntryTypeDirectory << 24)
			w.u32(e.ParentOffset)
			w.u32(e.NextEntryIndex)
			w.u16(0)
			w.u16(0)
			continue
		}
		typ := uint32(fstEntryTypeFile)
		if e.IsDirectory {
			typ = fstEntryTypeDirectory
		}
		w.u32(typ<<24 | nameOffsets[i])
		var flags uint16
		if e.Deleted {
			flags |= fstFlagDeleted
		}
		if e.IsDirectory {
			w.u32(e.ParentOffset)
			w.u32(e.NextEntryIndex)
			w.u16(flags)
			w.u16(0)
		} else {
			if e.OffsetInBytes {
				flags |= fstFlagOffsetInBytes
			}
			w.u32(e.OffsetRaw)
			w.u32(e.Size)
			w.u16(flags)
			w.u16(e.SecondaryIndex)
		}
	}

	w.put(nameBlob.Bytes())

	return w.buf.Bytes(), nil
}
