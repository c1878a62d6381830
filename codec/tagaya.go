package codec

import "github.com/bodgit/nus"

// UpdateListVersionSize is the wire width of the latest_version response:
// a single big-endian counter.
const UpdateListVersionSize = 4

// UpdateListVersion is the monotonic version counter Tagaya publishes
// for its update list.
type UpdateListVersion struct {
	nus.LoadGuard

	Value uint32
}

// Load parses a bare 4-byte big-endian counter.
func (v *UpdateListVersion) Load(reader nus.Reader, config nus.NUSTypeLoadConfig) error {
	if err := v.Enter("UpdateListVersion"); err != nil {
		return err
	}
	defer v.Done()

	data, err := reader.ReadAll()
	if err != nil {
		return err
	}
	c := newCursor(data)
	val, err := c.u32("tagaya.latest_version")
	if err != nil {
		return err
	}
	v.Value = val
	return nil
}

// Build re-serializes the counter.
func (v *UpdateListVersion) Build() ([]byte, error) {
	var w writer
	w.u32(v.Value)
	return w.buf.Bytes(), nil
}

// UpdateListEntry is one (title, version) pair known to a given Tagaya
// list version.
type UpdateListEntry struct {
	TitleID      nus.TitleID
	TitleVersion uint16
}

const updateListEntrySize = 10 // 8-byte title ID + 2-byte version

// UpdateList is the flat binary table of (title_id, title_version)
// pairs served at `list/<version>.versionlist`. Unlike the catalog
// endpoints (titles, movies, DLC, ...), this is not XML; it's a plain
// fixed-width array, per nus_tools/types/tagaya/all.py.
type UpdateList struct {
	nus.LoadGuard

	Entries []UpdateListEntry
}

// Load parses a flat array of 10-byte (title_id, title_version) pairs
// running to the end of the stream.
func (l *UpdateList) Load(reader nus.Reader, config nus.NUSTypeLoadConfig) error {
	if err := l.Enter("UpdateList"); err != nil {
		return err
	}
	defer l.Done()

	data, err := reader.ReadAll()
	if err != nil {
		return err
	}
	if len(data)%updateListEntrySize != 0 {
		return &TruncatedError{Field: "tagaya.versionlist"}
	}

	c := newCursor(data)
	entries := make([]UpdateListEntry, 0, len(data)/updateListEntrySize)
	for c.remaining() > 0 {
		idBytes, err := c.take(8, "tagaya.versionlist.title_id")
		if err != nil {
			return err
		}
		titleID, err := nus.NewTitleIDFromBytes(idBytes)
		if err != nil {
			return err
		}
		version, err := c.u16("tagaya.versionlist.title_version")
		if err != nil {
			return err
		}
		entries = append(entries, UpdateListEntry{TitleID: titleID, TitleVersion: version})
	}

	l.Entries = entries
	return nil
}

// Build re-serializes the flat entry array.
func (l *UpdateList) Build() ([]byte, error) {
	var w writer
	for _, e := range l.Entries {
		w.put(e.TitleID.Bytes())
		w.u16(e.TitleVersion)
	}
	return w.buf.Bytes(), nil
}
