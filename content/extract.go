package content

import (
	"path/filepath"
	"strings"

	"github.com/bodgit/nus"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// OpenFunc opens a content Reader for the content file holding
// secondaryIndex's bytes, plus a closer to release it once its group is
// fully extracted (spec.md §4.10: "bounds HTTP response lifetime on
// long extractions").
type OpenFunc func(secondaryIndex uint16) (reader *Reader, closer func() error, err error)

// Extractor walks an FST-derived Tree, opening content streams on
// demand and writing the decoded filesystem to disk.
type Extractor struct {
	Fs     afero.Fs
	Target string
	Open   OpenFunc
}

// NewExtractor returns an Extractor rooted at target, using fs for all
// filesystem access and open to obtain a content Reader for any given
// secondary index.
func NewExtractor(fs afero.Fs, target string, open OpenFunc) *Extractor {
	return &Extractor{Fs: fs, Target: target, Open: open}
}

// safePath joins target and rel, failing with a nus.UnsafePathError if
// the result would escape target (spec.md §4.10's path-safety check).
func safePath(target, rel string) (string, error) {
	full := filepath.Join(target, rel)
	rootAbs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	fullAbs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if fullAbs != rootAbs && !strings.HasPrefix(fullAbs, rootAbs+string(filepath.Separator)) {
		return "", &nus.UnsafePathError{Path: full, Root: target}
	}
	return full, nil
}

// Extract creates every directory in tree, then writes every
// non-deleted file, one content stream (secondary index) at a time
// (spec.md §4.10).
func (e *Extractor) Extract(tree *Tree) error {
	if err := e.createDirectories(tree.Root, "/"); err != nil {
		return err
	}

	for secondaryIndex, files := range tree.BySecondary() {
		if err := e.extractGroup(secondaryIndex, files); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) createDirectories(dir *Directory, relPath string) error {
	full, err := safePath(e.Target, relPath)
	if err != nil {
		return err
	}
	if err := e.Fs.MkdirAll(full, 0o755); err != nil {
		return err
	}
	for _, child := range dir.Children {
		if child.IsDir() {
			if err := e.createDirectories(child.Dir, filepath.Join(relPath, child.Dir.Name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractGroup opens one content stream and writes every file that
// lives in it, in ascending offset order, closing the stream before
// returning regardless of outcome.
func (e *Extractor) extractGroup(secondaryIndex uint16, files []*File) (err error) {
	reader, closeReader, err := e.Open(secondaryIndex)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeReader(); cerr != nil {
			err = multierror.Append(err, cerr)
		}
	}()

	for _, f := range files {
		if ferr := e.extractFile(reader, f); ferr != nil {
			return ferr
		}
	}
	return nil
}

// extractFile streams f's bytes out of reader via GetData in
// dataSize-sized chunks. On any error, the partially written target
// file is best-effort removed before the error is returned (spec.md
// §4.10, step 4).
func (e *Extractor) extractFile(reader *Reader, f *File) (err error) {
	full, err := safePath(e.Target, f.Path)
	if err != nil {
		return err
	}

	out, err := e.Fs.Create(full)
	if err != nil {
		return err
	}
	defer func() {
		cerr := out.Close()
		if err != nil {
			_ = e.Fs.Remove(full)
			return
		}
		err = cerr
	}()

	const chunk = int64(dataSize)
	remaining := int64(f.Size)
	offset := int64(f.Offset)
	for remaining > 0 {
		take := remaining
		if take > chunk {
			take = chunk
		}
		data, rerr := reader.GetData(offset, take)
		if rerr != nil {
			err = rerr
			return err
		}
		if _, werr := out.Write(data); werr != nil {
			err = werr
			return err
		}
		offset += take
		remaining -= take
	}
	return nil
}
