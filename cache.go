package nus

import (
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// illegalPathChars mirrors pathvalidate's default replacement set for
// filesystem-illegal characters, as used by the original's cachemanager.
const illegalPathChars = `/\:*?"<>|`

func sanitizeComponent(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalPathChars, r) || r == ' ' {
			return '_'
		}
		return r
	}, s)
	if s == "" {
		s = "_"
	}
	return s
}

func sanitizePath(s string) string {
	parts := strings.Split(s, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = sanitizeComponent(p)
	}
	return strings.Join(parts, "/")
}

func formatPairs(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"+"+m[k])
	}
	return strings.Join(parts, "--")
}

// Cache resolves ReqData values to deterministic on-disk paths and manages
// the atomic write-then-rename discipline described in spec.md §4.4.
type Cache struct {
	Fs   afero.Fs
	Root string
}

// NewCache returns a Cache rooted at root, using fs for all filesystem
// access (afero.NewOsFs() for production use, afero.NewMemMapFs() in
// tests).
func NewCache(fs afero.Fs, root string) *Cache {
	return &Cache{Fs: fs, Root: root}
}

// Path returns the deterministic cache body path for req.
//
//	<root>/<sanitize(scheme+"__"+host)>/<sanitize(path_dir)>/<sanitize(filename)>
//
// where filename is the URL's basename suffixed by "---k1+v1--k2+v2..." for
// params, then again for headers (User-Agent excluded from the header
// tail).
func (c *Cache) Path(req ReqData) string {
	u, err := url.Parse(req.Path)
	if err != nil {
		u = &url.URL{}
	}

	urlPath := strings.TrimPrefix(u.Path, "/")
	dir := path.Dir(urlPath)
	if dir == "." {
		dir = ""
	}
	base := path.Base(urlPath)

	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		if !strings.EqualFold(k, "user-agent") {
			headers[k] = v
		}
	}

	name := base
	if fmt := formatPairs(req.Params); fmt != "" {
		name += "---" + fmt
	}
	if fmt := formatPairs(headers); fmt != "" {
		name += "---" + fmt
	}

	return path.Join(
		c.Root,
		sanitizeComponent(u.Scheme+"__"+u.Host),
		sanitizePath(dir),
		sanitizeComponent(name),
	)
}

// MetadataPath returns the sidecar path for a cache body path.
func MetadataPath(bodyPath string) string {
	return bodyPath + ".meta"
}

// TmpPath returns the transient write-buffer path for a cache body path.
func TmpPath(bodyPath string) string {
	return bodyPath + ".tmp"
}

// Has reports whether a cached body already exists for req.
func (c *Cache) Has(req ReqData) (bool, string) {
	p := c.Path(req)
	exists, err := afero.Exists(c.Fs, p)
	return err == nil && exists, p
}

// ReadMetadata loads the sidecar for a cache body path, if present.
func (c *Cache) ReadMetadata(bodyPath string) (Metadata, bool, error) {
	metaPath := MetadataPath(bodyPath)
	exists, err := afero.Exists(c.Fs, metaPath)
	if err != nil || !exists {
		return Metadata{}, false, err
	}
	data, err := afero.ReadFile(c.Fs, metaPath)
	if err != nil {
		return Metadata{}, false, err
	}
	m, err := unmarshalMetadata(data)
	return m, true, err
}

// WriteMetadata writes the sidecar for a cache body path.
func (c *Cache) WriteMetadata(bodyPath string, m Metadata) error {
	if err := c.Fs.MkdirAll(path.Dir(bodyPath), 0o755); err != nil {
		return err
	}
	data, err := marshalMetadata(m)
	if err != nil {
		return err
	}
	return afero.WriteFile(c.Fs, MetadataPath(bodyPath), data, 0o644)
}
