package sources

import (
	"context"
	"fmt"

	"github.com/bodgit/nus"
	"github.com/bodgit/nus/codec"
)

// ContentSource is the `<title id>/*` content CDN façade shared by all
// four server variants (WiiU/3DS, cached/uncached). The servers resolve
// to different hosts but serve the same path shape, per
// `nus_tools/sources/contentcdn.py`.
type ContentSource struct {
	base *nus.BaseSource
	load nus.NUSTypeLoadConfig
}

func newContentSource(base *nus.BaseSource, load nus.NUSTypeLoadConfig) *ContentSource {
	return &ContentSource{base: base, load: load}
}

// NewContentServerWiiUCDN targets the cached Wii U content server
// (ccs.cdn.c.shop.nintendowifi.net).
func NewContentServerWiiUCDN(config nus.SourceConfig, cache *nus.Cache, userAgent string, load nus.NUSTypeLoadConfig) *ContentSource {
	base := nus.NewBaseSource(nus.ReqData{Path: "http://ccs.cdn.c.shop.nintendowifi.net/ccs/download/"}, config, cache, userAgent)
	return newContentSource(base, load)
}

// NewContentServerWiiUNoCDN targets the uncached Wii U content server
// (ccs.wup.shop.nintendo.net).
func NewContentServerWiiUNoCDN(config nus.SourceConfig, cache *nus.Cache, userAgent string, load nus.NUSTypeLoadConfig) *ContentSource {
	base := nus.NewBaseSource(nus.ReqData{Path: "http://ccs.wup.shop.nintendo.net/ccs/download/"}, config, cache, userAgent)
	return newContentSource(base, load)
}

// NewContentServer3DSCDN targets the cached 3DS content server
// (ccs.cdn.t.shop.nintendowifi.net).
func NewContentServer3DSCDN(config nus.SourceConfig, cache *nus.Cache, userAgent string, load nus.NUSTypeLoadConfig) *ContentSource {
	base := nus.NewBaseSource(nus.ReqData{Path: "http://ccs.cdn.t.shop.nintendowifi.net/ccs/download/"}, config, cache, userAgent)
	return newContentSource(base, load)
}

// NewContentServer3DSNoCDN targets the uncached 3DS content server
// (ccs.t.shop.nintendowifi.net).
func NewContentServer3DSNoCDN(config nus.SourceConfig, cache *nus.Cache, userAgent string, load nus.NUSTypeLoadConfig) *ContentSource {
	base := nus.NewBaseSource(nus.ReqData{Path: "http://ccs.t.shop.nintendowifi.net/ccs/download/"}, config, cache, userAgent)
	return newContentSource(base, load)
}

// GetCetk fetches and parses the ticket for titleID (`<title id>/cetk`).
func (s *ContentSource) GetCetk(ctx context.Context, titleID nus.TitleID) (*codec.Ticket, error) {
	t := &codec.Ticket{}
	req := nus.ReqData{Path: fmt.Sprintf("%s/cetk", titleID)}
	if err := fetchAndLoad(ctx, s.base, req, t, s.load); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTMD fetches and parses a title's metadata (`<title id>/tmd` or
// `<title id>/tmd.<version>` when version is non-negative).
func (s *ContentSource) GetTMD(ctx context.Context, titleID nus.TitleID, version int) (*codec.TMD, error) {
	path := fmt.Sprintf("%s/tmd", titleID)
	if version >= 0 {
		path = fmt.Sprintf("%s.%d", path, version)
	}
	t := &codec.TMD{}
	if err := fetchAndLoad(ctx, s.base, nus.ReqData{Path: path}, t, s.load); err != nil {
		return nil, err
	}
	return t, nil
}

// GetApp opens a streaming reader over `<title id>/<content id, 8 lowercase
// hex digits>`, the raw (still block-padded, possibly encrypted) content
// file. The caller must invoke the returned closer exactly once.
func (s *ContentSource) GetApp(ctx context.Context, titleID nus.TitleID, contentID uint32) (nus.Reader, func(error) error, error) {
	req := nus.ReqData{Path: fmt.Sprintf("%s/%08x", titleID, contentID)}
	return s.base.GetReader(ctx, req)
}

// GetH3 fetches the external H3 hash table for a hashed content file
// (`<title id>/<content id>.h3`).
func (s *ContentSource) GetH3(ctx context.Context, titleID nus.TitleID, contentID uint32) ([]byte, error) {
	req := nus.ReqData{Path: fmt.Sprintf("%s/%08x.h3", titleID, contentID)}
	return fetchAll(ctx, s.base, req)
}
