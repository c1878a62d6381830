package sources

import (
	"context"
	"fmt"

	"github.com/bodgit/nus"
	"github.com/bodgit/nus/codec"
)

// Tagaya is the update-list façade. Two server variants exist with
// different TLS pinning (`nus_tools/sources/tagaya.py`); the region in
// both base paths doesn't affect the list content.
type Tagaya struct {
	base *nus.BaseSource
	load nus.NUSTypeLoadConfig
}

// NewTagayaCDN targets the CDN-fronted update-list server, pinned to its
// leaf certificate fingerprint.
func NewTagayaCDN(config nus.SourceConfig, cache *nus.Cache, userAgent string, load nus.NUSTypeLoadConfig) *Tagaya {
	config.VerifyTLS = false
	config.RequireFingerprint = "43:8D:A9:4A:60:CB:00:DF:F2:B3:EB:17:A7:A2:1C:98:BD:11:FC:4A:A6:49:62:C1:2C:EF:41:BB:1F:28:88:95"
	base := nus.NewBaseSource(nus.ReqData{Path: "https://tagaya-wup.cdn.nintendo.net/tagaya/versionlist/EUR/EU/"}, config, cache, userAgent)
	return &Tagaya{base: base, load: load}
}

// NewTagayaNoCDN targets the origin update-list server, pinned to its own
// leaf certificate fingerprint.
func NewTagayaNoCDN(config nus.SourceConfig, cache *nus.Cache, userAgent string, load nus.NUSTypeLoadConfig) *Tagaya {
	config.VerifyTLS = false
	config.RequireFingerprint = "C6:6E:7D:66:D0:73:62:2F:A3:28:7F:A6:2F:F5:73:5C:71:EE:EB:3D:93:AC:B3:14:7A:8F:85:B4:07:D4:CE:ED"
	base := nus.NewBaseSource(nus.ReqData{Path: "https://tagaya.wup.shop.nintendo.net/tagaya/versionlist/EUR/EU/"}, config, cache, userAgent)
	return &Tagaya{base: base, load: load}
}

// GetLatestUpdateListVersion fetches the monotonic counter at
// `latest_version`.
func (s *Tagaya) GetLatestUpdateListVersion(ctx context.Context) (*codec.UpdateListVersion, error) {
	v := &codec.UpdateListVersion{}
	if err := fetchAndLoad(ctx, s.base, nus.ReqData{Path: "latest_version"}, v, s.load); err != nil {
		return nil, err
	}
	return v, nil
}

// GetUpdateList fetches the flat title_id/title_version table at
// `list/<version>.versionlist`.
func (s *Tagaya) GetUpdateList(ctx context.Context, version int) (*codec.UpdateList, error) {
	l := &codec.UpdateList{}
	req := nus.ReqData{Path: fmt.Sprintf("list/%d.versionlist", version)}
	if err := fetchAndLoad(ctx, s.base, req, l, s.load); err != nil {
		return nil, err
	}
	return l, nil
}
