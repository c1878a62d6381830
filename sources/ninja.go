package sources

import (
	"context"
	"fmt"

	"github.com/bodgit/nus"
	"github.com/bodgit/nus/catalog"
)

// Ninja is the EC-info / ID-pair façade. It authenticates with a client
// certificate instead of a bearer token and, like the rest of the legacy
// shop endpoints, is reached with TLS certificate verification disabled,
// since its chain is not in public trust stores
// (`nus_tools/sources/ninja.py`).
type Ninja struct {
	base   *nus.BaseSource
	region string
}

// NewNinja builds a Ninja source for region (e.g. "EUR"), authenticating
// every request with cert.
func NewNinja(region string, cert nus.ClientCert, config nus.SourceConfig, cache *nus.Cache, userAgent string) *Ninja {
	config.VerifyTLS = false
	base := nus.NewBaseSource(nus.ReqData{
		Path: "https://ninja.wup.shop.nintendo.net/ninja/ws/",
		Cert: &cert,
	}, config, cache, userAgent)
	return &Ninja{base: base, region: region}
}

// GetECInfo fetches `<region>/title/<content id>/ec_info`.
func (s *Ninja) GetECInfo(ctx context.Context, contentID nus.ContentID) (catalog.ECInfo, error) {
	path := fmt.Sprintf("%s/title/%s/ec_info", s.region, contentID)
	reader, closer, err := s.base.GetReader(ctx, nus.ReqData{Path: path})
	if closer != nil {
		defer func() { _ = closer(err) }()
	}
	if err != nil {
		return catalog.ECInfo{}, err
	}
	data, err := reader.ReadAll()
	if err != nil {
		return catalog.ECInfo{}, err
	}
	return catalog.DecodeECInfo(bytesReader(data))
}

// GetContentIDForTitle resolves a content ID from a title ID via
// `titles/id_pair?title_id[]=...`.
func (s *Ninja) GetContentIDForTitle(ctx context.Context, titleID nus.TitleID) (nus.ContentID, error) {
	pair, err := s.getIDPair(ctx, nus.ReqData{Params: map[string]string{"title_id[]": titleID.String()}})
	if err != nil {
		return nus.ContentID{}, err
	}
	return nus.ParseContentID(pair.ContentID)
}

// GetTitleIDForContent resolves a title ID from a content ID via
// `titles/id_pair?ns_uid[]=...`.
func (s *Ninja) GetTitleIDForContent(ctx context.Context, contentID nus.ContentID) (nus.TitleID, error) {
	pair, err := s.getIDPair(ctx, nus.ReqData{Params: map[string]string{"ns_uid[]": contentID.String()}})
	if err != nil {
		return nus.TitleID{}, err
	}
	return nus.ParseTitleID(pair.TitleID)
}

func (s *Ninja) getIDPair(ctx context.Context, req nus.ReqData) (pair catalog.IDPair, err error) {
	req.Path = "titles/id_pair"
	reader, closer, err := s.base.GetReader(ctx, req)
	if closer != nil {
		defer func() { _ = closer(err) }()
	}
	if err != nil {
		return catalog.IDPair{}, err
	}
	data, err := reader.ReadAll()
	if err != nil {
		return catalog.IDPair{}, err
	}
	return catalog.DecodeIDPair(bytesReader(data))
}
