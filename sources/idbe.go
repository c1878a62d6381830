package sources

import (
	"context"
	"fmt"

	"github.com/bodgit/nus"
	"github.com/bodgit/nus/codec"
)

// IDBEServer is the icon-database façade (`idbe-wup.cdn.nintendo.net` or
// `idbe-ctr.cdn.nintendo.net`), per `nus_tools/sources/idbe.py`.
type IDBEServer struct {
	base *nus.BaseSource
	load nus.NUSTypeLoadConfig
	iv   []byte
	key  func(titleID nus.TitleID) []byte
}

// NewIDBEServerWiiU targets the Wii U icon server.
func NewIDBEServerWiiU(config nus.SourceConfig, cache *nus.Cache, userAgent string, load nus.NUSTypeLoadConfig, keys *nus.KeyStore) *IDBEServer {
	return newIDBEServer("https://idbe-wup.cdn.nintendo.net/icondata/", config, cache, userAgent, load, keys)
}

// NewIDBEServer3DS targets the 3DS icon server.
func NewIDBEServer3DS(config nus.SourceConfig, cache *nus.Cache, userAgent string, load nus.NUSTypeLoadConfig, keys *nus.KeyStore) *IDBEServer {
	return newIDBEServer("https://idbe-ctr.cdn.nintendo.net/icondata/", config, cache, userAgent, load, keys)
}

func newIDBEServer(path string, config nus.SourceConfig, cache *nus.Cache, userAgent string, load nus.NUSTypeLoadConfig, keys *nus.KeyStore) *IDBEServer {
	config.VerifyTLS = false // the icon server's chain predates public trust stores
	base := nus.NewBaseSource(nus.ReqData{Path: path}, config, cache, userAgent)
	return &IDBEServer{
		base: base,
		load: load,
		iv:   keys.IDBEIV(),
		key: func(titleID nus.TitleID) []byte {
			return keys.IDBEKey(codec.IDBEKeyIndex(titleID))
		},
	}
}

// GetIDBE fetches and decrypts the icon database entry for titleID
// (`<title id>[.version]`).
func (s *IDBEServer) GetIDBE(ctx context.Context, titleID nus.TitleID, version int) (idbe *codec.IDBE, err error) {
	path := titleID.String()
	if version >= 0 {
		path = fmt.Sprintf("%s.%d", path, version)
	}

	reader, closer, err := s.base.GetReader(ctx, nus.ReqData{Path: path})
	if closer != nil {
		defer func() {
			if cerr := closer(err); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}
	if err != nil {
		return nil, err
	}

	idbe = &codec.IDBE{}
	if err = idbe.Load(reader, titleID, s.iv, s.key(titleID), s.load); err != nil {
		return nil, err
	}
	return idbe, nil
}
