// Package sources implements the endpoint-shaped façades in front of
// RequestLayer: the content CDN, catalog (Samurai), EC/ID-pair (Ninja),
// IDBE icon server, and Tagaya update-list server.
package sources

import (
	"bytes"
	"context"
	"io"

	"github.com/bodgit/nus"
)

// bytesReader adapts a byte slice to io.Reader for catalog's XML decoders.
func bytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

// fetchAndLoad issues req against base and drives t's BinaryLoadable.Load
// off the resulting Reader, always invoking the closer GetReader returns
// regardless of outcome (spec.md §4.5: "the returned closer must always
// be called").
func fetchAndLoad(ctx context.Context, base *nus.BaseSource, req nus.ReqData, t nus.BinaryLoadable, config nus.NUSTypeLoadConfig) (err error) {
	reader, closer, err := base.GetReader(ctx, req)
	if closer != nil {
		defer func() {
			if cerr := closer(err); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}
	if err != nil {
		return err
	}
	return t.Load(reader, config)
}

// fetchAll issues req against base and returns the whole response body,
// for the small fixed-shape responses (H3 tables, update-list versions)
// that don't go through a BinaryLoadable.
func fetchAll(ctx context.Context, base *nus.BaseSource, req nus.ReqData) (data []byte, err error) {
	reader, closer, err := base.GetReader(ctx, req)
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
	data, err = reader.ReadAll()
	return data, err
}
