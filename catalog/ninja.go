package catalog

import "io"

// ECInfo is the decoded response of Ninja's title_ec_info lookup: pricing
// and availability metadata keyed by title ID.
type ECInfo struct {
	TitleID     string
	Price       string
	Currency    string
	InCatalog   bool
}

var ecInfoSchema = Superset(Node(map[string]*Schema{
	"title_id":   Leaf(),
	"price":      Leaf(),
	"currency":   Leaf(),
	"in_catalog": Leaf(),
}))

// DecodeECInfo parses a Ninja `title_ec_info` response.
func DecodeECInfo(r io.Reader) (ECInfo, error) {
	el, err := Walk(r, ecInfoSchema)
	if err != nil {
		return ECInfo{}, err
	}
	return ECInfo{
		TitleID:   el.Get("title_id"),
		Price:     el.Get("price"),
		Currency:  el.Get("currency"),
		InCatalog: el.Get("in_catalog") == "true" || el.Get("in_catalog") == "1",
	}, nil
}

// IDPair is one content-id/title-id association as returned by Ninja's
// id-pair lookups (GetContentIDForTitle / GetTitleIDForContent).
type IDPair struct {
	ContentID string
	TitleID   string
}

var idPairSchema = Superset(Node(map[string]*Schema{
	"content_id": Leaf(),
	"title_id":   Leaf(),
}))

// DecodeIDPair parses a Ninja id-pair response, used both for
// content-id-for-title and title-id-for-content lookups since they share
// a wire shape.
func DecodeIDPair(r io.Reader) (IDPair, error) {
	el, err := Walk(r, idPairSchema)
	if err != nil {
		return IDPair{}, err
	}
	return IDPair{
		ContentID: el.Get("content_id"),
		TitleID:   el.Get("title_id"),
	}, nil
}
