package sources

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bodgit/nus"
	"github.com/bodgit/nus/catalog"
)

// Samurai is the shop catalog façade, rooted at
// `samurai.wup.shop.nintendo.net/samurai/ws/<region>/` with a mandatory
// shop_id/lang query pair (`nus_tools/sources/samurai.py`).
type Samurai struct {
	base *nus.BaseSource
}

// NewSamurai builds a Samurai source for region/shopID/lang.
func NewSamurai(region string, shopID int, lang string, config nus.SourceConfig, cache *nus.Cache, userAgent string) *Samurai {
	config.VerifyTLS = false
	base := nus.NewBaseSource(nus.ReqData{
		Path:   fmt.Sprintf("https://samurai.wup.shop.nintendo.net/samurai/ws/%s/", region),
		Params: map[string]string{"shop_id": strconv.Itoa(shopID), "lang": lang},
	}, config, cache, userAgent)
	return &Samurai{base: base}
}

func (s *Samurai) fetch(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	return fetchAll(ctx, s.base, nus.ReqData{Path: path, Params: params})
}

// GetTitle fetches `title/<content id>`.
func (s *Samurai) GetTitle(ctx context.Context, contentID nus.ContentID) (catalog.Title, error) {
	data, err := s.fetch(ctx, fmt.Sprintf("title/%s", contentID), nil)
	if err != nil {
		return catalog.Title{}, err
	}
	return catalog.DecodeTitle(bytesReader(data))
}

// GetTitleList fetches one page of `titles`.
func (s *Samurai) GetTitleList(ctx context.Context, offset, limit int, other map[string]string) (catalog.TitleList, error) {
	params := pagingParams(offset, limit, other)
	data, err := s.fetch(ctx, "titles", params)
	if err != nil {
		return catalog.TitleList{}, err
	}
	return catalog.DecodeTitleList(bytesReader(data))
}

// AllTitleLists pages through every title, maxPageSize entries at a time,
// mirroring `_get_all_lists`'s generator.
func (s *Samurai) AllTitleLists(ctx context.Context, maxPageSize int, other map[string]string) ([]catalog.TitleList, error) {
	first, err := s.GetTitleList(ctx, 0, maxPageSize, other)
	if err != nil {
		return nil, err
	}
	pages := []catalog.TitleList{first}
	for offset := maxPageSize; offset < first.Total; offset += maxPageSize {
		page, err := s.GetTitleList(ctx, offset, maxPageSize, other)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// GetMovie fetches `movie/<content id>`.
func (s *Samurai) GetMovie(ctx context.Context, contentID nus.ContentID) (catalog.Movie, error) {
	data, err := s.fetch(ctx, fmt.Sprintf("movie/%s", contentID), nil)
	if err != nil {
		return catalog.Movie{}, err
	}
	return catalog.DecodeMovie(bytesReader(data))
}

// GetMovieList fetches one page of `movies`.
func (s *Samurai) GetMovieList(ctx context.Context, offset, limit int, other map[string]string) (catalog.MovieList, error) {
	params := pagingParams(offset, limit, other)
	data, err := s.fetch(ctx, "movies", params)
	if err != nil {
		return catalog.MovieList{}, err
	}
	return catalog.DecodeMovieList(bytesReader(data))
}

// AllMovieLists pages through every movie, maxPageSize entries at a time.
func (s *Samurai) AllMovieLists(ctx context.Context, maxPageSize int, other map[string]string) ([]catalog.MovieList, error) {
	first, err := s.GetMovieList(ctx, 0, maxPageSize, other)
	if err != nil {
		return nil, err
	}
	pages := []catalog.MovieList{first}
	for offset := maxPageSize; offset < first.Total; offset += maxPageSize {
		page, err := s.GetMovieList(ctx, offset, maxPageSize, other)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// GetDLCsWiiU fetches `aocs?aoc[]=...`. WiiU only: 3DS DLC content has no
// content ID of its own, so use GetDLCsForTitle there instead.
func (s *Samurai) GetDLCsWiiU(ctx context.Context, dlcIDs ...nus.ContentID) (catalog.DLCList, error) {
	if len(dlcIDs) == 0 {
		return catalog.DLCList{}, fmt.Errorf("nus/sources: no DLC content ID provided")
	}
	data, err := s.fetch(ctx, "aocs", map[string]string{"aoc[]": joinContentIDs(dlcIDs)})
	if err != nil {
		return catalog.DLCList{}, err
	}
	return catalog.DecodeDLCList(bytesReader(data))
}

// GetDLCsForTitle fetches `title/<content id>/aocs`, with or without
// pagination depending on whether contentID is a 3DS or WiiU title:
// only WiiU requests carry a limit; 3DS results are not paginated.
func (s *Samurai) GetDLCsForTitle(ctx context.Context, contentID nus.ContentID) (catalog.DLCList, error) {
	params := map[string]string{}
	if contentID.Platform() == nus.ContentPlatformWiiU {
		params["limit"] = "200"
	}
	data, err := s.fetch(ctx, fmt.Sprintf("title/%s/aocs", contentID), params)
	if err != nil {
		return catalog.DLCList{}, err
	}
	return catalog.DecodeDLCList(bytesReader(data))
}

// GetDemo fetches `demo/<content id>`.
func (s *Samurai) GetDemo(ctx context.Context, contentID nus.ContentID) (catalog.Demo, error) {
	data, err := s.fetch(ctx, fmt.Sprintf("demo/%s", contentID), nil)
	if err != nil {
		return catalog.Demo{}, err
	}
	return catalog.DecodeDemo(bytesReader(data))
}

// GetNews fetches `news`.
func (s *Samurai) GetNews(ctx context.Context) (catalog.NewsList, error) {
	data, err := s.fetch(ctx, "news", nil)
	if err != nil {
		return catalog.NewsList{}, err
	}
	return catalog.DecodeNewsList(bytesReader(data))
}

// GetTelops fetches `telops`.
func (s *Samurai) GetTelops(ctx context.Context) (catalog.TelopList, error) {
	data, err := s.fetch(ctx, "telops", nil)
	if err != nil {
		return catalog.TelopList{}, err
	}
	return catalog.DecodeTelopList(bytesReader(data))
}

func pagingParams(offset, limit int, other map[string]string) map[string]string {
	params := make(map[string]string, len(other)+2)
	for k, v := range other {
		params[k] = v
	}
	params["offset"] = strconv.Itoa(offset)
	params["limit"] = strconv.Itoa(limit)
	return params
}

func joinContentIDs(ids []nus.ContentID) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id.String()
	}
	return out
}
