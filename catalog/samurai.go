package catalog

import "io"

// itemSchema describes the common shape of one list entry across every
// Samurai endpoint: a handful of known leaf tags, with SupersetAllowed
// set because each endpoint carries its own extra fields beyond the
// ones this module reads (spec.md §1: the XML schema-walk is mechanical,
// low-depth).
func itemSchema(extra map[string]*Schema) *Schema {
	base := map[string]*Schema{
		"content_id":   Leaf(),
		"title_id":     Leaf(),
		"product_code": Leaf(),
		"platform":     Leaf(),
	}
	for k, v := range extra {
		base[k] = v
	}
	return Superset(Node(base))
}

// Title is one entry of a Samurai title list/detail response.
type Title struct {
	ContentID   string
	TitleID     string
	ProductCode string
	Name        string
	IconURL     string
}

var titleSchema = itemSchema(map[string]*Schema{
	"name":     Leaf(),
	"icon_url": Leaf(),
})

func titleFromElement(el *Element) Title {
	return Title{
		ContentID:   el.Get("content_id"),
		TitleID:     el.Get("title_id"),
		ProductCode: el.Get("product_code"),
		Name:        el.Get("name"),
		IconURL:     el.Get("icon_url"),
	}
}

// TitleList is a page of Titles.
type TitleList struct {
	ListMeta
	Titles []Title
}

// DecodeTitleList parses a Samurai `titles` list response.
func DecodeTitleList(r io.Reader) (TitleList, error) {
	meta, items, err := WalkList(r, "title", titleSchema)
	if err != nil {
		return TitleList{}, err
	}
	out := TitleList{ListMeta: meta, Titles: make([]Title, len(items))}
	for i, el := range items {
		out.Titles[i] = titleFromElement(el)
	}
	return out, nil
}

// DecodeTitle parses a single Samurai `title/<id>` detail response (the
// same field set as one TitleList entry, at the document root instead of
// inside a list).
func DecodeTitle(r io.Reader) (Title, error) {
	el, err := Walk(r, titleSchema)
	if err != nil {
		return Title{}, err
	}
	return titleFromElement(el), nil
}

// Movie is one entry of a Samurai movie list response.
type Movie struct {
	ContentID string
	TitleID   string
	Name      string
	URL       string
}

var movieSchema = itemSchema(map[string]*Schema{
	"name": Leaf(),
	"url":  Leaf(),
})

func movieFromElement(el *Element) Movie {
	return Movie{
		ContentID: el.Get("content_id"),
		TitleID:   el.Get("title_id"),
		Name:      el.Get("name"),
		URL:       el.Get("url"),
	}
}

// MovieList is a page of Movies.
type MovieList struct {
	ListMeta
	Movies []Movie
}

// DecodeMovieList parses a Samurai `movies` list response.
func DecodeMovieList(r io.Reader) (MovieList, error) {
	meta, items, err := WalkList(r, "movie", movieSchema)
	if err != nil {
		return MovieList{}, err
	}
	out := MovieList{ListMeta: meta, Movies: make([]Movie, len(items))}
	for i, el := range items {
		out.Movies[i] = movieFromElement(el)
	}
	return out, nil
}

// DecodeMovie parses a single Samurai `movie/<id>` detail response.
func DecodeMovie(r io.Reader) (Movie, error) {
	el, err := Walk(r, movieSchema)
	if err != nil {
		return Movie{}, err
	}
	return movieFromElement(el), nil
}

// DLC is one entry of a Samurai DLC list response. DLC has a platform
// fork (WiiU vs 3DS, selected by whether the content ID starts with "5"
// i.e. ContentPlatform3DS) preserved as-is from the original.
type DLC struct {
	ContentID    string
	TitleID      string
	Name         string
	Is3DS        bool
}

var dlcSchema = itemSchema(map[string]*Schema{
	"name": Leaf(),
})

func dlcFromElement(el *Element) DLC {
	contentID := el.Get("content_id")
	return DLC{
		ContentID: contentID,
		TitleID:   el.Get("title_id"),
		Name:      el.Get("name"),
		Is3DS:     len(contentID) > 0 && contentID[0] == '5',
	}
}

// DLCList is a page of DLC entries.
type DLCList struct {
	ListMeta
	DLC []DLC
}

// DecodeDLCList parses a Samurai `dlcs` list response. The same schema
// and decoder serve both SamuraiDlcsWiiU and SamuraiDlcs3DS; the
// platform fork only affects which base path a Source requests against,
// not the wire shape.
func DecodeDLCList(r io.Reader) (DLCList, error) {
	meta, items, err := WalkList(r, "dlc", dlcSchema)
	if err != nil {
		return DLCList{}, err
	}
	out := DLCList{ListMeta: meta, DLC: make([]DLC, len(items))}
	for i, el := range items {
		out.DLC[i] = dlcFromElement(el)
	}
	return out, nil
}

// Demo is one entry of a Samurai demo list response.
type Demo struct {
	ContentID string
	TitleID   string
	Name      string
}

var demoSchema = itemSchema(map[string]*Schema{
	"name": Leaf(),
})

func demoFromElement(el *Element) Demo {
	return Demo{
		ContentID: el.Get("content_id"),
		TitleID:   el.Get("title_id"),
		Name:      el.Get("name"),
	}
}

// DemoList is a page of Demos.
type DemoList struct {
	ListMeta
	Demos []Demo
}

// DecodeDemoList parses a Samurai `demos` list response.
func DecodeDemoList(r io.Reader) (DemoList, error) {
	meta, items, err := WalkList(r, "demo", demoSchema)
	if err != nil {
		return DemoList{}, err
	}
	out := DemoList{ListMeta: meta, Demos: make([]Demo, len(items))}
	for i, el := range items {
		out.Demos[i] = demoFromElement(el)
	}
	return out, nil
}

// DecodeDemo parses a single Samurai `demo/<id>` detail response.
func DecodeDemo(r io.Reader) (Demo, error) {
	el, err := Walk(r, demoSchema)
	if err != nil {
		return Demo{}, err
	}
	return demoFromElement(el), nil
}

// News is one entry of a Samurai news list response.
type News struct {
	ID   string
	Name string
	Body string
}

var newsSchema = Superset(Node(map[string]*Schema{
	"news_id": Leaf(),
	"title":   Leaf(),
	"body":    Leaf(),
}))

func newsFromElement(el *Element) News {
	return News{
		ID:   el.Get("news_id"),
		Name: el.Get("title"),
		Body: el.Get("body"),
	}
}

// NewsList is a page of News entries.
type NewsList struct {
	ListMeta
	News []News
}

// DecodeNewsList parses a Samurai `news` list response.
func DecodeNewsList(r io.Reader) (NewsList, error) {
	meta, items, err := WalkList(r, "news", newsSchema)
	if err != nil {
		return NewsList{}, err
	}
	out := NewsList{ListMeta: meta, News: make([]News, len(items))}
	for i, el := range items {
		out.News[i] = newsFromElement(el)
	}
	return out, nil
}

// Telop is one entry of a Samurai telops (eShop banner) list response.
type Telop struct {
	ID      string
	TitleID string
	URL     string
}

var telopSchema = Superset(Node(map[string]*Schema{
	"telop_id": Leaf(),
	"title_id": Leaf(),
	"url":      Leaf(),
}))

func telopFromElement(el *Element) Telop {
	return Telop{
		ID:      el.Get("telop_id"),
		TitleID: el.Get("title_id"),
		URL:     el.Get("url"),
	}
}

// TelopList is a page of Telops.
type TelopList struct {
	ListMeta
	Telops []Telop
}

// DecodeTelopList parses a Samurai `telops` list response.
func DecodeTelopList(r io.Reader) (TelopList, error) {
	meta, items, err := WalkList(r, "telop", telopSchema)
	if err != nil {
		return TelopList{}, err
	}
	out := TelopList{ListMeta: meta, Telops: make([]Telop, len(items))}
	for i, el := range items {
		out.Telops[i] = telopFromElement(el)
	}
	return out, nil
}
