// Package catalog implements schema-validated decoding of the NUS
// catalog XML endpoints (Samurai titles/movies/DLC/demo/news/telops,
// Ninja id-pair/ec-info). The schema walk itself is a mechanical
// tag-tree match; the engineering depth here is intentionally low
// (spec.md §1).
package catalog

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Schema is a tagged-variant tree describing one XML element's expected
// shape: a Leaf has nil Children; a Node lists every tag it expects as a
// child, and SupersetAllowed controls whether tags beyond that list are
// tolerated (true) or fail the walk (false). This is the direct
// equivalent of the original's `tag -> Option<schema>` mapping plus a
// superset-allowed bool (spec.md Design Notes).
type Schema struct {
	Children        map[string]*Schema
	SupersetAllowed bool
}

// Leaf returns a childless schema node.
func Leaf() *Schema { return &Schema{} }

// Node returns a schema node with the given named children.
func Node(children map[string]*Schema) *Schema {
	return &Schema{Children: children}
}

// Superset returns a copy of s with SupersetAllowed set, for the nodes
// whose child tags aren't exhaustively enumerated (list items with
// optional/variant fields).
func Superset(s *Schema) *Schema {
	return &Schema{Children: s.Children, SupersetAllowed: true}
}

// UnexpectedTagError reports a tag encountered during a schema walk that
// the schema didn't declare and didn't mark superset-allowed.
type UnexpectedTagError struct {
	Tag  string
	Path string
}

func (e *UnexpectedTagError) Error() string {
	return fmt.Sprintf("nus/catalog: unexpected tag %q at %q", e.Tag, e.Path)
}

// Element is one decoded XML element: its own text content (for leaves
// and simple fields) plus any children, keyed by tag. Catalog records
// never repeat a sibling tag within one element, so a map is sufficient
// (no modeling of repeated-element lists beyond what each endpoint's own
// record type does explicitly).
type Element struct {
	Tag      string
	Text     string
	Attrs    map[string]string
	Children map[string]*Element
	Order    []string // child tags in document order, for list-shaped elements
}

// Get returns the trimmed text of a direct child, or "" if absent.
func (e *Element) Get(tag string) string {
	if c, ok := e.Children[tag]; ok {
		return c.Text
	}
	return ""
}

// GetInt parses a direct child's text as an integer, returning 0 if
// absent or unparsable.
func (e *Element) GetInt(tag string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(e.Get(tag)))
	return v
}

// Child returns a direct child element, or nil if absent.
func (e *Element) Child(tag string) *Element {
	return e.Children[tag]
}

// Walk decodes r's root element against schema, enforcing exact-match or
// superset semantics per node (spec.md §4.7).
func Walk(r io.Reader, schema *Schema) (*Element, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return walkElement(dec, start, schema, "/"+start.Name.Local)
		}
	}
}

// ListMeta is the offset/limit/total paging envelope every Samurai list
// response carries as attributes on its root element.
type ListMeta struct {
	Offset int
	Limit  int
	Length int
	Total  int
}

func listMetaFromAttrs(attrs map[string]string) ListMeta {
	return ListMeta{
		Offset: atoiAttr(attrs, "offset"),
		Limit:  atoiAttr(attrs, "limit"),
		Length: atoiAttr(attrs, "length"),
		Total:  atoiAttr(attrs, "total"),
	}
}

func atoiAttr(attrs map[string]string, name string) int {
	v, _ := strconv.Atoi(attrs[name])
	return v
}

// WalkList decodes a list-shaped root element whose paging info lives
// in its own attributes and whose children are a flat, repeated run of
// itemTag elements, each validated against itemSchema. This covers
// every Samurai titles/movies/dlc/demo/news/telops response (spec.md
// SPEC_FULL supplement: Samurai catalog richness).
func WalkList(r io.Reader, itemTag string, itemSchema *Schema) (ListMeta, []*Element, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return ListMeta{}, nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return walkListRoot(dec, start, itemTag, itemSchema)
		}
	}
}

func walkListRoot(dec *xml.Decoder, start xml.StartElement, itemTag string, itemSchema *Schema) (ListMeta, []*Element, error) {
	attrs := make(map[string]string, len(start.Attr))
	for _, a := range start.Attr {
		attrs[a.Name.Local] = a.Value
	}
	path := "/" + start.Name.Local

	var items []*Element
	for {
		tok, err := dec.Token()
		if err != nil {
			return ListMeta{}, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != itemTag {
				return ListMeta{}, nil, &UnexpectedTagError{Tag: t.Name.Local, Path: path}
			}
			item, err := walkElement(dec, t, itemSchema, path+"/"+itemTag)
			if err != nil {
				return ListMeta{}, nil, err
			}
			items = append(items, item)
		case xml.EndElement:
			return listMetaFromAttrs(attrs), items, nil
		}
	}
}

func walkElement(dec *xml.Decoder, start xml.StartElement, schema *Schema, path string) (*Element, error) {
	el := &Element{
		Tag:      start.Name.Local,
		Children: make(map[string]*Element),
		Attrs:    make(map[string]string),
	}
	for _, a := range start.Attr {
		el.Attrs[a.Name.Local] = a.Value
	}

	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			childSchema, ok := schema.Children[t.Name.Local]
			if !ok {
				if !schema.SupersetAllowed {
					return nil, &UnexpectedTagError{Tag: t.Name.Local, Path: path}
				}
				childSchema = &Schema{SupersetAllowed: true}
			}
			child, err := walkElement(dec, t, childSchema, path+"/"+t.Name.Local)
			if err != nil {
				return nil, err
			}
			el.Children[t.Name.Local] = child
			el.Order = append(el.Order, t.Name.Local)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			el.Text = strings.TrimSpace(text.String())
			return el, nil
		}
	}
}
