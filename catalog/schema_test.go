package catalog

import (
	"errors"
	"strings"
	"testing"
)

func TestWalkLeaf(t *testing.T) {
	schema := Node(map[string]*Schema{
		"name": Leaf(),
	})
	el, err := Walk(strings.NewReader(`<root><name>hello</name></root>`), schema)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if got := el.Get("name"); got != "hello" {
		t.Errorf("el.Get(%q) = %q, want %q", "name", got, "hello")
	}
}

func TestWalkUnexpectedTag(t *testing.T) {
	schema := Node(map[string]*Schema{
		"name": Leaf(),
	})
	_, err := Walk(strings.NewReader(`<root><other>x</other></root>`), schema)
	var target *UnexpectedTagError
	if err == nil {
		t.Fatal("Walk() error = nil, want UnexpectedTagError")
	}
	if !errors.As(err, &target) {
		t.Errorf("Walk() error = %v (%T), want *UnexpectedTagError", err, err)
	}
}

func TestWalkSupersetAllowed(t *testing.T) {
	schema := Superset(Node(map[string]*Schema{
		"name": Leaf(),
	}))
	el, err := Walk(strings.NewReader(`<root><name>hi</name><extra>ignored</extra></root>`), schema)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if got := el.Get("name"); got != "hi" {
		t.Errorf("el.Get(%q) = %q, want %q", "name", got, "hi")
	}
}

func TestWalkListPagination(t *testing.T) {
	doc := `<titles offset="0" limit="2" length="2" total="5">
		<title><content_id>a</content_id><name>A</name></title>
		<title><content_id>b</content_id><name>B</name></title>
	</titles>`
	itemSchema := Node(map[string]*Schema{
		"content_id": Leaf(),
		"name":       Leaf(),
	})
	meta, items, err := WalkList(strings.NewReader(doc), "title", itemSchema)
	if err != nil {
		t.Fatalf("WalkList() error = %v", err)
	}
	if meta.Total != 5 || meta.Offset != 0 || meta.Limit != 2 {
		t.Errorf("WalkList() meta = %+v", meta)
	}
	if len(items) != 2 {
		t.Fatalf("WalkList() returned %d items, want 2", len(items))
	}
	if got := items[1].Get("content_id"); got != "b" {
		t.Errorf("items[1].Get(content_id) = %q, want %q", got, "b")
	}
}

func TestWalkListUnexpectedItemTag(t *testing.T) {
	doc := `<titles offset="0" limit="2" length="1" total="1"><movie/></titles>`
	_, _, err := WalkList(strings.NewReader(doc), "title", Leaf())
	if err == nil {
		t.Fatal("WalkList() error = nil, want UnexpectedTagError")
	}
}
