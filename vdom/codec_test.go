package vdom

import (
	"bytes"
	"context"
	"testing"

	"github.com/dnorman/domcorder/wire"
)

func encodeNode(t *testing.T, n *VNode) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := wire.NewWriter(&buf, 16)
	if err := EncodeVNode(context.Background(), w, n); err != nil {
		t.Fatal(err)
	}
	if err := w.EndFrame(context.Background()); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestElementRoundTrip(t *testing.T) {
	n := Element(7, "div")
	n.Attrs = n.Attrs.Set("class", "a").Set("id", "x")
	n.Children = []*VNode{Text(8, "hello")}

	got, err := DecodeVNode(wire.NewDecoder(encodeNode(t, n)))
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindElement || got.Tag != "div" || got.Id != 7 {
		t.Fatalf("got %+v", got)
	}
	if v, ok := got.Attrs.Get("class"); !ok || v != "a" {
		t.Errorf("class attr = %q, %v", v, ok)
	}
	if len(got.Children) != 1 || got.Children[0].Data != "hello" {
		t.Fatalf("children = %+v", got.Children)
	}
}

func TestAttributeInsertionOrderPreserved(t *testing.T) {
	n := Element(1, "a")
	n.Attrs = n.Attrs.Set("href", "#").Set("target", "_blank").Set("rel", "noopener")

	got, err := DecodeVNode(wire.NewDecoder(encodeNode(t, n)))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"href", "target", "rel"}
	for i, name := range want {
		if got.Attrs[i].Name != name {
			t.Errorf("attr[%d] = %q, want %q", i, got.Attrs[i].Name, name)
		}
	}
}

func TestShadowChildrenEncodedAfterMainChildren(t *testing.T) {
	n := Element(1, "div")
	n.Children = []*VNode{Text(2, "light")}
	n.Shadow = []*VNode{Text(3, "shadow")}

	got, err := DecodeVNode(wire.NewDecoder(encodeNode(t, n)))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Children) != 1 || got.Children[0].Data != "light" {
		t.Fatalf("children = %+v", got.Children)
	}
	if len(got.Shadow) != 1 || got.Shadow[0].Data != "shadow" {
		t.Fatalf("shadow = %+v", got.Shadow)
	}
}

func TestNamespaceAbsentByDefault(t *testing.T) {
	n := Element(1, "div")
	got, err := DecodeVNode(wire.NewDecoder(encodeNode(t, n)))
	if err != nil {
		t.Fatal(err)
	}
	if got.HasNS {
		t.Errorf("expected no namespace, got %q", got.Namespace)
	}
}

func TestDocumentRoundTripEmpty(t *testing.T) {
	doc := &VDocument{DocId: 1}
	var buf bytes.Buffer
	w := wire.NewWriter(&buf, 8)
	if err := EncodeVDocument(context.Background(), w, doc); err != nil {
		t.Fatal(err)
	}
	if err := w.EndFrame(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeVDocument(wire.NewDecoder(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Sheets) != 0 || len(got.Children) != 0 {
		t.Errorf("expected empty document, got %+v", got)
	}
}

func TestDocumentWithAdoptedSheet(t *testing.T) {
	doc := &VDocument{
		DocId: 1,
		Sheets: []VStyleSheet{
			{SheetId: 42, CSSText: "body{color:red}"},
		},
		Children: []*VNode{Element(2, "html")},
	}
	var buf bytes.Buffer
	w := wire.NewWriter(&buf, 16)
	if err := EncodeVDocument(context.Background(), w, doc); err != nil {
		t.Fatal(err)
	}
	if err := w.EndFrame(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeVDocument(wire.NewDecoder(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Sheets) != 1 || got.Sheets[0].SheetId != 42 || got.Sheets[0].CSSText != "body{color:red}" {
		t.Fatalf("sheets = %+v", got.Sheets)
	}
	if got.Sheets[0].HasMedia {
		t.Errorf("expected no media query")
	}
	if len(got.Children) != 1 || got.Children[0].Tag != "html" {
		t.Fatalf("children = %+v", got.Children)
	}
}
