package vdom

import (
	"context"
	"fmt"

	"github.com/dnorman/domcorder/wire"
)

// EncodeVNode writes n to w per protocol §6's VNode encoding: a u32 kind
// tag, then kind-specific fields, then (for elements) attributes and
// children as u64-prefixed sequences, with shadow children — if any —
// appended as a second u64-prefixed sequence after the main children.
func EncodeVNode(ctx context.Context, w *wire.Writer, n *VNode) error {
	w.PutUint32(uint32(n.Kind))
	w.PutUint32(uint32(n.Id))

	switch n.Kind {
	case KindElement:
		w.PutString(n.Tag)
		w.PutBool(n.HasNS)
		if n.HasNS {
			w.PutString(n.Namespace)
		}
		w.PutUint64(uint64(len(n.Attrs)))
		for _, a := range n.Attrs {
			w.PutString(a.Name)
			w.PutString(a.Value)
		}
		if err := w.StreamWait(ctx); err != nil {
			return err
		}
		w.PutUint64(uint64(len(n.Children)))
		for _, c := range n.Children {
			if err := EncodeVNode(ctx, w, c); err != nil {
				return err
			}
			if err := w.StreamWait(ctx); err != nil {
				return err
			}
		}
		w.PutUint64(uint64(len(n.Shadow)))
		for _, c := range n.Shadow {
			if err := EncodeVNode(ctx, w, c); err != nil {
				return err
			}
			if err := w.StreamWait(ctx); err != nil {
				return err
			}
		}
	case KindText, KindCData, KindComment:
		if err := w.StreamString(ctx, n.Data); err != nil {
			return err
		}
	case KindPI:
		w.PutString(n.PITarget)
		if err := w.StreamString(ctx, n.PIData); err != nil {
			return err
		}
	case KindDocType:
		w.PutString(n.DoctypeName)
		w.PutString(n.DoctypePublicID)
		w.PutString(n.DoctypeSystemID)
	default:
		return fmt.Errorf("vdom: unknown node kind %d", n.Kind)
	}
	return nil
}

// DecodeVNode reads one VNode (and, for elements, its full subtree) from d.
// It returns *wire.ErrShortBuffer unmodified so protocol.Reader can
// backtrack and wait for more bytes, exactly as it does for frame tags.
func DecodeVNode(d *wire.Decoder) (*VNode, error) {
	kind, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	id, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	n := &VNode{Kind: NodeKind(kind), Id: NodeId(id)}

	switch n.Kind {
	case KindElement:
		if n.Tag, err = d.String(); err != nil {
			return nil, err
		}
		if n.HasNS, err = d.Bool(); err != nil {
			return nil, err
		}
		if n.HasNS {
			if n.Namespace, err = d.String(); err != nil {
				return nil, err
			}
		}
		nAttrs, err := d.ArrayLen()
		if err != nil {
			return nil, err
		}
		n.Attrs = make(Attrs, 0, nAttrs)
		for i := uint64(0); i < nAttrs; i++ {
			name, err := d.String()
			if err != nil {
				return nil, err
			}
			value, err := d.String()
			if err != nil {
				return nil, err
			}
			n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
		}
		nChildren, err := d.ArrayLen()
		if err != nil {
			return nil, err
		}
		n.Children = make([]*VNode, 0, nChildren)
		for i := uint64(0); i < nChildren; i++ {
			child, err := DecodeVNode(d)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
		nShadow, err := d.ArrayLen()
		if err != nil {
			return nil, err
		}
		n.Shadow = make([]*VNode, 0, nShadow)
		for i := uint64(0); i < nShadow; i++ {
			child, err := DecodeVNode(d)
			if err != nil {
				return nil, err
			}
			n.Shadow = append(n.Shadow, child)
		}
	case KindText, KindCData, KindComment:
		if n.Data, err = d.String(); err != nil {
			return nil, err
		}
	case KindPI:
		if n.PITarget, err = d.String(); err != nil {
			return nil, err
		}
		if n.PIData, err = d.String(); err != nil {
			return nil, err
		}
	case KindDocType:
		if n.DoctypeName, err = d.String(); err != nil {
			return nil, err
		}
		if n.DoctypePublicID, err = d.String(); err != nil {
			return nil, err
		}
		if n.DoctypeSystemID, err = d.String(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("vdom: unknown node kind %d", n.Kind)
	}
	return n, nil
}

// EncodeVDocument writes doc's adopted stylesheets and top-level children,
// each as a u64-prefixed sequence, in that order.
func EncodeVDocument(ctx context.Context, w *wire.Writer, doc *VDocument) error {
	w.PutUint32(uint32(doc.DocId))
	w.PutUint64(uint64(len(doc.Sheets)))
	for _, s := range doc.Sheets {
		w.PutUint32(s.SheetId)
		w.PutBool(s.HasMedia)
		if s.HasMedia {
			w.PutString(s.Media)
		}
		if err := w.StreamString(ctx, s.CSSText); err != nil {
			return err
		}
	}
	if err := w.StreamWait(ctx); err != nil {
		return err
	}
	w.PutUint64(uint64(len(doc.Children)))
	for _, c := range doc.Children {
		if err := EncodeVNode(ctx, w, c); err != nil {
			return err
		}
		if err := w.StreamWait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DecodeVDocument is the symmetric counterpart of EncodeVDocument.
func DecodeVDocument(d *wire.Decoder) (*VDocument, error) {
	docId, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	doc := &VDocument{DocId: NodeId(docId)}

	nSheets, err := d.ArrayLen()
	if err != nil {
		return nil, err
	}
	doc.Sheets = make([]VStyleSheet, 0, nSheets)
	for i := uint64(0); i < nSheets; i++ {
		var s VStyleSheet
		if s.SheetId, err = d.Uint32(); err != nil {
			return nil, err
		}
		if s.HasMedia, err = d.Bool(); err != nil {
			return nil, err
		}
		if s.HasMedia {
			if s.Media, err = d.String(); err != nil {
				return nil, err
			}
		}
		if s.CSSText, err = d.String(); err != nil {
			return nil, err
		}
		doc.Sheets = append(doc.Sheets, s)
	}

	nChildren, err := d.ArrayLen()
	if err != nil {
		return nil, err
	}
	doc.Children = make([]*VNode, 0, nChildren)
	for i := uint64(0); i < nChildren; i++ {
		child, err := DecodeVNode(d)
		if err != nil {
			return nil, err
		}
		doc.Children = append(doc.Children, child)
	}
	return doc, nil
}
