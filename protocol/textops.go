package protocol

import (
	"github.com/dnorman/domcorder/diff"
	"github.com/dnorman/domcorder/wire"
)

// EncodeTextOps and DecodeTextOps carry a DomTextChanged payload's ops
// array: a u64 length prefix followed by, per element, a u32 opcode
// (0=insert, 1=remove), then index, then either the inserted text or the
// removed length — reusing diff.TextEdit directly rather than a
// protocol-local copy, since package protocol already depends on diff for
// DomTextChanged.
func EncodeTextOps(w *wire.Writer, ops []diff.TextEdit) {
	w.PutUint64(uint64(len(ops)))
	for _, op := range ops {
		w.PutUint32(uint32(op.Kind))
		w.PutUint32(uint32(op.Index))
		switch op.Kind {
		case diff.TextEditInsert:
			w.PutString(op.Text)
		case diff.TextEditRemove:
			w.PutUint32(uint32(op.Length))
		}
	}
}

func DecodeTextOps(d *wire.Decoder) ([]diff.TextEdit, error) {
	n, err := d.ArrayLen()
	if err != nil {
		return nil, err
	}
	ops := make([]diff.TextEdit, 0, n)
	for i := uint64(0); i < n; i++ {
		kind, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		index, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		op := diff.TextEdit{Kind: diff.TextEditKind(kind), Index: int(index)}
		switch op.Kind {
		case diff.TextEditInsert:
			if op.Text, err = d.String(); err != nil {
				return nil, err
			}
		case diff.TextEditRemove:
			length, err := d.Uint32()
			if err != nil {
				return nil, err
			}
			op.Length = int(length)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
