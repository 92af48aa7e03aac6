package diff

// TextEditKind distinguishes the two text-op variants on the wire (§6:
// "each item beginning with a u32 op-code (0=insert, 1=remove)").
type TextEditKind uint32

const (
	TextEditInsert TextEditKind = 0
	TextEditRemove TextEditKind = 1
)

// TextEdit is one element of a DomTextChanged ops[] array: either
// "insert text at index" or "remove length characters at index".
type TextEdit struct {
	Kind   TextEditKind
	Index  int
	Text   string // set when Kind == TextEditInsert
	Length int    // set when Kind == TextEditRemove
}

// DiffText computes the minimal insert/remove edit sequence that turns
// oldText into newText by trimming the longest common prefix and suffix
// and replacing whatever's left in the middle — spec.md §4.5's
// "longest-common-prefix/suffix string diff", which in the general case
// produces exactly one remove and one insert op.
//
// Operating on runes rather than bytes keeps Index values meaningful for
// multi-byte UTF-8 text while matching the scenario in spec.md §8 byte
// for byte on ASCII input.
func DiffText(oldText, newText string) []TextEdit {
	if oldText == newText {
		return nil
	}

	oldRunes := []rune(oldText)
	newRunes := []rune(newText)

	prefix := commonPrefixLen(oldRunes, newRunes)

	oldRest := oldRunes[prefix:]
	newRest := newRunes[prefix:]
	suffix := commonSuffixLen(oldRest, newRest)

	removeLen := len(oldRest) - suffix
	insertText := string(newRest[:len(newRest)-suffix])

	var ops []TextEdit
	if removeLen > 0 {
		ops = append(ops, TextEdit{Kind: TextEditRemove, Index: prefix, Length: removeLen})
	}
	if insertText != "" {
		ops = append(ops, TextEdit{Kind: TextEditInsert, Index: prefix, Text: insertText})
	}
	return ops
}

// ApplyTextEdits replays ops against oldText and returns the result,
// exercised by round-trip tests to verify DiffText's output is correct,
// not just minimal.
func ApplyTextEdits(oldText string, ops []TextEdit) string {
	runes := []rune(oldText)
	for _, op := range ops {
		switch op.Kind {
		case TextEditRemove:
			runes = append(runes[:op.Index:op.Index], runes[op.Index+op.Length:]...)
		case TextEditInsert:
			ins := []rune(op.Text)
			out := make([]rune, 0, len(runes)+len(ins))
			out = append(out, runes[:op.Index]...)
			out = append(out, ins...)
			out = append(out, runes[op.Index:]...)
			runes = out
		}
	}
	return string(runes)
}

func commonPrefixLen(a, b []rune) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffixLen(a, b []rune) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}
