package rewrite

// Edit describes a single replacement: delete DeletedLength bytes starting
// at Position and splice in InsertedText.
type Edit struct {
	Position      int
	DeletedLength int
	InsertedText  []byte
}

// End returns the byte offset immediately after the deleted span.
func (e Edit) End() int { return e.Position + e.DeletedLength }

// Merge splices a list of edits into original, skipping any edit whose
// Position falls before the end of the previously applied edit (first
// writer wins on overlap, matching the source's make_edit/join_by skip
// rule). offset is subtracted from each edit's Position before applying,
// letting callers work with edits recorded relative to a sub-range.
func Merge(original []byte, edits []Edit, offset int) []byte {
	var out []byte
	cursor := 0
	for _, e := range edits {
		pos := e.Position - offset
		if cursor > pos {
			continue
		}
		out = append(out, original[cursor:pos]...)
		out = append(out, e.InsertedText...)
		cursor = pos + e.DeletedLength
	}
	out = append(out, original[cursor:]...)
	return out
}

// Join concatenates each edit's inserted text with sep between consecutive
// entries, skipping edits that overlap the previous one. Used by Rewrite
// transforms with joinBy set, where no surrounding source is spliced in.
func Join(edits []Edit, sep []byte, offset int) []byte {
	if len(edits) == 0 {
		return nil
	}
	var out []byte
	first := edits[0]
	out = append(out, first.InsertedText...)
	pos := first.Position - offset + first.DeletedLength
	for _, e := range edits[1:] {
		p := e.Position - offset
		if pos > p {
			continue
		}
		out = append(out, sep...)
		out = append(out, e.InsertedText...)
		pos = p + e.DeletedLength
	}
	return out
}
