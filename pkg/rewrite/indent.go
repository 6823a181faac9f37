// Package rewrite implements indentation-sensitive template substitution
// (the "fixer") and edit merging used to turn a rule's fix template plus a
// bound metavariable environment into replacement source bytes.
package rewrite

import "bytes"

const maxLookAhead = 512

// DeindentedExtract is a source slice pending re-indentation: either a
// single line (indentation-irrelevant) or a multi-line slice tagged with
// the indentation its first line already sits at in the original source.
type DeindentedExtract struct {
	bytes         []byte
	originalIndent int
	multiLine     bool
}

// ExtractWithDeindent slices content[start:end] and records the indentation
// context needed to re-indent it relative to a different insertion point.
func ExtractWithDeindent(content []byte, start, end int) DeindentedExtract {
	slice := content[start:end]
	if !bytes.ContainsRune(slice, '\n') {
		return DeindentedExtract{bytes: slice}
	}
	indent := GetIndentAtOffset(content[:start])
	return DeindentedExtract{bytes: slice, originalIndent: indent, multiLine: true}
}

// IndentLines re-indents a DeindentedExtract's continuation lines (every
// line but the first) to the target indent, leaving single-line extracts
// untouched.
func IndentLines(indent int, extract DeindentedExtract) []byte {
	if !extract.multiLine {
		return extract.bytes
	}
	switch {
	case extract.originalIndent == indent:
		return extract.bytes
	case extract.originalIndent > indent:
		return removeIndent(extract.originalIndent-indent, extract.bytes)
	default:
		lines := bytes.Split(extract.bytes, []byte{'\n'})
		return indentLinesImpl(indent-extract.originalIndent, lines)
	}
}

func indentLinesImpl(indent int, lines [][]byte) []byte {
	var ret bytes.Buffer
	leading := bytes.Repeat([]byte{' '}, indent)
	for i, line := range lines {
		if i == 0 {
			ret.Write(line)
			continue
		}
		ret.WriteByte('\n')
		ret.Write(leading)
		ret.Write(line)
	}
	return ret.Bytes()
}

// GetIndentAtOffset returns the number of leading spaces on the last line of
// src: the run of spaces directly after its last newline. Only the final
// maxLookAhead bytes are scanned; when no newline is found there, the
// leading spaces are returned only if the scan reached the start of src,
// and 0 otherwise.
func GetIndentAtOffset(src []byte) int {
	lookahead := len(src)
	if lookahead > maxLookAhead {
		lookahead = maxLookAhead
	}
	start := len(src) - lookahead

	indent := 0
	for i := len(src) - 1; i >= start; i-- {
		switch src[i] {
		case '\n':
			return indent
		case ' ':
			indent++
		default:
			indent = 0
		}
	}
	if start == 0 && indent != 0 {
		return indent
	}
	return 0
}

// removeIndent strips exactly `indent` leading spaces from every line that
// starts with that many; other lines are left unchanged.
func removeIndent(indent int, src []byte) []byte {
	prefix := bytes.Repeat([]byte{' '}, indent)
	lines := bytes.Split(src, []byte{'\n'})
	for i, line := range lines {
		lines[i] = bytes.TrimPrefix(line, prefix)
	}
	return bytes.Join(lines, []byte{'\n'})
}
