package rewrite

import (
	"strings"
	"unicode"

	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/metavar"
)

// Fixer is a compiled fix template: either pure text with no metavariable
// reference, or a sequence of literal fragments interleaved with
// metavariable slots.
type Fixer struct {
	textual  []byte
	template *template
}

type templateVar struct {
	v      metavar.MetaVar
	indent int
}

type template struct {
	fragments [][]byte
	vars      []templateVar
}

// CompileFixer parses a fix template's literal text and metavariable slots,
// recording for each slot the indentation of the template line it sits on,
// so later substitution can re-indent the captured text to match the
// template's own layout.
func CompileFixer(text string, mvChar rune) *Fixer {
	var fragments [][]byte
	var vars []templateVar
	rest := text
	offset := 0

	for {
		i := strings.IndexRune(rest[offset:], mvChar)
		if i < 0 {
			break
		}
		pos := offset + i
		v, consumed, ok := splitFirstMetaVar(rest[pos:], mvChar)
		if !ok {
			offset = pos + 1
			continue
		}
		fragments = append(fragments, []byte(rest[:pos]))
		indent := GetIndentAtOffset([]byte(rest[:pos]))
		vars = append(vars, templateVar{v: v, indent: indent})
		rest = rest[pos+consumed:]
		offset = 0
	}

	if len(fragments) == 0 {
		return &Fixer{textual: []byte(rest)}
	}
	fragments = append(fragments, []byte(rest))
	return &Fixer{template: &template{fragments: fragments, vars: vars}}
}

// splitFirstMetaVar parses a metavariable token starting at text[0] (which
// must be mvChar), returning the parsed descriptor and the byte length of
// the consumed token. ok is false if text[0] is mvChar but not followed by
// a valid metavariable token (a lone '$' in literal text, for instance).
func splitFirstMetaVar(text string, mvChar rune) (metavar.MetaVar, int, bool) {
	runes := []rune(text)
	if len(runes) == 0 || runes[0] != mvChar {
		return metavar.MetaVar{}, 0, false
	}
	i := 0
	for i < len(runes) && runes[i] == mvChar {
		i++
	}
	sigilCount := i

	start := i
	for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
		i++
	}
	name := string(runes[start:i])
	byteLen := len(string(runes[:i]))

	switch sigilCount {
	case 3:
		if name == "" {
			return metavar.MetaVar{Kind: metavar.AnonymousMulti}, byteLen, true
		}
		return metavar.MetaVar{Kind: metavar.Multi, Name: name}, byteLen, true
	case 1:
		if name == "_" {
			return metavar.MetaVar{Kind: metavar.AnonymousSingle}, byteLen, true
		}
		if name == "" {
			return metavar.MetaVar{}, 0, false
		}
		return metavar.MetaVar{Kind: metavar.Single, Name: name}, byteLen, true
	default:
		return metavar.MetaVar{}, 0, false
	}
}

// Generate substitutes env's bindings into fixer, re-indenting each bound
// node's text to the indentation of the template line its slot sits on.
func Generate(fixer *Fixer, env *metavar.Env) []byte {
	if fixer.template == nil {
		return fixer.textual
	}
	t := fixer.template
	var out []byte
	out = append(out, t.fragments[0]...)
	for i, tv := range t.vars {
		out = append(out, resolveSlot(tv, env)...)
		out = append(out, t.fragments[i+1]...)
	}
	return out
}

func resolveSlot(tv templateVar, env *metavar.Env) []byte {
	switch tv.v.Kind {
	case metavar.Single, metavar.AnonymousSingle:
		n, ok := env.GetSingle(tv.v.Name)
		if !ok {
			// Transformed values are plain computed text with no source
			// position, so they are spliced in without re-indentation.
			if b, ok := env.GetTransformed(tv.v.Name); ok {
				return b
			}
			return nil
		}
		return extractIndented(n, tv.indent)
	case metavar.Multi, metavar.AnonymousMulti:
		nodes, ok := env.GetMulti(tv.v.Name)
		if !ok || len(nodes) == 0 {
			return nil
		}
		first, ok1 := nodes[0].(doc.Node)
		last, ok2 := nodes[len(nodes)-1].(doc.Node)
		if !ok1 || !ok2 {
			var out []byte
			for _, n := range nodes {
				out = append(out, []byte(n.Text())...)
			}
			return out
		}
		extract := ExtractWithDeindent(first.Doc().Source(), int(first.StartByte()), int(last.EndByte()))
		return IndentLines(tv.indent, extract)
	default:
		return nil
	}
}

func extractIndented(n metavar.Node, indent int) []byte {
	dn, ok := n.(doc.Node)
	if !ok {
		return []byte(n.Text())
	}
	extract := ExtractWithDeindent(dn.Doc().Source(), int(dn.StartByte()), int(dn.EndByte()))
	return IndentLines(indent, extract)
}

// GenerateAtInsertionPoint compiles and substitutes template, then
// re-indents every continuation line of the result by the indentation of the
// line the replaced node starts on in its own source document.
func GenerateAtInsertionPoint(templateText string, mvChar rune, env *metavar.Env, target doc.Node) []byte {
	fixer := CompileFixer(templateText, mvChar)
	bytes := Generate(fixer, env)
	leading := target.Doc().Source()[:target.StartByte()]
	indent := GetIndentAtOffset(leading)
	lines := splitLines(bytes)
	return IndentLines(indent, DeindentedExtract{bytes: bytes, originalIndent: 0, multiLine: len(lines) > 1})
}

func splitLines(b []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, b[start:i])
			start = i + 1
		}
	}
	lines = append(lines, b[start:])
	return lines
}
