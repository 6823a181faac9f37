// Package doc provides a uniform, cheap-to-copy view over a parsed
// concrete-syntax tree and its source bytes.
package doc

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/metavar"
)

// Document owns the source bytes and the tree-sitter tree produced from
// them. It is immutable except through Edit, which adjusts the old tree in
// place before re-parsing incrementally; Reparse leaves the receiver alone
// and returns a new Document from a full parse.
type Document struct {
	source []byte
	tree   *sitter.Tree
	lang   lang.Language
}

// New parses source with the given language and returns the Document.
func New(ctx context.Context, source []byte, language lang.Language) (*Document, error) {
	return reparse(ctx, source, language, nil)
}

// Reparse produces a new Document from newSource with a full parse. d
// itself is untouched. For incremental re-parsing after a known edit, use
// Edit, which tells the parser which ranges moved.
func (d *Document) Reparse(ctx context.Context, newSource []byte) (*Document, error) {
	return reparse(ctx, newSource, d.lang, nil)
}

// EditInput describes a single text edit in both byte and point coordinates,
// the shape the incremental parser needs to re-use unchanged subtrees.
type EditInput struct {
	StartByte  uint32
	OldEndByte uint32
	NewEndByte uint32
	StartPoint Point
	OldEndPoint Point
	NewEndPoint Point
}

// Edit applies a structured edit: the old tree is adjusted for the moved
// ranges and handed to the parser as the incremental baseline for newSource.
// The receiver's node handles are invalidated by this call; use the returned
// Document afterwards.
func (d *Document) Edit(ctx context.Context, edit EditInput, newSource []byte) (*Document, error) {
	d.tree.Edit(sitter.EditInput{
		StartIndex:  edit.StartByte,
		OldEndIndex: edit.OldEndByte,
		NewEndIndex: edit.NewEndByte,
		StartPoint:  sitter.Point{Row: edit.StartPoint.Row, Column: edit.StartPoint.Column},
		OldEndPoint: sitter.Point{Row: edit.OldEndPoint.Row, Column: edit.OldEndPoint.Column},
		NewEndPoint: sitter.Point{Row: edit.NewEndPoint.Row, Column: edit.NewEndPoint.Column},
	})
	return reparse(ctx, newSource, d.lang, d.tree)
}

func reparse(ctx context.Context, source []byte, language lang.Language, old *sitter.Tree) (*Document, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(language.GetTSLanguage())
	tree, err := parser.ParseCtx(ctx, old, source)
	if err != nil {
		return nil, fmt.Errorf("doc: parse failed: %w", err)
	}
	return &Document{source: source, tree: tree, lang: language}, nil
}

// Root returns the document's root node.
func (d *Document) Root() Node {
	return Node{n: d.tree.RootNode(), doc: d}
}

// Source returns the raw bytes backing the document.
func (d *Document) Source() []byte { return d.source }

// Language returns the capability this document was parsed with.
func (d *Document) Language() lang.Language { return d.lang }

// Slice returns the text covered by a byte range.
func (d *Document) Slice(start, end uint32) string {
	if int(end) > len(d.source) || start > end {
		return ""
	}
	return string(d.source[start:end])
}

// Point mirrors tree-sitter's (row, column) position, both 0-based.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a cheap, copyable handle into a Document. Its lifetime is bound to
// the owning Document; do not retain a Node past its Document's lifetime.
type Node struct {
	n   *sitter.Node
	doc *Document
}

// Valid reports whether the handle actually wraps a tree-sitter node.
func (nd Node) Valid() bool { return nd.n != nil }

// Doc returns the owning document.
func (nd Node) Doc() *Document { return nd.doc }

// Kind returns the grammar's name for this node's symbol.
func (nd Node) Kind() string { return nd.n.Type() }

// KindID returns the small integer tree-sitter assigns this node's symbol.
func (nd Node) KindID() uint16 { return uint16(nd.n.Symbol()) }

// IsNamed reports whether this is a named node (as opposed to anonymous
// punctuation/keyword tokens).
func (nd Node) IsNamed() bool { return nd.n.IsNamed() }

// IsLeaf reports whether the node has no children at all.
func (nd Node) IsLeaf() bool { return nd.n.ChildCount() == 0 }

// IsNamedLeaf reports whether the node has no *named* children (it may
// still have anonymous punctuation children).
func (nd Node) IsNamedLeaf() bool { return nd.n.NamedChildCount() == 0 }

// IsError reports whether this node is a parser-inserted ERROR node.
func (nd Node) IsError() bool { return nd.n.Type() == "ERROR" }

// IsMissing reports whether the parser synthesized this node to recover
// from a syntax error (it covers no source bytes).
func (nd Node) IsMissing() bool { return nd.n.IsMissing() }

// HasError reports whether this node or any descendant is an error node.
func (nd Node) HasError() bool { return nd.n.HasError() }

// StartByte returns the 0-based byte offset where the node begins.
func (nd Node) StartByte() uint32 { return nd.n.StartByte() }

// EndByte returns the 0-based byte offset where the node ends (exclusive).
func (nd Node) EndByte() uint32 { return nd.n.EndByte() }

// StartPoint returns the node's starting (line, column).
func (nd Node) StartPoint() Point {
	p := nd.n.StartPoint()
	return Point{Row: p.Row, Column: p.Column}
}

// EndPoint returns the node's ending (line, column).
func (nd Node) EndPoint() Point {
	p := nd.n.EndPoint()
	return Point{Row: p.Row, Column: p.Column}
}

// Text returns the exact source bytes the node covers.
func (nd Node) Text() string {
	return nd.n.Content(nd.doc.source)
}

// ChildCount returns the number of children, named and anonymous.
func (nd Node) ChildCount() int { return int(nd.n.ChildCount()) }

// NamedChildCount returns the number of named children.
func (nd Node) NamedChildCount() int { return int(nd.n.NamedChildCount()) }

// Child returns the i'th child (named or anonymous), or the zero Node and
// false if out of range.
func (nd Node) Child(i int) (Node, bool) {
	if i < 0 || i >= nd.ChildCount() {
		return Node{}, false
	}
	return nd.wrap(nd.n.Child(i)), true
}

// NamedChild returns the i'th named child, or the zero Node and false if
// out of range.
func (nd Node) NamedChild(i int) (Node, bool) {
	if i < 0 || i >= nd.NamedChildCount() {
		return Node{}, false
	}
	return nd.wrap(nd.n.NamedChild(i)), true
}

// Children returns every child in order.
func (nd Node) Children() []Node {
	out := make([]Node, 0, nd.ChildCount())
	for i := 0; i < nd.ChildCount(); i++ {
		c, _ := nd.Child(i)
		out = append(out, c)
	}
	return out
}

// NamedChildren returns every named child in order.
func (nd Node) NamedChildren() []Node {
	out := make([]Node, 0, nd.NamedChildCount())
	for i := 0; i < nd.NamedChildCount(); i++ {
		c, _ := nd.NamedChild(i)
		out = append(out, c)
	}
	return out
}

// FieldChild returns the child bound to the given grammar field name.
func (nd Node) FieldChild(name string) (Node, bool) {
	c := nd.n.ChildByFieldName(name)
	if c == nil {
		return Node{}, false
	}
	return nd.wrap(c), true
}

// Parent returns the node's parent, if any.
func (nd Node) Parent() (Node, bool) {
	p := nd.n.Parent()
	if p == nil {
		return Node{}, false
	}
	return nd.wrap(p), true
}

// Ancestors returns every ancestor from the immediate parent up to the root.
func (nd Node) Ancestors() []Node {
	var out []Node
	cur, ok := nd.Parent()
	for ok {
		out = append(out, cur)
		cur, ok = cur.Parent()
	}
	return out
}

// NextSibling returns the following sibling, named or anonymous.
func (nd Node) NextSibling() (Node, bool) {
	s := nd.n.NextSibling()
	if s == nil {
		return Node{}, false
	}
	return nd.wrap(s), true
}

// PrevSibling returns the preceding sibling, named or anonymous.
func (nd Node) PrevSibling() (Node, bool) {
	s := nd.n.PrevSibling()
	if s == nil {
		return Node{}, false
	}
	return nd.wrap(s), true
}

// NextNamedSibling returns the following named sibling.
func (nd Node) NextNamedSibling() (Node, bool) {
	s := nd.n.NextNamedSibling()
	if s == nil {
		return Node{}, false
	}
	return nd.wrap(s), true
}

// PrevNamedSibling returns the preceding named sibling.
func (nd Node) PrevNamedSibling() (Node, bool) {
	s := nd.n.PrevNamedSibling()
	if s == nil {
		return Node{}, false
	}
	return nd.wrap(s), true
}

func (nd Node) wrap(n *sitter.Node) Node {
	return Node{n: n, doc: nd.doc}
}

// SameNode reports whether two handles address the exact same tree node
// (identity, not structural equality).
func (nd Node) SameNode(other Node) bool {
	return nd.doc == other.doc && nd.StartByte() == other.StartByte() && nd.EndByte() == other.EndByte() && nd.Kind() == other.Kind()
}

// Equal implements metavar.Node's structural-equality contract: same kind,
// and either identical terminal text or recursively-equal named children in
// the same order. This is what enforces non-linear `$A ... $A` patterns.
func (nd Node) Equal(otherIface metavar.Node) bool {
	other, ok := otherIface.(Node)
	if !ok {
		return nd.Text() == otherIface.Text()
	}
	return structuralEqual(nd, other)
}

var _ metavar.Node = Node{}

func structuralEqual(a, b Node) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	if a.IsNamedLeaf() || b.IsNamedLeaf() {
		return a.Text() == b.Text()
	}
	ac, bc := a.NamedChildren(), b.NamedChildren()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !structuralEqual(ac[i], bc[i]) {
			return false
		}
	}
	return true
}
