// Package lang defines the Language capability consumed by the pattern
// compiler and matcher: grammar access, metavariable sigils, and the
// kind/field name tables that translate human-readable AST names into the
// small integers tree-sitter works with.
package lang

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/structgrep/pkg/metavar"
)

// ErrorKindID is the sentinel kind_id that matches any node kind, mirroring
// tree-sitter's own ERROR node convention.
const ErrorKindID uint16 = 65535

// Language is the capability a caller supplies so the core stays ignorant of
// any concrete grammar. Implementations are expected to be cheap to
// construct and safe for concurrent use once built.
type Language interface {
	// Name is the short identifier used in rule configs ("go", "javascript").
	Name() string

	// MetaVarChar is the sigil marking a metavariable in pattern text.
	MetaVarChar() rune

	// ExpandoChar is a fallback sigil substituted into the pattern before
	// parsing, for grammars where MetaVarChar is not legal source text.
	ExpandoChar() rune

	// PreProcessPattern normalizes pattern text before it is handed to the
	// parser, e.g. rewriting MetaVarChar occurrences to ExpandoChar for
	// grammars that reject MetaVarChar in source text.
	PreProcessPattern(src string) string

	// ExtractMetaVar parses a single token's text ("$A", "$$$A", "$_",
	// "$$$") into a MetaVar descriptor. ok is false for ordinary text.
	ExtractMetaVar(text string) (mv metavar.MetaVar, ok bool)

	// KindToID returns every symbol id tree-sitter associates with the
	// given kind name (a kind name can back both a named and an anonymous
	// symbol in some grammars). An empty result means the kind is unknown.
	KindToID(name string) []uint16

	// FieldToID resolves a field name to tree-sitter's internal field id.
	FieldToID(name string) (uint16, bool)

	// GetTSLanguage returns the opaque grammar handle used to construct a
	// tree-sitter parser.
	GetTSLanguage() *sitter.Language
}

// Base implements the symbol/field table lookups shared by every concrete
// provider, so each language package only has to supply the grammar and its
// sigil quirks.
type Base struct {
	name       string
	metaVar    rune
	expando    rune
	tsLang     *sitter.Language
	buildOnce  sync.Once
	kindTable  map[string][]uint16
	fieldTable map[string]uint16
}

// NewBase constructs the shared lookup tables for a grammar. metaVarChar
// defaults to '$' and expandoChar to the same value when zero.
func NewBase(name string, tsLang *sitter.Language, metaVarChar, expandoChar rune) *Base {
	if metaVarChar == 0 {
		metaVarChar = '$'
	}
	if expandoChar == 0 {
		expandoChar = metaVarChar
	}
	return &Base{name: name, metaVar: metaVarChar, expando: expandoChar, tsLang: tsLang}
}

func (b *Base) Name() string                    { return b.name }
func (b *Base) MetaVarChar() rune               { return b.metaVar }
func (b *Base) ExpandoChar() rune               { return b.expando }
func (b *Base) GetTSLanguage() *sitter.Language { return b.tsLang }

func (b *Base) ensureTables() {
	b.buildOnce.Do(b.buildTables)
}

func (b *Base) buildTables() {
	b.kindTable = make(map[string][]uint16)
	b.fieldTable = make(map[string]uint16)

	count := b.tsLang.SymbolCount()
	for s := uint16(0); s < uint16(count); s++ {
		name := b.tsLang.SymbolName(sitter.Symbol(s))
		if name == "" {
			continue
		}
		b.kindTable[name] = append(b.kindTable[name], s)
	}

	// Field ids are contiguous from 1; an out-of-range id yields an empty
	// name, which terminates the probe.
	for i := uint16(1); i != 0; i++ {
		name := b.tsLang.FieldName(int(i))
		if name == "" {
			break
		}
		b.fieldTable[name] = i
	}
}

func (b *Base) KindToID(name string) []uint16 {
	b.ensureTables()
	return b.kindTable[name]
}

func (b *Base) FieldToID(name string) (uint16, bool) {
	b.ensureTables()
	id, ok := b.fieldTable[name]
	return id, ok
}
