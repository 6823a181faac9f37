// Package golang wires the Go tree-sitter grammar into the Language
// capability pkg/pattern and pkg/matcher consume.
package golang

import (
	"strings"

	tsgolang "github.com/smacker/go-tree-sitter/golang"

	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/metavar"
)

// expandoChar substitutes for '$', which is not a legal identifier
// character in Go source; 'µ' (micro sign) is a Unicode letter, so it
// parses cleanly wherever a Go identifier is expected.
const expandoChar = 'µ'

// Provider implements lang.Language for Go.
type Provider struct {
	*lang.Base
}

// New constructs the Go language provider.
func New() *Provider {
	return &Provider{Base: lang.NewBase("go", tsgolang.GetLanguage(), '$', expandoChar)}
}

// PreProcessPattern rewrites every metavariable sigil to the expando form
// before parsing, since '$' cannot appear in valid Go source.
func (p *Provider) PreProcessPattern(src string) string {
	return strings.ReplaceAll(src, "$", string(expandoChar))
}

// ExtractMetaVar recognizes "µA" (single), "µµµA" (multi), "µ_" (anonymous
// single) and "µµµ" (anonymous multi) token text, written by the user as
// "$A", "$$$A", "$_" and "$$$" respectively and rewritten by
// PreProcessPattern before the node ever reaches this function.
func (p *Provider) ExtractMetaVar(text string) (metavar.MetaVar, bool) {
	runes := []rune(text)
	count := 0
	for count < len(runes) && runes[count] == rune(expandoChar) {
		count++
	}
	rest := string(runes[count:])

	switch count {
	case 3:
		if rest == "" {
			return metavar.MetaVar{Kind: metavar.AnonymousMulti}, true
		}
		return metavar.MetaVar{Kind: metavar.Multi, Name: rest}, true
	case 1:
		if rest == "_" {
			return metavar.MetaVar{Kind: metavar.AnonymousSingle}, true
		}
		if rest == "" {
			return metavar.MetaVar{}, false
		}
		return metavar.MetaVar{Kind: metavar.Single, Name: rest}, true
	default:
		return metavar.MetaVar{}, false
	}
}

func init() {
	if err := lang.Default.Register(New(), []string{"golang"}, []string{".go"}); err != nil {
		panic(err)
	}
}
