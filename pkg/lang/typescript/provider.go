// Package typescript wires the TypeScript tree-sitter grammar into the
// Language capability pkg/pattern and pkg/matcher consume.
package typescript

import (
	tstypescript "github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/metavar"
)

// Provider implements lang.Language for TypeScript. '$' is already a legal
// identifier character, so no expando substitution is needed.
type Provider struct {
	*lang.Base
}

// New constructs the TypeScript language provider.
func New() *Provider {
	return &Provider{Base: lang.NewBase("typescript", tstypescript.GetLanguage(), '$', '$')}
}

// PreProcessPattern is the identity transform: '$' parses as-is.
func (p *Provider) PreProcessPattern(src string) string { return src }

// ExtractMetaVar recognizes "$A", "$$$A", "$_" and "$$$" directly.
func (p *Provider) ExtractMetaVar(text string) (metavar.MetaVar, bool) {
	runes := []rune(text)
	count := 0
	for count < len(runes) && runes[count] == '$' {
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
	if err := lang.Default.Register(New(), []string{"ts"}, []string{".ts"}); err != nil {
		panic(err)
	}
}
