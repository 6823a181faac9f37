// Package python wires the Python tree-sitter grammar into the Language
// capability pkg/pattern and pkg/matcher consume.
package python

import (
	"strings"

	tspython "github.com/smacker/go-tree-sitter/python"

	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/metavar"
)

// expandoChar substitutes for '$', which is not a legal identifier
// character in Python; 'µ' (micro sign) is a Unicode letter accepted by
// Python's identifier grammar (PEP 3131).
const expandoChar = 'µ'

// Provider implements lang.Language for Python.
type Provider struct {
	*lang.Base
}

// New constructs the Python language provider.
func New() *Provider {
	return &Provider{Base: lang.NewBase("python", tspython.GetLanguage(), '$', expandoChar)}
}

// PreProcessPattern rewrites every metavariable sigil to the expando form
// before parsing, since '$' cannot appear in valid Python source.
func (p *Provider) PreProcessPattern(src string) string {
	return strings.ReplaceAll(src, "$", string(expandoChar))
}

// ExtractMetaVar recognizes the expando-rewritten forms of "$A", "$$$A",
// "$_" and "$$$".
func (p *Provider) ExtractMetaVar(text string) (metavar.MetaVar, bool) {
	runes := []rune(text)
	count := 0
	for count < len(runes) && runes[count] == expandoChar {
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
	if err := lang.Default.Register(New(), []string{"py"}, []string{".py", ".pyi"}); err != nil {
		panic(err)
	}
}
