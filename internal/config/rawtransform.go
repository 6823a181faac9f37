package config

import (
	"regexp"

	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/transform"
)

// rawTransform mirrors the transform operation union: exactly one of
// Substring/Replace/Convert/Rewrite is set per named transform.
type rawTransform struct {
	Substring *rawSubstring `yaml:"substring"`
	Replace   *rawReplace   `yaml:"replace"`
	Convert   *rawConvert   `yaml:"convert"`
	Rewrite   *rawRewrite   `yaml:"rewrite"`
}

type rawSubstring struct {
	Source    string `yaml:"source"`
	StartChar *int   `yaml:"startChar"`
	EndChar   *int   `yaml:"endChar"`
}

type rawReplace struct {
	Source  string `yaml:"source"`
	Replace string `yaml:"replace"`
	By      string `yaml:"by"`
}

type rawConvert struct {
	Source      string   `yaml:"source"`
	ToCase      string   `yaml:"toCase"`
	SeparatedBy []string `yaml:"separatedBy"`
}

type rawRewrite struct {
	Source    string   `yaml:"source"`
	Rewriters []string `yaml:"rewriters"`
	JoinBy    *string  `yaml:"joinBy"`
}

// metaVarSource strips a leading metavariable sigil from a `source: $V`
// reference, since transform.Transform keys bare names into the env.
func metaVarSource(language lang.Language, raw string) string {
	sigil := language.MetaVarChar()
	out := []rune(raw)
	i := 0
	for i < len(out) && out[i] == sigil {
		i++
	}
	return string(out[i:])
}

func compileTransform(name string, r rawTransform, language lang.Language) (transform.Transform, error) {
	switch {
	case r.Substring != nil:
		return &transform.Substring{
			Source:    metaVarSource(language, r.Substring.Source),
			StartChar: r.Substring.StartChar,
			EndChar:   r.Substring.EndChar,
		}, nil
	case r.Replace != nil:
		re, err := regexp.Compile(r.Replace.Replace)
		if err != nil {
			return nil, &Error{Kind: "InvalidRegex", Msg: "transform " + name + ": " + err.Error()}
		}
		return &transform.Replace{
			Source:  metaVarSource(language, r.Replace.Source),
			Replace: re,
			By:      r.Replace.By,
		}, nil
	case r.Convert != nil:
		seps := make([]transform.Separator, 0, len(r.Convert.SeparatedBy))
		for _, s := range r.Convert.SeparatedBy {
			seps = append(seps, transform.Separator(s))
		}
		return &transform.Convert{
			Source:      metaVarSource(language, r.Convert.Source),
			ToCase:      transform.Case(r.Convert.ToCase),
			SeparatedBy: seps,
		}, nil
	case r.Rewrite != nil:
		return &transform.Rewrite{
			Source:    metaVarSource(language, r.Rewrite.Source),
			Rewriters: r.Rewrite.Rewriters,
			JoinBy:    r.Rewrite.JoinBy,
		}, nil
	default:
		return nil, &Error{Kind: "Transform.Undefined", Msg: "transform " + name + " sets none of substring/replace/convert/rewrite"}
	}
}
