package transform

import (
	"strings"
	"unicode"
)

// Case names a target text casing for a Convert transform.
type Case string

const (
	LowerCase  Case = "lowerCase"
	UpperCase  Case = "upperCase"
	Capitalize Case = "capitalize"
	CamelCase  Case = "camelCase"
	PascalCase Case = "pascalCase"
	SnakeCase  Case = "snakeCase"
	KebabCase  Case = "kebabCase"
)

// Separator names a word-boundary character Convert splits on when breaking
// text into words ahead of reassembling it in the target case. Naming any
// separator replaces the default set and turns off splitting on
// case transitions (see splitWords).
type Separator string

const (
	SepUnderscore Separator = "underscore"
	SepDash       Separator = "dash"
	SepSpace      Separator = "space"
)

// splitWords breaks text into words on explicit separator characters. When
// seps is empty, it additionally splits on the default separator set and on
// upper-case transitions (so plain "camelCase" splits into word boundaries
// with no separatedBy given); an explicit seps list disables the
// case-transition heuristic and splits only on the named characters.
func splitWords(text string, seps []Separator) []string {
	explicit := len(seps) > 0
	if !explicit {
		seps = []Separator{SepUnderscore, SepDash, SepSpace}
	}
	isSep := func(r rune) bool {
		for _, s := range seps {
			switch s {
			case SepUnderscore:
				if r == '_' {
					return true
				}
			case SepDash:
				if r == '-' {
					return true
				}
			case SepSpace:
				if r == ' ' {
					return true
				}
			}
		}
		return false
	}

	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}
	runes := []rune(text)
	for i, r := range runes {
		if isSep(r) {
			flush()
			continue
		}
		if !explicit && i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) {
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// ApplyCase reassembles text's words in the given case.
func ApplyCase(text string, target Case, seps []Separator) string {
	switch target {
	case LowerCase:
		return strings.ToLower(text)
	case UpperCase:
		return strings.ToUpper(text)
	case Capitalize:
		if text == "" {
			return text
		}
		r := []rune(text)
		return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
	}

	words := splitWords(text, seps)
	if len(words) == 0 {
		return ""
	}
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}

	switch target {
	case SnakeCase:
		return strings.Join(lower, "_")
	case KebabCase:
		return strings.Join(lower, "-")
	case CamelCase:
		var b strings.Builder
		b.WriteString(lower[0])
		for _, w := range lower[1:] {
			b.WriteString(titleWord(w))
		}
		return b.String()
	case PascalCase:
		var b strings.Builder
		for _, w := range lower {
			b.WriteString(titleWord(w))
		}
		return b.String()
	default:
		return text
	}
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
