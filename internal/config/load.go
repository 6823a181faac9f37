package config

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/rule"
	"github.com/oxhq/structgrep/pkg/transform"
)

// rawUtilDef is a named local utility rule. A util additionally carrying a
// `fix` is also usable as a rewriter by any `rewrite` transform in the same
// rule-config that names it: utils are already the schema's home for named
// sub-rules, and a rewriter is exactly a named sub-rule paired with a fixer
// template.
type rawUtilDef struct {
	rawRule `yaml:",inline"`
	Fix     string `yaml:"fix"`
}

type rawConfig struct {
	ID          string                  `yaml:"id"`
	Message     string                  `yaml:"message"`
	Severity    string                  `yaml:"severity"`
	Language    string                  `yaml:"language"`
	Rule        rawRule                 `yaml:"rule"`
	Fix         string                  `yaml:"fix"`
	Constraints map[string]rawRule      `yaml:"constraints"`
	Utils       map[string]rawUtilDef   `yaml:"utils"`
	Transform   map[string]rawTransform `yaml:"transform"`
	Files       []string                `yaml:"files"`
	Ignores     []string                `yaml:"ignores"`
	URL         string                  `yaml:"url"`
	Metadata    map[string]any          `yaml:"metadata"`
}

// LoadRuleConfigs parses a `---`-separated multi-document YAML stream into
// compiled RuleConfigs, resolving each config's language against languages
// and sharing global across every config's `matches:` referents that fall
// outside their own `utils`.
func LoadRuleConfigs(data []byte, languages *lang.Registry, global *rule.Registry) ([]*RuleConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out []*RuleConfig
	for {
		var raw rawConfig
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &Error{Kind: "YAMLParse", Msg: err.Error()}
		}
		cfg, err := compileConfig(raw, languages, global)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func compileConfig(raw rawConfig, languages *lang.Registry, global *rule.Registry) (*RuleConfig, error) {
	language, err := languages.Get(raw.Language)
	if err != nil {
		return nil, &Error{Kind: "UnknownLanguage", Msg: err.Error()}
	}

	severity, err := ParseSeverity(raw.Severity)
	if err != nil {
		return nil, err
	}

	local := rule.NewRegistry()
	cctx := compileCtx{language: language, local: local, global: global}

	utilDefs := make(map[string]rule.Rule, len(raw.Utils))
	rewriters := make(map[string]*transform.Rewriter)
	for name, def := range raw.Utils {
		compiled, err := compileRule(def.rawRule, cctx)
		if err != nil {
			return nil, err
		}
		utilDefs[name] = compiled
		if def.Fix != "" {
			rewriters[name] = &transform.Rewriter{
				ID: name, Rule: compiled, Fix: def.Fix, MetaVarChar: language.MetaVarChar(),
			}
		}
	}
	if err := local.RegisterBatch(utilDefs); err != nil {
		return nil, err
	}

	compiledRule, err := compileRule(raw.Rule, cctx)
	if err != nil {
		return nil, err
	}
	if !rule.HasPositiveLeaf(compiledRule) {
		return nil, &Error{Kind: "MissPositiveMatcher", Msg: raw.ID}
	}
	if err := rule.CheckResolvable(compiledRule, local, global); err != nil {
		return nil, err
	}

	constraints := make(map[string]rule.Rule, len(raw.Constraints))
	for name, sub := range raw.Constraints {
		cr, err := compileRule(sub, cctx)
		if err != nil {
			return nil, err
		}
		constraints[name] = cr
	}

	transformDefs := make(map[string]transform.Transform, len(raw.Transform))
	for name, t := range raw.Transform {
		ct, err := compileTransform(name, t, language)
		if err != nil {
			return nil, err
		}
		for _, rw := range ct.UsedRewriters() {
			if _, ok := rewriters[rw]; !ok {
				return nil, &Error{Kind: "UndefinedRewriter", Msg: "transform " + name + " references unknown rewriter " + rw}
			}
		}
		transformDefs[name] = ct
	}
	if _, err := transform.ResolveOrder(transformDefs); err != nil {
		return nil, &Error{Kind: "Transform.Cyclic", Msg: err.Error()}
	}

	return &RuleConfig{
		ID:          raw.ID,
		Message:     raw.Message,
		Severity:    severity,
		Language:    language,
		Rule:        compiledRule,
		Fix:         raw.Fix,
		Constraints: constraints,
		Transform:   transformDefs,
		Rewriters:   rewriters,
		Files:       raw.Files,
		Ignores:     raw.Ignores,
		URL:         raw.URL,
		Metadata:    raw.Metadata,
		Local:       local,
	}, nil
}
