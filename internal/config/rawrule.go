package config

import (
	"context"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/pattern"
	"github.com/oxhq/structgrep/pkg/rule"
)

// rawRule mirrors the rule-value schema: a map with exactly the documented
// keys, of which one is used per rule object (see compileRule).
type rawRule struct {
	Pattern  *yaml.Node       `yaml:"pattern"`
	Kind     string           `yaml:"kind"`
	Regex    string           `yaml:"regex"`
	NthChild *yaml.Node       `yaml:"nthChild"`
	Range    *rawRange        `yaml:"range"`
	Inside   *rawRelation     `yaml:"inside"`
	Has      *rawRelation     `yaml:"has"`
	Precedes *rawRelation     `yaml:"precedes"`
	Follows  *rawRelation     `yaml:"follows"`
	All      []rawRule        `yaml:"all"`
	Any      []rawRule        `yaml:"any"`
	Not      *rawRule         `yaml:"not"`
	Matches  string           `yaml:"matches"`
}

type rawPoint struct {
	Line   uint32 `yaml:"line"`
	Column uint32 `yaml:"column"`
}

type rawRange struct {
	Start rawPoint `yaml:"start"`
	End   rawPoint `yaml:"end"`
}

// rawRelation is the body shared by inside/has/precedes/follows: the
// relation's own sub-rule (inlined at the same mapping level), plus the
// stopBy policy and optional field restriction.
type rawRelation struct {
	rawRule `yaml:",inline"`
	StopBy  *yaml.Node `yaml:"stopBy"`
	Field   string     `yaml:"field"`
}

type rawPatternContext struct {
	Context    string `yaml:"context"`
	Selector   string `yaml:"selector"`
	Strictness string `yaml:"strictness"`
}

type rawNthChildObj struct {
	Nth int      `yaml:"nth"`
	Of  *rawRule `yaml:"of"`
}

// compileCtx bundles everything a rule compile needs: the language the
// pattern/kind/field names resolve against, and the local/global registries
// a Matches referent should bind to.
type compileCtx struct {
	language lang.Language
	local    *rule.Registry
	global   *rule.Registry
}

// compileRule converts one rawRule into a rule.Rule, dispatching on the first
// populated field in the order of the switch below; any further populated
// fields are ignored.
func compileRule(r rawRule, c compileCtx) (rule.Rule, error) {
	switch {
	case r.Pattern != nil:
		return compilePattern(r.Pattern, c)
	case r.Kind != "":
		ids := c.language.KindToID(r.Kind)
		if len(ids) == 0 {
			return nil, &Error{Kind: "InvalidKind", Msg: "unknown kind " + r.Kind}
		}
		kinds := make(map[uint16]bool, len(ids))
		for _, id := range ids {
			kinds[id] = true
		}
		return &rule.KindRule{Name: r.Kind, Kinds: kinds}, nil
	case r.Regex != "":
		re, err := regexp.Compile(r.Regex)
		if err != nil {
			return nil, &Error{Kind: "InvalidRegex", Msg: err.Error()}
		}
		return &rule.RegexRule{Re: re}, nil
	case r.NthChild != nil:
		return compileNthChild(r.NthChild, c)
	case r.Range != nil:
		return &rule.RangeRule{
			StartLine: r.Range.Start.Line, StartColumn: r.Range.Start.Column,
			EndLine: r.Range.End.Line, EndColumn: r.Range.End.Column,
		}, nil
	case r.Inside != nil:
		rel, err := compileRelation(*r.Inside, c)
		if err != nil {
			return nil, err
		}
		return &rule.InsideRule{Relation: rel}, nil
	case r.Has != nil:
		rel, err := compileRelation(*r.Has, c)
		if err != nil {
			return nil, err
		}
		return &rule.HasRule{Relation: rel}, nil
	case r.Precedes != nil:
		rel, err := compileRelation(*r.Precedes, c)
		if err != nil {
			return nil, err
		}
		return &rule.PrecedesRule{Relation: rel}, nil
	case r.Follows != nil:
		rel, err := compileRelation(*r.Follows, c)
		if err != nil {
			return nil, err
		}
		return &rule.FollowsRule{Relation: rel}, nil
	case len(r.All) > 0:
		inner := make([]rule.Rule, 0, len(r.All))
		for _, sub := range r.All {
			ir, err := compileRule(sub, c)
			if err != nil {
				return nil, err
			}
			inner = append(inner, ir)
		}
		return &rule.AllRule{Rules: inner}, nil
	case len(r.Any) > 0:
		inner := make([]rule.Rule, 0, len(r.Any))
		for _, sub := range r.Any {
			ir, err := compileRule(sub, c)
			if err != nil {
				return nil, err
			}
			inner = append(inner, ir)
		}
		return &rule.AnyRule{Rules: inner}, nil
	case r.Not != nil:
		inner, err := compileRule(*r.Not, c)
		if err != nil {
			return nil, err
		}
		return &rule.NotRule{Inner: inner}, nil
	case r.Matches != "":
		return &rule.ReferentRule{ID: r.Matches, Local: c.local, Global: c.global}, nil
	default:
		return nil, &Error{Kind: "EmptyRule", Msg: "rule object sets none of the recognized keys"}
	}
}

func compilePattern(n *yaml.Node, c compileCtx) (rule.Rule, error) {
	var src pattern.Source
	switch n.Kind {
	case yaml.ScalarNode:
		src.Pattern = n.Value
	case yaml.MappingNode:
		var obj rawPatternContext
		if err := n.Decode(&obj); err != nil {
			return nil, &Error{Kind: "InvalidPattern", Msg: err.Error()}
		}
		strictness, err := pattern.ParseStrictness(obj.Strictness)
		if err != nil {
			return nil, &Error{Kind: "InvalidPattern", Msg: err.Error()}
		}
		src.Context = obj.Context
		src.Selector = obj.Selector
		src.Strictness = strictness
	default:
		return nil, &Error{Kind: "InvalidPattern", Msg: "pattern must be a string or a context mapping"}
	}

	compiled, err := pattern.Compile(context.Background(), c.language, src)
	if err != nil {
		return nil, err
	}
	return &rule.PatternRule{Pattern: compiled}, nil
}

func compileNthChild(n *yaml.Node, c compileCtx) (rule.Rule, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		var nth int
		if err := n.Decode(&nth); err != nil {
			return nil, &Error{Kind: "InvalidNthChild", Msg: err.Error()}
		}
		return &rule.NthChildRule{Nth: nth}, nil
	case yaml.MappingNode:
		var obj rawNthChildObj
		if err := n.Decode(&obj); err != nil {
			return nil, &Error{Kind: "InvalidNthChild", Msg: err.Error()}
		}
		var of rule.Rule
		if obj.Of != nil {
			var err error
			of, err = compileRule(*obj.Of, c)
			if err != nil {
				return nil, err
			}
		}
		return &rule.NthChildRule{Nth: obj.Nth, Of: of}, nil
	default:
		return nil, &Error{Kind: "InvalidNthChild", Msg: "nthChild must be an integer or {nth, of}"}
	}
}

func compileRelation(r rawRelation, c compileCtx) (rule.Relation, error) {
	inner, err := compileRule(r.rawRule, c)
	if err != nil {
		return rule.Relation{}, err
	}

	stopBy := rule.StopBy{Kind: rule.StopNeighbor}
	if r.StopBy != nil {
		switch r.StopBy.Kind {
		case yaml.ScalarNode:
			switch r.StopBy.Value {
			case "", "neighbor":
				stopBy.Kind = rule.StopNeighbor
			case "end":
				stopBy.Kind = rule.StopEnd
			default:
				return rule.Relation{}, &Error{Kind: "InvalidStopBy", Msg: "unknown stopBy " + r.StopBy.Value}
			}
		case yaml.MappingNode:
			var stopRaw rawRule
			if err := r.StopBy.Decode(&stopRaw); err != nil {
				return rule.Relation{}, &Error{Kind: "InvalidStopBy", Msg: err.Error()}
			}
			stopRule, err := compileRule(stopRaw, c)
			if err != nil {
				return rule.Relation{}, err
			}
			stopBy.Kind = rule.StopUntilRule
			stopBy.Rule = stopRule
		default:
			return rule.Relation{}, &Error{Kind: "InvalidStopBy", Msg: "stopBy must be a string or a rule"}
		}
	}

	return rule.Relation{Rule: inner, StopBy: stopBy, Field: r.Field}, nil
}
