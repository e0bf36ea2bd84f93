// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package bus

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Subscription filters can be written as small boolean expressions over
// message properties:
//
//	topic == "telemetry" && unit != "F"
//	has source || device like "sensor-*"
//
// Operators: == != like (glob) has && || ! and parentheses.

// filterLexer tokenizes filter expressions. Multi-character operators must be
// declared before their single-character prefixes.
var filterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "OpEq", Pattern: `==`},
	{Name: "OpNe", Pattern: `!=`},
	{Name: "OpAnd", Pattern: `&&`},
	{Name: "OpOr", Pattern: `\|\|`},
	{Name: "OpNot", Pattern: `!`},
	{Name: "Ident", Pattern: `[a-zA-Z_][\w.-]*`},
	{Name: "Punct", Pattern: `[()]`},
	{Name: "whitespace", Pattern: `\s+`},
})

// filterExpr is the root of the filter grammar: OR of AND groups.
type filterExpr struct {
	Or []*filterAnd `parser:"@@ ( OpOr @@ )*"`
}

type filterAnd struct {
	Terms []*filterTerm `parser:"@@ ( OpAnd @@ )*"`
}

type filterTerm struct {
	Not *filterTerm       `parser:"  OpNot @@"`
	Sub *filterExpr       `parser:"| '(' @@ ')'"`
	Has string            `parser:"| 'has' @Ident"`
	Cmp *filterComparison `parser:"| @@"`
}

type filterComparison struct {
	Key   string `parser:"@Ident"`
	Op    string `parser:"@( OpEq | OpNe | 'like' )"`
	Value string `parser:"@String"`
}

var filterParser = participle.MustBuild[filterExpr](
	participle.Lexer(filterLexer),
	participle.Unquote("String"),
)

// ParseFilter parses a filter expression into a Filter. Glob patterns in
// `like` terms are compiled once at parse time.
func ParseFilter(text string) (Filter, error) {
	ast, err := filterParser.ParseString("", text)
	if err != nil {
		return nil, oops.In("bus").With("filter", text).Wrapf(err, "parsing filter expression")
	}
	pred, err := compileExpr(ast)
	if err != nil {
		return nil, err
	}
	return filterFunc(pred), nil
}

// filterFunc adapts a predicate closure to the Filter interface.
type filterFunc func(*Message) bool

func (f filterFunc) Matches(m *Message) bool { return f(m) }

func compileExpr(e *filterExpr) (func(*Message) bool, error) {
	preds := make([]func(*Message) bool, len(e.Or))
	for i, a := range e.Or {
		p, err := compileAnd(a)
		if err != nil {
			return nil, err
		}
		preds[i] = p
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return func(m *Message) bool {
		for _, p := range preds {
			if p(m) {
				return true
			}
		}
		return false
	}, nil
}

func compileAnd(a *filterAnd) (func(*Message) bool, error) {
	preds := make([]func(*Message) bool, len(a.Terms))
	for i, t := range a.Terms {
		p, err := compileTerm(t)
		if err != nil {
			return nil, err
		}
		preds[i] = p
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return func(m *Message) bool {
		for _, p := range preds {
			if !p(m) {
				return false
			}
		}
		return true
	}, nil
}

func compileTerm(t *filterTerm) (func(*Message) bool, error) {
	switch {
	case t.Not != nil:
		inner, err := compileTerm(t.Not)
		if err != nil {
			return nil, err
		}
		return func(m *Message) bool { return !inner(m) }, nil
	case t.Sub != nil:
		return compileExpr(t.Sub)
	case t.Has != "":
		key := t.Has
		return func(m *Message) bool {
			_, ok := m.Property(key)
			return ok
		}, nil
	case t.Cmp != nil:
		return compileComparison(t.Cmp)
	}
	return nil, oops.In("bus").Errorf("empty filter term")
}

func compileComparison(c *filterComparison) (func(*Message) bool, error) {
	key, want := c.Key, c.Value
	switch c.Op {
	case "==":
		return func(m *Message) bool {
			v, ok := m.Property(key)
			return ok && v == want
		}, nil
	case "!=":
		// Absent properties compare unequal, matching the == complement.
		return func(m *Message) bool {
			v, ok := m.Property(key)
			return !ok || v != want
		}, nil
	case "like":
		g, err := glob.Compile(want)
		if err != nil {
			return nil, oops.In("bus").With("key", key).With("pattern", want).Wrapf(err, "compiling like pattern")
		}
		return func(m *Message) bool {
			v, ok := m.Property(key)
			return ok && g.Match(v)
		}, nil
	}
	return nil, oops.In("bus").With("op", c.Op).Errorf("unknown comparison operator")
}
