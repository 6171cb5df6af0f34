/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package physicalexpr

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// likeMatcher is the specialized test chosen once at plan time (§4.4/§4.5):
// a literal LIKE pattern compiles down to the cheapest of Eq, StartsWith,
// EndsWith, Contains, or (when it carries interior wildcards) a regexp.
type likeMatcher func(s string) bool

// likeTokKind distinguishes a literal character from a LIKE wildcard once
// backslash-escapes have been resolved.
type likeTokKind int

const (
	likeTokLiteral likeTokKind = iota
	likeTokAny                 // '%': any run, including empty
	likeTokOne                 // '_': exactly one char
)

type likeTok struct {
	kind likeTokKind
	lit  rune
}

// tokenizeLikePattern scans pattern left to right, resolving backslash
// escapes before classifying '%'/'_' as wildcards (§4.5: "backslash
// escapes the next literal meta"). "\%" and "\_" become literal '%'/'_'
// tokens; "\\" becomes a literal backslash; a trailing lone backslash is
// kept as a literal backslash.
func tokenizeLikePattern(pattern string) []likeTok {
	runes := []rune(pattern)
	toks := make([]likeTok, 0, len(runes))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\\' {
			if i+1 < len(runes) {
				i++
				toks = append(toks, likeTok{kind: likeTokLiteral, lit: runes[i]})
			} else {
				toks = append(toks, likeTok{kind: likeTokLiteral, lit: '\\'})
			}
			continue
		}
		switch r {
		case '%':
			toks = append(toks, likeTok{kind: likeTokAny})
		case '_':
			toks = append(toks, likeTok{kind: likeTokOne})
		default:
			toks = append(toks, likeTok{kind: likeTokLiteral, lit: r})
		}
	}
	return toks
}

func literalRun(toks []likeTok, ignoreCase bool) string {
	var sb strings.Builder
	for _, tok := range toks {
		r := tok.lit
		if ignoreCase {
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func allLiteral(toks []likeTok) bool {
	for _, tok := range toks {
		if tok.kind != likeTokLiteral {
			return false
		}
	}
	return true
}

// CompileLikePattern classifies a literal SQL LIKE pattern ('%' = any run,
// '_' = any one char, '\' escapes the following char) into its cheapest
// matcher. Exported so the physical planner can call it while lowering a
// Like node whose Pattern is a constant string.
func CompileLikePattern(pattern string, ignoreCase bool) likeMatcher {
	toks := tokenizeLikePattern(pattern)

	if allLiteral(toks) {
		return literalMatcher(literalRun(toks, ignoreCase), ignoreCase)
	}
	// trailing-only wildcard: "foo%"
	if len(toks) > 0 && toks[len(toks)-1].kind == likeTokAny && allLiteral(toks[:len(toks)-1]) {
		prefix := literalRun(toks[:len(toks)-1], ignoreCase)
		return func(s string) bool {
			if ignoreCase {
				s = strings.ToLower(s)
			}
			return strings.HasPrefix(s, prefix)
		}
	}
	// leading-only wildcard: "%foo"
	if len(toks) > 0 && toks[0].kind == likeTokAny && allLiteral(toks[1:]) {
		suffix := literalRun(toks[1:], ignoreCase)
		return func(s string) bool {
			if ignoreCase {
				s = strings.ToLower(s)
			}
			return strings.HasSuffix(s, suffix)
		}
	}
	// leading and trailing wildcard, nothing else: "%foo%"
	if len(toks) >= 2 && toks[0].kind == likeTokAny && toks[len(toks)-1].kind == likeTokAny &&
		allLiteral(toks[1:len(toks)-1]) {
		mid := literalRun(toks[1:len(toks)-1], ignoreCase)
		return func(s string) bool {
			if ignoreCase {
				s = strings.ToLower(s)
			}
			return strings.Contains(s, mid)
		}
	}
	re := likeTokensToRegexp(toks, ignoreCase)
	return func(s string) bool { return re.MatchString(s) }
}

func literalMatcher(pattern string, ignoreCase bool) likeMatcher {
	return func(s string) bool {
		if ignoreCase {
			s = strings.ToLower(s)
		}
		return s == pattern
	}
}

// likeTokensToRegexp translates the resolved LIKE tokens into a Go regexp,
// escaping every literal (including an escaped '%', '_', or '\') so only
// an unescaped '%' or '_' carries special meaning, per §4.5.
func likeTokensToRegexp(toks []likeTok, ignoreCase bool) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("^")
	for _, tok := range toks {
		switch tok.kind {
		case likeTokAny:
			sb.WriteString(".*")
		case likeTokOne:
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(tok.lit)))
		}
	}
	sb.WriteString("$")
	expr := sb.String()
	if ignoreCase {
		expr = "(?i)" + expr
	}
	return regexp.MustCompile(expr)
}

// Like is the physical LIKE expression, with its matcher already
// specialized to the literal pattern at plan time.
type Like struct {
	Child   Expr
	Matcher likeMatcher
	Negate  bool
}

func (l *Like) Eval(r row.Row) value.Value {
	v := l.Child.Eval(r)
	if v.IsNull() {
		return value.Null
	}
	matched := l.Matcher(v.GetString())
	if l.Negate {
		matched = !matched
	}
	return value.NewBoolean(matched)
}
func (l *Like) DataType() schema.DataType { return schema.Boolean }

// DynamicLike handles the rare case of a non-constant LIKE pattern: the
// pattern expression is evaluated and recompiled per row.
type DynamicLike struct {
	Child, Pattern Expr
	IgnoreCase     bool
	Negate         bool
}

func (l *DynamicLike) Eval(r row.Row) value.Value {
	v := l.Child.Eval(r)
	p := l.Pattern.Eval(r)
	if v.IsNull() || p.IsNull() {
		return value.Null
	}
	matcher := CompileLikePattern(p.GetString(), l.IgnoreCase)
	matched := matcher(v.GetString())
	if l.Negate {
		matched = !matched
	}
	return value.NewBoolean(matched)
}
func (l *DynamicLike) DataType() schema.DataType { return schema.Boolean }

// RLike evaluates a POSIX/PCRE-ish regular expression pattern directly
// (no LIKE-wildcard translation).
type RLike struct {
	Child Expr
	Re    *regexp.Regexp
}

func (r *RLike) Eval(row row.Row) value.Value {
	v := r.Child.Eval(row)
	if v.IsNull() {
		return value.Null
	}
	return value.NewBoolean(r.Re.MatchString(v.GetString()))
}
func (r *RLike) DataType() schema.DataType { return schema.Boolean }
