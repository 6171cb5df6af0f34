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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

func TestCompileLikePattern_Dispatch(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
		input   string
		want    bool
	}{
		{"literal match", "foo", "foo", true},
		{"literal mismatch", "foo", "foobar", false},
		{"prefix", "foo%", "foobar", true},
		{"prefix mismatch", "foo%", "barfoo", false},
		{"suffix", "%bar", "foobar", true},
		{"contains", "%oob%", "foobar", true},
		{"regex fallback with interior wildcard", "f_o%bar", "foobar", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := CompileLikePattern(c.pattern, false)
			assert.Equal(t, c.want, m(c.input))
		})
	}
}

func TestCompileLikePattern_BackslashEscapesLiteralMeta(t *testing.T) {
	// "100\%" must match the literal string "100%", not "100" followed by
	// an arbitrary run.
	m := CompileLikePattern(`100\%`, false)
	assert.True(t, m("100%"))
	assert.False(t, m("100"))
	assert.False(t, m("100x"))
}

func TestCompileLikePattern_EscapedUnderscoreAndBackslash(t *testing.T) {
	m := CompileLikePattern(`a\_b\\c`, false)
	assert.True(t, m(`a_b\c`))
	assert.False(t, m("axbyc"))
}

func TestCompileLikePattern_EscapeInsideWildcardChain(t *testing.T) {
	// "%100\%%" should still match any string containing the literal
	// substring "100%".
	m := CompileLikePattern(`%100\%%`, false)
	assert.True(t, m("price: 100% off"))
	assert.False(t, m("price: 100 off"))
}

func TestLike_EvalPropagatesNull(t *testing.T) {
	l := &Like{
		Child:   &Literal{V: value.Null, T: schema.String},
		Matcher: CompileLikePattern("foo%", false),
	}
	assert.True(t, l.Eval(nil).IsNull())
}
