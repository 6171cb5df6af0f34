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

package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lp "github.com/flowetl/flowetl/internal/logicalplan"
	"github.com/flowetl/flowetl/internal/schema"
)

func col(dt schema.DataType) lp.Expr {
	return &lp.ResolvedAttribute{Ref: schema.NewAttributeReference("x", dt, true)}
}

func TestSimplifyCasts_NoOpCastToSameType(t *testing.T) {
	e := lp.NewCast(col(schema.Int), schema.Int)
	out, changed := simplifyCasts(e)
	require.True(t, changed)
	assert.Equal(t, col(schema.Int).DataType(), out.DataType())
	_, isCast := out.(*lp.Cast)
	assert.False(t, isCast)
}

func TestSimplifyCasts_CollapsesWideningChain(t *testing.T) {
	// CAST(CAST(x AS LONG) AS DOUBLE) where x is Int: Long widens Int, and
	// Double is at least as wide as Long, so the chain collapses.
	inner := lp.NewCast(col(schema.Int), schema.Long)
	outer := lp.NewCast(inner, schema.Double)

	out, changed := simplifyCasts(outer)
	require.True(t, changed)
	cast, ok := out.(*lp.Cast)
	require.True(t, ok)
	assert.True(t, cast.To.Equal(schema.Double))
	assert.Equal(t, col(schema.Int).DataType(), cast.Child.DataType())
}

func TestSimplifyCasts_KeepsNarrowingThenWideningChain(t *testing.T) {
	// CAST(CAST(x AS INT) AS STRING) where x is Double: INT narrows
	// Double, so collapsing would change CAST(3.7 AS INT) AS STRING ("3")
	// into CAST(3.7 AS STRING) ("3.7"). Both casts must survive.
	inner := lp.NewCast(col(schema.Double), schema.Int)
	outer := lp.NewCast(inner, schema.String)

	out, changed := simplifyCasts(outer)
	assert.False(t, changed)
	assert.Same(t, outer, out)
}

func TestSimplifyCasts_KeepsNarrowingOuterCast(t *testing.T) {
	// CAST(CAST(x AS DOUBLE) AS INT) where x is Int: the inner cast widens
	// but the outer cast narrows back down, so the chain must stay intact.
	inner := lp.NewCast(col(schema.Int), schema.Double)
	outer := lp.NewCast(inner, schema.Int)

	_, changed := simplifyCasts(outer)
	assert.False(t, changed)
}
