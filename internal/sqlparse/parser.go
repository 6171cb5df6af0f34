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

package sqlparse

import (
	"fmt"
	"strconv"
	"strings"

	lp "github.com/flowetl/flowetl/internal/logicalplan"
	"github.com/flowetl/flowetl/internal/schema"
)

// ParseError wraps a syntax error encountered while parsing SQL (§7: Kind
// ParseError).
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string { return "sqlparse: " + e.msg }

func errf(format string, args ...interface{}) error {
	return &ParseError{msg: fmt.Sprintf(format, args...)}
}

// precedence levels, lowest to highest.
const (
	lowest = iota
	orPrec
	andPrec
	notPrec
	equalsPrec // = != < <= > >= LIKE RLIKE IN IS
	sumPrec    // + -
	productPrec // * / %
	unaryPrec
	callPrec
)

var precedences = map[TokenType]int{
	OR: orPrec, AND: andPrec,
	EQ: equalsPrec, NOT_EQ: equalsPrec, LT: equalsPrec, LE: equalsPrec,
	GT: equalsPrec, GE: equalsPrec, LIKE: equalsPrec, RLIKE: equalsPrec, IN: equalsPrec, IS: equalsPrec,
	PLUS: sumPrec, MINUS: sumPrec,
	ASTERISK: productPrec, SLASH: productPrec, PERCENT: productPrec,
}

type parser struct {
	l         *lexer
	cur, peek Token
	err       error
}

// Parse parses a single SELECT statement into a logical plan with relation
// names left as RelationPlaceholder references resolvable once the caller
// knows the input schema (the analyzer's "resolve relations" rule, §4.2).
func Parse(sql string) (lp.Plan, error) {
	p := &parser{l: newLexer(sql)}
	p.next()
	p.next()
	plan, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != EOF {
		return nil, errf("unexpected trailing token %q", p.cur.Literal)
	}
	return plan, nil
}

func (p *parser) next() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *parser) expect(t TokenType) error {
	if p.cur.Type != t {
		return errf("expected %s, got %s (%q)", t, p.cur.Type, p.cur.Literal)
	}
	p.next()
	return nil
}

// parseSelect parses one SELECT, optionally chained with UNION [ALL] into
// a logicalplan.UnionAll.
func (p *parser) parseSelect() (lp.Plan, error) {
	first, err := p.parseSelectCore()
	if err != nil {
		return nil, err
	}
	plans := []lp.Plan{first}
	for p.cur.Type == UNION {
		p.next()
		if p.cur.Type == ALL {
			p.next()
		}
		next, err := p.parseSelectCore()
		if err != nil {
			return nil, err
		}
		plans = append(plans, next)
	}
	if len(plans) == 1 {
		return plans[0], nil
	}
	return &lp.UnionAll{ChildPlans: plans}, nil
}

func (p *parser) parseSelectCore() (lp.Plan, error) {
	if err := p.expect(SELECT); err != nil {
		return nil, err
	}
	distinct := false
	if p.cur.Type == DISTINCT {
		distinct = true
		p.next()
	}

	projectList, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}

	var child lp.Plan = lp.OneRowRelation{}
	if p.cur.Type == FROM {
		p.next()
		child, err = p.parseRelation()
		if err != nil {
			return nil, err
		}
	}

	if p.cur.Type == WHERE {
		p.next()
		cond, err := p.parseExpr(lowest)
		if err != nil {
			return nil, err
		}
		child = &lp.Filter{Condition: cond, Child: child}
	}

	var groupBy []lp.Expr
	var having lp.Expr
	if p.cur.Type == GROUP {
		p.next()
		if err := p.expect(BY); err != nil {
			return nil, err
		}
		groupBy, err = p.parseExprList()
		if err != nil {
			return nil, err
		}
		if p.cur.Type == HAVING {
			p.next()
			having, err = p.parseExpr(lowest)
			if err != nil {
				return nil, err
			}
		}
	}

	// ORDER BY is accepted and discarded for the global-aggregation scope
	// this engine targets (§1 Non-goals: no windowing beyond a single
	// global aggregation; physical ordering across unbounded output isn't
	// meaningful here). LIMIT is kept.
	if p.cur.Type == ORDER {
		p.next()
		if err := p.expect(BY); err != nil {
			return nil, err
		}
		if _, err := p.parseExprList(); err != nil {
			return nil, err
		}
		for p.cur.Type == ASC || p.cur.Type == DESC {
			p.next()
		}
	}

	limit := -1
	if p.cur.Type == LIMIT {
		p.next()
		if p.cur.Type != NUMBER {
			return nil, errf("expected a number after LIMIT")
		}
		n, err := strconv.Atoi(p.cur.Literal)
		if err != nil {
			return nil, errf("invalid LIMIT value %q", p.cur.Literal)
		}
		limit = n
		p.next()
	}

	var result lp.Plan
	if groupBy != nil {
		agg := &lp.Aggregate{GroupBy: groupBy, ResultExprs: projectList, Child: child}
		extractAggregates(agg)
		result = agg
		if having != nil {
			result = &lp.Filter{Condition: having, Child: result}
		}
	} else {
		result = &lp.Project{ProjectList: projectList, Child: child}
	}
	if distinct {
		// Distinct is represented as a marker expression prepended to the
		// outermost Project's list; the analyzer strips it and reports
		// analyzer.Result.Distinct, which the planner copies into each
		// Plan's Distinct field, folding it into the process-operator chain
		// (§4.7) instead of introducing a new logical node here.
		result = markDistinct(result)
	}
	if limit >= 0 {
		result = applyLimit(result, limit)
	}
	return result, nil
}

// parseSelectList parses the comma-separated SELECT projection, expanding
// a bare `*` into a Star expression (resolved later by the analyzer's
// star-expansion rule) and handling `expr [AS] alias`.
func (p *parser) parseSelectList() ([]lp.Expr, error) {
	var list []lp.Expr
	for {
		if p.cur.Type == ASTERISK && (p.peek.Type == FROM || p.peek.Type == EOF) {
			list = append(list, lp.Star{})
			p.next()
		} else {
			e, err := p.parseExpr(lowest)
			if err != nil {
				return nil, err
			}
			if p.cur.Type == AS {
				p.next()
				if p.cur.Type != IDENT {
					return nil, errf("expected alias name after AS")
				}
				e = lp.NewAlias(e, p.cur.Literal)
				p.next()
			} else if p.cur.Type == IDENT {
				// bare alias: `expr alias`
				e = lp.NewAlias(e, p.cur.Literal)
				p.next()
			}
			list = append(list, e)
		}
		if p.cur.Type != COMMA {
			break
		}
		p.next()
	}
	return list, nil
}

func (p *parser) parseExprList() ([]lp.Expr, error) {
	var list []lp.Expr
	for {
		e, err := p.parseExpr(lowest)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if p.cur.Type != COMMA {
			break
		}
		p.next()
	}
	return list, nil
}

// parseRelation parses a FROM target: a single table name, optionally
// joined to another with a simple ON condition (§4.2: "simple joins").
func (p *parser) parseRelation() (lp.Plan, error) {
	left, err := p.parseNamedRelation()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == JOIN || p.cur.Type == LEFT || p.cur.Type == INNER {
		kind := lp.InnerJoin
		if p.cur.Type == LEFT {
			kind = lp.LeftJoin
			p.next()
		} else if p.cur.Type == INNER {
			p.next()
		}
		if err := p.expect(JOIN); err != nil {
			return nil, err
		}
		right, err := p.parseNamedRelation()
		if err != nil {
			return nil, err
		}
		var cond lp.Expr
		if p.cur.Type == ON {
			p.next()
			cond, err = p.parseExpr(lowest)
			if err != nil {
				return nil, err
			}
		}
		left = &lp.Join{Left: left, Right: right, Kind: kind, Condition: cond}
	}
	return left, nil
}

func (p *parser) parseNamedRelation() (lp.Plan, error) {
	if p.cur.Type != IDENT {
		return nil, errf("expected a relation name, got %q", p.cur.Literal)
	}
	name := p.cur.Literal
	p.next()
	return &lp.RelationPlaceholder{Name: name}, nil
}

// ---- expression parsing (precedence climbing) ----

func (p *parser) parseExpr(minPrec int) (lp.Expr, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for {
		if p.cur.Type == NOT && p.peek.Type == LIKE {
			p.next()
			p.next()
			right, err := p.parseExpr(equalsPrec + 1)
			if err != nil {
				return nil, err
			}
			left = &lp.Like{Child: left, Pattern: right, Negate: true}
			continue
		}
		if p.cur.Type == IS {
			p.next()
			negate := false
			if p.cur.Type == NOT {
				negate = true
				p.next()
			}
			if p.cur.Type != NULL {
				return nil, errf("expected NULL after IS [NOT]")
			}
			p.next()
			isNullCall := &lp.FunctionCall{Name: "is_null", Args: []lp.Expr{left}}
			if negate {
				left = &lp.FunctionCall{Name: "not", Args: []lp.Expr{isNullCall}}
			} else {
				left = isNullCall
			}
			continue
		}
		if p.cur.Type == IN {
			p.next()
			if err := p.expect(LPAREN); err != nil {
				return nil, err
			}
			items, err := p.parseExprList()
			if err != nil {
				return nil, err
			}
			if err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			in := &lp.In{Child: left, List: items}
			left = in.ToOrChain()
			continue
		}

		prec, ok := precedences[p.cur.Type]
		if !ok || prec < minPrec {
			break
		}
		tok := p.cur
		p.next()

		if tok.Type == LIKE || tok.Type == RLIKE {
			right, err := p.parseExpr(prec + 1)
			if err != nil {
				return nil, err
			}
			if tok.Type == LIKE {
				left = &lp.Like{Child: left, Pattern: right}
			} else {
				left = &lp.RLike{Child: left, Pattern: right}
			}
			continue
		}

		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = lp.NewBinaryOperator(left, binOpFor(tok.Type), right)
	}
	return left, nil
}

func binOpFor(t TokenType) lp.BinaryOp {
	switch t {
	case PLUS:
		return lp.OpPlus
	case MINUS:
		return lp.OpMinus
	case ASTERISK:
		return lp.OpMultiply
	case SLASH:
		return lp.OpDivide
	case PERCENT:
		return lp.OpModulo
	case EQ:
		return lp.OpEq
	case NOT_EQ:
		return lp.OpNotEq
	case LT:
		return lp.OpLt
	case LE:
		return lp.OpLtEq
	case GT:
		return lp.OpGt
	case GE:
		return lp.OpGtEq
	case AND:
		return lp.OpAnd
	case OR:
		return lp.OpOr
	default:
		panic("sqlparse: no BinaryOp for token " + t)
	}
}

func (p *parser) parsePrefix() (lp.Expr, error) {
	switch p.cur.Type {
	case NOT:
		p.next()
		operand, err := p.parseExpr(notPrec)
		if err != nil {
			return nil, err
		}
		return &lp.FunctionCall{Name: "not", Args: []lp.Expr{operand}}, nil
	case MINUS:
		p.next()
		operand, err := p.parseExpr(unaryPrec)
		if err != nil {
			return nil, err
		}
		return lp.NewBinaryOperator(lp.NewLiteral(int32(0), schema.Int), lp.OpMinus, operand), nil
	case CAST:
		return p.parseCast()
	case LPAREN:
		p.next()
		e, err := p.parseExpr(lowest)
		if err != nil {
			return nil, err
		}
		if err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case NUMBER:
		return p.parseNumber()
	case STRING:
		s := p.cur.Literal
		p.next()
		return lp.NewLiteral(s, schema.String), nil
	case TRUE:
		p.next()
		return lp.NewLiteral(true, schema.Boolean), nil
	case FALSE:
		p.next()
		return lp.NewLiteral(false, schema.Boolean), nil
	case NULL:
		p.next()
		return lp.NewNullLiteral(schema.String), nil
	case IDENT:
		return p.parseIdentOrCall()
	default:
		return nil, errf("unexpected token %q", p.cur.Literal)
	}
}

func (p *parser) parseNumber() (lp.Expr, error) {
	lit := p.cur.Literal
	p.next()
	if strings.ContainsAny(lit, ".eE") {
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, errf("invalid number %q", lit)
		}
		return lp.NewLiteral(f, schema.Double), nil
	}
	n, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return nil, errf("invalid number %q", lit)
	}
	if n >= -(1<<31) && n < (1<<31) {
		return lp.NewLiteral(int32(n), schema.Int), nil
	}
	return lp.NewLiteral(n, schema.Long), nil
}

func (p *parser) parseCast() (lp.Expr, error) {
	p.next() // consume CAST
	if err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	e, err := p.parseExpr(lowest)
	if err != nil {
		return nil, err
	}
	if err := p.expect(AS); err != nil {
		return nil, err
	}
	if p.cur.Type != IDENT {
		return nil, errf("expected a type name in CAST")
	}
	typeName := p.cur.Literal
	p.next()
	dt, ok := dataTypeByName(typeName)
	if !ok {
		return nil, errf("unknown CAST target type %q", typeName)
	}
	if err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return lp.NewCast(e, dt), nil
}

func dataTypeByName(name string) (schema.DataType, bool) {
	switch strings.ToLower(name) {
	case "int":
		return schema.Int, true
	case "long", "bigint":
		return schema.Long, true
	case "float":
		return schema.Float, true
	case "double":
		return schema.Double, true
	case "string":
		return schema.String, true
	case "boolean", "bool":
		return schema.Boolean, true
	case "binary":
		return schema.Binary, true
	case "timestamp":
		return schema.Timestamp, true
	default:
		return schema.DataType{}, false
	}
}

// parseIdentOrCall parses a bare/dotted identifier or a function call
// `name(args...)`, including the `count(*)` special case.
func (p *parser) parseIdentOrCall() (lp.Expr, error) {
	name := p.cur.Literal
	p.next()
	for p.cur.Type == DOT {
		p.next()
		if p.cur.Type != IDENT {
			return nil, errf("expected identifier after '.'")
		}
		name = name + "." + p.cur.Literal
		p.next()
	}
	if p.cur.Type != LPAREN {
		return &lp.UnresolvedAttribute{Name: name}, nil
	}
	p.next()
	var args []lp.Expr
	if p.cur.Type == ASTERISK {
		p.next()
		args = nil // count(*) carries no args; the aggregate count state counts every row when it gets no args
	} else if p.cur.Type != RPAREN {
		var err error
		args, err = p.parseExprList()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return &lp.FunctionCall{Name: strings.ToLower(name), Args: args}, nil
}

// extractAggregates walks ResultExprs in place, replacing every
// FunctionCall that names a registered aggregate with an
// *lp.AggregateFunction carrying a freshly assigned StateID, and collects
// them into agg.AggExprs (§4.2 rule 7: "Aggregate extraction").
func extractAggregates(agg *lp.Aggregate) {
	nextID := 0
	var walk func(e lp.Expr) lp.Expr
	walk = func(e lp.Expr) lp.Expr {
		if fc, ok := e.(*lp.FunctionCall); ok && isAggregateName(fc.Name) {
			id := nextID
			nextID++
			af := &lp.AggregateFunction{Name: fc.Name, Args: fc.Args, StateID: id}
			agg.AggExprs = append(agg.AggExprs, af)
			return af
		}
		children := e.Children()
		if len(children) == 0 {
			return e
		}
		newChildren := make([]lp.Expr, len(children))
		changed := false
		for i, c := range children {
			nc := walk(c)
			newChildren[i] = nc
			if nc != c {
				changed = true
			}
		}
		if !changed {
			return e
		}
		return e.WithChildren(newChildren)
	}
	for i, e := range agg.ResultExprs {
		agg.ResultExprs[i] = walk(e)
	}
}

var aggregateNames = map[string]bool{
	"count": true, "count_distinct": true, "sum": true, "min": true, "max": true,
	"avg": true, "approx_count_distinct": true, "approx_percentile": true,
}

func isAggregateName(name string) bool { return aggregateNames[strings.ToLower(name)] }

func markDistinct(p lp.Plan) lp.Plan {
	switch n := p.(type) {
	case *lp.Project:
		cp := *n
		cp.ProjectList = append([]lp.Expr{distinctMarker{}}, cp.ProjectList...)
		return &cp
	default:
		return p
	}
}

// distinctMarker is a zero-width Expr used purely as a tag the analyzer
// strips after recording the statement-wide Result.Distinct flag; it
// never reaches the physical planner.
type distinctMarker struct{}

func (distinctMarker) DataType() schema.DataType   { return schema.DataType{} }
func (distinctMarker) Nullable() bool               { return false }
func (distinctMarker) Children() []lp.Expr           { return nil }
func (d distinctMarker) WithChildren(c []lp.Expr) lp.Expr { return d }
func (distinctMarker) String() string                { return "" }

// IsDistinctMarker reports whether e is the internal DISTINCT tag inserted
// by the parser, letting downstream stages (analyzer) recognize and strip
// it without sqlparse exporting its concrete type.
func IsDistinctMarker(e lp.Expr) bool {
	_, ok := e.(distinctMarker)
	return ok
}

func applyLimit(p lp.Plan, n int) lp.Plan {
	return &limitedPlan{Plan: p, Limit: n}
}

// limitedPlan wraps a plan with a row-count cap. It behaves exactly like
// its child for Output(); the physical planner reads Limit directly.
type limitedPlan struct {
	lp.Plan
	Limit int
}

func (l *limitedPlan) Children() []lp.Plan { return []lp.Plan{l.Plan} }
func (l *limitedPlan) WithChildren(c []lp.Plan) lp.Plan {
	cp := *l
	cp.Plan = c[0]
	return &cp
}

// LimitOf extracts the LIMIT value from a plan produced by Parse, if any.
func LimitOf(p lp.Plan) (int, bool) {
	if l, ok := p.(*limitedPlan); ok {
		return l.Limit, true
	}
	return 0, false
}

// Unwrap strips a limitedPlan wrapper, returning the underlying plan.
func Unwrap(p lp.Plan) lp.Plan {
	if l, ok := p.(*limitedPlan); ok {
		return l.Plan
	}
	return p
}
