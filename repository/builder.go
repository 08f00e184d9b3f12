/*
 * Copyright 2025 tomoncle.
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

package repository

import (
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/tomoncle/sift/filter"
	"github.com/tomoncle/sift/schema"
	"github.com/tomoncle/sift/types"
)

type resolvedCondition struct {
	cond   filter.Condition
	handle schema.Handle
}

type resolvedOrder struct {
	handle schema.Handle
	desc   bool
}

// build is one query build: the validated composite, the handles its paths
// resolved to and the join cache those resolutions populated. A build is
// rendered as many times as needed (count, page, exists) but never shared
// between requests.
type build struct {
	id         string
	resolver   *schema.Resolver
	composite  filter.Composite
	conditions []resolvedCondition
	orders     []resolvedOrder
	// lower is the SQL function folding text for case-insensitive matches.
	lower string
}

func (b *build) root() *schema.JoinNode { return b.resolver.Root() }

// from starts a select over the root entity under the build's alias.
func (b *build) from(idb bun.IDB) *bun.SelectQuery {
	root := b.root()
	return idb.NewSelect().TableExpr("? AS ?", bun.Ident(root.Entity.Table), bun.Ident(root.Alias))
}

// filtered adds joins and predicates to q, whose FROM already names the
// root entity under its alias.
func (b *build) filtered(idb bun.IDB, q *bun.SelectQuery) *bun.SelectQuery {
	byScope := make(map[*schema.JoinNode][]resolvedCondition)
	for _, rc := range b.conditions {
		scope := rc.handle.Node.Scope()
		byScope[scope] = append(byScope[scope], rc)
	}
	return applyScope(idb, q, b.root(), byScope, b.lower)
}

// applyScope renders one scope: the to-one relations reachable from it as
// LEFT JOINs, its own predicates, and every nested to-many scope as an
// EXISTS semi-join correlated with its parent, so child rows never
// multiply the rows of the scope.
func applyScope(idb bun.IDB, q *bun.SelectQuery, scope *schema.JoinNode, byScope map[*schema.JoinNode][]resolvedCondition, lower string) *bun.SelectQuery {
	q = joinToOne(q, scope)
	for _, rc := range byScope[scope] {
		frag, args := predicate(rc, lower)
		q = q.Where(frag, args...)
	}
	for _, nested := range nestedScopes(scope) {
		sourceKey, targetKey := nested.Relation.Keys(nested.Parent.Entity, nested.Entity)
		sub := idb.NewSelect().
			ColumnExpr("1").
			TableExpr("? AS ?", bun.Ident(nested.Entity.Table), bun.Ident(nested.Alias)).
			Where("? = ?", bun.Ident(nested.Qualify(targetKey)), bun.Ident(nested.Parent.Qualify(sourceKey)))
		sub = applyScope(idb, sub, nested, byScope, lower)
		q = q.Where("EXISTS (?)", sub)
	}
	return q
}

func joinToOne(q *bun.SelectQuery, node *schema.JoinNode) *bun.SelectQuery {
	for _, child := range node.Children() {
		if child.ToMany() {
			continue
		}
		sourceKey, targetKey := child.Relation.Keys(node.Entity, child.Entity)
		q = q.Join("LEFT JOIN ? AS ? ON ? = ?",
			bun.Ident(child.Entity.Table), bun.Ident(child.Alias),
			bun.Ident(child.Qualify(targetKey)), bun.Ident(node.Qualify(sourceKey)))
		q = joinToOne(q, child)
	}
	return q
}

// nestedScopes returns the to-many nodes directly below scope, looking
// through its to-one descendants.
func nestedScopes(scope *schema.JoinNode) []*schema.JoinNode {
	var out []*schema.JoinNode
	var walk func(n *schema.JoinNode)
	walk = func(n *schema.JoinNode) {
		for _, child := range n.Children() {
			if child.ToMany() {
				out = append(out, child)
				continue
			}
			walk(child)
		}
	}
	walk(scope)
	return out
}

// ordered appends the requested sort keys and then the root primary key,
// which makes paging deterministic.
func (b *build) ordered(q *bun.SelectQuery) *bun.SelectQuery {
	root := b.root()
	pk := root.Qualify(root.Entity.PK)
	pkSeen := false
	for _, o := range b.orders {
		dir := "ASC"
		if o.desc {
			dir = "DESC"
		}
		q = q.OrderExpr("? "+dir, bun.Ident(o.handle.Qualified()))
		if o.handle.Qualified() == pk {
			pkSeen = true
		}
	}
	if !pkSeen {
		q = q.OrderExpr("? ASC", bun.Ident(pk))
	}
	return q
}

func (b *build) paged(q *bun.SelectQuery, page *types.PageRequest) *bun.SelectQuery {
	return b.ordered(q).Offset(page.GetOffset()).Limit(page.GetPageSize())
}

// predicate renders one condition against its resolved column; lower
// names the function applied to the column of a case-insensitive match.
func predicate(rc resolvedCondition, lower string) (string, []interface{}) {
	col := bun.Ident(rc.handle.Qualified())
	vals := make([]interface{}, len(rc.cond.Values))
	for i, v := range rc.cond.Values {
		vals[i] = filter.Normalize(v)
	}
	switch rc.cond.Op {
	case filter.OpEq:
		return "? = ?", []interface{}{col, vals[0]}
	case filter.OpNe:
		return "? <> ?", []interface{}{col, vals[0]}
	case filter.OpLt:
		return "? < ?", []interface{}{col, vals[0]}
	case filter.OpLte:
		return "? <= ?", []interface{}{col, vals[0]}
	case filter.OpGt:
		return "? > ?", []interface{}{col, vals[0]}
	case filter.OpGte:
		return "? >= ?", []interface{}{col, vals[0]}
	case filter.OpBetween:
		return "? BETWEEN ? AND ?", []interface{}{col, vals[0], vals[1]}
	case filter.OpContainsFold:
		needle := strings.ToLower(fmt.Sprint(vals[0]))
		return lower + "(?) LIKE ? ESCAPE '!'", []interface{}{col, "%" + escapeLike(needle) + "%"}
	case filter.OpIn:
		return "? IN (?)", []interface{}{col, bun.In(vals)}
	}
	return "1 = 0", nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string { return likeEscaper.Replace(s) }
