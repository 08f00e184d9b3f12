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

package schema

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// JoinNode is one resolved relation step inside a single query build.
// The root node stands for the queried entity itself.
type JoinNode struct {
	Path     Path
	Alias    string
	Entity   *Entity
	Relation *Relation
	Parent   *JoinNode

	children []*JoinNode
}

// IsRoot reports whether the node is the root of the build.
func (n *JoinNode) IsRoot() bool { return n.Parent == nil }

// ToMany reports whether reaching this node from its parent can yield more
// than one row.
func (n *JoinNode) ToMany() bool {
	return n.Relation != nil && n.Relation.Cardinality == ToMany
}

// Scope returns the nearest node, starting at n, that is either the root or
// a to-many node. Every to-one node is joined inside its scope; every
// to-many node opens a scope of its own.
func (n *JoinNode) Scope() *JoinNode {
	cur := n
	for !cur.IsRoot() && !cur.ToMany() {
		cur = cur.Parent
	}
	return cur
}

// Children returns the child nodes in creation order.
func (n *JoinNode) Children() []*JoinNode {
	out := make([]*JoinNode, len(n.children))
	copy(out, n.children)
	return out
}

// Qualify returns "alias.column".
func (n *JoinNode) Qualify(column string) string {
	return n.Alias + "." + column
}

// Handle is a resolved path: the node holding the attribute and its column.
type Handle struct {
	Path   Path
	Node   *JoinNode
	Column string
}

// Qualified returns the alias-qualified column, e.g. "customer_1.name".
func (h Handle) Qualified() string {
	return h.Node.Qualify(h.Column)
}

// Resolver resolves paths against a registry for exactly one query build
// and caches every relation node it creates, so two paths sharing a
// relation prefix share the node. A Resolver must not be shared between
// builds or goroutines.
type Resolver struct {
	registry *Registry
	root     *JoinNode
	nodes    map[Path]*JoinNode
	order    []*JoinNode
	seq      int
}

// NewResolver starts a build rooted at the named entity.
func (r *Registry) NewResolver(root string) (*Resolver, error) {
	e, ok := r.Lookup(root)
	if !ok {
		return nil, fmt.Errorf("entity %q is not declared", root)
	}
	node := &JoinNode{Alias: e.Alias, Entity: e}
	return &Resolver{
		registry: r,
		root:     node,
		nodes:    map[Path]*JoinNode{"": node},
	}, nil
}

// Root returns the root node.
func (r *Resolver) Root() *JoinNode { return r.root }

// Nodes returns every relation node created so far in creation order. The
// root is not included.
func (r *Resolver) Nodes() []*JoinNode {
	out := make([]*JoinNode, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve returns the handle of an attribute path. Resolving the same path
// twice returns the same node.
func (r *Resolver) Resolve(p Path) (Handle, error) {
	steps := p.Steps()
	if len(steps) == 0 {
		return Handle{}, &UnknownPathError{Entity: r.root.Entity.Name, Path: p, Reason: "empty path"}
	}
	rels, err := r.walk(p, steps[:len(steps)-1])
	if err != nil {
		return Handle{}, err
	}
	last := steps[len(steps)-1]
	target := r.root.Entity
	if len(rels) > 0 {
		target, _ = r.registry.Lookup(rels[len(rels)-1].Target)
	}
	column, ok := target.Column(last)
	if !ok {
		reason := fmt.Sprintf("%q has no attribute %q", target.Name, last)
		if _, isRel := target.Relation(last); isRel {
			reason = fmt.Sprintf("%q is a relation of %q, not an attribute", last, target.Name)
		}
		return Handle{}, &UnknownPathError{Entity: r.root.Entity.Name, Path: p, Step: last, Reason: reason}
	}
	node := r.attach(p.Prefix(), rels)
	return Handle{Path: p, Node: node, Column: column}, nil
}

// ResolveRelation resolves a path whose every step is a relation, as used by
// fetch plans.
func (r *Resolver) ResolveRelation(p Path) (*JoinNode, error) {
	steps := p.Steps()
	if len(steps) == 0 {
		return nil, &UnknownPathError{Entity: r.root.Entity.Name, Path: p, Reason: "empty path"}
	}
	rels, err := r.walk(p, steps)
	if err != nil {
		return nil, err
	}
	return r.attach(p, rels), nil
}

// ResolveSort resolves a sort key; sort keys may only cross to-one relations.
func (r *Resolver) ResolveSort(p Path) (Handle, error) {
	steps := p.Steps()
	if len(steps) > 1 {
		rels, err := r.walk(p, steps[:len(steps)-1])
		if err != nil {
			return Handle{}, err
		}
		for _, rel := range rels {
			if rel.Cardinality == ToMany {
				return Handle{}, &UnsortablePathError{Entity: r.root.Entity.Name, Path: p, Relation: rel.Name}
			}
		}
	}
	return r.Resolve(p)
}

// walk validates relation steps without creating nodes, so a failed
// resolution leaves the cache untouched.
func (r *Resolver) walk(p Path, steps []string) ([]*Relation, error) {
	cur := r.root.Entity
	rels := make([]*Relation, 0, len(steps))
	for _, step := range steps {
		rel, ok := cur.Relation(step)
		if !ok {
			reason := fmt.Sprintf("%q has no relation %q", cur.Name, step)
			if _, isAttr := cur.Column(step); isAttr {
				reason = fmt.Sprintf("%q is an attribute of %q and cannot be traversed", step, cur.Name)
			}
			return nil, &UnknownPathError{Entity: r.root.Entity.Name, Path: p, Step: step, Reason: reason}
		}
		next, ok := r.registry.Lookup(rel.Target)
		if !ok {
			return nil, &UnknownPathError{Entity: r.root.Entity.Name, Path: p, Step: step, Reason: fmt.Sprintf("relation targets undeclared entity %q", rel.Target)}
		}
		rels = append(rels, rel)
		cur = next
	}
	return rels, nil
}

func (r *Resolver) attach(prefix Path, rels []*Relation) *JoinNode {
	if node, ok := r.nodes[prefix]; ok {
		return node
	}
	parent := r.root
	var key Path
	for _, rel := range rels {
		key = key.Join(rel.Name)
		node, ok := r.nodes[key]
		if !ok {
			target, _ := r.registry.Lookup(rel.Target)
			r.seq++
			node = &JoinNode{
				Path:     key,
				Alias:    fmt.Sprintf("%s_%d", inflection.Singular(snake(rel.Name)), r.seq),
				Entity:   target,
				Relation: rel,
				Parent:   parent,
			}
			parent.children = append(parent.children, node)
			r.nodes[key] = node
			r.order = append(r.order, node)
		}
		parent = node
	}
	return parent
}

func snake(s string) string {
	var b strings.Builder
	for i, c := range s {
		if unicode.IsUpper(c) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(c))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
