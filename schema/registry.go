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
	"reflect"
	"sort"
	"sync"

	"github.com/uptrace/bun"
)

// Cardinality tells whether a relation yields at most one row or many rows.
type Cardinality int

const (
	ToOne Cardinality = iota
	ToMany
)

func (c Cardinality) String() string {
	if c == ToMany {
		return "to-many"
	}
	return "to-one"
}

// Relation is a declared step from one entity to another.
//
// The join condition is always target.TargetKey = source.SourceKey. For a
// belongs-to relation SourceKey is the foreign key column on the source
// (customer_id) and TargetKey the target primary key; for has-one and
// has-many relations it is the other way around. An empty key stands for
// the primary key of its entity.
type Relation struct {
	Name        string
	Target      string
	Cardinality Cardinality
	SourceKey   string
	TargetKey   string
	// Field is the bun struct field used for eager loading, e.g. "LineItems".
	Field string
}

// Keys returns the join columns with empty keys replaced by primary keys.
func (rel *Relation) Keys(source, target *Entity) (sourceKey, targetKey string) {
	sourceKey, targetKey = rel.SourceKey, rel.TargetKey
	if sourceKey == "" {
		sourceKey = source.PK
	}
	if targetKey == "" {
		targetKey = target.PK
	}
	return sourceKey, targetKey
}

// Entity describes one table of the domain graph. Relations refer to their
// targets by entity name, so self references and cycles are plain lookups.
type Entity struct {
	Name  string
	Table string
	Alias string
	PK    string
	Model interface{}

	attributes map[string]string
	relations  map[string]*Relation
}

// Column returns the column bound to an attribute name.
func (e *Entity) Column(attribute string) (string, bool) {
	c, ok := e.attributes[attribute]
	return c, ok
}

// Relation returns a declared relation by name.
func (e *Entity) Relation(name string) (*Relation, bool) {
	r, ok := e.relations[name]
	return r, ok
}

// Attributes returns the declared attribute names in sorted order.
func (e *Entity) Attributes() []string {
	names := make([]string, 0, len(e.attributes))
	for n := range e.attributes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Relations returns the declared relations sorted by name.
func (e *Entity) Relations() []*Relation {
	rels := make([]*Relation, 0, len(e.relations))
	for _, r := range e.relations {
		rels = append(rels, r)
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].Name < rels[j].Name })
	return rels
}

// Registry holds entity declarations. It is built once at startup and is
// read-only afterwards; every query build gets its own Resolver.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

// Entity declares (or redeclares) an entity and returns a builder for it.
// The primary key defaults to the "id" column.
func (r *Registry) Entity(name, table, alias string) *EntityBuilder {
	e := &Entity{
		Name:       name,
		Table:      table,
		Alias:      alias,
		PK:         "id",
		attributes: map[string]string{"id": "id"},
		relations:  make(map[string]*Relation),
	}
	r.mu.Lock()
	r.entities[name] = e
	r.mu.Unlock()
	return &EntityBuilder{entity: e}
}

// Lookup returns the entity declared under name.
func (r *Registry) Lookup(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	return e, ok
}

// Names returns all declared entity names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entities))
	for n := range r.entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every relation points at a declared entity and that
// join keys are declared columns on both ends.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range sortedKeys(r.entities) {
		e := r.entities[name]
		if e.Table == "" || e.Alias == "" {
			return fmt.Errorf("entity %q: table and alias are required", name)
		}
		for _, rel := range e.Relations() {
			target, ok := r.entities[rel.Target]
			if !ok {
				return fmt.Errorf("entity %q: relation %q targets undeclared entity %q", name, rel.Name, rel.Target)
			}
			sourceKey, targetKey := rel.Keys(e, target)
			if !hasColumn(e, sourceKey) {
				return fmt.Errorf("entity %q: relation %q source key %q is not a declared column", name, rel.Name, sourceKey)
			}
			if !hasColumn(target, targetKey) {
				return fmt.Errorf("entity %q: relation %q target key %q is not a declared column of %q", name, rel.Name, targetKey, rel.Target)
			}
		}
	}
	return nil
}

// Bind validates the registry and checks each entity that carries a bun
// model against the table metadata bun derives from that model.
func (r *Registry) Bind(db *bun.DB) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range sortedKeys(r.entities) {
		e := r.entities[name]
		if e.Model == nil {
			continue
		}
		typ := reflect.TypeOf(e.Model)
		for typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		table := db.Table(typ)
		if table == nil {
			return fmt.Errorf("entity %q: bun has no table for model %s", name, typ)
		}
		for _, column := range columnsOf(e) {
			if !table.HasField(column) {
				return fmt.Errorf("entity %q: column %q is not mapped by model %s", name, column, typ)
			}
		}
	}
	return nil
}

func hasColumn(e *Entity, column string) bool {
	for _, c := range e.attributes {
		if c == column {
			return true
		}
	}
	return false
}

func columnsOf(e *Entity) []string {
	seen := make(map[string]struct{}, len(e.attributes))
	var out []string
	for _, c := range e.attributes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]*Entity) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EntityBuilder declares attributes and relations of one entity.
type EntityBuilder struct {
	entity *Entity
}

// Model attaches the bun model used by Bind and by eager loading.
func (b *EntityBuilder) Model(model interface{}) *EntityBuilder {
	b.entity.Model = model
	return b
}

// PK sets the primary key column. The "id" attribute follows the primary
// key unless it was bound to another column explicitly.
func (b *EntityBuilder) PK(column string) *EntityBuilder {
	b.entity.PK = column
	if b.entity.attributes["id"] == "id" {
		b.entity.attributes["id"] = column
	}
	b.entity.attributes[column] = column
	return b
}

// Attribute binds an attribute name to a column.
func (b *EntityBuilder) Attribute(name, column string) *EntityBuilder {
	b.entity.attributes[name] = column
	return b
}

// Attributes declares attributes whose name equals their column.
func (b *EntityBuilder) Attributes(columns ...string) *EntityBuilder {
	for _, c := range columns {
		b.entity.attributes[c] = c
	}
	return b
}

// BelongsTo declares a to-one relation through a foreign key on this entity.
func (b *EntityBuilder) BelongsTo(name, target, foreignKey, field string) *EntityBuilder {
	b.ensureColumn(foreignKey)
	return b.relation(&Relation{Name: name, Target: target, Cardinality: ToOne, SourceKey: foreignKey, Field: field})
}

// HasOne declares a to-one relation through a foreign key on the target.
func (b *EntityBuilder) HasOne(name, target, foreignKey, field string) *EntityBuilder {
	return b.relation(&Relation{Name: name, Target: target, Cardinality: ToOne, TargetKey: foreignKey, Field: field})
}

// HasMany declares a to-many relation through a foreign key on the target.
func (b *EntityBuilder) HasMany(name, target, foreignKey, field string) *EntityBuilder {
	return b.relation(&Relation{Name: name, Target: target, Cardinality: ToMany, TargetKey: foreignKey, Field: field})
}

// Relation declares a relation with explicit keys.
func (b *EntityBuilder) Relation(rel Relation) *EntityBuilder {
	r := rel
	return b.relation(&r)
}

// Done returns the declared entity.
func (b *EntityBuilder) Done() *Entity {
	return b.entity
}

func (b *EntityBuilder) relation(rel *Relation) *EntityBuilder {
	b.entity.relations[rel.Name] = rel
	return b
}

func (b *EntityBuilder) ensureColumn(column string) {
	if !hasColumn(b.entity, column) {
		b.entity.attributes[column] = column
	}
}
