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

package filter

import (
	"reflect"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/tomoncle/sift/schema"
)

// Kind names the clause a criteria field contributes.
type Kind string

const (
	KindEq       Kind = "eq"
	KindNe       Kind = "ne"
	KindGte      Kind = "gte"
	KindLte      Kind = "lte"
	KindLt       Kind = "lt"
	KindGt       Kind = "gt"
	KindContains Kind = "contains"
	KindIn       Kind = "in"
)

var kindAliases = map[string]Kind{
	"eq":       KindEq,
	"ne":       KindNe,
	"gte":      KindGte,
	"min":      KindGte,
	"lte":      KindLte,
	"max":      KindLte,
	"lt":       KindLt,
	"before":   KindLt,
	"gt":       KindGt,
	"after":    KindGt,
	"contains": KindContains,
	"in":       KindIn,
}

// Descriptor binds one criteria field to a path and a clause kind.
type Descriptor struct {
	Field string
	Index []int
	Path  schema.Path
	Kind  Kind
}

// Table is the declarative descriptor table of one criteria struct type,
// read from `filter:"path,kind"` field tags. Untagged fields and fields
// tagged "-" are ignored.
//
//	type OrderCriteria struct {
//		CustomerName *string    `filter:"customer.name,contains"`
//		PlacedFrom   *time.Time `filter:"placedAt,min"`
//		PlacedTo     *time.Time `filter:"placedAt,max"`
//	}
type Table struct {
	Type        reflect.Type
	Descriptors []Descriptor
}

var tables sync.Map // reflect.Type -> *Table

// Describe returns the descriptor table of a criteria struct type. Tables
// are derived once per type and cached.
func Describe(typ reflect.Type) (*Table, error) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if cached, ok := tables.Load(typ); ok {
		return cached.(*Table), nil
	}
	t, err := describe(typ)
	if err != nil {
		return nil, err
	}
	actual, _ := tables.LoadOrStore(typ, t)
	return actual.(*Table), nil
}

func describe(typ reflect.Type) (*Table, error) {
	if typ.Kind() != reflect.Struct {
		return nil, &TagError{Type: typ.String(), Reason: "criteria must be a struct"}
	}
	var result *multierror.Error
	t := &Table{Type: typ}
	bounds := make(map[schema.Path]map[Kind]string)
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag, ok := f.Tag.Lookup("filter")
		if !ok || tag == "-" || !f.IsExported() {
			continue
		}
		parts := strings.Split(tag, ",")
		path := strings.TrimSpace(parts[0])
		kind := KindEq
		if len(parts) > 1 {
			k, known := kindAliases[strings.TrimSpace(parts[1])]
			if !known {
				result = multierror.Append(result, &TagError{Type: typ.Name(), Field: f.Name, Reason: "unknown kind " + parts[1]})
				continue
			}
			kind = k
		}
		if path == "" {
			result = multierror.Append(result, &TagError{Type: typ.Name(), Field: f.Name, Reason: "missing path"})
			continue
		}
		switch {
		case kind == KindIn && f.Type.Kind() != reflect.Slice:
			result = multierror.Append(result, &TagError{Type: typ.Name(), Field: f.Name, Reason: "kind in needs a slice field"})
			continue
		case kind != KindIn && f.Type.Kind() != reflect.Ptr:
			result = multierror.Append(result, &TagError{Type: typ.Name(), Field: f.Name, Reason: "optional criteria must be pointers"})
			continue
		case kind == KindContains && f.Type.Elem().Kind() != reflect.String:
			result = multierror.Append(result, &TagError{Type: typ.Name(), Field: f.Name, Reason: "kind contains needs a *string field"})
			continue
		}
		if kind == KindGte || kind == KindLte {
			p := schema.Path(path)
			if bounds[p] == nil {
				bounds[p] = make(map[Kind]string)
			}
			if prev, dup := bounds[p][kind]; dup {
				result = multierror.Append(result, &TagError{Type: typ.Name(), Field: f.Name,
					Reason: "second " + string(kind) + " bound on " + path + ", already set by " + prev})
				continue
			}
			bounds[p][kind] = f.Name
		}
		t.Descriptors = append(t.Descriptors, Descriptor{Field: f.Name, Index: f.Index, Path: schema.Path(path), Kind: kind})
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return t, nil
}

// Check resolves every descriptor path against the registry, rooted at
// the given entity.
func (t *Table) Check(registry *schema.Registry, root string) error {
	res, err := registry.NewResolver(root)
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, d := range t.Descriptors {
		if _, err := res.Resolve(d.Path); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Clauses reads one criteria value and returns the clause of every
// descriptor, folding a min and a max on the same path into one Range.
// Describe guarantees at most one of each per path.
func (t *Table) Clauses(criteria reflect.Value) []Clause {
	for criteria.Kind() == reflect.Ptr {
		if criteria.IsNil() {
			return nil
		}
		criteria = criteria.Elem()
	}
	type bounds struct{ min, max reflect.Value }
	ranges := make(map[schema.Path]*bounds)
	var order []schema.Path
	var out []Clause
	for _, d := range t.Descriptors {
		v := criteria.FieldByIndex(d.Index)
		if d.Kind == KindGte || d.Kind == KindLte {
			b, ok := ranges[d.Path]
			if !ok {
				b = &bounds{}
				ranges[d.Path] = b
				order = append(order, d.Path)
			}
			if d.Kind == KindGte {
				b.min = v
			} else {
				b.max = v
			}
			continue
		}
		out = append(out, build(d.Path, d.Kind, v))
	}
	for _, p := range order {
		b := ranges[p]
		out = append(out, rangeOf(p, b.min, b.max))
	}
	return out
}

func rangeOf(path schema.Path, min, max reflect.Value) Clause {
	hasMin := min.IsValid() && !min.IsNil()
	hasMax := max.IsValid() && !max.IsNil()
	switch {
	case hasMin && hasMax:
		return Condition{Path: path, Op: OpBetween, Values: []interface{}{min.Elem().Interface(), max.Elem().Interface()}}
	case hasMin:
		return build(path, KindGte, min)
	case hasMax:
		return build(path, KindLte, max)
	}
	return Identity
}

// FromCriteria composes the clauses of a tagged criteria struct. A nil
// criteria yields the identity.
func FromCriteria(criteria interface{}) (Composite, error) {
	if criteria == nil {
		return Composite{}, nil
	}
	if c, ok := criteria.(Clause); ok {
		return Compose(c), nil
	}
	v := reflect.ValueOf(criteria)
	t, err := Describe(v.Type())
	if err != nil {
		return Composite{}, err
	}
	return Compose(t.Clauses(v)...), nil
}
