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

	"github.com/tomoncle/sift/schema"
)

// Ptr returns a pointer to v, for building criteria values inline.
func Ptr[V any](v V) *V { return &v }

// Equals matches rows whose path equals value; nil value yields Identity.
func Equals[V any](path schema.Path, value *V) Clause {
	if value == nil {
		return Identity
	}
	return Condition{Path: path, Op: OpEq, Values: []interface{}{*value}}
}

// NotEquals matches rows whose path differs from value.
func NotEquals[V any](path schema.Path, value *V) Clause {
	if value == nil {
		return Identity
	}
	return Condition{Path: path, Op: OpNe, Values: []interface{}{*value}}
}

// Range matches values in [min, max]. A missing bound leaves that side
// open and two missing bounds yield Identity. Inverted bounds are caught by
// Composite.Validate.
func Range[V any](path schema.Path, min, max *V) Clause {
	switch {
	case min == nil && max == nil:
		return Identity
	case max == nil:
		return Condition{Path: path, Op: OpGte, Values: []interface{}{*min}}
	case min == nil:
		return Condition{Path: path, Op: OpLte, Values: []interface{}{*max}}
	default:
		return Condition{Path: path, Op: OpBetween, Values: []interface{}{*min, *max}}
	}
}

// Before matches values strictly lower than value.
func Before[V any](path schema.Path, value *V) Clause {
	if value == nil {
		return Identity
	}
	return Condition{Path: path, Op: OpLt, Values: []interface{}{*value}}
}

// After matches values strictly greater than value.
func After[V any](path schema.Path, value *V) Clause {
	if value == nil {
		return Identity
	}
	return Condition{Path: path, Op: OpGt, Values: []interface{}{*value}}
}

// ContainsIgnoreCase matches values containing text regardless of case.
// Nil or blank text yields Identity.
func ContainsIgnoreCase(path schema.Path, text *string) Clause {
	if text == nil || strings.TrimSpace(*text) == "" {
		return Identity
	}
	return Condition{Path: path, Op: OpContainsFold, Values: []interface{}{*text}}
}

// In matches values that are members of values; an empty set yields
// Identity.
func In[V any](path schema.Path, values []V) Clause {
	if len(values) == 0 {
		return Identity
	}
	vs := make([]interface{}, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Condition{Path: path, Op: OpIn, Values: vs}
}

// DualTextMatch applies ContainsIgnoreCase to two paths, each side
// independently optional. When both texts are present both tests apply.
func DualTextMatch(pathA, pathB schema.Path, textA, textB *string) Clause {
	return Compose(ContainsIgnoreCase(pathA, textA), ContainsIgnoreCase(pathB, textB))
}

// And is Compose under a name that reads well inside clause lists.
func And(clauses ...Clause) Clause {
	return Compose(clauses...)
}

// build creates a clause from reflected criteria values; it backs the
// descriptor table.
func build(path schema.Path, kind Kind, v reflect.Value) Clause {
	switch kind {
	case KindIn:
		if v.Len() == 0 {
			return Identity
		}
		vs := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			vs[i] = v.Index(i).Interface()
		}
		return Condition{Path: path, Op: OpIn, Values: vs}
	}
	if v.IsNil() {
		return Identity
	}
	value := v.Elem().Interface()
	switch kind {
	case KindEq:
		return Condition{Path: path, Op: OpEq, Values: []interface{}{value}}
	case KindNe:
		return Condition{Path: path, Op: OpNe, Values: []interface{}{value}}
	case KindGte:
		return Condition{Path: path, Op: OpGte, Values: []interface{}{value}}
	case KindLte:
		return Condition{Path: path, Op: OpLte, Values: []interface{}{value}}
	case KindLt:
		return Condition{Path: path, Op: OpLt, Values: []interface{}{value}}
	case KindGt:
		return Condition{Path: path, Op: OpGt, Values: []interface{}{value}}
	case KindContains:
		s, ok := value.(string)
		if !ok {
			s = reflect.ValueOf(value).String()
		}
		return ContainsIgnoreCase(path, &s)
	}
	return Identity
}
