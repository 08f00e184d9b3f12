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
	"fmt"
	"strings"

	"github.com/tomoncle/sift/schema"
)

// Record exposes the value reachable through a path on one candidate row.
type Record interface {
	Lookup(path schema.Path) (interface{}, bool)
}

// Values is a Record backed by a flat path map.
type Values map[schema.Path]interface{}

func (v Values) Lookup(path schema.Path) (interface{}, bool) {
	val, ok := v[path]
	return val, ok
}

// Match evaluates a clause against a record in memory, following the same
// rules the SQL rendering follows: a missing or NULL value fails every
// condition and the identity matches everything.
func Match(c Clause, rec Record) bool {
	for _, cond := range c.leaves() {
		if !matchCondition(cond, rec) {
			return false
		}
	}
	return true
}

func matchCondition(cond Condition, rec Record) bool {
	if cond.Op == OpNone || cond.arityError() != nil {
		return false
	}
	raw, ok := rec.Lookup(cond.Path)
	if !ok {
		return false
	}
	v := Normalize(raw)
	if v == nil {
		return false
	}
	switch cond.Op {
	case OpContainsFold:
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(fmt.Sprint(Normalize(cond.Values[0]))))
	case OpIn:
		for _, want := range cond.Values {
			if cmp, ok := compare(v, want); ok && cmp == 0 {
				return true
			}
		}
		return false
	case OpBetween:
		lo, ok1 := compare(v, cond.Values[0])
		hi, ok2 := compare(v, cond.Values[1])
		return ok1 && ok2 && lo >= 0 && hi <= 0
	}
	cmp, ok := compare(v, cond.Values[0])
	if !ok {
		return false
	}
	switch cond.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	}
	return false
}
