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
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/tomoncle/sift/schema"
)

// Composite is the conjunction of zero or more conditions in canonical
// order. The zero value is the identity and matches every row.
type Composite struct {
	conditions []Condition
}

// Compose conjoins clauses. Identity clauses are dropped, nested
// composites are flattened, duplicate conditions are collapsed and the
// result is sorted, so composition is associative and commutative and
// Compose() equals Identity.
func Compose(clauses ...Clause) Composite {
	seen := make(map[string]struct{})
	var out []Condition
	for _, c := range clauses {
		if c == nil {
			continue
		}
		for _, leaf := range c.leaves() {
			key := leaf.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, leaf)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return Composite{conditions: out}
}

func (c Composite) IsIdentity() bool { return len(c.conditions) == 0 }

func (c Composite) leaves() []Condition { return c.conditions }

// Conditions returns the conditions in canonical order.
func (c Composite) Conditions() []Condition {
	out := make([]Condition, len(c.conditions))
	copy(out, c.conditions)
	return out
}

// Paths returns the distinct paths the composite tests, in canonical order.
func (c Composite) Paths() []schema.Path {
	seen := make(map[schema.Path]struct{})
	var out []schema.Path
	for _, cond := range c.conditions {
		if _, ok := seen[cond.Path]; ok {
			continue
		}
		seen[cond.Path] = struct{}{}
		out = append(out, cond.Path)
	}
	return out
}

// String renders the canonical form; two composites with the same
// conditions render identically whatever order they were composed in.
func (c Composite) String() string {
	if len(c.conditions) == 0 {
		return "TRUE"
	}
	parts := make([]string, len(c.conditions))
	for i, cond := range c.conditions {
		parts[i] = cond.String()
	}
	return strings.Join(parts, " AND ")
}

// Validate checks value counts and range bounds under policy. A condition
// with the wrong number of values is a *ConditionError. With RangeReject
// every inverted range is reported as an *InvalidRangeError; with
// RangeEmpty inverted ranges are replaced by a condition matching nothing.
func (c Composite) Validate(policy RangePolicy) (Composite, error) {
	var result *multierror.Error
	out := make([]Condition, 0, len(c.conditions))
	for _, cond := range c.conditions {
		if err := cond.arityError(); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if cond.Op != OpBetween {
			out = append(out, cond)
			continue
		}
		cmp, ok := compare(cond.Values[0], cond.Values[1])
		if !ok {
			result = multierror.Append(result, &IncomparableError{Path: cond.Path, Left: cond.Values[0], Right: cond.Values[1]})
			continue
		}
		if cmp <= 0 {
			out = append(out, cond)
			continue
		}
		if policy == RangeEmpty {
			out = append(out, Condition{Path: cond.Path, Op: OpNone})
			continue
		}
		result = multierror.Append(result, &InvalidRangeError{Path: cond.Path, Min: cond.Values[0], Max: cond.Values[1]})
	}
	if err := result.ErrorOrNil(); err != nil {
		if len(result.Errors) == 1 {
			return Composite{}, result.Errors[0]
		}
		return Composite{}, err
	}
	return Compose(conditionsAsClauses(out)...), nil
}

func conditionsAsClauses(conds []Condition) []Clause {
	out := make([]Clause, len(conds))
	for i, c := range conds {
		out[i] = c
	}
	return out
}
