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

package types

import (
	"fmt"
	"sort"
	"strings"
)

// FetchPlan is the set of relation paths to hydrate eagerly, e.g.
// "lineItems" or "lineItems.product".
type FetchPlan []string

// NewFetchPlan returns a sorted, duplicate-free plan.
func NewFetchPlan(paths ...string) FetchPlan {
	seen := make(map[string]struct{}, len(paths))
	out := make(FetchPlan, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (f FetchPlan) IsEmpty() bool { return len(f) == 0 }

func (f FetchPlan) String() string { return "{" + strings.Join(f, ", ") + "}" }

// PartialHydrationNotice reports root rows seen by phase one but gone by
// phase two of a tracking read. It is informational, never an error.
type PartialHydrationNotice struct {
	Entity    string
	Requested int
	Hydrated  int
	Missing   []interface{}
}

func (n *PartialHydrationNotice) String() string {
	return fmt.Sprintf("%s: hydrated %d of %d rows, missing %v", n.Entity, n.Hydrated, n.Requested, n.Missing)
}

// Tracked is the result of a single tracking read. Entity is nil when the
// row disappeared between the two phases; Notice then says so.
type Tracked[T any] struct {
	Entity *T
	Notice *PartialHydrationNotice
}
