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

// RangePolicy decides what happens to a range whose lower bound exceeds
// its upper bound.
type RangePolicy int

const (
	// RangeReject fails the query with an *InvalidRangeError.
	RangeReject RangePolicy = iota
	// RangeEmpty keeps the query and turns the range into a clause that
	// matches nothing.
	RangeEmpty
)

func (p RangePolicy) String() string {
	if p == RangeEmpty {
		return "empty"
	}
	return "reject"
}

// ParseRangePolicy parses "reject" or "empty".
func ParseRangePolicy(s string) (RangePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return RangeReject, nil
	case "empty":
		return RangeEmpty, nil
	}
	return RangeReject, fmt.Errorf("unknown range policy %q", s)
}

// InvalidRangeError reports a range with min greater than max.
type InvalidRangeError struct {
	Path schema.Path
	Min  interface{}
	Max  interface{}
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range on %q: min %v is greater than max %v", e.Path, e.Min, e.Max)
}

// IncomparableError reports range bounds of types that cannot be ordered
// against each other.
type IncomparableError struct {
	Path  schema.Path
	Left  interface{}
	Right interface{}
}

func (e *IncomparableError) Error() string {
	return fmt.Sprintf("cannot compare %T and %T on %q", e.Left, e.Right, e.Path)
}

// ConditionError reports a condition built with the wrong number of
// values for its operator, or with an unknown operator.
type ConditionError struct {
	Path   schema.Path
	Op     Op
	Values int
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition on %q: operator %s cannot take %d values", e.Path, e.Op, e.Values)
}

// TagError reports a malformed filter struct tag.
type TagError struct {
	Type   string
	Field  string
	Reason string
}

func (e *TagError) Error() string {
	return fmt.Sprintf("criteria %s.%s: %s", e.Type, e.Field, e.Reason)
}
