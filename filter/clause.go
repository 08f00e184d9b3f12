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

// Op is the comparison a Condition applies to its path.
type Op int

const (
	OpEq Op = iota + 1
	OpNe
	OpLt
	OpLte
	OpGt
	OpGte
	OpBetween
	OpContainsFold
	OpIn
	// OpNone matches no row. It only appears when an inverted range is
	// kept under RangeEmpty.
	OpNone
)

var opNames = map[Op]string{
	OpEq:           "=",
	OpNe:           "<>",
	OpLt:           "<",
	OpLte:          "<=",
	OpGt:           ">",
	OpGte:          ">=",
	OpBetween:      "BETWEEN",
	OpContainsFold: "CONTAINS",
	OpIn:           "IN",
	OpNone:         "NONE",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Clause is a boolean test contributed to a composite filter. The set of
// implementations is closed: Identity, Condition and Composite.
type Clause interface {
	// IsIdentity reports whether the clause matches every row.
	IsIdentity() bool
	leaves() []Condition
}

type identity struct{}

func (identity) IsIdentity() bool    { return true }
func (identity) leaves() []Condition { return nil }
func (identity) String() string      { return "TRUE" }

// Identity is the clause of an absent criteria field.
var Identity Clause = identity{}

// Condition is a single test on one path.
type Condition struct {
	Path   schema.Path
	Op     Op
	Values []interface{}
}

func (c Condition) IsIdentity() bool { return false }

func (c Condition) leaves() []Condition { return []Condition{c} }

// arityError reports a condition whose value count does not fit its
// operator, as a hand-built Condition may have.
func (c Condition) arityError() error {
	n := len(c.Values)
	switch c.Op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpContainsFold:
		if n == 1 {
			return nil
		}
	case OpBetween:
		if n == 2 {
			return nil
		}
	case OpIn:
		if n > 0 {
			return nil
		}
	case OpNone:
		return nil
	}
	return &ConditionError{Path: c.Path, Op: c.Op, Values: n}
}

func (c Condition) String() string {
	if c.arityError() != nil {
		return fmt.Sprintf("%s %s %d values", c.Path, c.Op, len(c.Values))
	}
	switch c.Op {
	case OpBetween:
		return fmt.Sprintf("%s BETWEEN %s AND %s", c.Path, literal(c.Values[0]), literal(c.Values[1]))
	case OpIn:
		parts := make([]string, len(c.Values))
		for i, v := range c.Values {
			parts[i] = literal(v)
		}
		return fmt.Sprintf("%s IN (%s)", c.Path, strings.Join(parts, ", "))
	case OpNone:
		return fmt.Sprintf("%s NONE", c.Path)
	default:
		return fmt.Sprintf("%s %s %s", c.Path, c.Op, literal(c.Values[0]))
	}
}

func literal(v interface{}) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}
