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
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/sift/schema"
)

func TestFactories_AbsentIsIdentity(t *testing.T) {
	var (
		nilInt  *int
		nilText *string
		blank   = "   "
	)
	for name, c := range map[string]Clause{
		"equals":   Equals[int]("id", nilInt),
		"notEq":    NotEquals[int]("id", nilInt),
		"range":    Range[int]("id", nil, nil),
		"before":   Before[int]("id", nilInt),
		"after":    After[int]("id", nilInt),
		"contains": ContainsIgnoreCase("name", nilText),
		"blank":    ContainsIgnoreCase("name", &blank),
		"in":       In[int]("id", nil),
		"dual":     DualTextMatch("name", "customer.name", nil, nil),
	} {
		assert.True(t, c.IsIdentity(), name)
	}
}

func TestRange_OpenBounds(t *testing.T) {
	lo, hi := 10, 20
	assert.Equal(t, "id >= 10", Compose(Range[int]("id", &lo, nil)).String())
	assert.Equal(t, "id <= 20", Compose(Range[int]("id", nil, &hi)).String())
	assert.Equal(t, "id BETWEEN 10 AND 20", Compose(Range("id", &lo, &hi)).String())
}

func TestDualTextMatch(t *testing.T) {
	a, b := "wid", "acme"
	assert.Equal(t, `name CONTAINS "wid"`, Compose(DualTextMatch("name", "customer.name", &a, nil)).String())
	assert.Equal(t, `customer.name CONTAINS "acme"`, Compose(DualTextMatch("name", "customer.name", nil, &b)).String())

	both := Compose(DualTextMatch("name", "customer.name", &a, &b))
	require.Len(t, both.Conditions(), 2)
	rec := Values{"name": "Widget", "customer.name": "ACME corp"}
	assert.True(t, Match(both, rec))
	rec["customer.name"] = "Globex"
	assert.False(t, Match(both, rec), "both sides must hold when both texts are given")
}

func TestCompose_Canonical(t *testing.T) {
	id, name := 7, "wid"
	a := Equals[int]("id", &id)
	b := ContainsIgnoreCase("name", &name)

	assert.Equal(t, Compose(a, b).String(), Compose(b, a).String())
	assert.Equal(t, Compose(a).String(), Compose(a, Identity, Identity).String())
	assert.Equal(t, "TRUE", Compose().String())
	assert.True(t, Compose(Identity, Compose()).IsIdentity())
	assert.Len(t, Compose(a, a).Conditions(), 1)
	assert.Equal(t, []schema.Path{"id", "name"}, Compose(b, a).Paths())
}

func TestValidate_RangePolicy(t *testing.T) {
	lo, hi := 20, 10
	c := Compose(Range("id", &lo, &hi))

	_, err := c.Validate(RangeReject)
	var rangeErr *InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, schema.Path("id"), rangeErr.Path)
	assert.Equal(t, 20, rangeErr.Min)

	empty, err := c.Validate(RangeEmpty)
	require.NoError(t, err)
	assert.Equal(t, "id NONE", empty.String())
	assert.False(t, Match(empty, Values{"id": 15}))

	ok := Compose(Range[int]("id", &hi, &lo))
	valid, err := ok.Validate(RangeReject)
	require.NoError(t, err)
	assert.Equal(t, ok.String(), valid.String())
}

func TestValidate_Times(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	_, err := Compose(Range("placedAt", &from, &to)).Validate(RangeReject)
	assert.Error(t, err)
	_, err = Compose(Range("placedAt", &to, &from)).Validate(RangeReject)
	assert.NoError(t, err)
}

func TestParseRangePolicy(t *testing.T) {
	p, err := ParseRangePolicy("EMPTY")
	require.NoError(t, err)
	assert.Equal(t, RangeEmpty, p)
	p, err = ParseRangePolicy("")
	require.NoError(t, err)
	assert.Equal(t, RangeReject, p)
	_, err = ParseRangePolicy("clamp")
	assert.Error(t, err)
}

func TestMatch(t *testing.T) {
	name := "WID"
	lo, hi := 5, 9
	rec := Values{"id": int64(7), "name": "Blue Widget", "status": "paid", "missing": nil}

	assert.True(t, Match(Identity, rec))
	assert.True(t, Match(ContainsIgnoreCase("name", &name), rec))
	assert.True(t, Match(ContainsIgnoreCase("name", Ptr("ärger")), Values{"name": "Ärger Éclair"}))
	assert.True(t, Match(Range("id", &lo, &hi), rec))
	assert.True(t, Match(In("status", []string{"new", "paid"}), rec))
	assert.False(t, Match(In("status", []string{"new"}), rec))
	assert.False(t, Match(Equals("missing", &name), rec))
	assert.False(t, Match(Equals("absent", &name), rec))
	assert.True(t, Match(After("id", &lo), rec))
	assert.False(t, Match(Before("id", &lo), rec))
}

func TestCompare_LargeIntegers(t *testing.T) {
	hi, lo := int64(1<<53+1), int64(1<<53)

	_, err := Compose(Range("id", &hi, &lo)).Validate(RangeReject)
	var rangeErr *InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)

	rec := Values{"id": hi}
	assert.False(t, Match(Equals("id", &lo), rec))
	assert.True(t, Match(Equals("id", &hi), rec))
	assert.False(t, Match(In("id", []int64{lo}), rec))
	assert.False(t, Match(Range("id", &lo, &lo), rec))
	assert.True(t, Match(Range("id", &lo, &hi), rec))

	for _, tc := range []struct {
		a, b interface{}
		want int
	}{
		{uint64(1 << 63), int64(-1), 1},
		{int64(-1), uint64(0), -1},
		{int32(7), uint8(7), 0},
		{uint64(1<<53 + 1), int64(1 << 53), 1},
		{int64(3), 3.5, -1},
	} {
		got, ok := compare(tc.a, tc.b)
		require.True(t, ok)
		assert.Equal(t, tc.want, got, "%T(%v) vs %T(%v)", tc.a, tc.a, tc.b, tc.b)
	}
}

func TestValidate_ConditionArity(t *testing.T) {
	for _, cond := range []Condition{
		{Path: "id", Op: OpBetween, Values: []interface{}{1}},
		{Path: "id", Op: OpEq},
		{Path: "id", Op: OpIn},
		{Path: "id", Op: Op(99), Values: []interface{}{1}},
	} {
		c := Compose(cond)
		assert.NotEmpty(t, c.String())
		assert.False(t, Match(c, Values{"id": 1}))

		_, err := c.Validate(RangeReject)
		var condErr *ConditionError
		require.ErrorAs(t, err, &condErr, cond.Op.String())
		assert.Equal(t, schema.Path("id"), condErr.Path)
	}

	_, err := Compose(Condition{Path: "id", Op: OpNone}).Validate(RangeReject)
	assert.NoError(t, err)
}

func TestNormalize(t *testing.T) {
	n := 3
	p := &n
	assert.Equal(t, 3, Normalize(&p))
	assert.Nil(t, Normalize((*int)(nil)))
}

// randomClause derives a clause over the int path "n" from a seed; a
// quarter of the clauses are the identity.
func randomClause(r *rand.Rand) Clause {
	a, b := r.Intn(20), r.Intn(20)
	switch r.Intn(6) {
	case 0:
		return Identity
	case 1:
		return Equals("n", &a)
	case 2:
		return Before("n", &a)
	case 3:
		return After("n", &a)
	case 4:
		if a > b {
			a, b = b, a
		}
		return Range("n", &a, &b)
	default:
		return In("n", []int{a, b})
	}
}

func TestCompose_Properties(t *testing.T) {
	cfg := &quick.Config{MaxCount: 500}

	conjunction := func(seed int64, n int8) bool {
		r := rand.New(rand.NewSource(seed))
		a, b := randomClause(r), randomClause(r)
		rec := Values{"n": int(n) % 20}
		return Match(Compose(a, b), rec) == (Match(a, rec) && Match(b, rec))
	}
	require.NoError(t, quick.Check(conjunction, cfg))

	identity := func(seed int64, n int8) bool {
		r := rand.New(rand.NewSource(seed))
		a := randomClause(r)
		rec := Values{"n": int(n) % 20}
		return Match(Compose(a, Identity), rec) == Match(a, rec) &&
			Compose(a, Identity).String() == Compose(a).String()
	}
	require.NoError(t, quick.Check(identity, cfg))

	algebra := func(seed int64) bool {
		r := rand.New(rand.NewSource(seed))
		a, b, c := randomClause(r), randomClause(r), randomClause(r)
		assoc := Compose(Compose(a, b), c).String() == Compose(a, Compose(b, c)).String()
		comm := Compose(a, b).String() == Compose(b, a).String()
		return assoc && comm
	}
	require.NoError(t, quick.Check(algebra, cfg))
}

type orderCriteria struct {
	Text       *string    `filter:"customer.name,contains"`
	Status     []string   `filter:"status,in"`
	PlacedFrom *time.Time `filter:"placedAt,min"`
	PlacedTo   *time.Time `filter:"placedAt,max"`
	MinID      *int64     `filter:"id,after"`
	Ignored    *string
	Skipped    *string `filter:"-"`
}

func TestFromCriteria(t *testing.T) {
	c, err := FromCriteria(orderCriteria{})
	require.NoError(t, err)
	assert.True(t, c.IsIdentity())

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	c, err = FromCriteria(&orderCriteria{
		Text:       Ptr("acme"),
		Status:     []string{"paid"},
		PlacedFrom: &from,
		PlacedTo:   &to,
		Ignored:    Ptr("x"),
	})
	require.NoError(t, err)
	assert.Len(t, c.Conditions(), 3)
	assert.Contains(t, c.String(), "placedAt BETWEEN")
	assert.Contains(t, c.String(), `customer.name CONTAINS "acme"`)

	c, err = FromCriteria(&orderCriteria{PlacedTo: &to})
	require.NoError(t, err)
	require.Len(t, c.Conditions(), 1)
	assert.Equal(t, OpLte, c.Conditions()[0].Op)
}

func TestDescribe_Cached(t *testing.T) {
	a, err := Describe(reflect.TypeOf(orderCriteria{}))
	require.NoError(t, err)
	b, err := Describe(reflect.TypeOf(&orderCriteria{}))
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Len(t, a.Descriptors, 5)
}

func TestDescribe_BadTags(t *testing.T) {
	type bad struct {
		A string   `filter:"name,contains"`
		B *int     `filter:"id,fuzzy"`
		C *int     `filter:"id,in"`
		D *int     `filter:",eq"`
		E []string `filter:"status,in"`
	}
	_, err := Describe(reflect.TypeOf(bad{}))
	require.Error(t, err)
	for _, field := range []string{"bad.A", "bad.B", "bad.C", "bad.D"} {
		assert.Contains(t, err.Error(), field)
	}
	assert.NotContains(t, err.Error(), "bad.E")
}

func TestDescribe_DuplicateBounds(t *testing.T) {
	type twoMins struct {
		From  *int64 `filter:"id,min"`
		From2 *int64 `filter:"id,gte"`
		To    *int64 `filter:"id,max"`
	}
	_, err := Describe(reflect.TypeOf(twoMins{}))
	var tagErr *TagError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, "From2", tagErr.Field)

	_, err = FromCriteria(&twoMins{From: Ptr[int64](15), From2: Ptr[int64](5)})
	assert.Error(t, err)

	type otherPaths struct {
		From     *int64 `filter:"id,min"`
		Quantity *int   `filter:"lineItems.quantity,min"`
	}
	c, err := FromCriteria(&otherPaths{From: Ptr[int64](15), Quantity: Ptr(2)})
	require.NoError(t, err)
	assert.Len(t, c.Conditions(), 2)
}

func TestTable_Check(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Entity("customer", "customers", "c").Attributes("name")
	reg.Entity("order", "orders", "o").Attributes("status").Attribute("placedAt", "placed_at").
		BelongsTo("customer", "customer", "customer_id", "Customer")
	require.NoError(t, reg.Validate())

	tbl, err := Describe(reflect.TypeOf(orderCriteria{}))
	require.NoError(t, err)
	assert.NoError(t, tbl.Check(reg, "order"))

	type wrong struct {
		X *string `filter:"customer.email,eq"`
	}
	tbl, err = Describe(reflect.TypeOf(wrong{}))
	require.NoError(t, err)
	err = tbl.Check(reg, "order")
	var unknown *schema.UnknownPathError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "email", unknown.Step)
}
