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

package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"testing/quick"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/tomoncle/sift/config"
	"github.com/tomoncle/sift/database"
	"github.com/tomoncle/sift/filter"
	"github.com/tomoncle/sift/internal/testfixture"
	"github.com/tomoncle/sift/metrics"
	"github.com/tomoncle/sift/schema"
	"github.com/tomoncle/sift/types"
)

// tagHook records the query tag of every statement; transaction control
// statements are recorded by their SQL.
type tagHook struct {
	mu   sync.Mutex
	tags []string
}

func (h *tagHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	tag := database.QueryTag(ctx)
	switch event.Query {
	case "BEGIN", "COMMIT", "ROLLBACK":
		tag = event.Query
	}
	h.mu.Lock()
	h.tags = append(h.tags, tag)
	h.mu.Unlock()
	return ctx
}

func (h *tagHook) AfterQuery(context.Context, *bun.QueryEvent) {}

func (h *tagHook) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.tags...)
}

func shop(t *testing.T) *bun.DB {
	t.Helper()
	db := testfixture.Open(t)
	testfixture.SeedShop(t, db)
	return db
}

func orders(t *testing.T, db *bun.DB, opts ...Option) *repositoryImpl[testfixture.Order, int64] {
	t.Helper()
	r, err := newRepository[testfixture.Order, int64](db, testfixture.Registry(), testfixture.EntityOrder, opts...)
	require.NoError(t, err)
	return r
}

func products(t *testing.T, db *bun.DB, opts ...Option) *repositoryImpl[testfixture.Product, int64] {
	t.Helper()
	r, err := newRepository[testfixture.Product, int64](db, testfixture.Registry(), testfixture.EntityProduct, opts...)
	require.NoError(t, err)
	return r
}

func afterPhaseOne(fn func(ctx context.Context, tx bun.Tx) error) Option {
	return func(o *options) { o.afterPhaseOne = fn }
}

func orderIDs(items []*testfixture.Order) []int64 {
	out := make([]int64, len(items))
	for i, o := range items {
		out[i] = o.ID
	}
	return out
}

func page(size int, orders ...string) *types.PageRequest {
	return types.NewPageRequest(1, size, orders)
}

func TestNewRepository(t *testing.T) {
	db := testfixture.Open(t)
	registry := testfixture.Registry()

	repo, err := New[testfixture.Order, int64](db, registry, testfixture.EntityOrder)
	require.NoError(t, err)
	assert.Equal(t, "orders", repo.Entity().Table)
	assert.Same(t, db, repo.DB())

	_, err = New[testfixture.Order, int64](db, registry, "invoice")
	assert.Error(t, err)

	_, err = New[testfixture.Order, bool](db, registry, testfixture.EntityOrder)
	assert.Error(t, err)
}

func TestSearchWidgetScenario(t *testing.T) {
	db := shop(t)
	repo := products(t, db)

	criteria := &testfixture.ProductCriteria{
		IDFrom: filter.Ptr(int64(10)),
		IDTo:   filter.Ptr(int64(20)),
		Name:   filter.Ptr("wid"),
	}
	result, err := repo.Search(context.Background(), criteria, page(10))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, int64(15), result.Items[0].ID)
	assert.Equal(t, "Widget-A", result.Items[0].Name)
	assert.Equal(t, 1, result.Total)
	assert.Nil(t, result.Notice)
}

func TestSearchIdentityLaw(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)
	ctx := context.Background()

	all, err := repo.Search(ctx, nil, page(10))
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)
	assert.Equal(t, []int64{7, 8, 9, 10}, orderIDs(all.Items))

	for _, criteria := range []interface{}{&testfixture.OrderCriteria{}, filter.Identity, filter.And(filter.Identity, filter.Identity)} {
		got, err := repo.Search(ctx, criteria, page(10))
		require.NoError(t, err)
		assert.Equal(t, all.Total, got.Total)
		assert.Equal(t, orderIDs(all.Items), orderIDs(got.Items))
	}
}

func TestSearchToManyKeepsRootCardinality(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)

	// order 7 has two widget line items and must still count once
	criteria := &testfixture.OrderCriteria{ProductName: filter.Ptr("WIDGET")}
	result, err := repo.Search(context.Background(), criteria, page(10))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, []int64{7, 8, 9}, orderIDs(result.Items))

	b, err := repo.prepare(criteria, nil)
	require.NoError(t, err)
	assert.Len(t, b.resolver.Nodes(), 2)
}

func TestSearchConditionsShareOneChildPerScope(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)
	ctx := context.Background()

	gadget, err := repo.Search(ctx, &testfixture.OrderCriteria{ProductName: filter.Ptr("gadget")}, page(10))
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9}, orderIDs(gadget.Items))

	bulk, err := repo.Search(ctx, &testfixture.OrderCriteria{MinQuantity: filter.Ptr(5)}, page(10))
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 9}, orderIDs(bulk.Items))

	both, err := repo.Search(ctx, &testfixture.OrderCriteria{ProductName: filter.Ptr("gadget"), MinQuantity: filter.Ptr(5)}, page(10))
	require.NoError(t, err)
	assert.Equal(t, 0, both.Total)
	assert.Empty(t, both.Items)
}

func TestSearchNestedToOnePaths(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)
	ctx := context.Background()

	north, err := repo.Search(ctx, &testfixture.OrderCriteria{RegionName: filter.Ptr("North")}, page(10))
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8, 10}, orderIDs(north.Items))

	mixed, err := repo.Search(ctx, &testfixture.OrderCriteria{
		RegionName:   filter.Ptr("North"),
		CustomerName: filter.Ptr("carol"),
	}, page(10))
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, orderIDs(mixed.Items))
}

func TestSearchTimeRanges(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)
	ctx := context.Background()

	inclusive, err := repo.Search(ctx, &testfixture.OrderCriteria{
		PlacedFrom: filter.Ptr(testfixture.Day(2024, time.April, 1)),
		PlacedTo:   filter.Ptr(testfixture.Day(2024, time.May, 20)),
	}, page(10))
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 9}, orderIDs(inclusive.Items))

	before, err := repo.Search(ctx, &testfixture.OrderCriteria{
		PlacedBefore: filter.Ptr(testfixture.Day(2024, time.April, 1)),
	}, page(10))
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, orderIDs(before.Items))

	from, err := repo.Search(ctx, &testfixture.OrderCriteria{
		PlacedFrom: filter.Ptr(testfixture.Day(2024, time.May, 20)),
	}, page(10))
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 10}, orderIDs(from.Items))
}

func TestSearchEnumValues(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)
	ctx := context.Background()

	pending, err := repo.Search(ctx, &testfixture.OrderCriteria{Status: filter.Ptr(testfixture.StatusPending)}, page(10))
	require.NoError(t, err)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, int64(8), pending.Items[0].ID)
	assert.Equal(t, testfixture.StatusPending, pending.Items[0].Status)

	moving, err := repo.Search(ctx, &testfixture.OrderCriteria{
		Statuses: []testfixture.OrderStatus{testfixture.StatusPaid, testfixture.StatusShipped},
	}, page(10))
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9}, orderIDs(moving.Items))
}

func TestSearchContainsEscapesWildcards(t *testing.T) {
	db := shop(t)
	repo := products(t, db)

	result, err := repo.Search(context.Background(), &testfixture.ProductCriteria{Name: filter.Ptr("0% C")}, page(10))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, int64(40), result.Items[0].ID)

	none, err := repo.Search(context.Background(), &testfixture.ProductCriteria{Name: filter.Ptr("widget_")}, page(10))
	require.NoError(t, err)
	assert.Equal(t, 0, none.Total)
}

func TestSearchContainsMatchesInMemoryProperty(t *testing.T) {
	db := shop(t)
	repo := products(t, db)
	ctx := context.Background()

	if database.LowerFunc(dialect.SQLite) == "LOWER" {
		t.Skip("sqlite driver without a registered unicode lower function")
	}
	_, err := db.NewInsert().Model(&[]*testfixture.Product{
		{ID: 60, Name: "Ärger Éclair", SKU: "U-60"},
		{ID: 61, Name: "ölkanne ÜBER", SKU: "U-61"},
	}).Exec(ctx)
	require.NoError(t, err)

	var all []*testfixture.Product
	require.NoError(t, db.NewSelect().Model(&all).Order("id").Scan(ctx))

	result, err := repo.Search(ctx, &testfixture.ProductCriteria{Name: filter.Ptr("ärger")}, page(50))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, int64(60), result.Items[0].ID)

	property := func(pick, from, length uint8, upper bool) bool {
		name := []rune(all[int(pick)%len(all)].Name)
		i := int(from) % len(name)
		j := i + int(length)%(len(name)-i+1)
		needle := string(name[i:j])
		if upper {
			needle = strings.ToUpper(needle)
		}
		criteria := &testfixture.ProductCriteria{Name: &needle}
		composite, err := filter.FromCriteria(criteria)
		if err != nil {
			return false
		}
		var want []int64
		for _, p := range all {
			if filter.Match(composite, filter.Values{testfixture.ProductName: p.Name}) {
				want = append(want, p.ID)
			}
		}
		result, err := repo.Search(ctx, criteria, page(50))
		if err != nil {
			return false
		}
		got := make([]int64, 0, len(result.Items))
		for _, p := range result.Items {
			got = append(got, p.ID)
		}
		if want == nil {
			want = []int64{}
		}
		return assert.ObjectsAreEqual(want, got)
	}
	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 40}))
}

func TestSearchSortsWithPrimaryKeyTiebreak(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)
	ctx := context.Background()

	result, err := repo.Search(ctx, nil, page(10, "customer.name DESC"))
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 9, 7, 8}, orderIDs(result.Items))

	second, err := repo.Search(ctx, nil, types.NewPageRequest(2, 2, []string{"customer.name DESC"}))
	require.NoError(t, err)
	assert.Equal(t, 4, second.Total)
	assert.Equal(t, []int64{7, 8}, orderIDs(second.Items))

	byID, err := repo.Search(ctx, nil, page(10, "id DESC"))
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 9, 8, 7}, orderIDs(byID.Items))
}

func TestSearchRejectsBadPathsBeforeQuerying(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)
	hook := &tagHook{}
	db.AddQueryHook(hook)
	ctx := context.Background()

	_, err := repo.Search(ctx, nil, page(10, "lineItems.quantity"))
	var unsortable *schema.UnsortablePathError
	require.ErrorAs(t, err, &unsortable)
	assert.Equal(t, "lineItems", unsortable.Relation)

	_, err = repo.Search(ctx, filter.Equals[string]("customer.nickname", filter.Ptr("al")), page(10))
	var unknown *schema.UnknownPathError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nickname", unknown.Step)

	type badCriteria struct {
		Coupon *string `filter:"coupon.code"`
	}
	// the field is absent, the declared path is still checked
	_, err = repo.Search(ctx, &badCriteria{}, page(10))
	require.ErrorAs(t, err, &unknown)

	_, err = repo.Search(ctx, nil, page(10).WithFetchPlan(types.NewFetchPlan("shipments")))
	require.ErrorAs(t, err, &unknown)

	_, err = repo.Exists(ctx, filter.Equals[string]("customer.region", filter.Ptr("North")))
	require.ErrorAs(t, err, &unknown)

	assert.Empty(t, hook.recorded())
}

func TestPlainSearchReadsCountAndPageInOneTransaction(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)
	hook := &tagHook{}
	db.AddQueryHook(hook)

	result, err := repo.Search(context.Background(), nil, page(2))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Total)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, []string{"BEGIN", "search:count", "search:page", "COMMIT"}, hook.recorded())
}

func TestSearchRejectsMalformedCondition(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)
	hook := &tagHook{}
	db.AddQueryHook(hook)

	_, err := repo.Search(context.Background(), filter.Condition{Path: "id", Op: filter.OpBetween, Values: []interface{}{7}}, nil)
	var condErr *filter.ConditionError
	require.ErrorAs(t, err, &condErr)
	assert.Equal(t, 1, condErr.Values)

	_, err = repo.Exists(context.Background(), filter.Condition{Path: "id", Op: filter.OpEq})
	assert.ErrorAs(t, err, &condErr)
	assert.Empty(t, hook.recorded())
}

func TestSearchRangeIncludesBothBounds(t *testing.T) {
	db := testfixture.Open(t)
	repo := products(t, db)
	ctx := context.Background()

	const big = int64(1 << 53)
	var rows []*testfixture.Product
	for _, id := range []int64{9, 10, 20, 21, big, big + 1} {
		rows = append(rows, &testfixture.Product{ID: id, Name: fmt.Sprintf("P-%d", id)})
	}
	_, err := db.NewInsert().Model(&rows).Exec(ctx)
	require.NoError(t, err)

	ids := func(criteria *testfixture.ProductCriteria) []int64 {
		result, err := repo.Search(ctx, criteria, page(10))
		require.NoError(t, err)
		out := make([]int64, 0, len(result.Items))
		for _, p := range result.Items {
			out = append(out, p.ID)
		}
		return out
	}
	assert.Equal(t, []int64{10, 20}, ids(&testfixture.ProductCriteria{IDFrom: filter.Ptr[int64](10), IDTo: filter.Ptr[int64](20)}))
	assert.Equal(t, []int64{big + 1}, ids(&testfixture.ProductCriteria{IDFrom: filter.Ptr(big + 1), IDTo: filter.Ptr(big + 1)}))

	_, err = repo.Search(ctx, &testfixture.ProductCriteria{IDFrom: filter.Ptr(big + 1), IDTo: filter.Ptr(big)}, nil)
	var rangeErr *filter.InvalidRangeError
	assert.ErrorAs(t, err, &rangeErr)
}

func TestSearchRangePolicy(t *testing.T) {
	db := shop(t)
	inverted := &testfixture.ProductCriteria{IDFrom: filter.Ptr(int64(20)), IDTo: filter.Ptr(int64(10))}
	ctx := context.Background()

	_, err := products(t, db).Search(ctx, inverted, page(10))
	var invalid *filter.InvalidRangeError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, schema.Path("id"), invalid.Path)

	empty, err := products(t, db, WithRangePolicy(filter.RangeEmpty)).Search(ctx, inverted, page(10))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.Empty(t, empty.Items)

	degenerate, err := products(t, db).Search(ctx, &testfixture.ProductCriteria{IDFrom: filter.Ptr(int64(15)), IDTo: filter.Ptr(int64(15))}, page(10))
	require.NoError(t, err)
	assert.Equal(t, 1, degenerate.Total)
}

func TestSearchPageSizeIsCapped(t *testing.T) {
	db := shop(t)
	repo := orders(t, db, WithPageSizes(2, 3))

	defaults, err := repo.Search(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, defaults.PageSize)
	assert.Len(t, defaults.Items, 2)

	unset, err := repo.Search(context.Background(), nil, types.NewPageRequest(2, 0, nil))
	require.NoError(t, err)
	assert.Equal(t, 2, unset.PageSize)
	assert.Equal(t, []int64{9, 10}, orderIDs(unset.Items))

	capped, err := repo.Search(context.Background(), nil, page(100))
	require.NoError(t, err)
	assert.Equal(t, 3, capped.PageSize)
	assert.Len(t, capped.Items, 3)
	assert.Equal(t, 4, capped.Total)
}

func TestTrackOrderWithLineItems(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)

	tracked, err := repo.Track(context.Background(), 7, types.NewFetchPlan("lineItems"))
	require.NoError(t, err)
	require.NotNil(t, tracked.Entity)
	assert.Nil(t, tracked.Notice)
	assert.Equal(t, int64(7), tracked.Entity.ID)
	assert.Len(t, tracked.Entity.LineItems, 3)

	deep, err := repo.Track(context.Background(), 7, types.NewFetchPlan("customer.region", "lineItems.product"))
	require.NoError(t, err)
	require.NotNil(t, deep.Entity.Customer)
	require.NotNil(t, deep.Entity.Customer.Region)
	assert.Equal(t, "North", deep.Entity.Customer.Region.Name)
	names := make([]string, 0, 3)
	for _, li := range deep.Entity.LineItems {
		require.NotNil(t, li.Product)
		names = append(names, li.Product.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"Gadget", "Widget-A", "Widget-B"}, names)
}

func TestTrackNotFound(t *testing.T) {
	db := shop(t)
	_, err := orders(t, db).Track(context.Background(), 999, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTrackManyAlignsWithInput(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)

	rows, notice, err := repo.TrackMany(context.Background(), []int64{9, 999, 7}, types.NewFetchPlan("lineItems"))
	require.NoError(t, err)
	assert.Nil(t, notice)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(9), rows[0].ID)
	assert.Nil(t, rows[1])
	assert.Equal(t, int64(7), rows[2].ID)
	assert.Len(t, rows[0].LineItems, 2)

	empty, _, err := repo.TrackMany(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSearchHydratesEveryChildOfEachRoot(t *testing.T) {
	db := testfixture.Open(t)
	testfixture.SeedOrders(t, db, 100, 0, 1, 1000)
	repo := orders(t, db)
	ctx := context.Background()
	criteria := &testfixture.OrderCriteria{IDFrom: filter.Ptr(int64(100))}
	plan := types.NewFetchPlan("lineItems")

	first, err := repo.Search(ctx, criteria, types.NewDefaultPageRequest(1, 2).WithFetchPlan(plan))
	require.NoError(t, err)
	assert.Equal(t, 3, first.Total)
	require.Equal(t, []int64{100, 101}, orderIDs(first.Items))
	assert.Len(t, first.Items[0].LineItems, 0)
	assert.Len(t, first.Items[1].LineItems, 1)

	second, err := repo.Search(ctx, criteria, types.NewDefaultPageRequest(2, 2).WithFetchPlan(plan))
	require.NoError(t, err)
	assert.Equal(t, 3, second.Total)
	require.Equal(t, []int64{102}, orderIDs(second.Items))
	assert.Len(t, second.Items[0].LineItems, 1000)

	plain, err := repo.Search(ctx, criteria, types.NewDefaultPageRequest(2, 2))
	require.NoError(t, err)
	assert.Equal(t, second.Total, plain.Total)
	assert.Equal(t, orderIDs(second.Items), orderIDs(plain.Items))
	assert.Nil(t, plain.Items[0].LineItems)
}

func TestPartialHydrationIsReportedNotFailed(t *testing.T) {
	db := shop(t)
	registry := prometheus.NewRegistry()
	repo := orders(t, db,
		WithMetrics(metrics.NewCollector(&config.MetricsConfig{Enabled: true}, registry)),
		afterPhaseOne(func(ctx context.Context, tx bun.Tx) error {
			_, err := tx.NewDelete().TableExpr("orders").Where("id = ?", 8).Exec(ctx)
			return err
		}),
	)

	result, err := repo.Search(context.Background(), nil, page(10).WithFetchPlan(types.NewFetchPlan("lineItems")))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, []int64{7, 9, 10}, orderIDs(result.Items))
	require.NotNil(t, result.Notice)
	assert.Equal(t, testfixture.EntityOrder, result.Notice.Entity)
	assert.Equal(t, 4, result.Notice.Requested)
	assert.Equal(t, 3, result.Notice.Hydrated)
	assert.Equal(t, []interface{}{int64(8)}, result.Notice.Missing)

	repo.opts.afterPhaseOne = func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().TableExpr("orders").Where("id = ?", 9).Exec(ctx)
		return err
	}
	tracked, err := repo.Track(context.Background(), 9, types.NewFetchPlan("lineItems"))
	require.NoError(t, err)
	assert.Nil(t, tracked.Entity)
	require.NotNil(t, tracked.Notice)
	assert.Equal(t, []interface{}{int64(9)}, tracked.Notice.Missing)

	count, err := testutil.GatherAndCount(registry, "sift_query_partial_hydrations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeadlineBetweenPhasesSkipsHydration(t *testing.T) {
	db := shop(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := orders(t, db, afterPhaseOne(func(context.Context, bun.Tx) error {
		cancel()
		return nil
	}))
	hook := &tagHook{}
	db.AddQueryHook(hook)
	_, err := repo.Search(ctx, nil, page(10).WithFetchPlan(types.NewFetchPlan("lineItems")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	tags := hook.recorded()
	assert.Contains(t, tags, "search:ids")
	assert.NotContains(t, tags, "hydrate")
}

func TestWithTimeout(t *testing.T) {
	db := testfixture.Open(t)
	repo := orders(t, db, WithTimeout(time.Minute))

	ctx, cancel := repo.withTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	parent, parentCancel := context.WithTimeout(context.Background(), time.Second)
	defer parentCancel()
	want, _ := parent.Deadline()
	ctx, cancel = repo.withTimeout(parent)
	defer cancel()
	got, _ := ctx.Deadline()
	assert.Equal(t, want, got)

	unbounded := orders(t, db, WithTimeout(0))
	ctx, cancel = unbounded.withTimeout(context.Background())
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}

func TestExists(t *testing.T) {
	db := shop(t)
	repo := orders(t, db)
	ctx := context.Background()

	found, err := repo.Exists(ctx, &testfixture.OrderCriteria{ProductName: filter.Ptr("gadget")})
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Exists(ctx, &testfixture.OrderCriteria{CustomerName: filter.Ptr("zed")})
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.Exists(ctx, nil)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSelfReferencingPaths(t *testing.T) {
	db := testfixture.Open(t)
	testfixture.SeedParts(t, db)
	repo, err := newRepository[testfixture.Part, int64](db, testfixture.Registry(), testfixture.EntityPart)
	require.NoError(t, err)
	ctx := context.Background()

	names := func(items []*testfixture.Part) []string {
		out := make([]string, len(items))
		for i, p := range items {
			out[i] = p.Name
		}
		return out
	}

	children, err := repo.Search(ctx, &testfixture.PartCriteria{ParentName: filter.Ptr("Engine")}, page(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Piston", "Valve"}, names(children.Items))

	grandchildren, err := repo.Search(ctx, &testfixture.PartCriteria{GrandparentName: filter.Ptr("Engine")}, page(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Ring"}, names(grandchildren.Items))

	parents, err := repo.Search(ctx, &testfixture.PartCriteria{ChildName: filter.Ptr("RING")}, page(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Piston"}, names(parents.Items))

	tracked, err := repo.Track(ctx, 1, types.NewFetchPlan("children.children"))
	require.NoError(t, err)
	require.Len(t, tracked.Entity.Children, 2)
}
