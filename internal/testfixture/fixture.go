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

package testfixture

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"syreclabs.com/go/faker"

	"github.com/tomoncle/sift/database"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Open returns a private in-memory sqlite database with every fixture
// table created. The database lives until the test ends.
func Open(t testing.TB) *bun.DB {
	t.Helper()
	cfg := database.DefaultConnectionConfig()
	cfg.DBName = fmt.Sprintf("file:%s?mode=memory&cache=shared", unsafeName.ReplaceAllString(t.Name(), "_"))
	cfg.HealthCheckInterval = 0
	cfg.EnableReconnect = false
	cfg.AutoCreate = true

	factory, db, err := database.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = factory.Close() })
	require.NoError(t, Registry().Bind(db))
	return db
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func insert(t testing.TB, db bun.IDB, models ...interface{}) {
	t.Helper()
	for _, m := range models {
		_, err := db.NewInsert().Model(m).Exec(context.Background())
		require.NoError(t, err)
	}
}

// SeedShop inserts a small shop:
//
//	products  12 Gadget, 15 Widget-A, 25 Widget-B, 40 "100% Cotton", 41 "1000 Cotton"
//	order 7   customer 1 (North), paid,      2024-03-10, items Gadget x1, Widget-A x2, Widget-B x3
//	order 8   customer 1 (North), pending,   2024-04-01, items Widget-A x5
//	order 9   customer 2 (South), shipped,   2024-05-20, items Gadget x1, Widget-B x10
//	order 10  customer 3 (North), cancelled, 2024-06-15, no items
func SeedShop(t testing.TB, db bun.IDB) {
	t.Helper()
	insert(t, db,
		&[]*Region{
			{ID: 1, Name: "North", Code: "N"},
			{ID: 2, Name: "South", Code: "S"},
		},
		&[]*Customer{
			{ID: 1, Name: "Alice Archer", Email: "alice@example.com", RegionID: 1},
			{ID: 2, Name: "Bob Brown", Email: "bob@example.com", RegionID: 2},
			{ID: 3, Name: "Carol Chen", Email: "carol@example.com", RegionID: 1},
		},
		&[]*Product{
			{ID: 12, Name: "Gadget", SKU: "G-12", Price: 9.5},
			{ID: 15, Name: "Widget-A", SKU: "W-15", Price: 4},
			{ID: 25, Name: "Widget-B", SKU: "W-25", Price: 6},
			{ID: 40, Name: "100% Cotton", SKU: "C-40", Price: 20},
			{ID: 41, Name: "1000 Cotton", SKU: "C-41", Price: 25},
		},
		&[]*Order{
			{ID: 7, Number: "SO-007", Status: StatusPaid, Total: 36.5, PlacedAt: Day(2024, time.March, 10), CustomerID: 1},
			{ID: 8, Number: "SO-008", Status: StatusPending, Total: 20, PlacedAt: Day(2024, time.April, 1), CustomerID: 1},
			{ID: 9, Number: "SO-009", Status: StatusShipped, Total: 69.5, PlacedAt: Day(2024, time.May, 20), CustomerID: 2},
			{ID: 10, Number: "SO-010", Status: StatusCancelled, Total: 0, PlacedAt: Day(2024, time.June, 15), CustomerID: 3},
		},
		&[]*LineItem{
			{ID: 1, OrderID: 7, ProductID: 12, Quantity: 1},
			{ID: 2, OrderID: 7, ProductID: 15, Quantity: 2},
			{ID: 3, OrderID: 7, ProductID: 25, Quantity: 3},
			{ID: 4, OrderID: 8, ProductID: 15, Quantity: 5},
			{ID: 5, OrderID: 9, ProductID: 12, Quantity: 1},
			{ID: 6, OrderID: 9, ProductID: 25, Quantity: 10},
		},
	)
}

// SeedParts inserts the tree Engine > (Piston > Ring, Valve).
func SeedParts(t testing.TB, db bun.IDB) {
	t.Helper()
	one, two := int64(1), int64(2)
	insert(t, db, &[]*Part{
		{ID: 1, Name: "Engine"},
		{ID: 2, Name: "Piston", ParentID: &one},
		{ID: 3, Name: "Ring", ParentID: &two},
		{ID: 4, Name: "Valve", ParentID: &one},
	})
}

// SeedOrders inserts one order per entry of children, the order with id
// firstID+i carrying children[i] generated line items. Customers and
// products are generated as needed.
func SeedOrders(t testing.TB, db bun.IDB, firstID int64, children ...int) {
	t.Helper()
	customer := &Customer{Name: faker.Name().Name(), Email: faker.Internet().Email()}
	product := &Product{Name: faker.Commerce().ProductName(), SKU: faker.Lorem().Word()}
	insert(t, db, customer, product)

	for i, n := range children {
		orderID := firstID + int64(i)
		insert(t, db, &Order{
			ID:         orderID,
			Number:     fmt.Sprintf("GEN-%05d", orderID),
			Status:     StatusPending,
			PlacedAt:   Day(2025, time.January, 1).Add(time.Duration(i) * time.Hour),
			CustomerID: customer.ID,
		})
		if n == 0 {
			continue
		}
		items := make([]*LineItem, n)
		for j := range items {
			items[j] = &LineItem{OrderID: orderID, ProductID: product.ID, Quantity: j%7 + 1}
		}
		insert(t, db, &items)
	}
}
