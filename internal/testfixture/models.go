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
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/tomoncle/sift/database"
	"github.com/tomoncle/sift/types"
)

type OrderStatus int

const (
	StatusPending OrderStatus = iota + 1
	StatusPaid
	StatusShipped
	StatusCancelled
)

var orderStatuses = []OrderStatus{StatusPending, StatusPaid, StatusShipped, StatusCancelled}

var orderStatusNames = map[OrderStatus][2]string{
	StatusPending:   {"pending", "awaiting payment"},
	StatusPaid:      {"paid", "payment received"},
	StatusShipped:   {"shipped", "handed to carrier"},
	StatusCancelled: {"cancelled", "cancelled by customer"},
}

var _ types.BaseEnum = StatusPending

func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusNames[s]
	return ok
}

func (s OrderStatus) Number() int {
	if !s.IsValid() {
		return types.IllegalValue
	}
	return int(s)
}

func (s OrderStatus) Name() string {
	if !s.IsValid() {
		return types.IllegalName
	}
	return orderStatusNames[s][0]
}

func (s OrderStatus) Desc() string {
	if !s.IsValid() {
		return types.IllegalDesc
	}
	return orderStatusNames[s][1]
}

func (s OrderStatus) String() string { return s.Name() }

// Value stores the status by name.
func (s OrderStatus) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid order status %d", int(s))
	}
	return s.Name(), nil
}

func (s *OrderStatus) Scan(src interface{}) error {
	var name string
	switch v := src.(type) {
	case string:
		name = v
	case []byte:
		name = string(v)
	case nil:
		*s = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into OrderStatus", src)
	}
	status, ok := types.EnumByName(orderStatuses, name)
	if !ok {
		return fmt.Errorf("unknown order status %q", name)
	}
	*s = status
	return nil
}

type Region struct {
	bun.BaseModel `bun:"table:regions,alias:r"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
	Code string `bun:"code"`
}

type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID       int64    `bun:"id,pk,autoincrement"`
	Name     string   `bun:"name,notnull"`
	Email    string   `bun:"email"`
	RegionID int64    `bun:"region_id"`
	Region   *Region  `bun:"rel:belongs-to,join:region_id=id"`
	Orders   []*Order `bun:"rel:has-many,join:id=customer_id"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID         int64       `bun:"id,pk,autoincrement"`
	Number     string      `bun:"number,notnull"`
	Status     OrderStatus `bun:"status,type:varchar(16)"`
	Total      float64     `bun:"total"`
	PlacedAt   time.Time   `bun:"placed_at,notnull"`
	CustomerID int64       `bun:"customer_id"`
	Customer   *Customer   `bun:"rel:belongs-to,join:customer_id=id"`
	LineItems  []*LineItem `bun:"rel:has-many,join:id=order_id"`
}

type LineItem struct {
	bun.BaseModel `bun:"table:line_items,alias:li"`

	ID        int64    `bun:"id,pk,autoincrement"`
	OrderID   int64    `bun:"order_id"`
	ProductID int64    `bun:"product_id"`
	Quantity  int      `bun:"quantity"`
	Product   *Product `bun:"rel:belongs-to,join:product_id=id"`
}

type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID    int64   `bun:"id,pk,autoincrement"`
	Name  string  `bun:"name,notnull"`
	SKU   string  `bun:"sku"`
	Price float64 `bun:"price"`
}

// Part references itself, so paths like "parent.parent.name" cycle
// through one entity.
type Part struct {
	bun.BaseModel `bun:"table:parts,alias:pt"`

	ID       int64   `bun:"id,pk,autoincrement"`
	Name     string  `bun:"name,notnull"`
	ParentID *int64  `bun:"parent_id"`
	Parent   *Part   `bun:"rel:belongs-to,join:parent_id=id"`
	Children []*Part `bun:"rel:has-many,join:id=parent_id"`
}

func init() {
	database.RegisteredModel(database.NewModelAdapter((*Region)(nil), 1))
	database.RegisteredModel(database.NewModelAdapter((*Customer)(nil), 2))
	database.RegisteredModel(database.NewModelAdapter((*Product)(nil), 3))
	database.RegisteredModel(database.NewModelAdapter((*Order)(nil), 4))
	database.RegisteredModel(database.NewModelAdapter((*LineItem)(nil), 5))
	database.RegisteredModel(database.NewModelAdapter((*Part)(nil), 6))
}
