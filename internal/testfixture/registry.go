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
	"time"

	"github.com/tomoncle/sift/schema"
)

const (
	EntityRegion   = "region"
	EntityCustomer = "customer"
	EntityOrder    = "order"
	EntityLineItem = "lineItem"
	EntityProduct  = "product"
	EntityPart     = "part"
)

// Registry declares the shop graph: region <- customer <- order -> line
// items -> product, plus the self-referencing part tree.
func Registry() *schema.Registry {
	r := schema.NewRegistry()
	r.Entity(EntityRegion, "regions", "r").
		Model((*Region)(nil)).
		Attributes("name", "code")
	r.Entity(EntityCustomer, "customers", "c").
		Model((*Customer)(nil)).
		Attributes("name", "email").
		BelongsTo("region", EntityRegion, "region_id", "Region").
		HasMany("orders", EntityOrder, "customer_id", "Orders")
	r.Entity(EntityOrder, "orders", "o").
		Model((*Order)(nil)).
		Attributes("number", "status", "total").
		Attribute("placedAt", "placed_at").
		BelongsTo("customer", EntityCustomer, "customer_id", "Customer").
		HasMany("lineItems", EntityLineItem, "order_id", "LineItems")
	r.Entity(EntityLineItem, "line_items", "li").
		Model((*LineItem)(nil)).
		Attributes("quantity").
		BelongsTo("order", EntityOrder, "order_id", "").
		BelongsTo("product", EntityProduct, "product_id", "Product")
	r.Entity(EntityProduct, "products", "p").
		Model((*Product)(nil)).
		Attributes("name", "sku", "price")
	r.Entity(EntityPart, "parts", "pt").
		Model((*Part)(nil)).
		Attributes("name").
		BelongsTo("parent", EntityPart, "parent_id", "Parent").
		HasMany("children", EntityPart, "parent_id", "Children")
	if err := r.Validate(); err != nil {
		panic(err)
	}
	return r
}

// Paths of the order entity.
const (
	OrderID           schema.Path = "id"
	OrderNumber       schema.Path = "number"
	OrderStatusPath   schema.Path = "status"
	OrderTotal        schema.Path = "total"
	OrderPlacedAt     schema.Path = "placedAt"
	OrderCustomerName schema.Path = "customer.name"
	OrderRegionName   schema.Path = "customer.region.name"
	OrderProductName  schema.Path = "lineItems.product.name"
	OrderQuantity     schema.Path = "lineItems.quantity"
)

// Paths of the product entity.
const (
	ProductID   schema.Path = "id"
	ProductName schema.Path = "name"
	ProductSKU  schema.Path = "sku"
)

// Paths of the part entity.
const (
	PartName            schema.Path = "name"
	PartParentName      schema.Path = "parent.name"
	PartGrandparentName schema.Path = "parent.parent.name"
	PartChildName       schema.Path = "children.name"
)

type ProductCriteria struct {
	IDFrom *int64  `filter:"id,min"`
	IDTo   *int64  `filter:"id,max"`
	Name   *string `filter:"name,contains"`
	SKU    *string `filter:"sku"`
}

type OrderCriteria struct {
	IDFrom       *int64        `filter:"id,min"`
	IDTo         *int64        `filter:"id,max"`
	Number       *string       `filter:"number"`
	Status       *OrderStatus  `filter:"status"`
	Statuses     []OrderStatus `filter:"status,in"`
	PlacedFrom   *time.Time    `filter:"placedAt,min"`
	PlacedTo     *time.Time    `filter:"placedAt,max"`
	PlacedBefore *time.Time    `filter:"placedAt,before"`
	CustomerName *string       `filter:"customer.name,contains"`
	RegionName   *string       `filter:"customer.region.name"`
	ProductName  *string       `filter:"lineItems.product.name,contains"`
	MinQuantity  *int          `filter:"lineItems.quantity,gte"`
}

type PartCriteria struct {
	Name            *string `filter:"name,contains"`
	ParentName      *string `filter:"parent.name"`
	GrandparentName *string `filter:"parent.parent.name"`
	ChildName       *string `filter:"children.name,contains"`
}
