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
	"strings"
)

// Order is one sort key: a dotted path and a direction.
type Order struct {
	Path string
	Desc bool
}

func (o Order) String() string {
	if o.Desc {
		return o.Path + " DESC"
	}
	return o.Path + " ASC"
}

// ParseOrder parses "customer.name DESC"; the direction defaults to ASC.
func ParseOrder(s string) (Order, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return Order{Path: fields[0]}, nil
	case 2:
		switch strings.ToUpper(fields[1]) {
		case "ASC":
			return Order{Path: fields[0]}, nil
		case "DESC":
			return Order{Path: fields[0], Desc: true}, nil
		}
	}
	return Order{}, fmt.Errorf("invalid sort order %q", s)
}

// PageRequest describes pagination, ordering and an optional fetch plan.
type PageRequest struct {
	page      int
	pageSize  int
	orders    []string // "id ASC", "customer.name DESC"
	fetchPlan FetchPlan
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = 10
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

func (p *PageRequest) GetOrders() []string {
	return p.orders
}

func (p *PageRequest) GetFetchPlan() FetchPlan {
	return p.fetchPlan
}

// ParsedOrders parses every order string.
func (p *PageRequest) ParsedOrders() ([]Order, error) {
	out := make([]Order, 0, len(p.orders))
	for _, s := range p.orders {
		o, err := ParseOrder(s)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// WithFetchPlan returns a copy of the request that eagerly loads plan.
func (p *PageRequest) WithFetchPlan(plan FetchPlan) *PageRequest {
	cp := *p
	cp.fetchPlan = plan
	return &cp
}

// DefaultPageSize sets the page size to size when the request left it
// unset.
func (p *PageRequest) DefaultPageSize(size int) {
	if p.pageSize < 1 && size > 0 {
		p.pageSize = size
	}
}

// LimitPageSize caps the page size at max when max is positive.
func (p *PageRequest) LimitPageSize(max int) {
	if max > 0 && p.GetPageSize() > max {
		p.pageSize = max
	}
}

// NewPageRequest constructs a PageRequest with order settings.
func NewPageRequest(page int, pageSize int, orders []string) *PageRequest {
	return &PageRequest{page: page, pageSize: pageSize, orders: orders}
}

// NewDefaultPageRequest constructs a PageRequest with no ordering.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, make([]string, 0))
}

// Pagination holds paged result items along with pagination metadata. Total
// and PageSize always describe the filtered root rows, never hydrated ones.
type Pagination[T any] struct {
	Page     int
	PageSize int
	Total    int
	Items    []*T
	Notice   *PartialHydrationNotice
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{Page: page, PageSize: pageSize, Items: make([]*T, 0)}
}
