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

	"github.com/uptrace/bun"

	"github.com/tomoncle/sift/schema"
	"github.com/tomoncle/sift/types"
)

// SearchRepository filters, sorts and pages root entities. criteria is
// either a struct with `filter` tags, a filter.Clause, or nil for no
// filtering.
type SearchRepository[T any] interface {
	Search(ctx context.Context, criteria interface{}, page *types.PageRequest) (*types.Pagination[T], error)

	Exists(ctx context.Context, criteria interface{}) (bool, error)
}

// TrackingRepository loads entities by primary key together with the
// relations named by a fetch plan.
type TrackingRepository[T any, K comparable] interface {
	// Track returns ErrNotFound when no row has the id.
	Track(ctx context.Context, id K, plan types.FetchPlan) (*types.Tracked[T], error)

	// TrackMany returns one entry per id, in the order given; ids without
	// a row yield nil entries.
	TrackMany(ctx context.Context, ids []K, plan types.FetchPlan) ([]*T, *types.PartialHydrationNotice, error)
}

// Repository combines searching and tracking reads and exposes the Bun
// handle for advanced use cases. All operations are read-only.
type Repository[T any, K comparable] interface {
	SearchRepository[T]
	TrackingRepository[T, K]
	Entity() *schema.Entity
	DB() *bun.DB
	NewSelect() *bun.SelectQuery
}
