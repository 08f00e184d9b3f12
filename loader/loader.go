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

// Package loader batches concurrent tracking reads that share a fetch plan
// into single TrackMany calls.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader"
	"github.com/pkg/errors"

	"github.com/tomoncle/sift/repository"
	"github.com/tomoncle/sift/types"
)

type idKey[K comparable] struct{ id K }

func (k idKey[K]) String() string   { return fmt.Sprint(k.id) }
func (k idKey[K]) Raw() interface{} { return k.id }

// TrackLoader collects Track calls issued within a short window and loads
// them with one two-phase read. A TrackLoader caches results, so create one
// per request.
type TrackLoader[T any, K comparable] struct {
	repo   repository.TrackingRepository[T, K]
	plan   types.FetchPlan
	loader *dataloader.Loader
}

// NewTrackLoader returns a loader hydrating plan for every id. wait is the
// batching window; zero uses 5ms.
func NewTrackLoader[T any, K comparable](repo repository.TrackingRepository[T, K], plan types.FetchPlan, wait time.Duration) *TrackLoader[T, K] {
	if wait <= 0 {
		wait = 5 * time.Millisecond
	}
	l := &TrackLoader[T, K]{repo: repo, plan: plan}
	l.loader = dataloader.NewBatchedLoader(l.batch, dataloader.WithWait(wait))
	return l
}

func (l *TrackLoader[T, K]) batch(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
	ids := make([]K, len(keys))
	for i, k := range keys {
		ids[i] = k.Raw().(K)
	}

	results := make([]*dataloader.Result, len(keys))
	rows, notice, err := l.repo.TrackMany(ctx, ids, l.plan)
	if err != nil {
		for i := range results {
			results[i] = &dataloader.Result{Error: err}
		}
		return results
	}

	vanished := make(map[K]bool)
	if notice != nil {
		for _, id := range notice.Missing {
			if k, ok := id.(K); ok {
				vanished[k] = true
			}
		}
	}
	for i, id := range ids {
		switch {
		case rows[i] != nil:
			results[i] = &dataloader.Result{Data: &types.Tracked[T]{Entity: rows[i]}}
		case vanished[id]:
			results[i] = &dataloader.Result{Data: &types.Tracked[T]{Notice: notice}}
		default:
			results[i] = &dataloader.Result{Error: errors.Wrapf(repository.ErrNotFound, "id %v", id)}
		}
	}
	return results
}

// Load behaves like Track for one id.
func (l *TrackLoader[T, K]) Load(ctx context.Context, id K) (*types.Tracked[T], error) {
	data, err := l.loader.Load(ctx, idKey[K]{id: id})()
	if err != nil {
		return nil, err
	}
	return data.(*types.Tracked[T]), nil
}

// LoadMany tracks ids in one batch. When any load fails the returned
// errors are aligned with ids.
func (l *TrackLoader[T, K]) LoadMany(ctx context.Context, ids []K) ([]*types.Tracked[T], []error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = idKey[K]{id: id}
	}
	data, errs := l.loader.LoadMany(ctx, keys)()
	out := make([]*types.Tracked[T], len(ids))
	for i, d := range data {
		if d != nil {
			out[i] = d.(*types.Tracked[T])
		}
	}
	return out, errs
}

// Clear drops a cached result, e.g. after the row changed.
func (l *TrackLoader[T, K]) Clear(ctx context.Context, id K) {
	l.loader.Clear(ctx, idKey[K]{id: id})
}
