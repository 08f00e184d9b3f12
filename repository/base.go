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
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/tomoncle/sift/database"
	"github.com/tomoncle/sift/filter"
	"github.com/tomoncle/sift/metrics"
	"github.com/tomoncle/sift/schema"
	"github.com/tomoncle/sift/types"
	"github.com/tomoncle/sift/utils"
)

type repositoryImpl[T any, K comparable] struct {
	db       *bun.DB
	registry *schema.Registry
	entity   *schema.Entity
	opts     *options
	logger   database.Logger
	metrics  *metrics.Collector

	pkIndex []int
	keyType reflect.Type
	checked sync.Map // criteria reflect.Type -> error
}

// New returns a read-only repository for the registry entity named entity,
// whose rows are mapped onto the bun model T with primary key type K.
func New[T any, K comparable](db *bun.DB, registry *schema.Registry, entity string, opts ...Option) (Repository[T, K], error) {
	return newRepository[T, K](db, registry, entity, opts...)
}

func newRepository[T any, K comparable](db *bun.DB, registry *schema.Registry, entity string, opts ...Option) (*repositoryImpl[T, K], error) {
	e, ok := registry.Lookup(entity)
	if !ok {
		return nil, fmt.Errorf("entity %q is not declared", entity)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = database.GetLogger()
	}

	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity %q: model %s is not a struct", entity, typ)
	}
	table := db.Table(typ)
	if len(table.PKs) != 1 {
		return nil, fmt.Errorf("entity %q: model %s must have exactly one primary key, has %d", entity, typ, len(table.PKs))
	}
	pk := table.PKs[0]
	if pk.Name != e.PK {
		return nil, fmt.Errorf("entity %q: primary key %q does not match model column %q", entity, e.PK, pk.Name)
	}
	keyType := reflect.TypeOf((*K)(nil)).Elem()
	if fieldType := typ.FieldByIndex(pk.Index).Type; !fieldType.ConvertibleTo(keyType) {
		return nil, fmt.Errorf("entity %q: primary key of type %s cannot be used as %s", entity, fieldType, keyType)
	}

	return &repositoryImpl[T, K]{
		db:       db,
		registry: registry,
		entity:   e,
		opts:     o,
		logger:   logger,
		metrics:  o.metrics,
		pkIndex:  pk.Index,
		keyType:  keyType,
	}, nil
}

func (r *repositoryImpl[T, K]) Entity() *schema.Entity { return r.entity }

func (r *repositoryImpl[T, K]) DB() *bun.DB { return r.db }

func (r *repositoryImpl[T, K]) NewSelect() *bun.SelectQuery {
	return r.db.NewSelect().Model((*T)(nil))
}

func (r *repositoryImpl[T, K]) idOf(row *T) K {
	return reflect.ValueOf(row).Elem().FieldByIndex(r.pkIndex).Convert(r.keyType).Interface().(K)
}

func (r *repositoryImpl[T, K]) pk(b *build) bun.Ident {
	return bun.Ident(b.root().Qualify(r.entity.PK))
}

// checkCriteria resolves every tagged path of a criteria type once, so a
// criteria struct naming an undeclared path fails even when that field is
// absent from the value at hand.
func (r *repositoryImpl[T, K]) checkCriteria(criteria interface{}) error {
	if criteria == nil {
		return nil
	}
	if _, ok := criteria.(filter.Clause); ok {
		return nil
	}
	typ := reflect.TypeOf(criteria)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if cached, ok := r.checked.Load(typ); ok {
		if cached == nil {
			return nil
		}
		return cached.(error)
	}
	t, err := filter.Describe(typ)
	if err == nil {
		err = t.Check(r.registry, r.entity.Name)
	}
	r.checked.Store(typ, err)
	return err
}

// prepare turns criteria and sort keys into a build. Every path is
// resolved here, so no query is issued for a build that cannot render.
func (r *repositoryImpl[T, K]) prepare(criteria interface{}, orders []types.Order) (*build, error) {
	if err := r.checkCriteria(criteria); err != nil {
		return nil, err
	}
	composite, err := filter.FromCriteria(criteria)
	if err != nil {
		return nil, err
	}
	if composite, err = composite.Validate(r.opts.rangePolicy); err != nil {
		return nil, err
	}
	res, err := r.registry.NewResolver(r.entity.Name)
	if err != nil {
		return nil, err
	}
	b := &build{
		id:        uuid.NewString(),
		resolver:  res,
		composite: composite,
		lower:     database.LowerFunc(r.db.Dialect().Name()),
	}

	var result *multierror.Error
	for _, cond := range composite.Conditions() {
		h, err := res.Resolve(cond.Path)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		b.conditions = append(b.conditions, resolvedCondition{cond: cond, handle: h})
	}
	for _, o := range orders {
		h, err := res.ResolveSort(schema.Path(o.Path))
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		b.orders = append(b.orders, resolvedOrder{handle: h, desc: o.Desc})
	}
	if err := flatten(result); err != nil {
		return nil, err
	}
	r.metrics.ObserveJoinNodes(r.entity.Name, len(res.Nodes()))
	return b, nil
}

// Search returns one page of root entities matching criteria. Without a
// fetch plan the page is read in a single query; with one, the page of
// ids is read first and hydrated in a second query.
func (r *repositoryImpl[T, K]) Search(ctx context.Context, criteria interface{}, page *types.PageRequest) (result *types.Pagination[T], err error) {
	start := time.Now()
	defer func() { r.metrics.ObserveOperation(r.entity.Name, "search", time.Since(start), err) }()

	if page == nil {
		page = types.NewDefaultPageRequest(1, r.opts.defaultPageSize)
	} else {
		page = page.WithFetchPlan(page.GetFetchPlan())
	}
	page.DefaultPageSize(r.opts.defaultPageSize)
	page.LimitPageSize(r.opts.maxPageSize)
	orders, err := page.ParsedOrders()
	if err != nil {
		return nil, err
	}
	rels, err := relations(r.registry, r.entity.Name, page.GetFetchPlan())
	if err != nil {
		return nil, err
	}
	b, err := r.prepare(criteria, orders)
	if err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	r.logger.Debug("search", "build", b.id, "entity", r.entity.Name, "filter", b.composite.String(),
		"page", page.GetPage(), "size", page.GetPageSize(), "plan", page.GetFetchPlan().String())

	result = types.NewDefaultPagination[T](page.GetPage(), page.GetPageSize())
	if len(rels) == 0 {
		err = r.searchPlain(ctx, b, page, result)
	} else {
		err = r.searchEager(ctx, b, page, rels, result)
	}
	if err != nil {
		return nil, err
	}
	r.metrics.ObserveRows(r.entity.Name, "search", len(result.Items))
	r.logger.Debug("search done", "build", b.id, "total", result.Total, "rows", len(result.Items), "elapsed", utils.Since(start))
	return result, nil
}

// searchPlain reads the count and the page in one read-only transaction
// so the total describes the same snapshot as the items.
func (r *repositoryImpl[T, K]) searchPlain(ctx context.Context, b *build, page *types.PageRequest, result *types.Pagination[T]) error {
	return r.db.RunInTx(ctx, r.txOptions(), func(ctx context.Context, tx bun.Tx) error {
		total, err := b.filtered(tx, b.from(tx)).Count(database.WithQueryTag(ctx, "search:count"))
		if err != nil {
			return r.storageErr(err, "count %s", r.entity.Name)
		}
		result.Total = total
		if total == 0 {
			return nil
		}
		root := b.root()
		var items []*T
		q := tx.NewSelect().
			Model(&items).
			ModelTableExpr("? AS ?", bun.Ident(root.Entity.Table), bun.Ident(root.Alias)).
			ColumnExpr("?.*", bun.Ident(root.Alias))
		q = b.paged(b.filtered(tx, q), page)
		if err := q.Scan(database.WithQueryTag(ctx, "search:page")); err != nil {
			return r.storageErr(err, "page %s", r.entity.Name)
		}
		result.Items = items
		return nil
	})
}

func (r *repositoryImpl[T, K]) searchEager(ctx context.Context, b *build, page *types.PageRequest, rels []string, result *types.Pagination[T]) error {
	ids, rows, missing, err := r.twoPhase(ctx, func(ctx context.Context, tx bun.Tx) ([]K, error) {
		total, err := b.filtered(tx, b.from(tx)).Count(database.WithQueryTag(ctx, "search:count"))
		if err != nil {
			return nil, r.storageErr(err, "count %s", r.entity.Name)
		}
		result.Total = total
		if total == 0 {
			return nil, nil
		}
		var ids []K
		q := b.paged(b.filtered(tx, b.from(tx).ColumnExpr("?", r.pk(b))), page)
		if err := q.Scan(database.WithQueryTag(ctx, "search:ids"), &ids); err != nil {
			return nil, r.storageErr(err, "page ids of %s", r.entity.Name)
		}
		return ids, nil
	}, rels)
	if err != nil {
		return err
	}
	if rows != nil {
		result.Items = rows
	}
	result.Notice = r.notice(len(ids), missing)
	return nil
}

// Exists reports whether any root row matches criteria.
func (r *repositoryImpl[T, K]) Exists(ctx context.Context, criteria interface{}) (exists bool, err error) {
	start := time.Now()
	defer func() { r.metrics.ObserveOperation(r.entity.Name, "exists", time.Since(start), err) }()

	b, err := r.prepare(criteria, nil)
	if err != nil {
		return false, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	r.logger.Debug("exists", "build", b.id, "entity", r.entity.Name, "filter", b.composite.String())
	q := b.filtered(r.db, b.from(r.db).ColumnExpr("1")).Limit(1)
	exists, err = q.Exists(database.WithQueryTag(ctx, "exists"))
	if err != nil {
		return false, r.storageErr(err, "exists %s", r.entity.Name)
	}
	return exists, nil
}

// Track loads one entity and the relations named by plan.
func (r *repositoryImpl[T, K]) Track(ctx context.Context, id K, plan types.FetchPlan) (*types.Tracked[T], error) {
	found, rows, notice, err := r.track(ctx, "track", []K{id}, plan)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%s %v", r.entity.Name, id)
	}
	return &types.Tracked[T]{Entity: rows[0], Notice: notice}, nil
}

func (r *repositoryImpl[T, K]) TrackMany(ctx context.Context, ids []K, plan types.FetchPlan) ([]*T, *types.PartialHydrationNotice, error) {
	if len(ids) == 0 {
		return []*T{}, nil, nil
	}
	_, rows, notice, err := r.track(ctx, "track_many", ids, plan)
	if err != nil {
		return nil, nil, err
	}
	return rows, notice, nil
}

// track returns the ids phase one found and, aligned with ids, the
// hydrated rows.
func (r *repositoryImpl[T, K]) track(ctx context.Context, op string, ids []K, plan types.FetchPlan) (found []K, aligned []*T, notice *types.PartialHydrationNotice, err error) {
	start := time.Now()
	defer func() { r.metrics.ObserveOperation(r.entity.Name, op, time.Since(start), err) }()

	rels, err := relations(r.registry, r.entity.Name, plan)
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := r.prepare(nil, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	r.logger.Debug(op, "build", b.id, "entity", r.entity.Name, "ids", len(ids), "plan", plan.String())
	found, rows, missing, err := r.twoPhase(ctx, func(ctx context.Context, tx bun.Tx) ([]K, error) {
		var found []K
		q := b.from(tx).ColumnExpr("?", r.pk(b)).Where("? IN (?)", r.pk(b), bun.In(ids))
		if err := q.Scan(database.WithQueryTag(ctx, op+":ids"), &found); err != nil {
			return nil, r.storageErr(err, "find ids of %s", r.entity.Name)
		}
		return found, nil
	}, rels)
	if err != nil {
		return nil, nil, nil, err
	}

	byID := make(map[K]*T, len(rows))
	for _, row := range rows {
		byID[r.idOf(row)] = row
	}
	aligned = make([]*T, len(ids))
	for i, id := range ids {
		aligned[i] = byID[id]
	}
	r.metrics.ObserveRows(r.entity.Name, op, len(rows))
	r.logger.Debug(op+" done", "build", b.id, "found", len(found), "hydrated", len(rows), "elapsed", utils.Since(start))
	return found, aligned, r.notice(len(found), missing), nil
}
