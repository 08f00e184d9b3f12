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
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/tomoncle/sift/database"
	"github.com/tomoncle/sift/schema"
	"github.com/tomoncle/sift/types"
)

// relations maps a fetch plan onto bun relation names, e.g.
// "lineItems.product" becomes "LineItems.Product". Plan paths are resolved
// on a resolver of their own so they never add joins to the filter build.
func relations(registry *schema.Registry, root string, plan types.FetchPlan) ([]string, error) {
	if plan.IsEmpty() {
		return nil, nil
	}
	res, err := registry.NewResolver(root)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(plan))
	for _, p := range plan {
		node, err := res.ResolveRelation(schema.Path(p))
		if err != nil {
			return nil, err
		}
		var fields []string
		for n := node; !n.IsRoot(); n = n.Parent {
			if n.Relation.Field == "" {
				return nil, &schema.UnknownPathError{
					Entity: root,
					Path:   schema.Path(p),
					Step:   n.Relation.Name,
					Reason: "relation " + n.Relation.Name + " declares no model field to load",
				}
			}
			fields = append([]string{n.Relation.Field}, fields...)
		}
		out = append(out, strings.Join(fields, "."))
	}
	return out, nil
}

// hydrate is phase two: load the rows of ids with every planned relation
// and return them in the order of ids. Rows that vanished since phase one
// are reported through the notice instead of failing the read.
func (r *repositoryImpl[T, K]) hydrate(ctx context.Context, idb bun.IDB, ids []K, rels []string) ([]*T, []K, error) {
	var rows []*T
	q := idb.NewSelect().Model(&rows).Where("?PKs IN (?)", bun.In(ids))
	for _, rel := range rels {
		q = q.Relation(rel)
	}
	if err := q.Scan(database.WithQueryTag(ctx, "hydrate")); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, r.storageErr(err, "hydrate %s", r.entity.Name)
	}
	byID := make(map[K]*T, len(rows))
	for _, row := range rows {
		byID[r.idOf(row)] = row
	}
	out := make([]*T, 0, len(ids))
	var missing []K
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, row)
	}
	return out, missing, nil
}

func (r *repositoryImpl[T, K]) notice(requested int, missing []K) *types.PartialHydrationNotice {
	if len(missing) == 0 {
		return nil
	}
	n := &types.PartialHydrationNotice{
		Entity:    r.entity.Name,
		Requested: requested,
		Hydrated:  requested - len(missing),
		Missing:   make([]interface{}, len(missing)),
	}
	for i, id := range missing {
		n.Missing[i] = id
	}
	r.metrics.PartialHydration(r.entity.Name)
	r.logger.Warn("partial hydration", "entity", n.Entity, "requested", n.Requested, "hydrated", n.Hydrated, "missing", n.Missing)
	return n
}

// twoPhase runs both phases inside one read transaction. When ctx ends
// after phase one, phase two is never issued.
func (r *repositoryImpl[T, K]) twoPhase(ctx context.Context, phase1 func(ctx context.Context, tx bun.Tx) ([]K, error), rels []string) ([]K, []*T, []K, error) {
	var (
		ids     []K
		rows    []*T
		missing []K
	)
	err := r.db.RunInTx(ctx, r.txOptions(), func(ctx context.Context, tx bun.Tx) error {
		var err error
		if ids, err = phase1(ctx, tx); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if r.opts.afterPhaseOne != nil {
			if err := r.opts.afterPhaseOne(ctx, tx); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "phase one completed but the deadline leaves no room for hydration")
		}
		rows, missing, err = r.hydrate(ctx, tx, ids, rels)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return ids, rows, missing, nil
}

// txOptions asks servers that support it for a repeatable read snapshot so
// both phases observe the same data. sqlite transactions are serializable.
func (r *repositoryImpl[T, K]) txOptions() *sql.TxOptions {
	switch r.db.Dialect().Name() {
	case dialect.PG, dialect.MySQL:
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

func (r *repositoryImpl[T, K]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || r.opts.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.timeout)
}

// storageErr wraps a failed round trip. Schema drift between the registry
// and the database is logged as an error, everything else as a warning.
func (r *repositoryImpl[T, K]) storageErr(err error, format string, args ...interface{}) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(err, format, args...)
	}
	if database.IsSchemaDrift(err) {
		r.logger.Error("registry does not match database schema", "entity", r.entity.Name, "error", err)
	} else {
		r.logger.Warn("query failed", "entity", r.entity.Name, "error", err)
	}
	return errors.Wrapf(err, format, args...)
}
