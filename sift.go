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

// Package sift composes optional filter criteria into bun queries over a
// declared entity graph and reads matching entities in pages or, with their
// relations, through two-phase tracking reads.
package sift

import (
	"context"
	"fmt"
	"sync"

	"github.com/uptrace/bun"

	"github.com/tomoncle/sift/config"
	"github.com/tomoncle/sift/database"
	"github.com/tomoncle/sift/loader"
	"github.com/tomoncle/sift/metrics"
	"github.com/tomoncle/sift/repository"
	"github.com/tomoncle/sift/schema"
	"github.com/tomoncle/sift/types"
	"github.com/tomoncle/sift/utils"
)

type Service[T any, K comparable] interface {
	// Search returns one page of entities matching criteria.
	Search(ctx context.Context, criteria interface{}, page *types.PageRequest) (*types.Pagination[T], error)

	// Exists reports whether any entity matches criteria.
	Exists(ctx context.Context, criteria interface{}) (bool, error)

	// Track loads one entity with the relations of plan.
	Track(ctx context.Context, id K, plan types.FetchPlan) (*types.Tracked[T], error)

	// TrackMany loads entities by id, aligned with ids.
	TrackMany(ctx context.Context, ids []K, plan types.FetchPlan) ([]*T, *types.PartialHydrationNotice, error)

	// Loader returns a request scoped batching loader for plan.
	Loader(plan types.FetchPlan) *loader.TrackLoader[T, K]

	// SelectBuilder returns a Bun select query builder for the entity.
	SelectBuilder() *bun.SelectQuery
}

// Runtime is what Setup derives from configuration: the entity registry
// and the repository options every service shares.
type Runtime struct {
	Registry *schema.Registry
	Metrics  *metrics.Collector
	Options  []repository.Option
}

// Setup configures logging, connects the global database and binds the
// registry to it. registry may be nil when cfg names a schema file.
func Setup(cfg *config.Config, registry *schema.Registry) (*Runtime, error) {
	utils.ConfigureConsoleLogFormat(cfg.Log.Format)
	utils.ConfigureLogLevel(cfg.Log.Level)
	database.InitLogger(database.NewLogger("SIFT"))

	if registry == nil {
		registry = schema.NewRegistry()
	}
	if cfg.Schema.File != "" {
		if err := registry.LoadFile(cfg.Schema.File); err != nil {
			return nil, err
		}
	}
	db, err := database.InitDB(cfg.DatabaseConfig())
	if err != nil {
		return nil, err
	}
	if err := registry.Bind(db); err != nil {
		return nil, fmt.Errorf("failed to bind entity registry: %w", err)
	}

	collector := metrics.NewCollector(&cfg.Metrics, nil)
	return &Runtime{
		Registry: registry,
		Metrics:  collector,
		Options: []repository.Option{
			repository.WithQueryConfig(cfg.Query),
			repository.WithMetrics(collector),
			repository.WithLogger(database.GetLogger()),
		},
	}, nil
}

// Health pings the global database.
func (rt *Runtime) Health(ctx context.Context) *database.HealthStatus {
	return database.GetHealthStatus(ctx)
}

// Stats returns pool statistics of the global database.
func (rt *Runtime) Stats() *database.DBStats {
	return database.GetDatabaseStats()
}

// Close closes the global database.
func (rt *Runtime) Close() error {
	return database.CloseDB()
}

type baseServiceImpl[T any, K comparable] struct {
	registry *schema.Registry
	entity   string
	opts     []repository.Option

	repo repository.Repository[T, K]
	err  error
	once sync.Once
}

// NewService returns a Service over the global database connection. The
// repository is created on first use.
func NewService[T any, K comparable](rt *Runtime, entity string, opts ...repository.Option) Service[T, K] {
	all := append(append([]repository.Option(nil), rt.Options...), opts...)
	return &baseServiceImpl[T, K]{registry: rt.Registry, entity: entity, opts: all}
}

func (s *baseServiceImpl[T, K]) baseRepo() (repository.Repository[T, K], error) {
	s.once.Do(func() {
		s.repo, s.err = repository.New[T, K](database.GetDB(), s.registry, s.entity, s.opts...)
	})
	return s.repo, s.err
}

func (s *baseServiceImpl[T, K]) Search(ctx context.Context, criteria interface{}, page *types.PageRequest) (*types.Pagination[T], error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.Search(ctx, criteria, page)
}

func (s *baseServiceImpl[T, K]) Exists(ctx context.Context, criteria interface{}) (bool, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return false, err
	}
	return repo.Exists(ctx, criteria)
}

func (s *baseServiceImpl[T, K]) Track(ctx context.Context, id K, plan types.FetchPlan) (*types.Tracked[T], error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.Track(ctx, id, plan)
}

func (s *baseServiceImpl[T, K]) TrackMany(ctx context.Context, ids []K, plan types.FetchPlan) ([]*T, *types.PartialHydrationNotice, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, nil, err
	}
	return repo.TrackMany(ctx, ids, plan)
}

func (s *baseServiceImpl[T, K]) Loader(plan types.FetchPlan) *loader.TrackLoader[T, K] {
	return loader.NewTrackLoader[T, K](s, plan, 0)
}

func (s *baseServiceImpl[T, K]) SelectBuilder() *bun.SelectQuery {
	return database.GetDB().NewSelect().Model((*T)(nil))
}
