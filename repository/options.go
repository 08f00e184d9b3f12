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
	"time"

	"github.com/uptrace/bun"

	"github.com/tomoncle/sift/config"
	"github.com/tomoncle/sift/database"
	"github.com/tomoncle/sift/filter"
	"github.com/tomoncle/sift/metrics"
)

type options struct {
	logger          database.Logger
	metrics         *metrics.Collector
	rangePolicy     filter.RangePolicy
	timeout         time.Duration
	defaultPageSize int
	maxPageSize     int

	// afterPhaseOne runs inside the read transaction once phase one found
	// ids; only tests set it.
	afterPhaseOne func(ctx context.Context, tx bun.Tx) error
}

func defaultOptions() *options {
	return &options{
		rangePolicy:     filter.RangeReject,
		timeout:         30 * time.Second,
		defaultPageSize: 10,
		maxPageSize:     500,
	}
}

// Option configures a repository.
type Option func(*options)

func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithRangePolicy decides how ranges with min > max are treated.
func WithRangePolicy(p filter.RangePolicy) Option {
	return func(o *options) { o.rangePolicy = p }
}

// WithTimeout bounds operations whose context carries no deadline. Zero
// disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithPageSizes(defaultSize, maxSize int) Option {
	return func(o *options) {
		o.defaultPageSize = defaultSize
		o.maxPageSize = maxSize
	}
}

// WithQueryConfig applies every setting of a loaded query configuration.
func WithQueryConfig(cfg config.QueryConfig) Option {
	return func(o *options) {
		o.rangePolicy = cfg.Policy()
		o.timeout = cfg.Timeout
		o.defaultPageSize = cfg.DefaultPageSize
		o.maxPageSize = cfg.MaxPageSize
	}
}
