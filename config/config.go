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

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tomoncle/sift/database"
	"github.com/tomoncle/sift/filter"
)

// EnvPrefix prefixes every environment override, e.g. SIFT_QUERY_TIMEOUT.
const EnvPrefix = "SIFT"

// Config is the full process configuration.
type Config struct {
	Database database.ConnectionConfig `mapstructure:"database"`
	Query    QueryConfig               `mapstructure:"query"`
	Log      LogConfig                 `mapstructure:"log"`
	Metrics  MetricsConfig             `mapstructure:"metrics"`
	Schema   SchemaConfig              `mapstructure:"schema"`
}

// QueryConfig tunes the query executor.
type QueryConfig struct {
	DefaultPageSize int           `mapstructure:"default_page_size" validate:"gte=1"`
	MaxPageSize     int           `mapstructure:"max_page_size" validate:"gtefield=DefaultPageSize"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gte=0"`
	RangePolicy     string        `mapstructure:"range_policy" validate:"oneof=reject empty"`
}

// Policy returns the parsed range policy.
func (q QueryConfig) Policy() filter.RangePolicy {
	p, _ := filter.ParseRangePolicy(q.RangePolicy)
	return p
}

// LogConfig selects the log level and console format.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// MetricsConfig controls the prometheus collector.
type MetricsConfig struct {
	Enabled         bool      `mapstructure:"enabled"`
	Namespace       string    `mapstructure:"namespace"`
	Subsystem       string    `mapstructure:"subsystem"`
	DurationBuckets []float64 `mapstructure:"duration_buckets"`
}

// SchemaConfig points at an optional YAML entity registry.
type SchemaConfig struct {
	File string `mapstructure:"file"`
}

// DatabaseConfig adapts the connection settings to database.InitDB.
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{ConnectionConfig: c.Database}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: *database.DefaultConnectionConfig(),
		Query: QueryConfig{
			DefaultPageSize: 10,
			MaxPageSize:     500,
			Timeout:         30 * time.Second,
			RangePolicy:     "reject",
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "sift", Subsystem: "query"},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("database.type", d.Database.Type)
	v.SetDefault("database.dbname", d.Database.DBName)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", d.Database.ConnMaxIdleTime)
	v.SetDefault("database.connect_timeout", d.Database.ConnectTimeout)
	v.SetDefault("database.read_timeout", d.Database.ReadTimeout)
	v.SetDefault("database.write_timeout", d.Database.WriteTimeout)
	v.SetDefault("database.enable_reconnect", d.Database.EnableReconnect)
	v.SetDefault("database.reconnect_interval", d.Database.ReconnectInterval)
	v.SetDefault("database.max_reconnect_tries", d.Database.MaxReconnectTries)
	v.SetDefault("database.health_check_interval", d.Database.HealthCheckInterval)
	v.SetDefault("database.query_log_style", d.Database.QueryLogStyle)
	v.SetDefault("database.slow_query_time", d.Database.SlowQueryTime)
	v.SetDefault("query.default_page_size", d.Query.DefaultPageSize)
	v.SetDefault("query.max_page_size", d.Query.MaxPageSize)
	v.SetDefault("query.timeout", d.Query.Timeout)
	v.SetDefault("query.range_policy", d.Query.RangePolicy)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.subsystem", d.Metrics.Subsystem)
	v.SetDefault("schema.file", "")
}

// Load reads configuration from path (a YAML file; empty means defaults
// only), after loading a .env file from the working directory when
// present. SIFT_* environment variables override file values, e.g.
// SIFT_QUERY_RANGE_POLICY=empty. The result is validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// ValidationErrors lists every invalid field of a configuration.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return "invalid configuration: " + strings.Join(v, "; ")
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return out
}
