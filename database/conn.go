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

package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/uptrace/bun"
)

// global is the connection InitDB opens for the process.
var global struct {
	sync.RWMutex
	factory *BaseDatabaseFactory
}

// GetDB returns the global Bun database instance, or nil before InitDB.
func GetDB() *bun.DB {
	global.RLock()
	defer global.RUnlock()
	if global.factory == nil {
		return nil
	}
	return global.factory.GetDB()
}

// InitDB opens the global database, replacing a previous one.
func InitDB(cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	factory, db, err := Open(context.Background(), &cfg.ConnectionConfig)
	if err != nil {
		return nil, err
	}
	global.Lock()
	previous := global.factory
	global.factory = factory
	global.Unlock()
	if previous != nil {
		_ = previous.Close()
	}
	return db, nil
}

// Open connects a new, non-global database. Registered models are
// registered with bun and, when AutoCreate is set, their tables created.
func Open(ctx context.Context, cfg *ConnectionConfig) (*BaseDatabaseFactory, *bun.DB, error) {
	factory := NewDatabaseFactory()
	manager, err := factory.CreateFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := factory.InitializeDatabase(ctx, cfg.AutoCreate); err != nil {
		_ = factory.Close()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return factory, manager.GetDB(), nil
}

// CloseDB closes the global database connection.
func CloseDB() error {
	global.Lock()
	factory := global.factory
	global.factory = nil
	global.Unlock()
	if factory == nil {
		return nil
	}
	return factory.Close()
}

// GetHealthStatus pings the global database.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	global.RLock()
	factory := global.factory
	global.RUnlock()
	return factory.GetHealthStatus(ctx)
}

// GetDatabaseStats returns pool statistics of the global database.
func GetDatabaseStats() *DBStats {
	global.RLock()
	factory := global.factory
	global.RUnlock()
	return factory.GetStats()
}
