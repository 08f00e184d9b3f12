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
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// dialectSpec tells how to reach one database type through database/sql.
type dialectSpec struct {
	driver  func(cfg *ConnectionConfig) string
	dsn     func(cfg *ConnectionConfig) string
	dialect func() schema.Dialect
	// singleConn keeps the pool at one connection, which an in-memory
	// sqlite database needs to survive.
	singleConn bool
}

var dialects = map[string]dialectSpec{
	"mysql": {
		driver:  func(*ConnectionConfig) string { return "mysql" },
		dsn:     mysqlDSN,
		dialect: func() schema.Dialect { return mysqldialect.New() },
	},
	"postgres": {
		driver:  postgresDriver,
		dsn:     postgresDSN,
		dialect: func() schema.Dialect { return pgdialect.New() },
	},
	"sqlite": {
		driver:     func(*ConnectionConfig) string { return sqliteshim.ShimName },
		dsn:        func(cfg *ConnectionConfig) string { return sqliteDSN(cfg.DBName) },
		dialect:    func() schema.Dialect { return sqlitedialect.New() },
		singleConn: true,
	},
}

var dialectAliases = map[string]string{
	"postgresql": "postgres",
	"sqlite3":    "sqlite",
}

// dialectOf looks up a database type, accepting aliases such as "postgresql".
func dialectOf(typ string) (dialectSpec, error) {
	name := strings.ToLower(typ)
	if alias, ok := dialectAliases[name]; ok {
		name = alias
	}
	spec, ok := dialects[name]
	if !ok {
		return dialectSpec{}, fmt.Errorf("unsupported database type: %s", typ)
	}
	return spec, nil
}

func mysqlDSN(cfg *ConnectionConfig) string {
	c := mysql.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = cfg.DBName
	c.ParseTime = true
	c.Loc = time.Local
	c.Timeout = cfg.ConnectTimeout
	c.ReadTimeout = cfg.ReadTimeout
	c.WriteTimeout = cfg.WriteTimeout
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

func postgresDriver(cfg *ConnectionConfig) string {
	if cfg.Driver == "pgx" {
		return "pgx"
	}
	return "postgres"
}

func postgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// sqliteDSN maps a database name to a DSN: ":memory:" and "file:" URIs are
// used as given, anything else names a file "<name>.db".
func sqliteDSN(name string) string {
	switch {
	case name == ":memory:":
		return "file::memory:?cache=shared"
	case strings.HasPrefix(name, "file:"):
		return name
	}
	return name + ".db"
}
