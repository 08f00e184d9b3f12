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

import "github.com/uptrace/bun/dialect"

// unicodeLower names a sqlite function lowering text with strings.ToLower;
// empty when the sqlite driver in use cannot register one.
var unicodeLower string

// LowerFunc names the SQL function that lowers a column the way
// strings.ToLower does. The built-in sqlite LOWER folds ASCII only, so
// sqlite gets the registered function when there is one.
func LowerFunc(name dialect.Name) string {
	if name == dialect.SQLite && unicodeLower != "" {
		return unicodeLower
	}
	return "LOWER"
}
