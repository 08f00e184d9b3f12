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

package schema

import "strings"

// Path is a dotted traversal from a root entity through zero or more
// relations to a terminal attribute, e.g. "customer.region.name".
type Path string

// Steps splits the path into its components. Empty components are kept so
// that a malformed path fails resolution instead of being silently fixed.
func (p Path) Steps() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), ".")
}

// Prefix returns the relation part of the path ("customer.region" for
// "customer.region.name"), or "" for a root attribute.
func (p Path) Prefix() Path {
	i := strings.LastIndexByte(string(p), '.')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Attribute returns the terminal step.
func (p Path) Attribute() string {
	i := strings.LastIndexByte(string(p), '.')
	return string(p[i+1:])
}

// Join appends steps to the path.
func (p Path) Join(steps ...string) Path {
	parts := make([]string, 0, len(steps)+1)
	if p != "" {
		parts = append(parts, string(p))
	}
	parts = append(parts, steps...)
	return Path(strings.Join(parts, "."))
}

func (p Path) String() string { return string(p) }
