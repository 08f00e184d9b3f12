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

import "fmt"

// UnknownPathError reports a path the registry does not declare.
type UnknownPathError struct {
	Entity string
	Path   Path
	// Step is the first component that failed to resolve.
	Step   string
	Reason string
}

func (e *UnknownPathError) Error() string {
	return fmt.Sprintf("unknown path %q on entity %q at %q: %s", e.Path, e.Entity, e.Step, e.Reason)
}

// UnsortablePathError reports a sort key that traverses a to-many relation.
type UnsortablePathError struct {
	Entity   string
	Path     Path
	Relation string
}

func (e *UnsortablePathError) Error() string {
	return fmt.Sprintf("cannot sort %q by %q: relation %q is to-many", e.Entity, e.Path, e.Relation)
}
