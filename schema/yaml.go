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

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a registry.
type Document struct {
	Entities []EntityConfig `yaml:"entities"`
}

// EntityConfig declares one entity in YAML.
type EntityConfig struct {
	Name       string            `yaml:"name"`
	Table      string            `yaml:"table"`
	Alias      string            `yaml:"alias"`
	PK         string            `yaml:"pk"`
	Columns    []string          `yaml:"columns"`
	Attributes map[string]string `yaml:"attributes"`
	Relations  []RelationConfig  `yaml:"relations"`
}

// RelationConfig declares one relation in YAML. Kind is one of
// belongs_to, has_one or has_many.
type RelationConfig struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
	Kind   string `yaml:"kind"`
	Key    string `yaml:"key"`
	Field  string `yaml:"field"`
}

// Decode adds the entities of a YAML document to the registry.
func (r *Registry) Decode(data []byte) error {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse schema document: %w", err)
	}
	for _, ec := range doc.Entities {
		if ec.Name == "" {
			return fmt.Errorf("schema document: entity without name")
		}
		b := r.Entity(ec.Name, ec.Table, ec.Alias)
		if ec.PK != "" {
			b.PK(ec.PK)
		}
		b.Attributes(ec.Columns...)
		for name, column := range ec.Attributes {
			b.Attribute(name, column)
		}
		for _, rc := range ec.Relations {
			switch rc.Kind {
			case "belongs_to":
				b.BelongsTo(rc.Name, rc.Target, rc.Key, rc.Field)
			case "has_one":
				b.HasOne(rc.Name, rc.Target, rc.Key, rc.Field)
			case "has_many":
				b.HasMany(rc.Name, rc.Target, rc.Key, rc.Field)
			default:
				return fmt.Errorf("entity %q: relation %q has unknown kind %q", ec.Name, rc.Name, rc.Kind)
			}
		}
	}
	return r.Validate()
}

// LoadFile reads a YAML schema document from disk into the registry.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	return r.Decode(data)
}

// Export renders the registry as a YAML document.
func (r *Registry) Export() ([]byte, error) {
	var doc Document
	for _, name := range r.Names() {
		e, _ := r.Lookup(name)
		ec := EntityConfig{Name: e.Name, Table: e.Table, Alias: e.Alias, PK: e.PK, Attributes: map[string]string{}}
		for _, attr := range e.Attributes() {
			col, _ := e.Column(attr)
			ec.Attributes[attr] = col
		}
		for _, rel := range e.Relations() {
			rc := RelationConfig{Name: rel.Name, Target: rel.Target, Field: rel.Field}
			switch {
			case rel.Cardinality == ToMany:
				rc.Kind, rc.Key = "has_many", rel.TargetKey
			case rel.SourceKey == "":
				rc.Kind, rc.Key = "has_one", rel.TargetKey
			default:
				rc.Kind, rc.Key = "belongs_to", rel.SourceKey
			}
			ec.Relations = append(ec.Relations, rc)
		}
		doc.Entities = append(doc.Entities, ec)
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize schema document: %w", err)
	}
	return data, nil
}
