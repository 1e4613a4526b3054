// Package schema declares the per-category column rules ESG tables are
// validated against. Schemas are static configuration: built in per data
// category or loaded from YAML files, never discovered at runtime.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/greenops/esg-reporting/pkg/table"
)

// Rule constrains one column of a data category.
type Rule struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	NonNull  bool     `yaml:"non_null"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
	Enum     []string `yaml:"enum"`
}

// ColumnType resolves the rule's declared type.
func (r Rule) ColumnType() (table.Type, error) {
	return table.ParseType(r.Type)
}

// Schema is the fixed rule set for one data category.
type Schema struct {
	Category string `yaml:"category"`
	Columns  []Rule `yaml:"columns"`
}

// Rule returns the rule for a named column, if declared.
func (s *Schema) Rule(name string) (Rule, bool) {
	for _, r := range s.Columns {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

// Validate checks the schema definition itself.
func (s *Schema) Validate() error {
	if strings.TrimSpace(s.Category) == "" {
		return fmt.Errorf("schema category is required")
	}
	seen := map[string]bool{}
	for i, r := range s.Columns {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("category %s: column %d: name is required", s.Category, i)
		}
		if seen[r.Name] {
			return fmt.Errorf("category %s: duplicate column rule %q", s.Category, r.Name)
		}
		seen[r.Name] = true
		if _, err := r.ColumnType(); err != nil {
			return fmt.Errorf("category %s: column %q: %w", s.Category, r.Name, err)
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return fmt.Errorf("category %s: column %q: min %g exceeds max %g", s.Category, r.Name, *r.Min, *r.Max)
		}
	}
	return nil
}

// Parse decodes a single schema definition from YAML.
func Parse(b []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse schema yaml: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads one schema definition from a YAML file.
func LoadFile(path string) (*Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(b)
}

func ptr(f float64) *float64 { return &f }

// Builtin returns the built-in schema for a data category. The category set
// mirrors the Sustainability Manager export types.
func Builtin(category string) (*Schema, bool) {
	switch strings.TrimSpace(strings.ToLower(category)) {
	case "emissions":
		return &Schema{
			Category: "emissions",
			Columns: []Rule{
				{Name: "activity", Type: "string", Required: true, NonNull: true},
				{Name: "date", Type: "date"},
				{Name: "scope1", Type: "number", Min: ptr(0)},
				{Name: "scope2", Type: "number", Min: ptr(0)},
				{Name: "scope3", Type: "number", Min: ptr(0)},
				{Name: "unit", Type: "string", Enum: []string{"kgCO2e", "tCO2e"}},
			},
		}, true
	case "activities":
		return &Schema{
			Category: "activities",
			Columns: []Rule{
				{Name: "activity_type", Type: "string", Required: true, NonNull: true},
				{Name: "date", Type: "date"},
				{Name: "quantity", Type: "number", Min: ptr(0)},
				{Name: "unit", Type: "string"},
			},
		}, true
	case "suppliers":
		return &Schema{
			Category: "suppliers",
			Columns: []Rule{
				{Name: "supplier_name", Type: "string", Required: true, NonNull: true},
				{Name: "country", Type: "string"},
				{Name: "spend", Type: "number", Min: ptr(0)},
			},
		}, true
	case "general", "":
		return &Schema{Category: "general"}, true
	default:
		return nil, false
	}
}

// Resolve returns a schema for a category, preferring a YAML definition in
// dir (when non-empty) named <category>.yaml over the built-ins.
func Resolve(dir, category string) (*Schema, error) {
	category = strings.TrimSpace(strings.ToLower(category))
	if dir != "" {
		path := filepath.Join(dir, category+".yaml")
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	s, ok := Builtin(category)
	if !ok {
		return nil, fmt.Errorf("unknown data category %q", category)
	}
	return s, nil
}
