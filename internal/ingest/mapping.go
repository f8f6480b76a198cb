package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DefaultDelimiter separates multiple values inside a single cell.
const DefaultDelimiter = ","

// EntityMapping binds one node label to the source columns feeding it.
type EntityMapping struct {
	Label           string            `json:"label"`
	IDColumn        string            `json:"id_column"`
	PropertyColumns map[string]string `json:"property_columns,omitempty"` // property name -> column
	Delimiter       string            `json:"delimiter,omitempty"`        // non-empty: ID cells are multi-value
}

// RelationshipMapping binds one relationship type to its value column.
type RelationshipMapping struct {
	Type        string `json:"type"`
	FromEntity  string `json:"from_entity"`
	ToEntity    string `json:"to_entity"`
	ValueColumn string `json:"value_column"`
	Delimiter   string `json:"delimiter"`
}

// Mapping is the full column-to-graph mapping for one source file.
type Mapping struct {
	Entities      map[string]EntityMapping `json:"entities"`
	Relationships []RelationshipMapping    `json:"relationships"`
}

// entitySynonyms drive identifier-column auto-detection. Matching is
// case-insensitive substring in both directions.
var entitySynonyms = map[string][]string{
	"Drug":        {"drug", "drug_name", "compound", "pert_iname", "molecule"},
	"Target":      {"target", "targets", "gene_symbol", "protein_target"},
	"DiseaseArea": {"disease_area", "disease", "therapeutic_area"},
	"Indication":  {"indication", "indications", "condition"},
	"Vendor":      {"vendor", "supplier"},
}

// drugPropertySynonyms map Drug node properties to their column synonyms.
var drugPropertySynonyms = map[string][]string{
	"moa":               {"moa", "mechanism_of_action", "mechanism"},
	"development_phase": {"clinical_phase", "phase", "development_phase"},
	"disease_area":      {"disease_area", "therapeutic_area"},
	"indication":        {"indication", "indications"},
	"vendor":            {"vendor", "supplier"},
	"purity":            {"purity"},
	"smiles":            {"smiles", "structure", "chemical_structure"},
}

// relationshipSpecs describe the relationships auto-detection can emit.
// Each is added only when both endpoint entities were detected.
var relationshipSpecs = []struct {
	relType    string
	fromEntity string
	toEntity   string
	synonyms   []string
}{
	{"TARGETS", "Drug", "Target", []string{"target", "targets", "gene_symbol", "protein_target"}},
	{"TREATS", "Drug", "DiseaseArea", []string{"disease_area", "disease", "therapeutic_area"}},
	{"BELONGS_TO", "Drug", "Indication", []string{"indication", "indications", "condition"}},
	{"SUPPLIED_BY", "Drug", "Vendor", []string{"vendor", "supplier"}},
}

// multiValueEntities have identifier cells that may carry several values
// separated by the default delimiter.
var multiValueEntities = map[string]bool{
	"Target":      true,
	"DiseaseArea": true,
	"Indication":  true,
}

// AutoDetect scans column names against the synonym tables and builds a
// mapping for every entity type whose identifier column is present.
func AutoDetect(columns []string) *Mapping {
	mapping := &Mapping{Entities: map[string]EntityMapping{}}

	for label, synonyms := range entitySynonyms {
		idCol := findColumn(columns, synonyms)
		if idCol == "" {
			continue
		}
		em := EntityMapping{Label: label, IDColumn: idCol}
		if multiValueEntities[label] {
			em.Delimiter = DefaultDelimiter
		}
		if label == "Drug" {
			em.PropertyColumns = map[string]string{}
			for prop, propSyns := range drugPropertySynonyms {
				if col := findColumn(columns, propSyns); col != "" && col != idCol {
					em.PropertyColumns[prop] = col
				}
			}
		}
		mapping.Entities[label] = em
	}

	for _, spec := range relationshipSpecs {
		if _, ok := mapping.Entities[spec.fromEntity]; !ok {
			continue
		}
		if _, ok := mapping.Entities[spec.toEntity]; !ok {
			continue
		}
		col := findColumn(columns, spec.synonyms)
		if col == "" {
			continue
		}
		mapping.Relationships = append(mapping.Relationships, RelationshipMapping{
			Type:        spec.relType,
			FromEntity:  spec.fromEntity,
			ToEntity:    spec.toEntity,
			ValueColumn: col,
			Delimiter:   DefaultDelimiter,
		})
	}

	return mapping
}

// findColumn returns the first column matching any synonym,
// case-insensitively, substring in either direction.
func findColumn(columns []string, synonyms []string) string {
	for _, syn := range synonyms {
		for _, col := range columns {
			if columnMatches(col, syn) {
				return col
			}
		}
	}
	return ""
}

func columnMatches(column, synonym string) bool {
	c := strings.ToLower(strings.TrimSpace(column))
	s := strings.ToLower(synonym)
	return strings.Contains(c, s) || strings.Contains(s, c)
}

// Validate checks that every column the mapping names exists in the source.
// All missing columns are collected and reported together.
func (m *Mapping) Validate(columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, col := range columns {
		present[col] = true
	}

	missing := map[string]bool{}
	for _, em := range m.Entities {
		if !present[em.IDColumn] {
			missing[em.IDColumn] = true
		}
		for _, col := range em.PropertyColumns {
			if !present[col] {
				missing[col] = true
			}
		}
	}
	for _, rm := range m.Relationships {
		if !present[rm.ValueColumn] {
			missing[rm.ValueColumn] = true
		}
	}

	if len(missing) == 0 {
		return nil
	}

	names := make([]string, 0, len(missing))
	for col := range missing {
		names = append(names, col)
	}
	sort.Strings(names)
	return fmt.Errorf("mapping references missing columns: %s", strings.Join(names, ", "))
}

// SplitValues splits a multi-value cell on the delimiter, trims each token
// and drops empty ones. Splitting is literal; there are no escaping rules.
func SplitValues(cell, delimiter string) []string {
	if delimiter == "" {
		trimmed := strings.TrimSpace(cell)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var out []string
	for _, token := range strings.Split(cell, delimiter) {
		token = strings.TrimSpace(token)
		if token != "" {
			out = append(out, token)
		}
	}
	return out
}

// TemplateVersion tags persisted mapping templates.
const TemplateVersion = "1.0"

// Template is a persisted mapping, reusable across ingestion runs.
type Template struct {
	Version     string  `json:"version"`
	Description string  `json:"description"`
	Mapping     Mapping `json:"mapping"`
}

// SaveTemplate writes the mapping to path as a versioned JSON template.
func SaveTemplate(path, description string, mapping *Mapping) error {
	tpl := Template{
		Version:     TemplateVersion,
		Description: description,
		Mapping:     *mapping,
	}
	data, err := json.MarshalIndent(tpl, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode mapping template: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mapping template %s: %w", path, err)
	}
	return nil
}

// LoadTemplate reads a mapping template saved by SaveTemplate.
func LoadTemplate(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping template %s: %w", path, err)
	}
	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse mapping template %s: %w", path, err)
	}
	if tpl.Version == "" {
		return nil, fmt.Errorf("mapping template %s has no version tag", path)
	}
	return &tpl.Mapping, nil
}
