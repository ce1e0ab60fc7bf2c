package lead

import (
	"context"
	"fmt"
	"sort"
	"strings"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const maxSuggestions = 3

// ProposeMappings returns one best-effort mapping per header. A header is
// matched case-insensitively against standard field labels, then standard
// field keys, then declared custom field names. Unmatched headers are left
// unmapped.
func ProposeMappings(headers []string, catalog []domain.FieldDefinition) []domain.ColumnMapping {
	standard := domain.StandardFields()
	out := make([]domain.ColumnMapping, 0, len(headers))

	for _, h := range headers {
		m := domain.ColumnMapping{SourceColumnName: h}
		if key, ok := matchHeader(h, standard, catalog); ok {
			m.TargetFieldKey = &key
		}
		out = append(out, m)
	}
	return out
}

func matchHeader(header string, standard []domain.StandardField, catalog []domain.FieldDefinition) (string, bool) {
	h := strings.TrimSpace(header)
	for _, f := range standard {
		if strings.EqualFold(h, f.Label) {
			return f.Key, true
		}
	}
	for _, f := range standard {
		if strings.EqualFold(h, f.Key) {
			return f.Key, true
		}
	}
	for _, def := range catalog {
		if def.EntityType != "" && def.EntityType != domain.EntityTypeLead {
			continue
		}
		if strings.EqualFold(h, def.Name) {
			return def.Key, true
		}
	}
	return "", false
}

type Suggestion struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Distance int    `json:"distance"`
}

// SuggestTargets ranks fields whose label loosely matches column. The result
// is advisory and never applied to a mapping automatically.
func SuggestTargets(column string, catalog []domain.FieldDefinition) []Suggestion {
	column = strings.TrimSpace(column)
	if column == "" {
		return nil
	}

	var out []Suggestion
	consider := func(key, label string) {
		d := fuzzy.RankMatchNormalizedFold(column, label)
		if d < 0 {
			d = fuzzy.RankMatchNormalizedFold(label, column)
		}
		if d < 0 {
			return
		}
		out = append(out, Suggestion{Key: key, Label: label, Distance: d})
	}

	for _, f := range domain.StandardFields() {
		consider(f.Key, f.Label)
	}
	for _, def := range catalog {
		consider(def.Key, def.Name)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// ValidateMappings checks that exactly one column feeds the name field.
func ValidateMappings(mappings []domain.ColumnMapping) error {
	names := 0
	for _, m := range mappings {
		if m.TargetKey() == domain.FieldName {
			names++
		}
	}
	switch {
	case names == 0:
		return ErrMissingRequiredMapping
	case names > 1:
		return ErrDuplicateNameMapping
	}
	return nil
}

// PrepareCustomFields declares the custom fields requested by mappings that
// are not in the team's catalog yet and returns the resulting catalog.
func PrepareCustomFields(ctx context.Context, repo domain.CustomFieldRepository, teamID string, mappings []domain.ColumnMapping) ([]domain.FieldDefinition, error) {
	catalog, err := repo.ListCustomFieldDefinitions(ctx, teamID, domain.EntityTypeLead)
	if err != nil {
		return nil, fmt.Errorf("list custom fields: %w", err)
	}

	known := make(map[string]struct{}, len(catalog))
	for _, def := range catalog {
		known[def.Key] = struct{}{}
	}

	for _, m := range mappings {
		if !m.CreatesNewCustomField {
			continue
		}
		key := m.TargetKey()
		if key == "" || domain.IsStandardField(key) {
			continue
		}
		if _, ok := known[key]; ok {
			continue
		}
		def, err := repo.CreateCustomFieldDefinition(ctx, domain.FieldDefinition{
			TeamID:     teamID,
			EntityType: domain.EntityTypeLead,
			Name:       strings.TrimSpace(m.SourceColumnName),
			Key:        key,
			Type:       m.NewType(),
		})
		if err != nil {
			return nil, fmt.Errorf("create custom field %q: %w", key, err)
		}
		known[key] = struct{}{}
		catalog = append(catalog, def)
	}

	return catalog, nil
}

type binding struct {
	column  int
	source  string
	key     string
	custom  bool
	typ     domain.FieldType
	options []string
}

// Plan is a mapping set bound to column positions and field types, ready to
// turn rows into leads.
type Plan struct {
	teamID   string
	bindings []binding
}

// CompilePlan binds mappings to header positions. Mappings without a target
// are ignored; a target that is neither a standard field nor a declared (or
// to-be-created) custom field is rejected.
func CompilePlan(teamID string, headers []string, mappings []domain.ColumnMapping, catalog []domain.FieldDefinition) (Plan, error) {
	if err := ValidateMappings(mappings); err != nil {
		return Plan{}, err
	}

	defs := make(map[string]domain.FieldDefinition, len(catalog))
	for _, def := range catalog {
		defs[def.Key] = def
	}

	plan := Plan{teamID: teamID}
	for _, m := range mappings {
		key := m.TargetKey()
		if key == "" {
			continue
		}
		col := columnIndex(headers, m.SourceColumnName)
		if col < 0 {
			return Plan{}, fmt.Errorf("%w: column %q not found", ErrInvalidImportRequest, m.SourceColumnName)
		}

		b := binding{column: col, source: m.SourceColumnName, key: key}
		switch {
		case domain.IsStandardField(key):
		case m.CreatesNewCustomField:
			b.custom = true
			b.typ = m.NewType()
			if def, ok := defs[key]; ok {
				b.typ = def.Type
				b.options = def.Options
			}
		default:
			def, ok := defs[key]
			if !ok {
				return Plan{}, fmt.Errorf("%w: %s", ErrUnknownTargetField, key)
			}
			b.custom = true
			b.typ = def.Type
			b.options = def.Options
		}
		plan.bindings = append(plan.bindings, b)
	}

	return plan, nil
}

func columnIndex(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

type TransformResult struct {
	Lead   domain.Lead
	NoName bool
	// Errors lists custom values that did not fit their declared type.
	Errors []string
}

// Transform builds the candidate lead for row. Empty cells are ignored and
// leave the corresponding field unset.
func (p Plan) Transform(row []string) TransformResult {
	l := domain.NewLead(p.teamID)
	var errs []string

	for _, b := range p.bindings {
		if b.column >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[b.column])
		if value == "" {
			continue
		}
		if !b.custom {
			l.SetStandardField(b.key, value)
			continue
		}
		v, err := domain.ParseFieldValue(b.typ, value, b.options)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", b.source, err))
			continue
		}
		l.CustomFields[b.key] = v
	}

	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return TransformResult{Lead: l, NoName: true}
	}
	return TransformResult{Lead: l, Errors: errs}
}
