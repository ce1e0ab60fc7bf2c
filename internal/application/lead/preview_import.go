package lead

import (
	"context"
	"fmt"
	"io"
	"strings"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

const defaultPreviewRows = 5

type PreviewImportInput struct {
	CSV string
	// Upload, when set, is read instead of CSV and bounded by MaxBytes.
	Upload   io.Reader
	MaxBytes int64
	TeamID   string
	// Mappings, when set, are the operator's adjusted mappings; otherwise
	// mappings are proposed from the headers.
	Mappings   []domain.ColumnMapping
	SampleSize int
}

type PreviewLead struct {
	Row          int            `json:"row"`
	Name         string         `json:"name"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Status       string         `json:"status"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	Skipped      bool           `json:"skipped,omitempty"`
	Errors       []string       `json:"errors,omitempty"`
}

type PreviewImportOutput struct {
	Headers     []string                `json:"headers"`
	TotalRows   int                     `json:"total_rows"`
	SampleRows  [][]string              `json:"sample_rows"`
	Mappings    []domain.ColumnMapping  `json:"mappings"`
	Suggestions map[string][]Suggestion `json:"suggestions,omitempty"`
	// SampleLeads is only filled when the mappings pass validation.
	SampleLeads []PreviewLead `json:"sample_leads,omitempty"`
	Ready       bool          `json:"ready"`
}

type PreviewImport interface {
	Execute(ctx context.Context, in PreviewImportInput) (PreviewImportOutput, error)
}

type previewImport struct {
	fields domain.CustomFieldRepository
}

func NewPreviewImport(fields domain.CustomFieldRepository) PreviewImport {
	return &previewImport{fields: fields}
}

func (uc *previewImport) Execute(ctx context.Context, in PreviewImportInput) (PreviewImportOutput, error) {
	teamID := strings.TrimSpace(in.TeamID)
	if teamID == "" {
		return PreviewImportOutput{}, ErrInvalidTeamID
	}

	var (
		parsed ParsedCSV
		err    error
	)
	if in.Upload != nil {
		parsed, err = ParseCSVReader(in.Upload, in.MaxBytes)
	} else {
		parsed, err = ParseCSV(in.CSV)
	}
	if err != nil {
		return PreviewImportOutput{}, err
	}

	catalog, err := uc.fields.ListCustomFieldDefinitions(ctx, teamID, domain.EntityTypeLead)
	if err != nil {
		return PreviewImportOutput{}, fmt.Errorf("list custom fields: %w", err)
	}

	mappings := in.Mappings
	explicit := len(mappings) > 0
	if !explicit {
		mappings = ProposeMappings(parsed.Headers, catalog)
	}

	sample := in.SampleSize
	if sample <= 0 {
		sample = defaultPreviewRows
	}
	sample = min(sample, len(parsed.Rows))

	out := PreviewImportOutput{
		Headers:    parsed.Headers,
		TotalRows:  len(parsed.Rows),
		SampleRows: parsed.Rows[:sample],
		Mappings:   mappings,
	}
	for _, m := range mappings {
		if m.TargetKey() != "" {
			continue
		}
		if s := SuggestTargets(m.SourceColumnName, catalog); len(s) > 0 {
			if out.Suggestions == nil {
				out.Suggestions = map[string][]Suggestion{}
			}
			out.Suggestions[m.SourceColumnName] = s
		}
	}

	if err := ValidateMappings(mappings); err != nil {
		if explicit {
			return PreviewImportOutput{}, err
		}
		return out, nil
	}

	plan, err := CompilePlan(teamID, parsed.Headers, mappings, previewCatalog(catalog, mappings))
	if err != nil {
		return PreviewImportOutput{}, err
	}
	for i, row := range out.SampleRows {
		tr := plan.Transform(row)
		out.SampleLeads = append(out.SampleLeads, PreviewLead{
			Row:          i + 1,
			Name:         tr.Lead.Name,
			Email:        tr.Lead.Email,
			Phone:        tr.Lead.Phone,
			Status:       string(domain.CoerceStatus(string(tr.Lead.Status))),
			CustomFields: tr.Lead.CustomFields.ToMap(),
			Skipped:      tr.NoName,
			Errors:       tr.Errors,
		})
	}
	out.Ready = true
	return out, nil
}

// previewCatalog adds the fields that starting the import would create, so
// the preview can type their values without declaring them.
func previewCatalog(catalog []domain.FieldDefinition, mappings []domain.ColumnMapping) []domain.FieldDefinition {
	out := append([]domain.FieldDefinition(nil), catalog...)
	known := make(map[string]struct{}, len(catalog))
	for _, def := range catalog {
		known[def.Key] = struct{}{}
	}
	for _, m := range mappings {
		if _, ok := known[m.TargetKey()]; ok {
			continue
		}
		if m.CreatesNewCustomField {
			out = append(out, domain.FieldDefinition{
				EntityType: domain.EntityTypeLead,
				Name:       m.SourceColumnName,
				Key:        m.TargetKey(),
				Type:       m.NewType(),
			})
		}
	}
	return out
}
