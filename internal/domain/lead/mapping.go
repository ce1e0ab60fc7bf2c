package lead

import "strings"

// ColumnMapping binds one CSV column to a lead field. A nil TargetFieldKey
// means the column is not imported.
type ColumnMapping struct {
	SourceColumnName      string    `json:"source_column_name"`
	TargetFieldKey        *string   `json:"target_field_key"`
	CreatesNewCustomField bool      `json:"creates_new_custom_field"`
	NewFieldType          FieldType `json:"new_field_type,omitempty"`
	KeyOverride           string    `json:"key_override,omitempty"`
}

// TargetKey resolves the field the column writes to. Columns that create a
// custom field use the override or the key derived from the column name.
func (m ColumnMapping) TargetKey() string {
	if m.CreatesNewCustomField {
		if k := strings.TrimSpace(m.KeyOverride); k != "" {
			return DeriveFieldKey(k)
		}
		return DeriveFieldKey(m.SourceColumnName)
	}
	if m.TargetFieldKey == nil {
		return ""
	}
	return strings.TrimSpace(*m.TargetFieldKey)
}

func (m ColumnMapping) NewType() FieldType {
	switch m.NewFieldType {
	case FieldTypeNumber, FieldTypeDate, FieldTypeSelect:
		return m.NewFieldType
	}
	return FieldTypeText
}

type DetectionField string

const (
	DetectByName  DetectionField = "name"
	DetectByEmail DetectionField = "email"
	DetectByPhone DetectionField = "phone"
	DetectNone    DetectionField = "none"
)

type DuplicateAction string

const (
	ActionSkip      DuplicateAction = "skip"
	ActionUpdate    DuplicateAction = "update"
	ActionCreateNew DuplicateAction = "create_new"
)

type DuplicatePolicy struct {
	DetectionField DetectionField  `json:"detection_field"`
	Action         DuplicateAction `json:"action"`
}

func DefaultDuplicatePolicy() DuplicatePolicy {
	return DuplicatePolicy{DetectionField: DetectNone, Action: ActionCreateNew}
}

func (p DuplicatePolicy) Validate() error {
	switch p.DetectionField {
	case DetectByName, DetectByEmail, DetectByPhone, DetectNone:
	default:
		return ErrInvalidDuplicatePolicy
	}
	switch p.Action {
	case ActionSkip, ActionUpdate, ActionCreateNew:
	default:
		return ErrInvalidDuplicatePolicy
	}
	return nil
}

// Detects reports whether duplicate lookups are enabled.
func (p DuplicatePolicy) Detects() bool {
	return p.DetectionField != "" && p.DetectionField != DetectNone
}
