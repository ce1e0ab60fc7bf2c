package lead_test

import (
	"encoding/json"
	"errors"
	"testing"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveFieldKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "annual_revenue", domain.DeriveFieldKey("Annual Revenue"))
	assert.Equal(t, "lead_source", domain.DeriveFieldKey("  Lead \t Source "))
}

func TestParseFieldValueByType(t *testing.T) {
	t.Parallel()

	v, err := domain.ParseFieldValue(domain.FieldTypeNumber, "1,250.5", nil)
	require.NoError(t, err)
	assert.Equal(t, 1250.5, v.Number)

	v, err = domain.ParseFieldValue(domain.FieldTypeDate, "2024-03-01", nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", v.Native())

	v, err = domain.ParseFieldValue(domain.FieldTypeBoolean, "yes", nil)
	require.NoError(t, err)
	assert.Equal(t, true, v.Native())

	v, err = domain.ParseFieldValue(domain.FieldTypeSelect, "gold", []string{"Silver", "Gold"})
	require.NoError(t, err)
	assert.Equal(t, "Gold", v.Text)
}

func TestParseFieldValueRejectsMismatch(t *testing.T) {
	t.Parallel()

	_, err := domain.ParseFieldValue(domain.FieldTypeNumber, "lots", nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidFieldValue))

	_, err = domain.ParseFieldValue(domain.FieldTypeSelect, "bronze", []string{"Silver", "Gold"})
	assert.True(t, errors.Is(err, domain.ErrInvalidFieldValue))

	_, err = domain.ParseFieldValue("color", "red", nil)
	assert.True(t, errors.Is(err, domain.ErrUnknownFieldType))
}

func TestCustomFieldsJSONUsesNativeValues(t *testing.T) {
	t.Parallel()

	fields := domain.CustomFields{
		"a": domain.NumberValue(1),
		"b": domain.TextValue("x"),
	}
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":"x"}`, string(raw))

	var back domain.CustomFields
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, domain.FieldTypeNumber, back["a"].Type)
	assert.Equal(t, "x", back["b"].Text)
}

func TestColumnMappingTargetKey(t *testing.T) {
	t.Parallel()

	email := "email"
	assert.Equal(t, "email", domain.ColumnMapping{SourceColumnName: "E-mail", TargetFieldKey: &email}.TargetKey())
	assert.Equal(t, "", domain.ColumnMapping{SourceColumnName: "Notes"}.TargetKey())
	assert.Equal(t, "deal_size", domain.ColumnMapping{SourceColumnName: "Deal Size", CreatesNewCustomField: true}.TargetKey())
	assert.Equal(t, "size", domain.ColumnMapping{SourceColumnName: "Deal Size", CreatesNewCustomField: true, KeyOverride: "Size"}.TargetKey())
}

func TestDuplicatePolicyValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, domain.DuplicatePolicy{DetectionField: domain.DetectByEmail, Action: domain.ActionUpdate}.Validate())
	assert.ErrorIs(t, domain.DuplicatePolicy{DetectionField: "fax", Action: domain.ActionSkip}.Validate(), domain.ErrInvalidDuplicatePolicy)
	assert.False(t, domain.DefaultDuplicatePolicy().Detects())
}
