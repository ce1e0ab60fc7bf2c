package lead

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const EntityTypeLead = "lead"

type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeNumber  FieldType = "number"
	FieldTypeDate    FieldType = "date"
	FieldTypeSelect  FieldType = "select"
	FieldTypeBoolean FieldType = "boolean"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeDate, FieldTypeSelect, FieldTypeBoolean:
		return true
	}
	return false
}

type FieldDefinition struct {
	ID         string
	TeamID     string
	EntityType string
	Name       string
	Key        string
	Type       FieldType
	Options    []string
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// DeriveFieldKey turns a column name into a custom field key: lowercased,
// whitespace runs replaced by a single underscore.
func DeriveFieldKey(columnName string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(columnName)), "_")
}

// FieldValue is a typed custom field value. Exactly one payload field is
// meaningful, selected by Type.
type FieldValue struct {
	Type   FieldType
	Text   string
	Number float64
	Date   time.Time
	Bool   bool
}

func TextValue(s string) FieldValue { return FieldValue{Type: FieldTypeText, Text: s} }
func NumberValue(n float64) FieldValue { return FieldValue{Type: FieldTypeNumber, Number: n} }
func DateValue(d time.Time) FieldValue { return FieldValue{Type: FieldTypeDate, Date: d} }
func BoolValue(b bool) FieldValue { return FieldValue{Type: FieldTypeBoolean, Bool: b} }
func SelectValue(opt string) FieldValue { return FieldValue{Type: FieldTypeSelect, Text: opt} }

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
}

// ParseFieldValue validates raw against the declared field type.
func ParseFieldValue(t FieldType, raw string, options []string) (FieldValue, error) {
	raw = strings.TrimSpace(raw)
	switch t {
	case FieldTypeText, "":
		return TextValue(raw), nil
	case FieldTypeNumber:
		n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return FieldValue{}, fmt.Errorf("%w: %q is not a number", ErrInvalidFieldValue, raw)
		}
		return NumberValue(n), nil
	case FieldTypeDate:
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, raw); err == nil {
				return DateValue(d), nil
			}
		}
		return FieldValue{}, fmt.Errorf("%w: %q is not a date", ErrInvalidFieldValue, raw)
	case FieldTypeBoolean:
		switch strings.ToLower(raw) {
		case "yes", "y":
			return BoolValue(true), nil
		case "no", "n":
			return BoolValue(false), nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return FieldValue{}, fmt.Errorf("%w: %q is not a boolean", ErrInvalidFieldValue, raw)
		}
		return BoolValue(b), nil
	case FieldTypeSelect:
		if len(options) == 0 {
			return SelectValue(raw), nil
		}
		for _, opt := range options {
			if strings.EqualFold(opt, raw) {
				return SelectValue(opt), nil
			}
		}
		return FieldValue{}, fmt.Errorf("%w: %q is not one of %v", ErrInvalidFieldValue, raw, options)
	}
	return FieldValue{}, fmt.Errorf("%w: %s", ErrUnknownFieldType, t)
}

// Native returns the JSON-compatible representation stored in the lead's
// custom field bag.
func (v FieldValue) Native() any {
	switch v.Type {
	case FieldTypeNumber:
		return v.Number
	case FieldTypeDate:
		return v.Date.Format(dateLayout)
	case FieldTypeBoolean:
		return v.Bool
	default:
		return v.Text
	}
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// UnmarshalJSON infers the type from the JSON kind; dates come back as text
// because the stored bag does not carry the declared type.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FieldValueOf(raw)
	return nil
}

func FieldValueOf(raw any) FieldValue {
	switch x := raw.(type) {
	case float64:
		return NumberValue(x)
	case int:
		return NumberValue(float64(x))
	case int64:
		return NumberValue(float64(x))
	case bool:
		return BoolValue(x)
	case string:
		return TextValue(x)
	case nil:
		return TextValue("")
	default:
		b, _ := json.Marshal(x)
		return TextValue(string(b))
	}
}

type CustomFields map[string]FieldValue

func (c CustomFields) ToMap() map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v.Native()
	}
	return out
}

func CustomFieldsFromMap(m map[string]any) CustomFields {
	out := make(CustomFields, len(m))
	for k, v := range m {
		out[k] = FieldValueOf(v)
	}
	return out
}
