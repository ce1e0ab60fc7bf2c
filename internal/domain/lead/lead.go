package lead

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPotential Status = "potential"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

var validStatuses = map[Status]struct{}{
	StatusPotential: {},
	StatusContacted: {},
	StatusQualified: {},
	StatusConverted: {},
	StatusLost:      {},
}

// CoerceStatus maps a raw value onto the status enumeration. Unknown values
// fall back to StatusPotential instead of being rejected.
func CoerceStatus(raw string) Status {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validStatuses[s]; ok {
		return s
	}
	return StatusPotential
}

const (
	FieldName        = "name"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldWebsite     = "website"
	FieldAddress     = "address"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldOwner       = "owner_id"
)

type StandardField struct {
	Key   string
	Label string
}

var standardFields = []StandardField{
	{Key: FieldName, Label: "Name"},
	{Key: FieldEmail, Label: "Email"},
	{Key: FieldPhone, Label: "Phone"},
	{Key: FieldWebsite, Label: "Website"},
	{Key: FieldAddress, Label: "Address"},
	{Key: FieldDescription, Label: "Description"},
	{Key: FieldStatus, Label: "Status"},
	{Key: FieldOwner, Label: "Owner"},
}

func StandardFields() []StandardField {
	out := make([]StandardField, len(standardFields))
	copy(out, standardFields)
	return out
}

func IsStandardField(key string) bool {
	for _, f := range standardFields {
		if f.Key == key {
			return true
		}
	}
	return false
}

type Lead struct {
	ID           string
	TeamID       string
	Name         string
	Email        string
	Phone        string
	Website      string
	Address      string
	Description  string
	Status       Status
	OwnerID      string
	CustomFields CustomFields
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewLead(teamID string) Lead {
	return Lead{
		TeamID:       teamID,
		CustomFields: CustomFields{},
	}
}

// Normalize fills defaults for a lead about to be inserted.
func (l *Lead) Normalize() {
	l.Name = strings.TrimSpace(l.Name)
	if l.Status == "" {
		l.Status = StatusPotential
	}
	if l.CustomFields == nil {
		l.CustomFields = CustomFields{}
	}
}

// SetStandardField assigns value to the standard field key. It reports false
// when key is not a standard field.
func (l *Lead) SetStandardField(key, value string) bool {
	switch key {
	case FieldName:
		l.Name = value
	case FieldEmail:
		l.Email = value
	case FieldPhone:
		l.Phone = value
	case FieldWebsite:
		l.Website = value
	case FieldAddress:
		l.Address = value
	case FieldDescription:
		l.Description = value
	case FieldStatus:
		l.Status = CoerceStatus(value)
	case FieldOwner:
		l.OwnerID = value
	default:
		return false
	}
	return true
}

func (l Lead) StandardValue(key string) string {
	switch key {
	case FieldName:
		return l.Name
	case FieldEmail:
		return l.Email
	case FieldPhone:
		return l.Phone
	case FieldWebsite:
		return l.Website
	case FieldAddress:
		return l.Address
	case FieldDescription:
		return l.Description
	case FieldStatus:
		return string(l.Status)
	case FieldOwner:
		return l.OwnerID
	}
	return ""
}

func (l Lead) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrMissingName
	}
	return nil
}

// LeadPatch is a partial update of a stored lead. Fields holds standard field
// values by key; CustomFields, when non-nil, replaces the stored map.
type LeadPatch struct {
	Fields       map[string]string
	CustomFields CustomFields
}

// BuildUpdate merges candidate into existing for the "update" duplicate
// action: custom fields are merged with candidate values winning on key
// collision, and standard fields are patched where the candidate has a value.
func BuildUpdate(existing, candidate Lead) LeadPatch {
	patch := LeadPatch{Fields: map[string]string{}}
	for _, f := range standardFields {
		value := candidate.StandardValue(f.Key)
		if value == "" {
			continue
		}
		patch.Fields[f.Key] = value
	}

	merged := make(CustomFields, len(existing.CustomFields)+len(candidate.CustomFields))
	for k, v := range existing.CustomFields {
		merged[k] = v
	}
	for k, v := range candidate.CustomFields {
		merged[k] = v
	}
	patch.CustomFields = merged
	return patch
}

// Apply writes patch onto l.
func (l *Lead) Apply(patch LeadPatch) {
	for k, v := range patch.Fields {
		l.SetStandardField(k, v)
	}
	if patch.CustomFields != nil {
		l.CustomFields = patch.CustomFields
	}
}
