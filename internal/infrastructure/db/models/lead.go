package models

import (
	"time"

	"gorm.io/datatypes"
)

type Lead struct {
	ID           string            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TeamID       string            `gorm:"type:text;not null;index"`
	Name         string            `gorm:"size:255;not null"`
	Email        string            `gorm:"size:320;not null;default:''"`
	Phone        string            `gorm:"size:64;not null;default:''"`
	Website      string            `gorm:"type:text;not null;default:''"`
	Address      string            `gorm:"type:text;not null;default:''"`
	Description  string            `gorm:"type:text;not null;default:''"`
	Status       string            `gorm:"size:32;not null;default:'potential'"`
	OwnerID      *string           `gorm:"type:text"`
	CustomFields datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Lead) TableName() string {
	return "leads"
}

type CustomFieldDefinition struct {
	ID         string         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TeamID     string         `gorm:"type:text;not null;uniqueIndex:uq_custom_field_definitions_key,priority:1"`
	EntityType string         `gorm:"size:32;not null;uniqueIndex:uq_custom_field_definitions_key,priority:2"`
	Name       string         `gorm:"size:255;not null"`
	FieldKey   string         `gorm:"size:255;not null;uniqueIndex:uq_custom_field_definitions_key,priority:3"`
	FieldType  string         `gorm:"size:32;not null"`
	Options    datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (CustomFieldDefinition) TableName() string {
	return "custom_field_definitions"
}
