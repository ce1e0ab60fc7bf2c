package repository

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/leadflow/lead-import/internal/infrastructure/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomFieldRepository struct {
	db *gorm.DB
}

func NewCustomFieldRepository(db *gorm.DB) *CustomFieldRepository {
	return &CustomFieldRepository{db: db}
}

func (r *CustomFieldRepository) ListCustomFieldDefinitions(ctx context.Context, teamID, entityType string) ([]domain.FieldDefinition, error) {
	var rows []models.CustomFieldDefinition
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND entity_type = ?", teamID, entityType).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list custom field definitions: %w", err)
	}

	out := make([]domain.FieldDefinition, 0, len(rows))
	for _, row := range rows {
		def, err := fieldDefinitionFromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// CreateCustomFieldDefinition is idempotent on (team, entity type, key): an
// existing definition is returned unchanged.
func (r *CustomFieldRepository) CreateCustomFieldDefinition(ctx context.Context, def domain.FieldDefinition) (domain.FieldDefinition, error) {
	if !def.Type.Valid() {
		return domain.FieldDefinition{}, fmt.Errorf("%w: %s", domain.ErrUnknownFieldType, def.Type)
	}

	options, err := json.Marshal(append([]string{}, def.Options...))
	if err != nil {
		return domain.FieldDefinition{}, fmt.Errorf("encode field options: %w", err)
	}
	row := models.CustomFieldDefinition{
		TeamID:     def.TeamID,
		EntityType: def.EntityType,
		Name:       def.Name,
		FieldKey:   def.Key,
		FieldType:  string(def.Type),
		Options:    options,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "team_id"}, {Name: "entity_type"}, {Name: "field_key"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return domain.FieldDefinition{}, fmt.Errorf("create custom field definition: %w", err)
	}

	var stored models.CustomFieldDefinition
	err = r.db.WithContext(ctx).
		Where("team_id = ? AND entity_type = ? AND field_key = ?", def.TeamID, def.EntityType, def.Key).
		First(&stored).Error
	if err != nil {
		return domain.FieldDefinition{}, fmt.Errorf("reload custom field definition: %w", err)
	}
	return fieldDefinitionFromModel(stored)
}

func fieldDefinitionFromModel(row models.CustomFieldDefinition) (domain.FieldDefinition, error) {
	def := domain.FieldDefinition{
		ID:         row.ID,
		TeamID:     row.TeamID,
		EntityType: row.EntityType,
		Name:       row.Name,
		Key:        row.FieldKey,
		Type:       domain.FieldType(row.FieldType),
	}
	if len(row.Options) > 0 {
		if err := json.Unmarshal(row.Options, &def.Options); err != nil {
			return domain.FieldDefinition{}, fmt.Errorf("decode field options: %w", err)
		}
	}
	return def, nil
}
