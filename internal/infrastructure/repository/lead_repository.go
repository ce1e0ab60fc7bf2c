package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/leadflow/lead-import/internal/infrastructure/db/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var detectionColumns = map[domain.DetectionField]string{
	domain.DetectByName:  "name",
	domain.DetectByEmail: "email",
	domain.DetectByPhone: "phone",
}

// LeadRepository reads and writes single leads through gorm and delegates
// bulk inserts to a COPY on the pgx pool.
type LeadRepository struct {
	db   *gorm.DB
	bulk *LeadBulkRepository
	now  func() time.Time
}

func NewLeadRepository(db *gorm.DB, pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{db: db, bulk: NewLeadBulkRepository(pool), now: time.Now}
}

func (r *LeadRepository) FindByField(ctx context.Context, teamID string, field domain.DetectionField, value string) (*domain.Lead, error) {
	column, ok := detectionColumns[field]
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return nil, nil
	}

	var row models.Lead
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND "+column+" = ?", teamID, value).
		Order("created_at ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find lead by %s: %w", column, err)
	}

	l := leadFromModel(row)
	return &l, nil
}

func (r *LeadRepository) InsertLead(ctx context.Context, l domain.Lead) (domain.Lead, error) {
	l.Normalize()
	if err := l.Validate(); err != nil {
		return domain.Lead{}, err
	}

	row := leadModel(l)
	row.ID = ""
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return leadFromModel(row), nil
}

func (r *LeadRepository) InsertLeads(ctx context.Context, leads []domain.Lead) error {
	return r.bulk.InsertLeads(ctx, leads)
}

func (r *LeadRepository) UpdateLead(ctx context.Context, id string, patch domain.LeadPatch) (domain.Lead, error) {
	updates := map[string]any{"updated_at": r.now().UTC()}
	for k, v := range patch.Fields {
		if !domain.IsStandardField(k) {
			continue
		}
		if k == domain.FieldStatus {
			v = string(domain.CoerceStatus(v))
		}
		if k == domain.FieldOwner && v == "" {
			updates[k] = nil
			continue
		}
		updates[k] = v
	}
	if patch.CustomFields != nil {
		updates["custom_fields"] = datatypes.JSONMap(patch.CustomFields.ToMap())
	}

	res := r.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return domain.Lead{}, fmt.Errorf("update lead: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Lead{}, domain.ErrLeadNotFound
	}

	var row models.Lead
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return domain.Lead{}, fmt.Errorf("reload lead: %w", err)
	}
	return leadFromModel(row), nil
}

func leadModel(l domain.Lead) models.Lead {
	row := models.Lead{
		ID:           l.ID,
		TeamID:       l.TeamID,
		Name:         l.Name,
		Email:        l.Email,
		Phone:        l.Phone,
		Website:      l.Website,
		Address:      l.Address,
		Description:  l.Description,
		Status:       string(l.Status),
		CustomFields: datatypes.JSONMap(l.CustomFields.ToMap()),
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
	if l.OwnerID != "" {
		owner := l.OwnerID
		row.OwnerID = &owner
	}
	return row
}

func leadFromModel(row models.Lead) domain.Lead {
	l := domain.Lead{
		ID:           row.ID,
		TeamID:       row.TeamID,
		Name:         row.Name,
		Email:        row.Email,
		Phone:        row.Phone,
		Website:      row.Website,
		Address:      row.Address,
		Description:  row.Description,
		Status:       domain.Status(row.Status),
		CustomFields: domain.CustomFieldsFromMap(row.CustomFields),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.OwnerID != nil {
		l.OwnerID = *row.OwnerID
	}
	return l
}
