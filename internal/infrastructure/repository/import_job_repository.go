package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/leadflow/lead-import/internal/infrastructure/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ImportJobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewImportJobRepository(db *gorm.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db, now: time.Now}
}

func (r *ImportJobRepository) CreateImportJob(ctx context.Context, job domain.ImportJob) (string, error) {
	row, err := importJobModel(job)
	if err != nil {
		return "", err
	}
	row.ID = ""

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("create import job: %w", err)
	}
	return row.ID, nil
}

// PatchImportJob applies patch under a row lock so concurrent slices of the
// same job serialize their writes.
func (r *ImportJobRepository) PatchImportJob(ctx context.Context, jobID string, patch domain.JobPatch) (domain.ImportJob, error) {
	var out domain.ImportJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.LeadImportJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", jobID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrImportJobNotFound
			}
			return fmt.Errorf("lock import job: %w", err)
		}

		job, err := importJobFromModel(row)
		if err != nil {
			return err
		}
		if err := job.Apply(patch); err != nil {
			return err
		}

		next, err := importJobModel(job)
		if err != nil {
			return err
		}
		next.CreatedAt = row.CreatedAt
		next.UpdatedAt = r.now().UTC()
		if err := tx.Save(&next).Error; err != nil {
			return fmt.Errorf("save import job: %w", err)
		}

		out, err = importJobFromModel(next)
		return err
	})
	if err != nil {
		return domain.ImportJob{}, err
	}
	return out, nil
}

func (r *ImportJobRepository) GetImportJob(ctx context.Context, jobID string) (domain.ImportJob, error) {
	var row models.LeadImportJob
	err := r.db.WithContext(ctx).First(&row, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ImportJob{}, domain.ErrImportJobNotFound
		}
		return domain.ImportJob{}, fmt.Errorf("get import job: %w", err)
	}
	return importJobFromModel(row)
}

func (r *ImportJobRepository) ListActiveImportJobs(ctx context.Context, teamID string, limit int) ([]domain.ImportJob, error) {
	statuses := make([]string, 0, 2)
	for _, s := range domain.ActiveStatuses() {
		statuses = append(statuses, string(s))
	}

	q := r.db.WithContext(ctx).
		Where("team_id = ? AND status IN ?", teamID, statuses).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []models.LeadImportJob
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list active import jobs: %w", err)
	}

	out := make([]domain.ImportJob, 0, len(rows))
	for _, row := range rows {
		job, err := importJobFromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func importJobModel(job domain.ImportJob) (models.LeadImportJob, error) {
	details, err := json.Marshal(job.ErrorDetails)
	if err != nil {
		return models.LeadImportJob{}, fmt.Errorf("encode error details: %w", err)
	}

	row := models.LeadImportJob{
		ID:               job.ID,
		TeamID:           job.TeamID,
		FileName:         job.FileName,
		TotalRecords:     job.TotalRecords,
		ProcessedRecords: job.ProcessedRecords,
		FailedRecords:    job.FailedRecords,
		Status:           string(job.Status),
		ErrorDetails:     details,
		CompletedAt:      job.CompletedAt,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
	if job.UserID != "" {
		userID := job.UserID
		row.UserID = &userID
	}
	return row, nil
}

func importJobFromModel(row models.LeadImportJob) (domain.ImportJob, error) {
	job := domain.ImportJob{
		ID:               row.ID,
		TeamID:           row.TeamID,
		FileName:         row.FileName,
		TotalRecords:     row.TotalRecords,
		ProcessedRecords: row.ProcessedRecords,
		FailedRecords:    row.FailedRecords,
		Status:           domain.JobStatus(row.Status),
		CompletedAt:      row.CompletedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if row.UserID != nil {
		job.UserID = *row.UserID
	}
	if len(row.ErrorDetails) > 0 {
		if err := json.Unmarshal(row.ErrorDetails, &job.ErrorDetails); err != nil {
			return domain.ImportJob{}, fmt.Errorf("decode error details: %w", err)
		}
	}
	if job.ErrorDetails.Errors == nil {
		job.ErrorDetails.Errors = []string{}
	}
	return job, nil
}
