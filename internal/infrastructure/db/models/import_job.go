package models

import (
	"time"

	"gorm.io/datatypes"
)

type LeadImportJob struct {
	ID               string         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TeamID           string         `gorm:"type:text;not null;index:idx_lead_import_jobs_team_status,priority:1"`
	UserID           *string        `gorm:"type:text"`
	FileName         string         `gorm:"type:text;not null"`
	TotalRecords     int64          `gorm:"not null;default:0"`
	ProcessedRecords int64          `gorm:"not null;default:0"`
	FailedRecords    int64          `gorm:"not null;default:0"`
	Status           string         `gorm:"type:text;not null;index:idx_lead_import_jobs_team_status,priority:2"`
	ErrorDetails     datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (LeadImportJob) TableName() string {
	return "lead_import_jobs"
}
