package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS leads (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  team_id TEXT NOT NULL,
  name VARCHAR(255) NOT NULL,
  email VARCHAR(320) NOT NULL DEFAULT '',
  phone VARCHAR(64) NOT NULL DEFAULT '',
  website TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  status VARCHAR(32) NOT NULL DEFAULT 'potential',
  owner_id TEXT,
  custom_fields JSONB NOT NULL DEFAULT '{}',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CHECK (status IN ('potential','contacted','qualified','converted','lost'))
);
CREATE INDEX IF NOT EXISTS idx_leads_team ON leads (team_id);
CREATE INDEX IF NOT EXISTS idx_leads_team_name ON leads (team_id, name);
CREATE INDEX IF NOT EXISTS idx_leads_team_email ON leads (team_id, email);
CREATE INDEX IF NOT EXISTS idx_leads_team_phone ON leads (team_id, phone);

CREATE TABLE IF NOT EXISTS custom_field_definitions (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  team_id TEXT NOT NULL,
  entity_type VARCHAR(32) NOT NULL,
  name VARCHAR(255) NOT NULL,
  field_key VARCHAR(255) NOT NULL,
  field_type VARCHAR(32) NOT NULL,
  options JSONB NOT NULL DEFAULT '[]',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (team_id, entity_type, field_key)
);

CREATE TABLE IF NOT EXISTS lead_import_jobs (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  team_id TEXT NOT NULL,
  user_id TEXT,
  file_name TEXT NOT NULL,
  total_records BIGINT NOT NULL DEFAULT 0,
  processed_records BIGINT NOT NULL DEFAULT 0,
  failed_records BIGINT NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  error_details JSONB NOT NULL DEFAULT '{}',
  completed_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CHECK (status IN ('pending','processing','completed','completed_with_errors','failed','paused'))
);
CREATE INDEX IF NOT EXISTS idx_lead_import_jobs_team_status ON lead_import_jobs (team_id, status);

CREATE TABLE IF NOT EXISTS lead_import_tasks (
  id TEXT PRIMARY KEY,
  job_id UUID NOT NULL,
  team_id TEXT NOT NULL,
  start_row INT NOT NULL,
  is_initial BOOLEAN NOT NULL DEFAULT FALSE,
  status TEXT NOT NULL,
  attempts INT NOT NULL DEFAULT 0,
  max_attempts INT NOT NULL DEFAULT 5,
  last_error TEXT,
  heartbeat_at TIMESTAMPTZ,
  lease_expires_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CHECK (status IN ('queued','running','done','failed'))
);
CREATE INDEX IF NOT EXISTS idx_lead_import_tasks_claim ON lead_import_tasks (status, created_at);
`

// Migrate creates the tables used by the Postgres stores when missing.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec(schemaSQL).Error; err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
