package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

var leadCopyColumns = []string{
	"team_id", "name", "email", "phone", "website", "address",
	"description", "status", "owner_id", "custom_fields",
}

type LeadBulkRepository struct {
	pool *pgxpool.Pool
}

func NewLeadBulkRepository(pool *pgxpool.Pool) *LeadBulkRepository {
	return &LeadBulkRepository{pool: pool}
}

// InsertLeads copies leads in one transaction. Integrity and data errors
// reported by Postgres wrap ErrBulkRejected; anything else is returned as is.
func (r *LeadBulkRepository) InsertLeads(ctx context.Context, leads []domain.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(leads))
	for i, l := range leads {
		l.Normalize()
		if err := l.Validate(); err != nil {
			return fmt.Errorf("%w: lead %d: %v", domain.ErrBulkRejected, i, err)
		}
		custom, err := json.Marshal(l.CustomFields.ToMap())
		if err != nil {
			return fmt.Errorf("%w: lead %d: encode custom fields: %v", domain.ErrBulkRejected, i, err)
		}
		rows = append(rows, []any{
			l.TeamID, l.Name, l.Email, l.Phone, l.Website, l.Address,
			l.Description, string(l.Status), nullableText(l.OwnerID), custom,
		})
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"leads"}, leadCopyColumns, pgx.CopyFromRows(rows)); err != nil {
		return classifyCopyError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit lead copy: %w", err)
	}
	return nil
}

// classifyCopyError maps SQLSTATE classes 22 (data exception) and 23
// (integrity violation) to ErrBulkRejected.
func classifyCopyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")) {
		return fmt.Errorf("%w: %s", domain.ErrBulkRejected, pgErr.Message)
	}
	return fmt.Errorf("copy leads: %w", err)
}

func nullableText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
