package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/leadflow/lead-import/internal/infrastructure/memory"
	"github.com/leadflow/lead-import/internal/infrastructure/repository"
	"gorm.io/gorm"
)

type TaskStore interface {
	domain.TaskQueue
	domain.TaskClaimer
}

type ChangeBroker interface {
	domain.JobChangePublisher
	domain.JobChangeSubscriber
}

// Stores is every persistence port the import pipeline needs. RowSets and
// Changes are chosen independently of the record store.
type Stores struct {
	Jobs    domain.ImportJobRepository
	Leads   domain.LeadRepository
	Fields  domain.CustomFieldRepository
	RowSets domain.RowSetStore
	Tasks   TaskStore
	Changes ChangeBroker
}

func NewPostgresStores(db *gorm.DB, pool *pgxpool.Pool, rowSets domain.RowSetStore, changes ChangeBroker) Stores {
	if changes == nil {
		changes = memory.NewChangeBroker()
	}
	return Stores{
		Jobs:    repository.NewImportJobRepository(db),
		Leads:   repository.NewLeadRepository(db, pool),
		Fields:  repository.NewCustomFieldRepository(db),
		RowSets: rowSets,
		Tasks:   repository.NewImportTaskRepository(pool),
		Changes: changes,
	}
}

func NewMemoryStores(rowSets domain.RowSetStore, changes ChangeBroker) Stores {
	if rowSets == nil {
		rowSets = memory.NewRowSetStore()
	}
	if changes == nil {
		changes = memory.NewChangeBroker()
	}
	return Stores{
		Jobs:    memory.NewImportJobStore(),
		Leads:   memory.NewLeadStore(),
		Fields:  memory.NewCustomFieldStore(),
		RowSets: rowSets,
		Tasks:   memory.NewTaskQueue(),
		Changes: changes,
	}
}
