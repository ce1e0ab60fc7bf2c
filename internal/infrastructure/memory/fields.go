package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

type CustomFieldStore struct {
	mu   sync.RWMutex
	defs []domain.FieldDefinition
}

func NewCustomFieldStore(seed ...domain.FieldDefinition) *CustomFieldStore {
	return &CustomFieldStore{defs: append([]domain.FieldDefinition(nil), seed...)}
}

func (s *CustomFieldStore) ListCustomFieldDefinitions(ctx context.Context, teamID, entityType string) ([]domain.FieldDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.FieldDefinition
	for _, def := range s.defs {
		if def.TeamID == teamID && def.EntityType == entityType {
			out = append(out, def)
		}
	}
	return out, nil
}

func (s *CustomFieldStore) CreateCustomFieldDefinition(ctx context.Context, def domain.FieldDefinition) (domain.FieldDefinition, error) {
	if !def.Type.Valid() {
		return domain.FieldDefinition{}, fmt.Errorf("%w: %s", domain.ErrUnknownFieldType, def.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.defs {
		if existing.TeamID == def.TeamID && existing.EntityType == def.EntityType && existing.Key == def.Key {
			return existing, nil
		}
	}
	def.ID = uuid.NewString()
	s.defs = append(s.defs, def)
	return def, nil
}
