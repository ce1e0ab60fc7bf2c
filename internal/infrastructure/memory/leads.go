package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

type leadDoc struct {
	ID           string         `json:"id"`
	TeamID       string         `json:"team_id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	Website      string         `json:"website"`
	Address      string         `json:"address"`
	Description  string         `json:"description"`
	Status       string         `json:"status"`
	OwnerID      string         `json:"owner_id"`
	CustomFields map[string]any `json:"custom_fields"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func docFromLead(l domain.Lead) leadDoc {
	return leadDoc{
		ID:           l.ID,
		TeamID:       l.TeamID,
		Name:         l.Name,
		Email:        l.Email,
		Phone:        l.Phone,
		Website:      l.Website,
		Address:      l.Address,
		Description:  l.Description,
		Status:       string(l.Status),
		OwnerID:      l.OwnerID,
		CustomFields: l.CustomFields.ToMap(),
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func (d leadDoc) toDomain() domain.Lead {
	return domain.Lead{
		ID:           d.ID,
		TeamID:       d.TeamID,
		Name:         d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		Website:      d.Website,
		Address:      d.Address,
		Description:  d.Description,
		Status:       domain.Status(d.Status),
		OwnerID:      d.OwnerID,
		CustomFields: domain.CustomFieldsFromMap(d.CustomFields),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// LeadStore keeps leads as JSON documents and applies updates as RFC 7386
// merge patches, the way a document backend would.
type LeadStore struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	order []string
	now   func() time.Time
}

func NewLeadStore() *LeadStore {
	return &LeadStore{docs: map[string][]byte{}, now: time.Now}
}

func (s *LeadStore) FindByField(ctx context.Context, teamID string, field domain.DetectionField, value string) (*domain.Lead, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		l, err := s.decode(id)
		if err != nil {
			return nil, err
		}
		if l.TeamID != teamID {
			continue
		}
		if strings.TrimSpace(l.StandardValue(string(field))) == value {
			return &l, nil
		}
	}
	return nil, nil
}

func (s *LeadStore) InsertLead(ctx context.Context, l domain.Lead) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(l)
}

// InsertLeads is all-or-nothing: a single invalid lead rejects the batch.
func (s *LeadStore) InsertLeads(ctx context.Context, leads []domain.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range leads {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("%w: lead %d: %v", domain.ErrBulkRejected, i, err)
		}
	}
	for _, l := range leads {
		if _, err := s.insertLocked(l); err != nil {
			return err
		}
	}
	return nil
}

func (s *LeadStore) insertLocked(l domain.Lead) (domain.Lead, error) {
	l.Normalize()
	if err := l.Validate(); err != nil {
		return domain.Lead{}, err
	}
	l.ID = uuid.NewString()
	now := s.now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now

	doc, err := json.Marshal(docFromLead(l))
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode lead: %w", err)
	}
	s.docs[l.ID] = doc
	s.order = append(s.order, l.ID)
	return l, nil
}

func (s *LeadStore) UpdateLead(ctx context.Context, id string, patch domain.LeadPatch) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return domain.Lead{}, domain.ErrLeadNotFound
	}

	fields := map[string]any{"updated_at": s.now().UTC()}
	for k, v := range patch.Fields {
		if !domain.IsStandardField(k) {
			continue
		}
		if k == domain.FieldStatus {
			v = string(domain.CoerceStatus(v))
		}
		fields[k] = v
	}
	if patch.CustomFields != nil {
		fields["custom_fields"] = patch.CustomFields.ToMap()
	}
	patchDoc, err := json.Marshal(fields)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode lead patch: %w", err)
	}

	merged, err := jsonpatch.MergePatch(doc, patchDoc)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("merge lead patch: %w", err)
	}
	s.docs[id] = merged
	return s.decode(id)
}

// List returns the team's leads in insertion order.
func (s *LeadStore) List(teamID string) []domain.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Lead
	for _, id := range s.order {
		l, err := s.decode(id)
		if err != nil || l.TeamID != teamID {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (s *LeadStore) decode(id string) (domain.Lead, error) {
	var d leadDoc
	if err := json.Unmarshal(s.docs[id], &d); err != nil {
		return domain.Lead{}, fmt.Errorf("decode lead %s: %w", id, err)
	}
	return d.toDomain(), nil
}
