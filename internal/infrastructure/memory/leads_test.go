package memory_test

import (
	"context"
	"testing"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/leadflow/lead-import/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadStoreFindByFieldIsTeamScopedAndExact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewLeadStore()

	acme := domain.NewLead("team-1")
	acme.Name = "Acme"
	acme.Email = "Sales@Acme.test"
	_, err := store.InsertLead(ctx, acme)
	require.NoError(t, err)

	found, err := store.FindByField(ctx, "team-1", domain.DetectByEmail, " Sales@Acme.test ")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Acme", found.Name)
	assert.Equal(t, domain.StatusPotential, found.Status)

	folded, err := store.FindByField(ctx, "team-1", domain.DetectByEmail, "sales@acme.test")
	require.NoError(t, err)
	assert.Nil(t, folded, "matching is exact, not case-folded")

	upper, err := store.FindByField(ctx, "team-1", domain.DetectByName, "ACME")
	require.NoError(t, err)
	assert.Nil(t, upper)

	other, err := store.FindByField(ctx, "team-2", domain.DetectByEmail, "Sales@Acme.test")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestLeadStoreUpdateMergesCustomFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewLeadStore()

	existing := domain.NewLead("team-1")
	existing.Name = "Acme"
	existing.CustomFields["a"] = domain.NumberValue(1)
	saved, err := store.InsertLead(ctx, existing)
	require.NoError(t, err)

	updated, err := store.UpdateLead(ctx, saved.ID, domain.LeadPatch{
		Fields:       map[string]string{domain.FieldPhone: "555-0100", domain.FieldStatus: "nonsense"},
		CustomFields: domain.CustomFields{"b": domain.NumberValue(2)},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": float64(1), "b": float64(2)}, updated.CustomFields.ToMap())
	assert.Equal(t, "555-0100", updated.Phone)
	assert.Equal(t, domain.StatusPotential, updated.Status)
	assert.Equal(t, "Acme", updated.Name)
}

func TestLeadStoreInsertLeadsRejectsWholeBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewLeadStore()

	good := domain.NewLead("team-1")
	good.Name = "Good"
	bad := domain.NewLead("team-1")

	err := store.InsertLeads(ctx, []domain.Lead{good, bad})
	require.ErrorIs(t, err, domain.ErrBulkRejected)
	assert.Empty(t, store.List("team-1"))

	require.NoError(t, store.InsertLeads(ctx, []domain.Lead{good}))
	assert.Len(t, store.List("team-1"), 1)
}

func TestLeadStoreUpdateUnknownLead(t *testing.T) {
	t.Parallel()

	_, err := memory.NewLeadStore().UpdateLead(context.Background(), "missing", domain.LeadPatch{})
	assert.ErrorIs(t, err, domain.ErrLeadNotFound)
}
