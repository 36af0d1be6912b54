package labels

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattgotteiner/purviewgate/pkg/types"
)

const testGUID = "0b4e151b-0e7d-4a54-b7c2-b1e5a1a1f001"

type fakeGraph struct {
	calls int
	label *types.SensitivityLabel
	err   error
}

func (f *fakeGraph) GetSensitivityLabel(_ context.Context, id string) (*types.SensitivityLabel, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	label := *f.label
	if label.ID == "" {
		label.ID = id
	}
	return &label, nil
}

func TestResolve_GUIDViaGraph(t *testing.T) {
	t.Parallel()

	api := &fakeGraph{label: &types.SensitivityLabel{
		Name:     "Confidential",
		Color:    "#ff8c00",
		Priority: 5,
	}}
	r := NewResolver(api, true, zerolog.Nop())

	label := r.Resolve(context.Background(), testGUID)
	assert.Equal(t, testGUID, label.ID)
	assert.Equal(t, "Confidential", label.Name)
	assert.Equal(t, "Confidential", label.DisplayName, "display name falls back to name")
	assert.Equal(t, 5, label.Priority)
}

func TestResolve_CachesResolvedLabels(t *testing.T) {
	t.Parallel()

	api := &fakeGraph{label: &types.SensitivityLabel{Name: "Secret", Priority: 9}}
	r := NewResolver(api, true, zerolog.Nop())

	first := r.Resolve(context.Background(), testGUID)
	second := r.Resolve(context.Background(), testGUID)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, api.calls, "second lookup served from cache")
}

func TestResolve_FailureDegradesToFallback(t *testing.T) {
	t.Parallel()

	api := &fakeGraph{err: errors.New("forbidden")}
	r := NewResolver(api, true, zerolog.Nop())

	label := r.Resolve(context.Background(), testGUID)
	assert.Equal(t, testGUID, label.ID)
	assert.Contains(t, label.DisplayName, "Purview Label")
	assert.Equal(t, "orange", label.Color)
	assert.Zero(t, label.Priority)
}

func TestResolve_DisabledSkipsGraph(t *testing.T) {
	t.Parallel()

	api := &fakeGraph{label: &types.SensitivityLabel{Name: "Secret"}}
	r := NewResolver(api, false, zerolog.Nop())

	label := r.Resolve(context.Background(), testGUID)
	assert.Contains(t, label.DisplayName, "Purview Label")
	assert.Zero(t, api.calls)
}

func TestResolve_PlainStringBecomesNameOnlyLabel(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeGraph{}, true, zerolog.Nop())

	label := r.Resolve(context.Background(), "Highly Confidential")
	assert.Equal(t, "highly-confidential", label.ID)
	assert.Equal(t, "Highly Confidential", label.DisplayName)
	assert.Equal(t, "orange", label.Color)
}

func TestResolve_EmptyValue(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeGraph{}, true, zerolog.Nop())
	assert.Equal(t, types.SensitivityLabel{}, r.Resolve(context.Background(), "  "))
}

func TestComputeInheritance_PriorityWins(t *testing.T) {
	t.Parallel()

	docs := []DocumentLabel{
		{DocumentID: "d1", Label: types.SensitivityLabel{Name: "General", Priority: 1}},
		{DocumentID: "d2", Label: types.SensitivityLabel{Name: "Secret", Priority: 9}},
		{DocumentID: "d3", Label: types.SensitivityLabel{Name: "Confidential", Priority: 5}},
	}

	sensitivity, ok := ComputeInheritance(docs)
	require.True(t, ok)
	assert.Equal(t, "Secret", sensitivity.Overall.Name)
	assert.Len(t, sensitivity.Documents, 3)
}

func TestComputeInheritance_NoPriorityUsesFirstDocument(t *testing.T) {
	t.Parallel()

	docs := []DocumentLabel{
		{DocumentID: "d1", Label: types.SensitivityLabel{Name: "Internal"}},
		{DocumentID: "d2", Label: types.SensitivityLabel{Name: "Public"}},
	}

	sensitivity, ok := ComputeInheritance(docs)
	require.True(t, ok)
	assert.Equal(t, "Internal", sensitivity.Overall.Name)
}

func TestComputeInheritance_Empty(t *testing.T) {
	t.Parallel()

	_, ok := ComputeInheritance(nil)
	assert.False(t, ok)
}

func TestBadgeInfo(t *testing.T) {
	t.Parallel()

	badge := BadgeInfo(types.SensitivityLabel{
		ID:          testGUID,
		DisplayName: "Confidential - Internal",
		Color:       "#ff8c00",
		Priority:    5,
	})
	assert.Equal(t, "Confidential - Internal", badge.Text)
	assert.Equal(t, "#ff8c00", badge.Color)
	assert.Equal(t, 5, badge.Priority)
	assert.Equal(t, testGUID, badge.ID)
}
