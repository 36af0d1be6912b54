package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattgotteiner/purviewgate/internal/audit"
	"github.com/mattgotteiner/purviewgate/internal/policy"
	"github.com/mattgotteiner/purviewgate/internal/session"
	"github.com/mattgotteiner/purviewgate/pkg/graph"
	"github.com/mattgotteiner/purviewgate/pkg/types"
)

type fakeGraph struct {
	requests []*graph.ProcessContentRequest
	respond  func(req *graph.ProcessContentRequest) (*graph.ProcessContentResponse, error)
}

func (f *fakeGraph) ProcessContent(_ context.Context, req *graph.ProcessContentRequest) (*graph.ProcessContentResponse, error) {
	f.requests = append(f.requests, req)
	if f.respond != nil {
		return f.respond(req)
	}
	return &graph.ProcessContentResponse{StatusCode: 200}, nil
}

func newTestGate(api GraphAPI, mode policy.Mode) (*Gate, *session.Store) {
	store := session.NewStore()
	g := New(api, store, audit.NewLogger(zerolog.Nop()), Config{
		Mode:       mode,
		AppName:    "purviewgate",
		AppVersion: "test",
	}, zerolog.Nop())
	return g, store
}

func promptEntry(seq int) types.ContentEntry {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	return types.ContentEntry{
		ConversationID: "conv-1",
		SequenceNumber: seq,
		Direction:      types.DirectionPrompt,
		Text:           "hello world",
		CreatedAt:      now,
		ModifiedAt:     now,
	}
}

func TestProcessContent_RequiresScopeIdentifier(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(&fakeGraph{}, policy.ModeStrict)
	_, _, err := g.ProcessContent(context.Background(), "", promptEntry(1))
	require.ErrorIs(t, err, ErrNoProtectionScope)
}

func TestProcessContent_NoActionsProceeds(t *testing.T) {
	t.Parallel()

	api := &fakeGraph{respond: func(_ *graph.ProcessContentRequest) (*graph.ProcessContentResponse, error) {
		return &graph.ProcessContentResponse{ProtectionScopeState: "state-1", StatusCode: 200}, nil
	}}
	g, store := newTestGate(api, policy.ModeStrict)

	decision, resp, err := g.ProcessContent(context.Background(), "scope-1", promptEntry(1))
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, policy.OutcomeProceed, decision.Outcome)

	state, ok := store.Get(session.KeyScopeState)
	require.True(t, ok)
	assert.Equal(t, "state-1", state, "scope state persisted")
}

func TestProcessContent_EnvelopeShape(t *testing.T) {
	t.Parallel()

	api := &fakeGraph{}
	g, store := newTestGate(api, policy.ModeStrict)
	store.Set(session.KeyScopeState, "prior-state")

	entry := promptEntry(3)
	_, _, err := g.ProcessContent(context.Background(), "scope-1", entry)
	require.NoError(t, err)

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, "scope-1", req.ScopeIdentifier)
	assert.Equal(t, "prior-state", req.ProtectionScopeState, "prior scope state correlates the call")

	require.Len(t, req.ContentToProcess.ContentEntries, 1)
	payload := req.ContentToProcess.ContentEntries[0]
	assert.NotEmpty(t, payload.Identifier)
	assert.Contains(t, payload.Name, "conv-1")
	assert.Equal(t, "hello world", payload.Content.Data)
	assert.Equal(t, 3, payload.SequenceNumber)
	assert.Equal(t, entry.CreatedAt, payload.CreatedDateTime)

	assert.Equal(t, "uploadText", req.ContentToProcess.ActivityMetadata.Activity)
	assert.Equal(t, "purviewgate", req.ContentToProcess.IntegratedAppMetadata.Name)
	assert.Equal(t, "test", req.ContentToProcess.IntegratedAppMetadata.Version)
}

func TestProcessContent_ResponseDirectionClassifiesDownloadText(t *testing.T) {
	t.Parallel()

	api := &fakeGraph{}
	g, _ := newTestGate(api, policy.ModeStrict)

	entry := promptEntry(2)
	entry.Direction = types.DirectionResponse
	_, _, err := g.ProcessContent(context.Background(), "scope-1", entry)
	require.NoError(t, err)

	require.Len(t, api.requests, 1)
	assert.Equal(t, "downloadText", api.requests[0].ContentToProcess.ActivityMetadata.Activity)
}

func TestProcessContent_FreshCorrelationIDsPerCall(t *testing.T) {
	t.Parallel()

	api := &fakeGraph{}
	g, _ := newTestGate(api, policy.ModeStrict)

	_, _, err := g.ProcessContent(context.Background(), "scope-1", promptEntry(1))
	require.NoError(t, err)
	_, _, err = g.ProcessContent(context.Background(), "scope-1", promptEntry(2))
	require.NoError(t, err)

	require.Len(t, api.requests, 2)
	first := api.requests[0].ContentToProcess.ContentEntries[0].Identifier
	second := api.requests[1].ContentToProcess.ContentEntries[0].Identifier
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestProcessContent_StrictBlocksOnBlockAccess(t *testing.T) {
	t.Parallel()

	api := &fakeGraph{respond: func(_ *graph.ProcessContentRequest) (*graph.ProcessContentResponse, error) {
		return &graph.ProcessContentResponse{
			ProtectionScopeState: "state-1",
			PolicyActions:        []types.PolicyAction{{Action: types.ActionBlockAccess}},
			StatusCode:           200,
		}, nil
	}}
	g, _ := newTestGate(api, policy.ModeStrict)

	decision, resp, err := g.ProcessContent(context.Background(), "scope-1", promptEntry(1))
	require.Error(t, err)

	var blocked *policy.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, types.ActivityUploadText, blocked.Activity)
	assert.Equal(t, types.ActionBlockAccess, blocked.Action.Action)

	assert.Equal(t, policy.OutcomeBlocked, decision.Outcome)
	require.NotNil(t, resp, "raw response available alongside the blocked decision")
}

func TestProcessContent_StrictWarnsOnNonGatingAction(t *testing.T) {
	t.Parallel()

	api := &fakeGraph{respond: func(_ *graph.ProcessContentRequest) (*graph.ProcessContentResponse, error) {
		return &graph.ProcessContentResponse{
			PolicyActions: []types.PolicyAction{{Action: "audit"}},
			StatusCode:    200,
		}, nil
	}}
	g, _ := newTestGate(api, policy.ModeStrict)

	decision, _, err := g.ProcessContent(context.Background(), "scope-1", promptEntry(1))
	require.NoError(t, err)
	assert.Equal(t, policy.OutcomeWarn, decision.Outcome)
	require.NotNil(t, decision.Detail)
	assert.Equal(t, "audit", decision.Detail.Action)
}

func TestProcessContent_LenientNeverErrors(t *testing.T) {
	t.Parallel()

	api := &fakeGraph{respond: func(_ *graph.ProcessContentRequest) (*graph.ProcessContentResponse, error) {
		return &graph.ProcessContentResponse{
			PolicyActions: []types.PolicyAction{{Action: types.ActionBlockAccess}},
			StatusCode:    200,
		}, nil
	}}
	g, _ := newTestGate(api, policy.ModeLenient)

	decision, _, err := g.ProcessContent(context.Background(), "scope-1", promptEntry(1))
	require.NoError(t, err)
	assert.Equal(t, policy.OutcomeWarn, decision.Outcome)
	require.NotNil(t, decision.Detail)
	assert.Equal(t, types.ActionBlockAccess, decision.Detail.Action)
}

func TestProcessContent_TransportErrorSurfaces(t *testing.T) {
	t.Parallel()

	wantErr := &graph.TransportError{Op: "processing content", Err: errors.New("connection refused")}
	api := &fakeGraph{respond: func(_ *graph.ProcessContentRequest) (*graph.ProcessContentResponse, error) {
		return nil, wantErr
	}}
	g, store := newTestGate(api, policy.ModeStrict)

	_, _, err := g.ProcessContent(context.Background(), "scope-1", promptEntry(1))
	require.Error(t, err)

	var transportErr *graph.TransportError
	require.ErrorAs(t, err, &transportErr)

	_, ok := store.Get(session.KeyScopeState)
	assert.False(t, ok, "no scope state persisted on failure")
}
