// Package gate submits chat content to the policy-evaluation endpoint and
// enforces the interpreted decision on the caller's operation.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mattgotteiner/purviewgate/internal/audit"
	"github.com/mattgotteiner/purviewgate/internal/policy"
	"github.com/mattgotteiner/purviewgate/internal/session"
	"github.com/mattgotteiner/purviewgate/pkg/graph"
	"github.com/mattgotteiner/purviewgate/pkg/types"
)

// ErrNoProtectionScope indicates a content entry was submitted before a
// valid scope identifier existed for the session.
var ErrNoProtectionScope = errors.New("no protection scope identifier for session")

// GraphAPI is the slice of the Graph client the gate consumes.
type GraphAPI interface {
	ProcessContent(ctx context.Context, payload *graph.ProcessContentRequest) (*graph.ProcessContentResponse, error)
}

// Config holds gate configuration.
type Config struct {
	// Mode selects strict (fail-closed) or lenient (warn-only) enforcement.
	Mode policy.Mode
	// AppName and AppVersion identify purviewgate in the request envelope.
	AppName    string
	AppVersion string
}

// Gate evaluates content entries against the caller's protection scope.
type Gate struct {
	api    GraphAPI
	store  *session.Store
	audit  *audit.Logger
	cfg    Config
	logger zerolog.Logger
}

// New creates a content processing gate.
func New(api GraphAPI, store *session.Store, auditLog *audit.Logger, cfg Config, logger zerolog.Logger) *Gate {
	if cfg.Mode == "" {
		cfg.Mode = policy.ModeStrict
	}
	if cfg.AppName == "" {
		cfg.AppName = "purviewgate"
	}
	return &Gate{
		api:    api,
		store:  store,
		audit:  auditLog,
		cfg:    cfg,
		logger: logger.With().Str("component", "gate").Logger(),
	}
}

// Mode returns the configured policy mode.
func (g *Gate) Mode() policy.Mode {
	return g.cfg.Mode
}

// ProcessContent submits one content entry for policy evaluation under the
// given scope identifier and interprets the engine's actions.
//
// The returned decision and raw response are valid whenever err is nil or a
// *policy.BlockedError; a blocked strict-mode evaluation yields both the
// blocked decision and the error so callers can stop the operation and still
// inspect the engine's answer.
func (g *Gate) ProcessContent(
	ctx context.Context,
	scopeIdentifier string,
	entry types.ContentEntry,
) (policy.Decision, *graph.ProcessContentResponse, error) {
	if scopeIdentifier == "" {
		return policy.Decision{}, nil, ErrNoProtectionScope
	}

	correlationID := uuid.NewString()
	activity := entry.Direction.Activity()
	started := time.Now()

	resp, err := g.api.ProcessContent(ctx, g.buildEnvelope(scopeIdentifier, correlationID, entry))
	if err != nil {
		g.complete(correlationID, entry, activity, policy.Decision{Outcome: ""}, started, err)
		return policy.Decision{}, nil, fmt.Errorf("processing %s content: %w", entry.Direction, err)
	}

	// Last-write-wins; the scope state is an advisory correlation token only.
	g.store.Set(session.KeyScopeState, resp.ProtectionScopeState)

	decision := policy.Interpret(resp.PolicyActions, g.cfg.Mode)
	g.complete(correlationID, entry, activity, decision, started, nil)

	if decision.Outcome == policy.OutcomeBlocked {
		return decision, resp, &policy.BlockedError{Activity: activity, Action: *decision.Detail}
	}
	return decision, resp, nil
}

func (g *Gate) buildEnvelope(scopeIdentifier, correlationID string, entry types.ContentEntry) *graph.ProcessContentRequest {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	modified := entry.ModifiedAt
	if modified.IsZero() {
		modified = created
	}

	previousState, _ := g.store.Get(session.KeyScopeState)

	return &graph.ProcessContentRequest{
		ScopeIdentifier:      scopeIdentifier,
		ProtectionScopeState: previousState,
		ContentToProcess: graph.ContentToProcess{
			ContentEntries: []graph.ContentEntryPayload{{
				Identifier:       correlationID,
				Name:             contentName(entry),
				Content:          graph.TextContent{Data: entry.Text},
				SequenceNumber:   entry.SequenceNumber,
				CreatedDateTime:  created,
				ModifiedDateTime: modified,
			}},
			ActivityMetadata: graph.ActivityMetadata{
				Activity: string(entry.Direction.Activity()),
			},
			DeviceMetadata: graph.DeviceMetadata{
				DeviceType:      "managedDevice",
				OperatingSystem: "Linux",
			},
			IntegratedAppMetadata: graph.AppMetadata{
				Name:    g.cfg.AppName,
				Version: g.cfg.AppVersion,
			},
		},
	}
}

func (g *Gate) complete(
	correlationID string,
	entry types.ContentEntry,
	activity types.Activity,
	decision policy.Decision,
	started time.Time,
	err error,
) {
	event := audit.Evaluation{
		CorrelationID:  correlationID,
		ConversationID: entry.ConversationID,
		SequenceNumber: entry.SequenceNumber,
		Activity:       activity,
		PolicyMode:     g.cfg.Mode,
		Outcome:        decision.Outcome,
		Duration:       time.Since(started),
	}
	if decision.Detail != nil {
		event.Action = decision.Detail.Action
	}
	if err != nil {
		event.ErrorDetail = err.Error()
	}
	g.audit.Complete(event)
}

// contentName derives a synthetic content name from the conversation turn.
func contentName(entry types.ContentEntry) string {
	conversation := entry.ConversationID
	if conversation == "" {
		conversation = "unattributed"
	}
	return fmt.Sprintf("chat-%s-%s-%d.txt", conversation, entry.Direction, entry.SequenceNumber)
}
