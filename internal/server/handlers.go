package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattgotteiner/purviewgate/internal/backend"
	"github.com/mattgotteiner/purviewgate/internal/gate"
	"github.com/mattgotteiner/purviewgate/internal/labels"
	"github.com/mattgotteiner/purviewgate/internal/policy"
	"github.com/mattgotteiner/purviewgate/internal/session"
	"github.com/mattgotteiner/purviewgate/pkg/types"
)

const offlineEvaluationTimeout = 30 * time.Second

type loginResponse struct {
	DisplayName     string `json:"displayName,omitempty"`
	ScopeIdentifier string `json:"scopeIdentifier"`
	Activities      int    `json:"activities"`
	NotModified     bool   `json:"notModified,omitempty"`
}

type chatRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

type policyWarning struct {
	Stage  string `json:"stage"`
	Action string `json:"action"`
}

type chatResponse struct {
	ConversationID string          `json:"conversationId"`
	Answer         string          `json:"answer"`
	Warnings       []policyWarning `json:"warnings,omitempty"`
	Sensitivity    *labels.Badge   `json:"sensitivity,omitempty"`
}

// handleLogin acquires the session credentials and refreshes the protection
// scope so chat turns can be gated.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	graphCred, err := s.graphAuth.Acquire(ctx, s.cfg.GraphScopes)
	if err != nil {
		s.logger.Error().Err(err).Msg("graph token acquisition failed")
		respondProblem(w, http.StatusBadGateway, "Token Acquisition Failed", "could not acquire a Graph credential")
		return
	}
	if !graphCred.Valid() {
		respondProblem(w, http.StatusUnauthorized, "Unauthorized", "no Graph credential resolved for this session")
		return
	}
	s.store.SetCredential(session.AudienceGraph, graphCred)

	if s.backendAuth != nil {
		backendCred, err := s.backendAuth.Acquire(ctx, s.cfg.BackendScopes)
		if err != nil {
			s.logger.Error().Err(err).Msg("backend token acquisition failed")
			respondProblem(w, http.StatusBadGateway, "Token Acquisition Failed", "could not acquire a backend credential")
			return
		}
		if backendCred.Valid() {
			s.store.SetCredential(session.AudienceBackend, backendCred)
		}
	}

	protectionScope, err := s.scopes.RefreshSession(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("protection scope refresh failed")
		respondProblem(w, http.StatusBadGateway, "Protection Scope Unavailable", "could not compute the protection scope")
		return
	}

	resp := loginResponse{
		DisplayName: graphCred.DisplayName,
		NotModified: protectionScope.NotModified,
	}
	if protectionScope.NotModified {
		// Carry forward the last good scope; the cache left it untouched.
		resp.ScopeIdentifier, _ = s.store.Get(session.KeyScopeIdentifier)
	} else {
		resp.ScopeIdentifier = protectionScope.Identifier
		resp.Activities = len(protectionScope.ActivityModes)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleLogout invalidates the session: credentials, cached scope, modes.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.store.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// handleChat runs one DLP-gated chat turn: gate the prompt, forward to the
// backend, gate the response, attach warnings and response sensitivity.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondProblem(w, http.StatusBadRequest, "Bad Request", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondProblem(w, http.StatusBadRequest, "Bad Request", "message is required")
		return
	}

	if _, ok := s.store.Credential(session.AudienceGraph); !ok {
		respondProblem(w, http.StatusUnauthorized, "Unauthorized", "no active session; log in first")
		return
	}
	scopeID, ok := s.store.Get(session.KeyScopeIdentifier)
	if !ok || scopeID == "" {
		respondProblem(w, http.StatusConflict, "No Protection Scope", "protection scope has not been computed for this session")
		return
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	now := time.Now().UTC()
	promptEntry := types.ContentEntry{
		ConversationID: conversationID,
		SequenceNumber: s.store.NextSequence(conversationID),
		Direction:      types.DirectionPrompt,
		Text:           req.Message,
		CreatedAt:      now,
		ModifiedAt:     now,
	}

	var warnings []policyWarning
	if blocked := s.evaluate(ctx, w, scopeID, promptEntry, "prompt", &warnings); blocked {
		return
	}

	reply, err := s.chat.Chat(ctx, backend.ChatRequest{
		ConversationID: conversationID,
		Message:        req.Message,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("backend chat call failed")
		respondProblem(w, http.StatusBadGateway, "Backend Unavailable", "chat backend call failed")
		return
	}

	replyAt := time.Now().UTC()
	responseEntry := types.ContentEntry{
		ConversationID: conversationID,
		SequenceNumber: s.store.NextSequence(conversationID),
		Direction:      types.DirectionResponse,
		Text:           reply.Answer,
		CreatedAt:      replyAt,
		ModifiedAt:     replyAt,
	}
	if blocked := s.evaluate(ctx, w, scopeID, responseEntry, "response", &warnings); blocked {
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{
		ConversationID: conversationID,
		Answer:         reply.Answer,
		Warnings:       warnings,
		Sensitivity:    s.responseSensitivity(ctx, reply.Documents),
	})
}

// evaluate gates one content entry according to its activity's execution
// mode. It reports true when the turn was blocked and a response written.
func (s *Server) evaluate(
	ctx context.Context,
	w http.ResponseWriter,
	scopeID string,
	entry types.ContentEntry,
	stage string,
	warnings *[]policyWarning,
) bool {
	mode := s.scopes.ModeFor(entry.Direction.Activity())
	if mode == types.ModeOffline {
		// Fire-and-forget: the decision does not gate this turn. The
		// evaluation outlives the request so the policy engine still sees
		// every turn, in order, via the sequence number.
		detached := context.WithoutCancel(ctx)
		go func() {
			offCtx, cancel := context.WithTimeout(detached, offlineEvaluationTimeout)
			defer cancel()
			if _, _, err := s.gate.ProcessContent(offCtx, scopeID, entry); err != nil {
				s.logger.Warn().Err(err).
					Str("conversation_id", entry.ConversationID).
					Str("stage", stage).
					Msg("offline content evaluation failed")
			}
		}()
		return false
	}

	// Inline, and unknown activities: evaluate synchronously before
	// proceeding. Unknown falls back to inline so an incomplete mode table
	// never skips enforcement.
	decision, _, err := s.gate.ProcessContent(ctx, scopeID, entry)
	var blockedErr *policy.BlockedError
	switch {
	case errors.As(err, &blockedErr):
		respondProblem(w, http.StatusForbidden, "Blocked by Policy",
			"a data loss prevention policy blocked this "+stage)
		return true
	case errors.Is(err, gate.ErrNoProtectionScope):
		respondProblem(w, http.StatusConflict, "No Protection Scope",
			"protection scope has not been computed for this session")
		return true
	case err != nil:
		s.logger.Error().Err(err).Str("stage", stage).Msg("content evaluation failed")
		respondProblem(w, http.StatusBadGateway, "Policy Evaluation Failed",
			"content could not be evaluated against policy")
		return true
	}

	if decision.Outcome == policy.OutcomeWarn && decision.Detail != nil {
		*warnings = append(*warnings, policyWarning{Stage: stage, Action: decision.Detail.Action})
	}
	return false
}

// responseSensitivity resolves document labels and computes the overall
// response label. Failures degrade to "no sensitivity", never an error.
func (s *Server) responseSensitivity(ctx context.Context, docs []backend.DocumentRef) *labels.Badge {
	if s.labels == nil || len(docs) == 0 {
		return nil
	}

	docLabels := make([]labels.DocumentLabel, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.SensitivityLabel) == "" {
			continue
		}
		docLabels = append(docLabels, labels.DocumentLabel{
			DocumentID: doc.DocumentID,
			SourceFile: doc.SourceFile,
			Label:      s.labels.Resolve(ctx, doc.SensitivityLabel),
		})
	}

	sensitivity, ok := labels.ComputeInheritance(docLabels)
	if !ok {
		return nil
	}
	badge := labels.BadgeInfo(sensitivity.Overall)
	return &badge
}
