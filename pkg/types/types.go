// Package types defines the shared domain model for purviewgate.
package types

import (
	"strings"
	"time"
)

// ExecutionMode states whether a DLP activity must be evaluated before the
// operation proceeds (inline) or may be evaluated after the fact (offline).
type ExecutionMode string

const (
	// ModeInline requires synchronous policy evaluation before proceeding.
	ModeInline ExecutionMode = "evaluateInline"
	// ModeOffline permits asynchronous policy evaluation after the fact.
	ModeOffline ExecutionMode = "evaluateOffline"
	// ModeUnknown is returned for activities never seen in a protection scope.
	ModeUnknown ExecutionMode = ""
)

// ParseExecutionMode normalizes a wire-format execution mode string.
func ParseExecutionMode(s string) ExecutionMode {
	switch strings.TrimSpace(s) {
	case string(ModeInline):
		return ModeInline
	case string(ModeOffline):
		return ModeOffline
	default:
		return ModeUnknown
	}
}

// Activity names a DLP-classified user operation.
type Activity string

const (
	// ActivityUploadText classifies outbound chat prompts.
	ActivityUploadText Activity = "uploadText"
	// ActivityDownloadText classifies inbound chat responses.
	ActivityDownloadText Activity = "downloadText"
)

// Direction marks whether a content entry flows toward or from the backend.
type Direction string

const (
	// DirectionPrompt is an outbound user prompt.
	DirectionPrompt Direction = "prompt"
	// DirectionResponse is an inbound model response.
	DirectionResponse Direction = "response"
)

// Activity maps a content direction onto its DLP activity classification.
func (d Direction) Activity() Activity {
	if d == DirectionResponse {
		return ActivityDownloadText
	}
	return ActivityUploadText
}

// ContentEntry is one chat turn submitted for policy evaluation. Entries are
// constructed and owned by the chat pipeline and never retained by the gate
// beyond a single request.
type ContentEntry struct {
	ConversationID string
	SequenceNumber int
	Direction      Direction
	Text           string
	CreatedAt      time.Time
	ModifiedAt     time.Time
}

// ProtectionScope is a user's current DLP protection scope: the activities
// covered by active policies and the evaluation mode each one requires.
type ProtectionScope struct {
	// Identifier is the opaque scope id required by content-processing calls.
	// Empty only when NotModified is set.
	Identifier string
	// RevalidationTag is the opaque ETag used for conditional refresh.
	RevalidationTag string
	// ActivityModes maps each covered activity to its execution mode.
	ActivityModes map[Activity]ExecutionMode
	// NotModified reports that the server confirmed the previously cached
	// scope is still current; callers keep using the last known scope.
	NotModified bool
}

// PolicyAction is one directive returned by the policy engine for a
// content-processing submission.
type PolicyAction struct {
	Action      string   `json:"action"`
	Restriction string   `json:"restrictionAction,omitempty"`
	PolicyIDs   []string `json:"policyIds,omitempty"`
}

const (
	// ActionRestrictAccess mandates restricting access to the content.
	ActionRestrictAccess = "restrictAccess"
	// ActionBlockAccess mandates blocking the operation entirely.
	ActionBlockAccess = "blockAccess"
)

// SensitivityLabel is a resolved Purview sensitivity label.
type SensitivityLabel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	Priority    int    `json:"priority"`
}
