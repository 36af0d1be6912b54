package graph

import (
	"net/http"
	"time"

	"github.com/mattgotteiner/purviewgate/pkg/types"
)

// PolicyScopeEntry is one entry of a computed protection scope: a
// comma-delimited set of activity names and the execution mode they require.
type PolicyScopeEntry struct {
	Activities    string `json:"activities"`
	ExecutionMode string `json:"executionMode"`
}

// ProtectionScopesResponse is the decoded body of a protectionScopes/compute
// call plus the revalidation tag carried in the ETag response header.
type ProtectionScopesResponse struct {
	ScopeIdentifier string             `json:"scopeIdentifier"`
	Value           []PolicyScopeEntry `json:"value"`

	// ETag is the revalidation tag from the response header. On a 304 it
	// echoes the If-None-Match value the caller supplied.
	ETag string `json:"-"`
	// NotModified reports a 304 response; the body fields are empty.
	NotModified bool `json:"-"`
}

// TextContent holds the literal text payload of one content entry.
type TextContent struct {
	Data string `json:"data"`
}

// ContentEntryPayload is one content entry in a processContent envelope.
type ContentEntryPayload struct {
	Identifier       string      `json:"identifier"`
	Name             string      `json:"name"`
	Content          TextContent `json:"content"`
	SequenceNumber   int         `json:"sequenceNumber"`
	CreatedDateTime  time.Time   `json:"createdDateTime"`
	ModifiedDateTime time.Time   `json:"modifiedDateTime"`
}

// ActivityMetadata classifies the user operation being evaluated.
type ActivityMetadata struct {
	Activity string `json:"activity"`
}

// DeviceMetadata identifies the calling device class.
type DeviceMetadata struct {
	DeviceType      string `json:"deviceType"`
	OperatingSystem string `json:"operatingSystem"`
}

// AppMetadata identifies the integrated application submitting content.
type AppMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ContentToProcess groups the content entries with their call metadata.
type ContentToProcess struct {
	ContentEntries        []ContentEntryPayload `json:"contentEntries"`
	ActivityMetadata      ActivityMetadata      `json:"activityMetadata"`
	DeviceMetadata        DeviceMetadata        `json:"deviceMetadata"`
	IntegratedAppMetadata AppMetadata           `json:"integratedAppMetadata"`
}

// ProcessContentRequest is the envelope submitted to processContent.
type ProcessContentRequest struct {
	ScopeIdentifier      string           `json:"scopeIdentifier"`
	ProtectionScopeState string           `json:"protectionScopeState,omitempty"`
	ContentToProcess     ContentToProcess `json:"contentToProcess"`
}

// ProcessContentResponse is the decoded policy-engine answer plus the raw
// transport status and headers for caller inspection.
type ProcessContentResponse struct {
	ProtectionScopeState string               `json:"protectionScopeState"`
	PolicyActions        []types.PolicyAction `json:"policyActions,omitempty"`

	StatusCode int         `json:"-"`
	Header     http.Header `json:"-"`
}
