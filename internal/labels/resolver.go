// Package labels resolves Purview sensitivity labels and computes the
// overall sensitivity of a chat response from its source documents.
package labels

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mattgotteiner/purviewgate/pkg/types"
)

// GraphAPI is the slice of the Graph client the resolver consumes.
type GraphAPI interface {
	GetSensitivityLabel(ctx context.Context, id string) (*types.SensitivityLabel, error)
}

// DocumentLabel is the label attached to one retrieved source document.
type DocumentLabel struct {
	DocumentID string
	SourceFile string
	Label      types.SensitivityLabel
}

// ResponseSensitivity is the overall sensitivity computed for a response.
type ResponseSensitivity struct {
	Overall   types.SensitivityLabel
	Documents []DocumentLabel
}

// Badge is the display projection of a sensitivity label.
type Badge struct {
	Text     string `json:"text"`
	Color    string `json:"color"`
	Priority int    `json:"priority"`
	ID       string `json:"id"`
}

// Resolver resolves label GUIDs via Graph with a per-resolver cache.
// Resolution failures degrade to a fallback label, never an error.
type Resolver struct {
	api     GraphAPI
	enabled bool
	logger  zerolog.Logger

	mu    sync.Mutex
	cache map[string]types.SensitivityLabel
}

// NewResolver creates a label resolver. When enabled is false every GUID
// resolves to its fallback label without a network call.
func NewResolver(api GraphAPI, enabled bool, logger zerolog.Logger) *Resolver {
	return &Resolver{
		api:     api,
		enabled: enabled,
		logger:  logger.With().Str("component", "labels").Logger(),
		cache:   make(map[string]types.SensitivityLabel),
	}
}

// Resolve maps a label value from document metadata onto a SensitivityLabel.
// GUID values are resolved via Graph; plain strings become name-only labels.
func (r *Resolver) Resolve(ctx context.Context, value string) types.SensitivityLabel {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return types.SensitivityLabel{}
	}

	if !isGUID(trimmed) {
		return labelFromString(trimmed)
	}
	if !r.enabled {
		return fallbackLabel(trimmed)
	}

	r.mu.Lock()
	cached, ok := r.cache[trimmed]
	r.mu.Unlock()
	if ok {
		return cached
	}

	label, err := r.api.GetSensitivityLabel(ctx, trimmed)
	if err != nil {
		r.logger.Warn().Err(err).Str("label_id", trimmed).Msg("label resolution failed, using fallback")
		return fallbackLabel(trimmed)
	}

	resolved := *label
	if resolved.DisplayName == "" {
		resolved.DisplayName = resolved.Name
	}
	if resolved.Color == "" {
		resolved.Color = "#808080"
	}

	r.mu.Lock()
	r.cache[trimmed] = resolved
	r.mu.Unlock()

	return resolved
}

// ComputeInheritance picks the overall label for a response: the highest
// priority wins; with no priorities the first document's label is used.
// ok is false when no documents carry labels.
func ComputeInheritance(docLabels []DocumentLabel) (ResponseSensitivity, bool) {
	if len(docLabels) == 0 {
		return ResponseSensitivity{}, false
	}

	prioritized := make([]DocumentLabel, 0, len(docLabels))
	for _, dl := range docLabels {
		if dl.Label.Priority > 0 {
			prioritized = append(prioritized, dl)
		}
	}

	chosen := docLabels[0].Label
	if len(prioritized) > 0 {
		sort.SliceStable(prioritized, func(i, j int) bool {
			return prioritized[i].Label.Priority > prioritized[j].Label.Priority
		})
		chosen = prioritized[0].Label
	}

	return ResponseSensitivity{
		Overall:   chosen,
		Documents: docLabels,
	}, true
}

// BadgeInfo projects a label for UI display.
func BadgeInfo(label types.SensitivityLabel) Badge {
	return Badge{
		Text:     label.DisplayName,
		Color:    label.Color,
		Priority: label.Priority,
		ID:       label.ID,
	}
}

func isGUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func fallbackLabel(id string) types.SensitivityLabel {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return types.SensitivityLabel{
		ID:          id,
		Name:        fmt.Sprintf("Purview Label (%s...)", short),
		DisplayName: fmt.Sprintf("Purview Label (ID: %s...)", short),
		Color:       "orange",
	}
}

func labelFromString(name string) types.SensitivityLabel {
	return types.SensitivityLabel{
		ID:          strings.ReplaceAll(strings.ToLower(name), " ", "-"),
		Name:        name,
		DisplayName: name,
		Color:       "orange",
	}
}
