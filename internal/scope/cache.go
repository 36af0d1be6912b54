// Package scope fetches and caches a user's DLP protection scope with
// conditional-revalidation semantics and derives the per-activity
// execution-mode table other components consult before submitting content.
package scope

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mattgotteiner/purviewgate/internal/session"
	"github.com/mattgotteiner/purviewgate/pkg/graph"
	"github.com/mattgotteiner/purviewgate/pkg/types"
)

// ErrMissingScopeIdentifier indicates a successful scope computation whose
// body lacked the scope identifier. Treated as fatal for that refresh: no
// valid scope exists to run content processing against.
var ErrMissingScopeIdentifier = errors.New("protection scope response is missing scopeIdentifier")

// GraphAPI is the slice of the Graph client the cache consumes.
type GraphAPI interface {
	ComputeProtectionScopes(ctx context.Context, ifNoneMatch string) (*graph.ProtectionScopesResponse, error)
}

// Cache refreshes the protection scope and persists the derived
// activity-mode table into the session store.
type Cache struct {
	api    GraphAPI
	store  *session.Store
	group  singleflight.Group
	logger zerolog.Logger
}

// New creates a protection scope cache.
func New(api GraphAPI, store *session.Store, logger zerolog.Logger) *Cache {
	return &Cache{
		api:    api,
		store:  store,
		logger: logger.With().Str("component", "scope").Logger(),
	}
}

// Refresh computes the current protection scope, using previousTag as a
// conditional-revalidation precondition when non-empty.
//
// Concurrent callers share one in-flight request; at most one scope
// computation is issued per session at a time.
//
// On "not modified" the result carries the previous tag unchanged, an empty
// identifier, and NotModified=true; the session store (last good scope and
// activity modes) is left untouched.
func (c *Cache) Refresh(ctx context.Context, previousTag string) (types.ProtectionScope, error) {
	result, err, shared := c.group.Do("protection-scope", func() (any, error) {
		return c.refresh(ctx, previousTag)
	})
	if err != nil {
		return types.ProtectionScope{}, err
	}
	if shared {
		c.logger.Debug().Msg("joined in-flight protection scope refresh")
	}
	return result.(types.ProtectionScope), nil
}

// RefreshSession refreshes using the tag cached in the session store.
func (c *Cache) RefreshSession(ctx context.Context) (types.ProtectionScope, error) {
	previousTag, _ := c.store.Get(session.KeyRevalidationTag)
	return c.Refresh(ctx, previousTag)
}

func (c *Cache) refresh(ctx context.Context, previousTag string) (types.ProtectionScope, error) {
	resp, err := c.api.ComputeProtectionScopes(ctx, previousTag)
	if err != nil {
		return types.ProtectionScope{}, fmt.Errorf("refreshing protection scope: %w", err)
	}

	if resp.NotModified {
		c.logger.Debug().Str("etag", previousTag).Msg("protection scope not modified")
		return types.ProtectionScope{
			RevalidationTag: previousTag,
			NotModified:     true,
		}, nil
	}

	identifier := strings.TrimSpace(resp.ScopeIdentifier)
	if identifier == "" {
		return types.ProtectionScope{}, ErrMissingScopeIdentifier
	}

	modes := foldActivityModes(resp.Value)
	c.persist(identifier, resp.ETag, modes)

	c.logger.Info().
		Str("scope_identifier", identifier).
		Str("etag", resp.ETag).
		Int("activities", len(modes)).
		Msg("protection scope refreshed")

	return types.ProtectionScope{
		Identifier:      identifier,
		RevalidationTag: resp.ETag,
		ActivityModes:   modes,
	}, nil
}

// ModeFor returns the execution mode last persisted for an activity.
// Pure lookup, no network I/O; never-seen activities yield ModeUnknown.
func (c *Cache) ModeFor(activity types.Activity) types.ExecutionMode {
	value, ok := c.store.Get(session.ActivityKey(string(activity)))
	if !ok {
		return types.ModeUnknown
	}
	return types.ParseExecutionMode(value)
}

func (c *Cache) persist(identifier, etag string, modes map[types.Activity]types.ExecutionMode) {
	c.store.Set(session.KeyScopeIdentifier, identifier)
	if etag != "" {
		c.store.Set(session.KeyRevalidationTag, etag)
	}
	for activity, mode := range modes {
		c.store.Set(session.ActivityKey(string(activity)), string(mode))
	}
}

// foldActivityModes expands each scope entry's comma-delimited activity list
// into (activity, mode) pairs. evaluateInline always wins over
// evaluateOffline for the same activity; otherwise the later entry overwrites.
func foldActivityModes(entries []graph.PolicyScopeEntry) map[types.Activity]types.ExecutionMode {
	modes := make(map[types.Activity]types.ExecutionMode)
	for _, entry := range entries {
		mode := types.ParseExecutionMode(entry.ExecutionMode)
		if mode == types.ModeUnknown {
			continue
		}
		for _, name := range strings.Split(entry.Activities, ",") {
			activity := types.Activity(strings.TrimSpace(name))
			if activity == "" {
				continue
			}
			if modes[activity] == types.ModeInline {
				continue
			}
			modes[activity] = mode
		}
	}
	return modes
}
