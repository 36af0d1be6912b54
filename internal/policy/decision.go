// Package policy interprets DLP policy-engine responses into enforcement
// decisions. The interpreter is pure logic, independent of transport.
package policy

import (
	"fmt"
	"strings"

	"github.com/mattgotteiner/purviewgate/pkg/types"
)

// Mode selects how policy actions gate the caller's operation.
type Mode string

const (
	// ModeStrict blocks the operation when the policy engine mandates
	// restricting or blocking access.
	ModeStrict Mode = "strict"
	// ModeLenient never blocks: any returned action downgrades to a warning.
	ModeLenient Mode = "lenient"
)

// ParseMode validates a configured policy mode. Empty defaults to strict.
func ParseMode(mode string) (Mode, error) {
	normalized := strings.ToLower(strings.TrimSpace(mode))
	switch normalized {
	case "":
		return ModeStrict, nil
	case string(ModeStrict):
		return ModeStrict, nil
	case string(ModeLenient):
		return ModeLenient, nil
	default:
		return "", fmt.Errorf("invalid policy mode %q (allowed: %s|%s)", mode, ModeStrict, ModeLenient)
	}
}

// Outcome is the enforcement result of one content-processing call.
type Outcome string

const (
	// OutcomeProceed permits the operation with no caveats.
	OutcomeProceed Outcome = "proceed"
	// OutcomeBlocked stops the operation; the caller must not proceed.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeWarn permits the operation but attaches the triggering action.
	OutcomeWarn Outcome = "proceed-with-warning"
)

// Decision is the interpreted result of a policy-engine response.
type Decision struct {
	Outcome Outcome
	// Detail is the action that drove a non-proceed outcome, nil otherwise.
	Detail *types.PolicyAction
	// Actions is the ordered action sequence as returned by the engine.
	Actions []types.PolicyAction
}

// Allowed reports whether the decision permits the operation.
func (d Decision) Allowed() bool {
	return d.Outcome != OutcomeBlocked
}

// IsBlockingAction reports whether an action type gates access in strict mode.
func IsBlockingAction(action string) bool {
	switch strings.TrimSpace(action) {
	case types.ActionRestrictAccess, types.ActionBlockAccess:
		return true
	default:
		return false
	}
}

// Interpret maps a policy-engine action sequence onto an enforcement
// decision for the given mode:
//
//   - no actions: proceed, in every mode
//   - lenient with actions: proceed-with-warning, first action attached
//   - strict with a restrictAccess/blockAccess first action: blocked
//   - strict with any other first action: proceed-with-warning
func Interpret(actions []types.PolicyAction, mode Mode) Decision {
	if len(actions) == 0 {
		return Decision{Outcome: OutcomeProceed}
	}

	first := actions[0]
	if mode == ModeStrict && IsBlockingAction(first.Action) {
		return Decision{Outcome: OutcomeBlocked, Detail: &first, Actions: actions}
	}
	return Decision{Outcome: OutcomeWarn, Detail: &first, Actions: actions}
}

// BlockedError is surfaced when a DLP policy action mandates stopping the
// operation. Fail-closed: the chat turn must not proceed.
type BlockedError struct {
	Activity types.Activity
	Action   types.PolicyAction
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("policy blocked %s (action %s)", e.Activity, e.Action.Action)
}
