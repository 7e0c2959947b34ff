// Package intent validates parsed intents before dispatch: the action must
// be registered, its required parameters must be present, and low-confidence
// interpretations get flagged for user confirmation.
package intent

import (
	"fmt"

	"github.com/swarajlabs/vaani/internal/action"
	"github.com/swarajlabs/vaani/pkg/types"
)

// ConfidenceThreshold is the minimum classifier confidence below which an
// intent needs explicit confirmation. An intent at exactly the threshold
// executes directly.
const ConfidenceThreshold = 0.7

// Validation is the outcome of validating one intent.
type Validation struct {
	// Valid reports whether the intent may be dispatched.
	Valid bool

	// Reason explains a failed validation, in user-presentable terms.
	Reason string
}

// Definitions is the subset of the action registry the validator needs.
// *action.Registry satisfies it.
type Definitions interface {
	Get(name string) (action.Definition, bool)
}

// Validator checks intents against the registered action schemas.
type Validator struct {
	defs Definitions
}

// NewValidator creates a Validator over the given definitions.
func NewValidator(defs Definitions) *Validator {
	return &Validator{defs: defs}
}

// Validate checks that the intent's action exists and that every required
// parameter carries a non-empty value. Unknown actions fail closed.
func (v *Validator) Validate(intent types.Intent) Validation {
	def, ok := v.defs.Get(intent.Action)
	if !ok {
		return Validation{
			Valid:  false,
			Reason: fmt.Sprintf("Action %q is not supported", intent.Action),
		}
	}

	for _, p := range def.Parameters {
		if !p.Required {
			continue
		}
		if !hasValue(intent.Entities, p.Name) {
			return Validation{
				Valid:  false,
				Reason: fmt.Sprintf("Missing required parameter: %s", p.Name),
			}
		}
	}

	return Validation{Valid: true}
}

// Finalize returns a copy of the intent with RequiresConfirmation resolved:
// sensitive actions always confirm, and any confidence strictly below
// [ConfidenceThreshold] confirms regardless of the action.
func (v *Validator) Finalize(intent types.Intent) types.Intent {
	if def, ok := v.defs.Get(intent.Action); ok && def.RequiresConfirmation {
		intent.RequiresConfirmation = true
	}
	if intent.Confidence < ConfidenceThreshold {
		intent.RequiresConfirmation = true
	}
	return intent
}

// hasValue reports whether entities carries a usable value for name. Empty
// strings count as absent so "open the website" with url "" asks for
// clarification instead of dispatching.
func hasValue(entities map[string]any, name string) bool {
	v, ok := entities[name]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}
