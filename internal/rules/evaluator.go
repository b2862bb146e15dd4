// evaluator.go -- Matches a request against an integration document.
package rules

import (
	"errors"

	"github.com/MGallo-Code/styx/internal/httpctx"
)

// ErrNilRequest means Match was called without a request.
var ErrNilRequest = errors.New("request is nil")

// Match returns the first integration, in document order, with at least one
// trigger that evaluates true for currentURL and req. Returns nil when nothing matches.
func Match(ci *CustomerIntegration, currentURL string, req httpctx.Request) (*IntegrationConfig, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	if ci == nil {
		return nil, nil
	}
	for i := range ci.Integrations {
		integration := &ci.Integrations[i]
		for _, trigger := range integration.Triggers {
			if trigger.Evaluate(currentURL, req) {
				return integration, nil
			}
		}
	}
	return nil, nil
}

// Evaluate combines the trigger's parts with short-circuit OR when
// LogicalOperator is "Or", otherwise short-circuit AND. No parts under AND is
// true; no parts under OR is false.
func (t Trigger) Evaluate(currentURL string, req httpctx.Request) bool {
	if t.LogicalOperator == LogicalOr {
		for _, part := range t.TriggerParts {
			if part.Evaluate(currentURL, req) {
				return true
			}
		}
		return false
	}
	for _, part := range t.TriggerParts {
		if !part.Evaluate(currentURL, req) {
			return false
		}
	}
	return true
}
