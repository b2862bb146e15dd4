// model.go -- Integration configuration document.
//
// The document is JSON with PascalCase keys, published by the queueing
// service and loaded at the boundary. Decoded once into these types.
package rules

import (
	"encoding/json"
	"fmt"
)

// Action types. An empty ActionType means Queue.
const (
	ActionQueue  = "Queue"
	ActionCancel = "Cancel"
	ActionIgnore = "Ignore"
)

// Redirect logic modes.
const (
	RedirectForcedTargetURL = "ForcedTargetUrl"
	// Misspelled variant still emitted by older config publishers.
	RedirectForcedTargetURLTypo = "ForecedTargetUrl"
	RedirectEventTargetURL      = "EventTargetUrl"
	RedirectAllowTParameter     = "AllowTParameter"
)

// Logical operators for a Trigger. Anything other than LogicalOr means AND.
const (
	LogicalAnd = "And"
	LogicalOr  = "Or"
)

// CustomerIntegration is the whole integration document for one customer.
type CustomerIntegration struct {
	Integrations []IntegrationConfig `json:"Integrations"`
	Version      int                 `json:"Version"`
	Description  string              `json:"Description,omitempty"`
}

// IntegrationConfig binds a set of triggers to one event and action.
// Name doubles as the action name reported to the queueing service.
type IntegrationConfig struct {
	Name                 string    `json:"Name"`
	EventID              string    `json:"EventId"`
	CookieDomain         string    `json:"CookieDomain"`
	LayoutName           string    `json:"LayoutName"`
	Culture              string    `json:"Culture"`
	ExtendCookieValidity bool      `json:"ExtendCookieValidity"`
	CookieValidityMinute int       `json:"CookieValidityMinute"`
	QueueDomain          string    `json:"QueueDomain"`
	RedirectLogic        string    `json:"RedirectLogic"`
	ForcedTargetURL      string    `json:"ForcedTargetUrl"`
	ActionType           string    `json:"ActionType"`
	Triggers             []Trigger `json:"Triggers"`
	IsCookieHttpOnly     bool      `json:"IsCookieHttpOnly"`
	IsCookieSecure       bool      `json:"IsCookieSecure"`
}

// Trigger is one group of parts joined by LogicalOperator.
type Trigger struct {
	LogicalOperator string        `json:"LogicalOperator"`
	TriggerParts    []TriggerPart `json:"TriggerParts"`
}

// Parse decodes an integration document.
func Parse(data []byte) (*CustomerIntegration, error) {
	var ci CustomerIntegration
	if err := json.Unmarshal(data, &ci); err != nil {
		return nil, fmt.Errorf("decoding integration config: %w", err)
	}
	return &ci, nil
}
