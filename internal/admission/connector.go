// connector.go -- Entry points for one request.
//
// Connector validates caller input, resolves the target URL, runs diagnostics
// for debug tokens and delegates the decision to a QueueService.
package admission

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MGallo-Code/styx/internal/httpctx"
	"github.com/MGallo-Code/styx/internal/rules"
	"github.com/MGallo-Code/styx/internal/state"
)

// Request keys.
const (
	// TokenParam is the query parameter carrying the admission token.
	TokenParam = "queueittoken"
	// AjaxPageURLHeader marks AJAX calls and carries the page URL to return to.
	AjaxPageURLHeader = "x-queueit-ajaxpageurl"
)

// ErrInvalidArgument wraps every caller contract error. No cookie is written
// before one is returned.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArg(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

// QueueService makes the decisions a Connector delegates. *Service implements it.
type QueueService interface {
	ValidateQueueRequest(targetURL, queueitToken string, cfg QueueEventConfig, customerID, secretKey string) (*Result, error)
	ValidateCancelRequest(targetURL string, cfg CancelEventConfig, customerID, secretKey string) (*Result, error)
	ExtendQueueCookie(eventID string, cookieValidityMinute int, opts state.CookieOptions, secretKey string)
	IgnoreResult(actionName string) *Result
}

// Connector answers admission questions for one request/response pair.
type Connector struct {
	customerID string
	secretKey  string
	req        httpctx.Request
	resp       httpctx.Response
	svc        QueueService

	// Now is the clock used for diagnostics; defaults to time.Now.
	Now func() time.Time
}

// NewConnector returns a Connector delegating to svc.
func NewConnector(customerID, secretKey string, req httpctx.Request, resp httpctx.Response, svc QueueService) *Connector {
	return &Connector{
		customerID: customerID,
		secretKey:  secretKey,
		req:        req,
		resp:       resp,
		svc:        svc,
		Now:        time.Now,
	}
}

// NewRequestConnector wires the cookie repository and decision engine for req
// and resp. enqueue may be nil.
func NewRequestConnector(customerID, secretKey string, req httpctx.Request, resp httpctx.Response, enqueue EnqueueTokenProvider) *Connector {
	svc := NewService(state.NewCookieRepository(req, resp), enqueue, req.ClientIP())
	return NewConnector(customerID, secretKey, req, resp, svc)
}

// ValidateRequestByIntegrationConfig matches the request against ci and applies
// the matched integration's action. No match yields a zero Result.
// currentURL must already have the token parameter removed.
func (c *Connector) ValidateRequestByIntegrationConfig(currentURL, queueitToken string, ci *rules.CustomerIntegration) (result *Result, err error) {
	now := c.Now()
	diag := verifyDiagnostics(c.customerID, c.secretKey, queueitToken, now)
	if diag.errResult != nil {
		return diag.errResult, nil
	}

	trace := newDebugTrace(diag.enabled)
	defer c.finishTrace(trace, &err)

	if diag.enabled {
		version := "NULL"
		if ci != nil {
			version = strconv.Itoa(ci.Version)
		}
		trace.set("ConfigVersion", version)
		trace.set("PureUrl", currentURL)
		trace.set("QueueitToken", queueitToken)
		trace.setRequest(c.req, now)
	}

	if strings.TrimSpace(currentURL) == "" {
		return nil, invalidArg("currentUrlWithoutQueueITToken can not be null or empty")
	}
	if ci == nil {
		return nil, invalidArg("customerIntegrationInfo can not be null")
	}

	matched, err := rules.Match(ci, currentURL, c.req)
	if err != nil {
		return nil, fmt.Errorf("matching integration: %w", err)
	}
	if matched == nil {
		trace.set("MatchedConfig", "NULL")
		return &Result{}, nil
	}
	trace.set("MatchedConfig", matched.Name)

	switch matched.ActionType {
	case "", rules.ActionQueue:
		return c.resolveQueue(c.integrationTarget(matched, currentURL), queueitToken, queueConfigFrom(matched, ci.Version), trace, now)
	case rules.ActionCancel:
		return c.cancel(c.targetURL(currentURL), queueitToken, cancelConfigFrom(matched, ci.Version), trace, now)
	default:
		// Unknown action types are ignored.
		return c.ignore(matched.Name), nil
	}
}

// ResolveQueueRequestByLocalConfig runs a queue decision for cfg.
func (c *Connector) ResolveQueueRequestByLocalConfig(targetURL, queueitToken string, cfg *QueueEventConfig) (result *Result, err error) {
	now := c.Now()
	diag := verifyDiagnostics(c.customerID, c.secretKey, queueitToken, now)
	if diag.errResult != nil {
		return diag.errResult, nil
	}

	trace := newDebugTrace(diag.enabled)
	defer c.finishTrace(trace, &err)

	if cfg == nil {
		trace.set("QueueConfig", "NULL")
		trace.setRequest(c.req, now)
		return nil, invalidArg("eventConfig can not be null")
	}
	return c.resolveQueue(c.targetURL(targetURL), queueitToken, *cfg, trace, now)
}

// CancelRequestByLocalConfig runs a cancel decision for cfg.
func (c *Connector) CancelRequestByLocalConfig(targetURL, queueitToken string, cfg *CancelEventConfig) (result *Result, err error) {
	now := c.Now()
	diag := verifyDiagnostics(c.customerID, c.secretKey, queueitToken, now)
	if diag.errResult != nil {
		return diag.errResult, nil
	}

	trace := newDebugTrace(diag.enabled)
	defer c.finishTrace(trace, &err)

	if cfg == nil {
		trace.set("CancelConfig", "NULL")
		trace.setRequest(c.req, now)
		return nil, invalidArg("cancelConfig can not be null")
	}
	return c.cancel(c.targetURL(targetURL), queueitToken, *cfg, trace, now)
}

// ExtendQueueCookie refreshes the issue time of a valid session for eventID.
func (c *Connector) ExtendQueueCookie(eventID string, cookieValidityMinute int, cookieDomain string, httpOnly, secure bool) error {
	if strings.TrimSpace(eventID) == "" {
		return invalidArg("eventId can not be null or empty")
	}
	if cookieValidityMinute <= 0 {
		return invalidArg("cookieValidityMinute should be greater than 0")
	}
	if strings.TrimSpace(c.secretKey) == "" {
		return invalidArg("secretKey can not be null or empty")
	}
	c.svc.ExtendQueueCookie(eventID, cookieValidityMinute, state.CookieOptions{Domain: cookieDomain, HttpOnly: httpOnly, Secure: secure}, c.secretKey)
	return nil
}

func (c *Connector) resolveQueue(targetURL, queueitToken string, cfg QueueEventConfig, trace *debugTrace, now time.Time) (*Result, error) {
	trace.set("TargetUrl", targetURL)
	trace.set("QueueitToken", queueitToken)
	trace.set("QueueConfig", cfg.String())
	trace.setRequest(c.req, now)

	switch {
	case strings.TrimSpace(c.customerID) == "":
		return nil, invalidArg("customerId can not be null or empty")
	case strings.TrimSpace(c.secretKey) == "":
		return nil, invalidArg("secretKey can not be null or empty")
	case strings.TrimSpace(cfg.EventID) == "":
		return nil, invalidArg("EventId from queueConfig can not be null or empty")
	case strings.TrimSpace(cfg.QueueDomain) == "":
		return nil, invalidArg("QueueDomain from queueConfig can not be null or empty")
	case cfg.CookieValidityMinute <= 0:
		return nil, invalidArg("cookieValidityMinute from queueConfig should be greater than 0")
	}

	result, err := c.svc.ValidateQueueRequest(targetURL, queueitToken, cfg, c.customerID, c.secretKey)
	if err != nil {
		return nil, err
	}
	result.IsAjaxResult = c.isAjaxCall()
	return result, nil
}

func (c *Connector) cancel(targetURL, queueitToken string, cfg CancelEventConfig, trace *debugTrace, now time.Time) (*Result, error) {
	trace.set("TargetUrl", targetURL)
	trace.set("QueueitToken", queueitToken)
	trace.set("CancelConfig", cfg.String())
	trace.setRequest(c.req, now)

	switch {
	case strings.TrimSpace(targetURL) == "":
		return nil, invalidArg("targetUrl can not be null or empty")
	case strings.TrimSpace(c.customerID) == "":
		return nil, invalidArg("customerId can not be null or empty")
	case strings.TrimSpace(c.secretKey) == "":
		return nil, invalidArg("secretKey can not be null or empty")
	case strings.TrimSpace(cfg.EventID) == "":
		return nil, invalidArg("EventId from cancelConfig can not be null or empty")
	case strings.TrimSpace(cfg.QueueDomain) == "":
		return nil, invalidArg("QueueDomain from cancelConfig can not be null or empty")
	}

	result, err := c.svc.ValidateCancelRequest(targetURL, cfg, c.customerID, c.secretKey)
	if err != nil {
		return nil, err
	}
	result.IsAjaxResult = c.isAjaxCall()
	return result, nil
}

func (c *Connector) ignore(actionName string) *Result {
	result := c.svc.IgnoreResult(actionName)
	result.IsAjaxResult = c.isAjaxCall()
	return result
}

// integrationTarget picks the return URL according to the integration's redirect logic.
func (c *Connector) integrationTarget(ic *rules.IntegrationConfig, currentURL string) string {
	switch ic.RedirectLogic {
	case rules.RedirectForcedTargetURL, rules.RedirectForcedTargetURLTypo:
		return ic.ForcedTargetURL
	case rules.RedirectEventTargetURL:
		return ""
	default:
		return c.targetURL(currentURL)
	}
}

// targetURL returns original, or the decoded AJAX page URL header on AJAX calls.
// An undecodable header yields "".
func (c *Connector) targetURL(original string) string {
	if !c.isAjaxCall() {
		return original
	}
	decoded, err := url.QueryUnescape(c.req.Header(AjaxPageURLHeader))
	if err != nil {
		return ""
	}
	return decoded
}

func (c *Connector) isAjaxCall() bool {
	return strings.TrimSpace(c.req.Header(AjaxPageURLHeader)) != ""
}

// finishTrace records a returned error in the trace and writes the trace cookie.
func (c *Connector) finishTrace(trace *debugTrace, err *error) {
	if *err != nil {
		trace.set("Exception", (*err).Error())
	}
	trace.write(c.resp)
}
