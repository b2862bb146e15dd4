// service.go -- Admission decision engine.
//
// Combines the session cookie and the inbound admission token into a queue,
// cancel or ignore outcome. Token and cookie problems are outcomes, never errors.
package admission

import (
	"fmt"
	"strings"
	"time"

	"github.com/MGallo-Code/styx/internal/state"
	"github.com/MGallo-Code/styx/internal/token"
)

// StateRepository persists session state between requests.
// *state.CookieRepository is the production implementation.
type StateRepository interface {
	Store(eventID, queueID string, fixedValidityMinutes *int, opts state.CookieOptions, redirectType, hashedIP, secretKey string)
	GetState(eventID string, cookieValidityMinutes int, secretKey string, validateTime bool) state.Info
	Cancel(eventID string, opts state.CookieOptions)
	Reissue(eventID string, cookieValidityMinutes int, opts state.CookieOptions, secretKey string)
}

// EnqueueTokenProvider mints the enqueuetoken parameter for queue redirects.
type EnqueueTokenProvider interface {
	EnqueueToken(eventID string) (string, error)
}

// Service makes admission decisions for one request.
type Service struct {
	repo     StateRepository
	enqueue  EnqueueTokenProvider // nil disables enqueue tokens
	clientIP string

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewService returns a Service. enqueue may be nil.
func NewService(repo StateRepository, enqueue EnqueueTokenProvider, clientIP string) *Service {
	return &Service{repo: repo, enqueue: enqueue, clientIP: clientIP, Now: time.Now}
}

// ValidateQueueRequest admits the visitor on a valid session or token, and
// otherwise redirects to the waiting room or to the token error page.
func (s *Service) ValidateQueueRequest(targetURL, queueitToken string, cfg QueueEventConfig, customerID, secretKey string) (*Result, error) {
	now := s.Now()

	info := s.repo.GetState(cfg.EventID, cfg.CookieValidityMinute, secretKey, true)
	if info.Valid {
		if info.Extendable() && cfg.ExtendCookieValidity {
			s.repo.Store(cfg.EventID, info.QueueID, nil, cfg.CookieOptions(), info.RedirectType, "", secretKey)
		}
		return &Result{
			ActionType:   ActionQueue,
			EventID:      cfg.EventID,
			QueueID:      info.QueueID,
			RedirectType: info.RedirectType,
			ActionName:   cfg.ActionName,
		}, nil
	}

	var result *Result
	tokenValid := false

	if params := token.Parse(queueitToken); params != nil {
		if code := params.Validate(secretKey, cfg.EventID, s.clientIP, now); code == token.CodeNone {
			tokenValid = true
			s.repo.Store(cfg.EventID, params.QueueID, params.CookieValidityMinutes, cfg.CookieOptions(), params.RedirectType, params.HashedIP, secretKey)
			result = &Result{
				ActionType:   ActionQueue,
				EventID:      cfg.EventID,
				QueueID:      params.QueueID,
				RedirectType: params.RedirectType,
				ActionName:   cfg.ActionName,
			}
		} else {
			result = &Result{
				ActionType:  ActionQueue,
				EventID:     cfg.EventID,
				RedirectURL: errorRedirect(customerID, cfg, string(code), params.Raw, now.Unix(), targetURL),
				ActionName:  cfg.ActionName,
				ErrorCode:   string(code),
			}
		}
	} else {
		enqueueToken, err := s.enqueueToken(cfg.EventID)
		if err != nil {
			return nil, err
		}
		result = &Result{
			ActionType:  ActionQueue,
			EventID:     cfg.EventID,
			RedirectURL: queueRedirect(customerID, cfg, enqueueToken, targetURL),
			ActionName:  cfg.ActionName,
		}
	}

	// A found-but-invalid session is cleared unless a fresh token replaced it.
	if info.Found && !tokenValid {
		s.repo.Cancel(cfg.EventID, cfg.CookieOptions())
	}
	return result, nil
}

// ValidateCancelRequest ends a session and redirects to the cancel page.
// Expiry is not checked, so expired sessions can still be cancelled.
// Without a valid session the result carries no redirect.
func (s *Service) ValidateCancelRequest(targetURL string, cfg CancelEventConfig, customerID, secretKey string) (*Result, error) {
	info := s.repo.GetState(cfg.EventID, -1, secretKey, false)
	if !info.Valid {
		return &Result{ActionType: ActionCancel, EventID: cfg.EventID, ActionName: cfg.ActionName}, nil
	}

	s.repo.Cancel(cfg.EventID, cfg.CookieOptions())
	return &Result{
		ActionType:   ActionCancel,
		EventID:      cfg.EventID,
		QueueID:      info.QueueID,
		RedirectURL:  cancelRedirect(customerID, cfg, info.QueueID, targetURL),
		RedirectType: info.RedirectType,
		ActionName:   cfg.ActionName,
	}, nil
}

// ExtendQueueCookie refreshes a valid session's issue time.
func (s *Service) ExtendQueueCookie(eventID string, cookieValidityMinute int, opts state.CookieOptions, secretKey string) {
	s.repo.Reissue(eventID, cookieValidityMinute, opts, secretKey)
}

// IgnoreResult returns a pass-through result.
func (s *Service) IgnoreResult(actionName string) *Result {
	return &Result{ActionType: ActionIgnore, ActionName: actionName}
}

func (s *Service) enqueueToken(eventID string) (string, error) {
	if s.enqueue == nil {
		return "", nil
	}
	t, err := s.enqueue.EnqueueToken(eventID)
	if err != nil {
		return "", fmt.Errorf("minting enqueue token: %w", err)
	}
	return strings.TrimSpace(t), nil
}
