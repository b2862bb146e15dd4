// enqueue.go -- Enqueue tokens handed to the queueing service on queue redirects.
//
// An enqueue token vouches that the visitor was sent by this origin. It is an
// HS256 JWT signed with the customer's secret key and bound to one event and
// the visitor's IP.
package enqueue

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultValidity applies when no validity or one below MinValidity is configured.
	DefaultValidity = 240 * time.Second
	MinValidity     = 30 * time.Second
)

// ErrInvalidToken is returned by Verify for any signature, expiry or claim failure.
var ErrInvalidToken = errors.New("invalid enqueue token")

// Settings controls whether and how enqueue tokens are issued.
type Settings struct {
	Enabled    bool
	Validity   time.Duration
	KeyEnabled bool // add a random per-token key claim
}

// EffectiveValidity returns Validity, or DefaultValidity when it is below MinValidity.
func (s Settings) EffectiveValidity() time.Duration {
	if s.Validity < MinValidity {
		return DefaultValidity
	}
	return s.Validity
}

// Claims is the enqueue token payload.
type Claims struct {
	EventID       string `json:"e"`
	IPAddress     string `json:"ip,omitempty"`
	XForwardedFor string `json:"xff,omitempty"`
	Key           string `json:"k,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider mints enqueue tokens for one customer.
type JWTProvider struct {
	customerID string
	secretKey  []byte
	settings   Settings

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewJWTProvider returns a provider signing with secretKey.
func NewJWTProvider(customerID, secretKey string, settings Settings) *JWTProvider {
	return &JWTProvider{
		customerID: customerID,
		secretKey:  []byte(secretKey),
		settings:   settings,
		Now:        time.Now,
	}
}

// Mint returns a signed token for eventID bound to the given client addresses.
func (p *JWTProvider) Mint(eventID, clientIP, xForwardedFor string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating token id: %w", err)
	}

	claims := Claims{
		EventID:       eventID,
		IPAddress:     clientIP,
		XForwardedFor: xForwardedFor,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Issuer:    p.customerID,
			IssuedAt:  jwt.NewNumericDate(p.Now()),
			ExpiresAt: jwt.NewNumericDate(p.Now().Add(p.settings.EffectiveValidity())),
		},
	}
	if p.settings.KeyEnabled {
		key, err := uuid.NewV4()
		if err != nil {
			return "", fmt.Errorf("generating token key: %w", err)
		}
		claims.Key = key.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secretKey)
	if err != nil {
		return "", fmt.Errorf("signing enqueue token: %w", err)
	}
	return signed, nil
}

// Verify parses raw and checks its signature, expiry and issuer.
func (p *JWTProvider) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return p.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.customerID),
		jwt.WithTimeFunc(p.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// ForRequest binds the provider to one visitor's addresses.
func (p *JWTProvider) ForRequest(clientIP, xForwardedFor string) *RequestProvider {
	return &RequestProvider{p: p, clientIP: clientIP, xForwardedFor: xForwardedFor}
}

// RequestProvider mints tokens for a single request.
type RequestProvider struct {
	p             *JWTProvider
	clientIP      string
	xForwardedFor string
}

// EnqueueToken returns a token for eventID bound to this request's visitor.
func (r *RequestProvider) EnqueueToken(eventID string) (string, error) {
	return r.p.Mint(eventID, r.clientIP, r.xForwardedFor)
}
