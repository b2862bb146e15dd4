// token.go -- Admission token codec.
//
// Wire format: key_value~key_value~...~h_<hexhmac>. The signature covers the raw
// token with the "~h_<hash>" segment removed. Unknown keys are skipped so newer
// issuers can add fields without breaking older gates.
package token

import (
	"strconv"
	"strings"
	"time"

	"github.com/MGallo-Code/styx/internal/signing"
)

// Wire keys.
const (
	keyTimestamp        = "ts"
	keyCookieValidity   = "cv"
	keyEventID          = "e"
	keyQueueID          = "q"
	keyExtendableCookie = "ce"
	keyRedirectType     = "rt"
	keyHashedIP         = "hip"
	keyHash             = "h"

	fieldSeparator    = "~"
	keyValueSeparator = "_"
)

// ErrorCode names the first check a token failed. The value is used verbatim in
// the error redirect path (error/<code>/).
type ErrorCode string

const (
	CodeNone      ErrorCode = ""
	CodeHash      ErrorCode = "hash"
	CodeEventID   ErrorCode = "eventid"
	CodeTimestamp ErrorCode = "timestamp"
	CodeIP        ErrorCode = "ip"
)

// Params holds the decoded fields of one admission token.
// Built once per request by Parse and never persisted.
type Params struct {
	Timestamp             int64 // unix seconds; token expires when Timestamp < now
	EventID               string
	QueueID               string
	ExtendableCookie      bool
	CookieValidityMinutes *int // nil when cv is absent or not an integer
	RedirectType          string
	HashedIP              string
	Hash                  string

	Raw            string
	RawWithoutHash string
}

// Parse decodes raw into Params. Returns nil when raw is blank.
// Malformed segments (no "_") and non-numeric ts/cv values are skipped, not rejected.
func Parse(raw string) *Params {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	p := &Params{Raw: raw}
	for _, segment := range strings.Split(raw, fieldSeparator) {
		key, value, ok := strings.Cut(segment, keyValueSeparator)
		if !ok {
			continue
		}
		switch key {
		case keyHash:
			p.Hash = value
		case keyTimestamp:
			if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
				p.Timestamp = ts
			}
		case keyCookieValidity:
			if cv, err := strconv.Atoi(value); err == nil {
				p.CookieValidityMinutes = &cv
			}
		case keyEventID:
			p.EventID = value
		case keyQueueID:
			p.QueueID = value
		case keyExtendableCookie:
			p.ExtendableCookie = strings.EqualFold(value, "true")
		case keyRedirectType:
			p.RedirectType = value
		case keyHashedIP:
			p.HashedIP = value
		}
	}

	p.RawWithoutHash = strings.ReplaceAll(raw, fieldSeparator+keyHash+keyValueSeparator+p.Hash, "")
	return p
}

// Validate checks signature, event binding, expiry and client IP binding, in that
// order, and returns the code of the first failure or CodeNone.
// The IP check is skipped when either the token or the caller has no IP.
func (p *Params) Validate(secretKey, eventID, clientIP string, now time.Time) ErrorCode {
	if !strings.EqualFold(signing.Sign(secretKey, p.RawWithoutHash), p.Hash) {
		return CodeHash
	}
	if !strings.EqualFold(eventID, p.EventID) {
		return CodeEventID
	}
	if p.Timestamp < now.Unix() {
		return CodeTimestamp
	}
	if strings.TrimSpace(p.HashedIP) != "" && strings.TrimSpace(clientIP) != "" {
		if !strings.EqualFold(p.HashedIP, signing.Sign(secretKey, clientIP)) {
			return CodeIP
		}
	}
	return CodeNone
}

// Mint encodes p into the wire format and appends its signature.
// Only the value fields of p are used; Hash, Raw and RawWithoutHash are ignored.
// Empty QueueID, RedirectType and HashedIP segments are omitted.
func Mint(p Params, secretKey string) string {
	segments := []string{keyEventID + keyValueSeparator + p.EventID}
	if p.QueueID != "" {
		segments = append(segments, keyQueueID+keyValueSeparator+p.QueueID)
	}
	segments = append(segments,
		keyTimestamp+keyValueSeparator+strconv.FormatInt(p.Timestamp, 10),
		keyExtendableCookie+keyValueSeparator+strconv.FormatBool(p.ExtendableCookie),
	)
	if p.CookieValidityMinutes != nil {
		segments = append(segments, keyCookieValidity+keyValueSeparator+strconv.Itoa(*p.CookieValidityMinutes))
	}
	if p.RedirectType != "" {
		segments = append(segments, keyRedirectType+keyValueSeparator+p.RedirectType)
	}
	if p.HashedIP != "" {
		segments = append(segments, keyHashedIP+keyValueSeparator+p.HashedIP)
	}

	unsigned := strings.Join(segments, fieldSeparator)
	return unsigned + fieldSeparator + keyHash + keyValueSeparator + signing.Sign(secretKey, unsigned)
}
