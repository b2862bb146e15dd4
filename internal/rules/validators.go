// validators.go -- Trigger part variants and their subject extraction.
package rules

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/MGallo-Code/styx/internal/httpctx"
)

// Validator type names as they appear in the integration document.
const (
	TypeURL         = "UrlValidator"
	TypeCookie      = "CookieValidator"
	TypeUserAgent   = "UserAgentValidator"
	TypeHTTPHeader  = "HttpHeaderValidator"
	TypeRequestBody = "RequestBodyValidator"
)

// URL parts selectable by a URLValidator.
const (
	URLPartPageURL  = "PageUrl"
	URLPartPagePath = "PagePath"
	URLPartHostName = "HostName"
)

// Validator is one typed comparison against a piece of the request.
// The set of implementations is closed to this package.
type Validator interface {
	evaluate(currentURL string, req httpctx.Request) bool
}

// URLValidator compares part of the current page URL.
type URLValidator struct {
	URLPart string
	Comparison
}

// CookieValidator compares a named cookie's value.
type CookieValidator struct {
	CookieName string
	Comparison
}

// UserAgentValidator compares the User-Agent header.
type UserAgentValidator struct {
	Comparison
}

// HTTPHeaderValidator compares a named header.
type HTTPHeaderValidator struct {
	HeaderName string
	Comparison
}

// RequestBodyValidator compares the captured request body.
type RequestBodyValidator struct {
	Comparison
}

// UnknownValidator keeps a part whose type this version does not know.
// It never matches.
type UnknownValidator struct {
	Type string
}

func (v URLValidator) evaluate(currentURL string, _ httpctx.Request) bool {
	return v.Evaluate(urlPart(v.URLPart, currentURL))
}

func (v CookieValidator) evaluate(_ string, req httpctx.Request) bool {
	value, _ := req.CookieValue(v.CookieName)
	return v.Evaluate(value)
}

func (v UserAgentValidator) evaluate(_ string, req httpctx.Request) bool {
	return v.Evaluate(req.UserAgent())
}

func (v HTTPHeaderValidator) evaluate(_ string, req httpctx.Request) bool {
	return v.Evaluate(req.Header(v.HeaderName))
}

func (v RequestBodyValidator) evaluate(_ string, req httpctx.Request) bool {
	return v.Evaluate(req.Body())
}

func (UnknownValidator) evaluate(string, httpctx.Request) bool { return false }

// urlPart extracts the selected part of raw. URLs without a scheme and host
// are malformed here and yield "".
func urlPart(part, raw string) string {
	if part == URLPartPageURL {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return ""
	}
	switch part {
	case URLPartPagePath:
		return u.EscapedPath()
	case URLPartHostName:
		return u.Hostname()
	default:
		return ""
	}
}

// TriggerPart wraps one Validator. It decodes from the flat JSON shape the
// integration document uses.
type TriggerPart struct {
	Validator Validator
}

// triggerPartJSON is the wire shape of a trigger part.
type triggerPartJSON struct {
	ValidatorType   string   `json:"ValidatorType"`
	Operator        string   `json:"Operator"`
	ValueToCompare  string   `json:"ValueToCompare"`
	ValuesToCompare []string `json:"ValuesToCompare"`
	IsNegative      bool     `json:"IsNegative"`
	IsIgnoreCase    bool     `json:"IsIgnoreCase"`
	URLPart         string   `json:"UrlPart"`
	CookieName      string   `json:"CookieName"`
	HTTPHeaderName  string   `json:"HttpHeaderName"`
}

// UnmarshalJSON selects the Validator variant from ValidatorType.
func (p *TriggerPart) UnmarshalJSON(data []byte) error {
	var w triggerPartJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding trigger part: %w", err)
	}

	c := Comparison{
		Operator:        w.Operator,
		ValueToCompare:  w.ValueToCompare,
		ValuesToCompare: w.ValuesToCompare,
		Negate:          w.IsNegative,
		IgnoreCase:      w.IsIgnoreCase,
	}
	switch w.ValidatorType {
	case TypeURL:
		p.Validator = URLValidator{URLPart: w.URLPart, Comparison: c}
	case TypeCookie:
		p.Validator = CookieValidator{CookieName: w.CookieName, Comparison: c}
	case TypeUserAgent:
		p.Validator = UserAgentValidator{Comparison: c}
	case TypeHTTPHeader:
		p.Validator = HTTPHeaderValidator{HeaderName: w.HTTPHeaderName, Comparison: c}
	case TypeRequestBody:
		p.Validator = RequestBodyValidator{Comparison: c}
	default:
		p.Validator = UnknownValidator{Type: w.ValidatorType}
	}
	return nil
}

// Evaluate runs the part's validator. A part without a validator never matches.
func (p TriggerPart) Evaluate(currentURL string, req httpctx.Request) bool {
	if p.Validator == nil {
		return false
	}
	return p.Validator.evaluate(currentURL, req)
}
