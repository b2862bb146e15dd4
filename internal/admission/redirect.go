// redirect.go -- Redirect URL construction for queue, error and cancel outcomes.
//
// Parameter order and escaping are part of the contract with the queueing
// service and must not change.
package admission

import (
	"net/url"
	"strconv"
	"strings"
)

// SDKVersion is reported to the queueing service as the ver parameter.
const SDKVersion = "java-4.0.6"

// EncodeURL percent-encodes s for a query value. Spaces become %20, and
// & ! ' ( ) ~ | * are always escaped.
func EncodeURL(s string) string {
	// QueryEscape already escapes & ! ' ( ) | * and leaves ~ alone.
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	return strings.ReplaceAll(escaped, "~", "%7E")
}

// formEncode matches application/x-www-form-urlencoded with "*" left bare and
// "~" escaped. Used for the AJAX redirect header value.
func formEncode(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "~", "%7E")
	return strings.ReplaceAll(escaped, "%2A", "*")
}

// param is one query parameter. verbatim values are written without encoding.
type param struct {
	key      string
	value    string
	verbatim bool
}

// query is an ordered parameter list. Methods return new lists.
type query []param

func (q query) with(key, value string) query {
	out := make(query, len(q), len(q)+1)
	copy(out, q)
	return append(out, param{key: key, value: value})
}

func (q query) withVerbatim(key, value string) query {
	out := make(query, len(q), len(q)+1)
	copy(out, q)
	return append(out, param{key: key, value: value, verbatim: true})
}

// withIfSet appends key only when value is non-blank.
func (q query) withIfSet(key, value string) query {
	if strings.TrimSpace(value) == "" {
		return q
	}
	return q.with(key, value)
}

func (q query) encode() string {
	parts := make([]string, len(q))
	for i, p := range q {
		v := p.value
		if !p.verbatim {
			v = EncodeURL(v)
		}
		parts[i] = p.key + "=" + v
	}
	return strings.Join(parts, "&")
}

// baseQuery is the prefix shared by every redirect: c, e, ver, cver, man, then
// cid, l and enqueuetoken when set.
func baseQuery(customerID, eventID string, configVersion int, actionName, culture, layoutName, enqueueToken string) query {
	return query{}.
		with("c", customerID).
		with("e", eventID).
		with("ver", SDKVersion).
		with("cver", strconv.Itoa(configVersion)).
		with("man", actionName).
		withIfSet("cid", culture).
		withIfSet("l", layoutName).
		withIfSet("enqueuetoken", enqueueToken)
}

// redirectURL joins domain, path and query. A trailing slash is added to domain when missing.
func redirectURL(queueDomain, path string, q query) string {
	if !strings.HasSuffix(queueDomain, "/") {
		queueDomain += "/"
	}
	return "https://" + queueDomain + path + "?" + q.encode()
}

// queueRedirect sends the visitor to the waiting room. t is omitted for a blank target.
func queueRedirect(customerID string, cfg QueueEventConfig, enqueueToken, targetURL string) string {
	q := baseQuery(customerID, cfg.EventID, cfg.Version, cfg.ActionName, cfg.Culture, cfg.LayoutName, enqueueToken).
		withIfSet("t", targetURL)
	return redirectURL(cfg.QueueDomain, "", q)
}

// errorRedirect reports a rejected token. The original token is passed through unencoded.
func errorRedirect(customerID string, cfg QueueEventConfig, code, rawToken string, now int64, targetURL string) string {
	q := baseQuery(customerID, cfg.EventID, cfg.Version, cfg.ActionName, cfg.Culture, cfg.LayoutName, "").
		withVerbatim("queueittoken", rawToken).
		withVerbatim("ts", strconv.FormatInt(now, 10)).
		withIfSet("t", targetURL)
	return redirectURL(cfg.QueueDomain, "error/"+code+"/", q)
}

// cancelRedirect sends the visitor to the cancel page; queueID is appended to the path when set.
func cancelRedirect(customerID string, cfg CancelEventConfig, queueID, targetURL string) string {
	path := "cancel/" + customerID + "/" + cfg.EventID
	if strings.TrimSpace(queueID) != "" {
		path += "/" + queueID
	}
	q := baseQuery(customerID, cfg.EventID, cfg.Version, cfg.ActionName, "", "", "").
		withIfSet("r", targetURL)
	return redirectURL(cfg.QueueDomain, path, q)
}
