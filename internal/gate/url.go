// url.go -- Token extraction from the request URL.
package gate

import (
	"net/url"
	"strings"

	"github.com/MGallo-Code/styx/internal/admission"
)

// StripToken removes every queueittoken parameter from rawURL and returns the
// cleaned URL plus the first token value, URL-decoded. The order of the other
// parameters and their encoding are left untouched.
func StripToken(rawURL string) (clean, token string) {
	base, rawQuery, ok := strings.Cut(rawURL, "?")
	if !ok {
		return rawURL, ""
	}
	rawQuery, fragment, hasFragment := strings.Cut(rawQuery, "#")

	found := false
	var kept []string
	for _, part := range strings.Split(rawQuery, "&") {
		key, value, _ := strings.Cut(part, "=")
		if key != admission.TokenParam {
			kept = append(kept, part)
			continue
		}
		if !found {
			found = true
			if v, err := url.QueryUnescape(value); err == nil {
				token = v
			} else {
				token = value
			}
		}
	}
	if !found {
		return rawURL, ""
	}

	clean = base
	if len(kept) > 0 {
		clean += "?" + strings.Join(kept, "&")
	}
	if hasFragment {
		clean += "#" + fragment
	}
	return clean, token
}
