// signing.go -- HMAC-SHA256 primitive shared by the token codec and the state cookie.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the lowercase hex HMAC-SHA256 of value keyed with secretKey.
func Sign(secretKey, value string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
