package paystar

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// sign returns the lowercase hex HMAC-SHA512 of the fields joined with '#'
func sign(key string, fields ...string) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write([]byte(strings.Join(fields, "#")))
	return hex.EncodeToString(mac.Sum(nil))
}
