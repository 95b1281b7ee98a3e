package router

import (
	"strings"

	"github.com/tidwall/gjson"
)

// errorTextKeys are the fields upstreams use for human readable failures.
var errorTextKeys = []string{"detail", "userMessage", "message", "error"}

// IsUpstreamError reports whether a 2xx body is really an upstream error:
// an object with status and subStatus fields, or one whose message talks
// about tokens or authorization.
func IsUpstreamError(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return false
	}
	if res.Get("status").Exists() && res.Get("subStatus").Exists() {
		return true
	}
	for _, key := range errorTextKeys {
		v := res.Get(key)
		if v.Type != gjson.String {
			continue
		}
		msg := strings.ToLower(v.Str)
		if strings.Contains(msg, "token") || strings.Contains(msg, "auth") {
			return true
		}
	}
	return false
}
