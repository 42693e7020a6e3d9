package subsonic

import "net/url"

const redacted = "REDACTED"

// sensitiveParams carry passwords, tokens, salts or keys.
var sensitiveParams = []string{"p", "t", "s", "apiKey"}

// redactURL returns u as a string with sensitive query values masked.
// u itself is left untouched.
func redactURL(u *url.URL) string {
	cp := *u
	q := cp.Query()
	for _, k := range sensitiveParams {
		if q.Has(k) {
			q.Set(k, redacted)
		}
	}
	cp.RawQuery = q.Encode()
	return cp.String()
}
