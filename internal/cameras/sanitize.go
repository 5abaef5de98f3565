package cameras

import (
	"net/url"
	"regexp"
	"strings"
)

var rtspCredsRegex = regexp.MustCompile(`(?i)^(rtsp|rtsps)://([^@/]+)@`)

// SanitizeRTSPURL strips any embedded userinfo and sensitive query
// parameters from an RTSP URL before it is written to cameras.rtsp_url_sanitized.
// Operators commonly paste a URL with embedded credentials straight from a
// camera's web UI; those credentials belong in the encrypted
// camera_credentials row, never in the plaintext URL column.
func SanitizeRTSPURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rtspCredsRegex.ReplaceAllString(rawURL, "$1://")
	}

	u.User = nil

	q := u.Query()
	for k := range q {
		kl := strings.ToLower(k)
		if strings.Contains(kl, "token") || strings.Contains(kl, "pass") || strings.Contains(kl, "auth") || strings.Contains(kl, "secret") {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// ExtractRTSPUserinfo pulls a username:password pair embedded in the URL
// itself, so CreateCamera can route it into CredentialInput even when the
// caller didn't split it out into separate fields.
func ExtractRTSPUserinfo(rawURL string) (username, password string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return "", "", false
	}
	username = u.User.Username()
	password, _ = u.User.Password()
	if username == "" && password == "" {
		return "", "", false
	}
	return username, password, true
}
