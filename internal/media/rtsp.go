// Package media holds RTSP transport helpers used by the Stream Worker's
// decoder (connecting to a camera) and by internal/ingest (building the
// dialable, credentials-injected URL). Grounded on internal/nvr/adapters/rtsp_prober.go and
// internal/nvr/adapters/common.go.
package media

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ProbeRTSP performs a lightweight OPTIONS handshake against an RTSP URL,
// used by RTSPConnectDecoder.Open for the Stream Worker's connect check.
// It intentionally avoids a full RTSP
// client library to keep the dependency footprint small.
func ProbeRTSP(ctx context.Context, rtspURL string) error {
	u, err := url.Parse(rtspURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	host := u.Host
	if !strings.Contains(host, ":") {
		host += ":554"
	}

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	msg := fmt.Sprintf("OPTIONS %s RTSP/1.0\r\nCSeq: 1\r\nUser-Agent: campus-presence\r\n\r\n", rtspURL)
	if _, err := conn.Write([]byte(msg)); err != nil {
		return err
	}

	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		return err
	}

	parts := strings.Split(statusLine, " ")
	if len(parts) < 2 {
		return fmt.Errorf("malformed response: %s", statusLine)
	}

	code := parts[1]
	if code == "401" || code == "403" {
		return fmt.Errorf("auth_failed: %s", code)
	}
	if !strings.HasPrefix(code, "2") {
		return fmt.Errorf("stream_error: %s", code)
	}
	return nil
}

var rtspCredsRegex = regexp.MustCompile(`(?i)^(rtsp|rtsps)://([^@]+)@`)

// SanitizeRtspUrl strips embedded credentials (and anything that looks
// like one in the query string) so a camera's RTSP URL is safe to log,
// display, or store in the cameras table's sanitized column.
func SanitizeRtspUrl(rawURL string) string {
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

// InjectCredentials rebuilds an rtsp:// URL with basic-auth-style
// credentials embedded, the inverse of SanitizeRtspUrl. Used at
// stream-start time once ingest.Controller has decrypted a camera's
// stored credentials.
func InjectCredentials(sanitizedURL, user, pass string) string {
	if user == "" && pass == "" {
		return sanitizedURL
	}
	if !strings.HasPrefix(sanitizedURL, "rtsp://") && !strings.HasPrefix(sanitizedURL, "rtsps://") {
		return sanitizedURL
	}

	scheme := "rtsp://"
	rest := strings.TrimPrefix(sanitizedURL, "rtsp://")
	if strings.HasPrefix(sanitizedURL, "rtsps://") {
		scheme = "rtsps://"
		rest = strings.TrimPrefix(sanitizedURL, "rtsps://")
	}
	return fmt.Sprintf("%s%s:%s@%s", scheme, user, pass, rest)
}

// ValidScheme reports whether rawURL begins with a supported RTSP scheme,
// enforced by admin CRUD per spec's "wrong RTSP scheme" input-invalid case.
func ValidScheme(rawURL string) bool {
	return strings.HasPrefix(rawURL, "rtsp://") || strings.HasPrefix(rawURL, "rtsps://")
}
