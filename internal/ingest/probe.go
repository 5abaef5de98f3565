package ingest

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// probeRTSP does a lightweight RTSP OPTIONS handshake before StartCamera
// hands the URL to stream.Manager, so an auth failure or unreachable host
// surfaces synchronously to the caller instead of only showing up later as
// a stream worker retry loop.
func probeRTSP(ctx context.Context, rtspURL string) error {
	u, err := url.Parse(rtspURL)
	if err != nil {
		return fmt.Errorf("invalid rtsp url: %w", err)
	}

	host := u.Host
	if !strings.Contains(host, ":") {
		host += ":554"
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return err
	}
	defer conn.Close()

	msg := fmt.Sprintf("OPTIONS %s RTSP/1.0\r\nCSeq: 1\r\nUser-Agent: campus-presence-probe\r\n\r\n", rtspURL)
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
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
		return fmt.Errorf("malformed rtsp response: %s", strings.TrimSpace(statusLine))
	}

	code := parts[1]
	if code == "401" || code == "403" {
		return fmt.Errorf("rtsp auth failed: %s", code)
	}
	if !strings.HasPrefix(code, "2") {
		return fmt.Errorf("rtsp error: %s", code)
	}
	return nil
}
