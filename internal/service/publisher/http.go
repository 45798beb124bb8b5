package publisher

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Minute}
}

// classifyStatus maps an HTTP response onto the publish error taxonomy.
// 401 is an expired credential, 429/5xx are transient, everything else in
// the 4xx range is a definitive rejection of this content.
func classifyStatus(platform string, status int, body string) error {
	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s returned 401", ErrAuthExpired, platform)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: %s returned %d: %s", ErrTransient, platform, status, snippet(body))
	default:
		return &PlatformRejectedError{Platform: platform, Reason: fmt.Sprintf("HTTP %d: %s", status, snippet(body))}
	}
}

func snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 300 {
		return body[:300]
	}
	return body
}
