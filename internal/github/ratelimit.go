package github

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// rateInfo carries the primary-limit headers from one response.
type rateInfo struct {
	remaining int
	reset     time.Time
	known     bool
}

func parseRateInfo(h http.Header) rateInfo {
	rem := h.Get("X-RateLimit-Remaining")
	rst := h.Get("X-RateLimit-Reset")
	if rem == "" || rst == "" {
		return rateInfo{}
	}
	remaining, err1 := strconv.Atoi(rem)
	resetUnix, err2 := strconv.ParseInt(rst, 10, 64)
	if err1 != nil || err2 != nil {
		return rateInfo{}
	}
	return rateInfo{
		remaining: remaining,
		reset:     time.Unix(resetUnix, 0),
		known:     true,
	}
}

// untilReset returns how long to sleep before the primary limit resets,
// with a small safety margin. Never negative.
func (r rateInfo) untilReset(now time.Time) time.Duration {
	d := r.reset.Sub(now) + 2*time.Second
	if d < 0 {
		return 0
	}
	return d
}

// isSecondaryLimit reports whether a 403/429 response signals the
// abuse-prevention (secondary) limit rather than the primary quota.
// The primary quota announces itself with remaining == 0; everything
// else carrying Retry-After or the secondary-limit message is abuse
// throttling.
func isSecondaryLimit(status int, h http.Header, body string) bool {
	if status != http.StatusForbidden && status != http.StatusTooManyRequests {
		return false
	}
	if info := parseRateInfo(h); info.known && info.remaining == 0 {
		return false
	}
	return h.Get("Retry-After") != "" || strings.Contains(strings.ToLower(body), "secondary rate limit")
}

// retryAfter parses the Retry-After header, defaulting to zero.
func retryAfter(h http.Header) time.Duration {
	if s := h.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
