// Package security counts security events per client and flags bursts that
// cross a threshold.
package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var alertCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Event names observed by the HTTP layer.
const (
	EventLogin          = "auth.login"
	EventRegister       = "auth.register"
	EventLogout         = "auth.logout"
	EventPasswordChange = "auth.password.change"
	EventAuthorize      = "auth.authorize"
	EventAdminAuthorize = "auth.admin.authorize"
	EventAdminMutation  = "admin.mutation"

	OutcomeSuccess     = "success"
	OutcomeFail        = "fail"
	OutcomeRateLimited = "rate_limited"
)

// AlertResult contains alert evaluation output.
type AlertResult struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// Alerter aggregates security events in Redis counters.
type Alerter struct {
	client *redis.Client
	prefix string
}

// NewAlerter returns nil when client is nil; a nil *Alerter observes nothing.
func NewAlerter(client *redis.Client, prefix string) *Alerter {
	if client == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "library:alerts"
	}
	return &Alerter{client: client, prefix: prefix}
}

// Observe records a security event for ip and reports whether the alert
// threshold of its rule is reached.
func (a *Alerter) Observe(ctx context.Context, event, outcome, ip string) (AlertResult, error) {
	result := AlertResult{}
	if a == nil || a.client == nil {
		return result, nil
	}
	threshold, window, ok := alertRule(event, outcome)
	if !ok {
		return result, nil
	}
	windowMs := window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", a.prefix, sanitizeSegment(event), sanitizeSegment(outcome), sanitizeSegment(ip), slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := alertCounterScript.Run(ctx, a.client, []string{key}, windowMs).Int64()
	if err != nil {
		return result, err
	}
	result.Count = count
	result.Threshold = threshold
	result.Window = window
	result.Triggered = count >= threshold
	return result, nil
}

func alertRule(event, outcome string) (threshold int64, window time.Duration, ok bool) {
	event = strings.TrimSpace(event)
	outcome = strings.TrimSpace(outcome)
	if outcome == OutcomeRateLimited {
		return 20, time.Minute, true
	}
	if outcome != OutcomeFail {
		return 0, 0, false
	}
	switch event {
	case EventLogin, EventRegister:
		return 10, 5 * time.Minute, true
	case EventPasswordChange, EventLogout:
		return 15, 5 * time.Minute, true
	case EventAdminAuthorize:
		return 10, 5 * time.Minute, true
	case EventAuthorize:
		return 25, 5 * time.Minute, true
	default:
		return 0, 0, false
	}
}

var segmentReplacer = strings.NewReplacer(":", "_", "|", "_", " ", "_")

func sanitizeSegment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	return segmentReplacer.Replace(in)
}
