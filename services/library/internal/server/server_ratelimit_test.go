package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"libmgmt/internal/ratelimit"
)

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	login, err := ratelimit.NewRedisFixedWindowLimiter(client, "library:test:login", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	env := newTestEnv(t, Limiters{Login: login})

	creds := map[string]string{"username": "root", "password": "wrong"}
	for i := 0; i < 2; i++ {
		status, body := env.call(t, http.MethodPost, "/api/auth/login", "", creds)
		if status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d body %v", i+1, status, body)
		}
	}

	status, body := env.call(t, http.MethodPost, "/api/auth/login", "", creds)
	expectError(t, status, body, http.StatusTooManyRequests, "rate_limited", "too many login attempts")

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/auth/login", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want 60", got)
	}
}

func TestRegisterFallsBackToLocalLimiter(t *testing.T) {
	env := newTestEnv(t, Limiters{Register: ratelimit.NewLocalLimiter(1, time.Minute)})
	env.register(t, "alice")

	status, body := env.call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "bob",
		"password": readerPassword,
	})
	expectError(t, status, body, http.StatusTooManyRequests, "rate_limited", "too many registration attempts")
}
