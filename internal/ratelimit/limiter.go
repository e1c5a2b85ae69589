// Package ratelimit implements the three fixed-window request counter
// classes: auth, ws-connect, and ws-command. Counters are kept in Redis
// (shared across instances) when a client is configured, falling back to an
// in-process map so the limiter works in a memory-only deployment too.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Class names one of the three independent counter families.
type Class string

const (
	ClassAuth      Class = "auth"
	ClassWSConnect Class = "ws-connect"
	ClassWSCommand Class = "ws-command"
)

// ErrTooManyRequests is returned by Check when a class's window counter has
// exceeded its configured maximum.
var ErrTooManyRequests = fmt.Errorf("rate limit exceeded")

// window bounds one class's fixed-window policy.
type window struct {
	duration time.Duration
	max      int
}

// Limiter enforces fixed-window counters per (class, key). If rdb is nil,
// counters are kept in an in-process map guarded by a mutex. Correct for a
// single instance, not shared across a fleet.
type Limiter struct {
	rdb     *redis.Client
	windows map[Class]window

	mu    sync.Mutex
	local map[string]*localCounter
}

type localCounter struct {
	windowStart time.Time
	count       int
}

// Config groups the per-class window+max pairs, named after their
// environment config keys.
type Config struct {
	AuthWindow      time.Duration
	AuthMax         int
	WSConnectWindow time.Duration
	WSConnectMax    int
	WSCommandWindow time.Duration
	WSCommandMax    int
}

// New constructs a Limiter. rdb may be nil, in which case counters are kept
// in-process only.
func New(rdb *redis.Client, cfg Config) *Limiter {
	return &Limiter{
		rdb: rdb,
		windows: map[Class]window{
			ClassAuth:      {duration: cfg.AuthWindow, max: cfg.AuthMax},
			ClassWSConnect: {duration: cfg.WSConnectWindow, max: cfg.WSConnectMax},
			ClassWSCommand: {duration: cfg.WSCommandWindow, max: cfg.WSCommandMax},
		},
		local: make(map[string]*localCounter),
	}
}

// Check increments the counter for (class, key) and reports ErrTooManyRequests
// if the class's window has already reached its maximum. If the window has
// elapsed since the counter was last touched, it resets before incrementing.
func (l *Limiter) Check(ctx context.Context, class Class, key string) error {
	w, ok := l.windows[class]
	if !ok {
		return fmt.Errorf("unknown rate limit class %q", class)
	}

	if l.rdb != nil {
		return l.checkRedis(ctx, class, key, w)
	}
	return l.checkLocal(class, key, w)
}

func (l *Limiter) checkRedis(ctx context.Context, class Class, key string, w window) error {
	redisKey := "ratelimit:" + string(class) + ":" + key

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, redisKey, w.duration).Err(); err != nil {
			return fmt.Errorf("set rate limit counter ttl: %w", err)
		}
	}
	if int(count) > w.max {
		return ErrTooManyRequests
	}
	return nil
}

func (l *Limiter) checkLocal(class Class, key string, w window) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	mapKey := string(class) + ":" + key
	now := time.Now()
	c, ok := l.local[mapKey]
	if !ok || now.Sub(c.windowStart) >= w.duration {
		c = &localCounter{windowStart: now, count: 0}
		l.local[mapKey] = c
	}
	c.count++
	if c.count > w.max {
		return ErrTooManyRequests
	}
	return nil
}

// AuthKey builds the auth-class rate limit key: ip=<ip>|email=<email-or-dash>.
func AuthKey(ip, email string) string {
	if email == "" {
		email = "-"
	}
	return fmt.Sprintf("ip=%s|email=%s", normalizeKey(ip), normalizeKey(email))
}

// WSConnectKey builds the ws-connect-class rate limit key: ip=<ip>|user=<user_id>.
func WSConnectKey(ip, userID string) string {
	return fmt.Sprintf("ip=%s|user=%s", normalizeKey(ip), userID)
}

func normalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// WSCommandKey builds the ws-command-class rate limit key: user=<user_id>.
func WSCommandKey(userID string) string {
	return fmt.Sprintf("user=%s", userID)
}

// ClientIP derives the caller's IP from proxy headers: X-Forwarded-For (first
// entry), then X-Real-IP, then the Forwarded header's for= directive,
// falling back to "unknown".
func ClientIP(xForwardedFor, xRealIP, forwarded string) string {
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xRealIP != "" {
		return strings.TrimSpace(xRealIP)
	}
	if forwarded != "" {
		for _, directive := range strings.Split(forwarded, ";") {
			directive = strings.TrimSpace(directive)
			if rest, ok := strings.CutPrefix(directive, "for="); ok {
				rest = strings.Trim(rest, `"`)
				if host, _, err := net.SplitHostPort(rest); err == nil {
					return host
				}
				return rest
			}
		}
	}
	return "unknown"
}
