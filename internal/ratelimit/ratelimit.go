// Package ratelimit implements a sliding-window request limiter keyed by
// client identity and route prefix. Counters live behind the CounterStore
// interface: the in-process store covers single-instance deployments, the
// Redis store covers multi-instance ones.
package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Rule binds a route prefix to a sliding-window budget.
type Rule struct {
	Prefix      string
	MaxRequests int
	Window      time.Duration
}

// ParseRules parses a rule table of the form
// "/auth=10:60,/=120:60" (prefix=maxRequests:windowSeconds).
func ParseRules(raw string) ([]Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var rules []Rule
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		prefix, budget, ok := strings.Cut(part, "=")
		if !ok || !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("invalid rate limit rule %q", part)
		}
		maxStr, windowStr, ok := strings.Cut(budget, ":")
		if !ok {
			return nil, fmt.Errorf("invalid rate limit rule %q", part)
		}
		max, err := strconv.Atoi(maxStr)
		if err != nil || max < 1 {
			return nil, fmt.Errorf("invalid max requests in rule %q", part)
		}
		windowSec, err := strconv.Atoi(windowStr)
		if err != nil || windowSec < 1 {
			return nil, fmt.Errorf("invalid window in rule %q", part)
		}
		rules = append(rules, Rule{
			Prefix:      prefix,
			MaxRequests: max,
			Window:      time.Duration(windowSec) * time.Second,
		})
	}
	return rules, nil
}

// CounterStore records request timestamps per key and answers whether a new
// request fits inside the window. A rejected request must not be recorded,
// so repeated rejections keep failing until the window slides.
type CounterStore interface {
	Allow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error)
}

// Limiter matches request paths against the rule table and consults the
// counter store. More specific prefixes win (longest-prefix match); paths
// matching no rule are not limited.
type Limiter struct {
	rules []Rule
	store CounterStore
}

func New(rules []Rule, store CounterStore) *Limiter {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	// Longest prefix first so the first match is the most specific.
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Limiter{rules: sorted, store: store}
}

// Match returns the most specific rule covering the path.
func (l *Limiter) Match(path string) (Rule, bool) {
	for _, rule := range l.rules {
		if rule.Prefix == "/" || path == rule.Prefix || strings.HasPrefix(path, rule.Prefix+"/") {
			return rule, true
		}
	}
	return Rule{}, false
}

// Allow reports whether a request from clientKey to path fits the budget.
// The counter key joins the client and the matched prefix, so distinct
// route classes count separately for the same client.
func (l *Limiter) Allow(ctx context.Context, clientKey, path string) (bool, Rule, error) {
	rule, ok := l.Match(path)
	if !ok {
		return true, Rule{}, nil
	}
	allowed, err := l.store.Allow(ctx, clientKey+"|"+rule.Prefix, rule.MaxRequests, rule.Window)
	return allowed, rule, err
}

// MemoryStore is the in-process counter store: a mutex-guarded map of
// request timestamps per key. Single-process semantics only; a
// multi-instance deployment needs the Redis store to keep the guarantee.
type MemoryStore struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	now       func() time.Time
	lastSweep time.Time
}

// bucket remembers the window it was last checked against so the sweep can
// tell when every recorded timestamp has expired.
type bucket struct {
	stamps []time.Time
	window time.Duration
}

// sweepInterval bounds how often Allow walks the whole map to drop keys for
// clients that stopped sending. Without the sweep the map grows with every
// distinct client key seen over the process lifetime.
const sweepInterval = time.Minute

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow evicts timestamps older than now-window, then admits and records
// the request only if the remaining count is below the budget. The whole
// read-evict-record step holds the lock so concurrent bursts cannot
// undercount.
func (s *MemoryStore) Allow(_ context.Context, key string, maxRequests int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	b := s.buckets[key]
	if b == nil {
		b = &bucket{}
		s.buckets[key] = b
	}
	b.window = window

	cutoff := now.Add(-window)
	kept := b.stamps[:0]
	for _, ts := range b.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= maxRequests {
		b.stamps = kept
		return false, nil
	}

	b.stamps = append(kept, now)
	return true, nil
}

// sweep drops keys whose newest timestamp has aged out of their window.
// Caller holds the lock.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now

	for key, b := range s.buckets {
		if len(b.stamps) == 0 || !b.stamps[len(b.stamps)-1].After(now.Add(-b.window)) {
			delete(s.buckets, key)
		}
	}
}
