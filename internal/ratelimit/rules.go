package ratelimit

import (
	"fmt"
	"time"

	"github.com/Proton-105/raffle-bot/pkg/config"
)

// Rules holds the parsed limits per scope and the operator whitelist.
type Rules struct {
	byScope   map[Scope]Rule
	whitelist map[int64]struct{}
}

// NewRules parses the configured limits. A rule with no limit is disabled;
// an enabled rule needs a valid window.
func NewRules(cfg config.RateLimitConfig) (*Rules, error) {
	r := &Rules{
		byScope:   make(map[Scope]Rule),
		whitelist: make(map[int64]struct{}, len(cfg.Whitelist)),
	}

	configured := map[Scope]config.RateLimitRule{
		ScopeGlobal:  cfg.Global,
		ScopeUser:    cfg.PerUser,
		ScopeBuy:     cfg.Commands.Buy,
		ScopeConfirm: cfg.Commands.Confirm,
	}
	for scope, raw := range configured {
		if raw.Limit <= 0 {
			continue
		}
		window, err := time.ParseDuration(raw.Window)
		if err != nil {
			return nil, fmt.Errorf("rate limit %s window %q: %w", scope, raw.Window, err)
		}
		if window <= 0 {
			return nil, fmt.Errorf("rate limit %s window must be positive", scope)
		}
		r.byScope[scope] = Rule{Limit: raw.Limit, Window: window}
	}

	for _, id := range cfg.Whitelist {
		r.whitelist[id] = struct{}{}
	}

	return r, nil
}

// For returns the rule of scope and whether one is configured.
func (r *Rules) For(scope Scope) (Rule, bool) {
	rule, ok := r.byScope[scope]
	return rule, ok
}

// IsWhitelisted reports whether userID bypasses every limit.
func (r *Rules) IsWhitelisted(userID int64) bool {
	_, ok := r.whitelist[userID]
	return ok
}

// KeysFor lists the counters an update from userID charges, broadest first.
// action is ScopeBuy, ScopeConfirm or empty for any other update.
func (r *Rules) KeysFor(userID int64, action Scope) []Key {
	keys := make([]Key, 0, 3)
	for _, key := range []Key{GlobalKey(), UserKey(ScopeUser, userID), UserKey(action, userID)} {
		if key.Scope == "" {
			continue
		}
		if _, ok := r.byScope[key.Scope]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// LongestWindow is the retention the cleaner needs.
func (r *Rules) LongestWindow() time.Duration {
	var longest time.Duration
	for _, rule := range r.byScope {
		longest = max(longest, rule.Window)
	}
	return longest
}
