// Package ratelimit throttles raffle bot updates, globally, per user and per
// purchase action.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Scope names a family of counters.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeUser    Scope = "user"
	ScopeBuy     Scope = "buy"
	ScopeConfirm Scope = "confirm"
)

// Key identifies a single counter. UserID is ignored for ScopeGlobal.
type Key struct {
	Scope  Scope
	UserID int64
}

// GlobalKey is the counter shared by every sender.
func GlobalKey() Key { return Key{Scope: ScopeGlobal} }

// UserKey is the counter for scope charged to userID.
func UserKey(scope Scope, userID int64) Key { return Key{Scope: scope, UserID: userID} }

func (k Key) String() string {
	if k.Scope == ScopeGlobal {
		return string(ScopeGlobal)
	}
	return fmt.Sprintf("%s:%d", k.Scope, k.UserID)
}

// Rule allows Limit hits per sliding Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until the oldest hit leaves the window. Zero when allowed.
	RetryAfter time.Duration
}

// Limiter charges one hit against key under rule.
type Limiter interface {
	Check(ctx context.Context, key Key, rule Rule) (*Result, error)
}

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")

func rejected(rule Rule) *Result {
	return &Result{Allowed: false, RetryAfter: rule.Window}
}
