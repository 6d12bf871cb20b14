// Package flags provides live feature-flag checks.
//
// Flags gate behavior that must be switchable without a restart, so checkers
// consult the backing store on every call; a flip is observed by the very
// next check. Callers inject a Checker and never cache its answers.
package flags

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "flags:"

// Checker answers whether a named flag is enabled right now.
type Checker interface {
	Enabled(ctx context.Context, name string) bool
}

// Static is a fixed flag set for tests and flag-store-less deployments.
type Static map[string]bool

// Enabled returns the configured value; unknown flags are off.
func (s Static) Enabled(_ context.Context, name string) bool {
	return s[name]
}

// Redis reads flags from Redis on every check, falling back to configured
// defaults when the key is absent or the store is unreachable.
type Redis struct {
	client   *redis.Client
	defaults map[string]bool
	logger   *slog.Logger
}

// NewRedis creates a Redis-backed checker. Defaults apply per flag when the
// store has no live value.
func NewRedis(client *redis.Client, defaults map[string]bool, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	if defaults == nil {
		defaults = map[string]bool{}
	}
	return &Redis{client: client, defaults: defaults, logger: logger}
}

// Enabled fetches the flag's current value. The store is authoritative; the
// default only covers missing keys and store errors, so an operator flipping
// a flag never waits on process restarts or cache expiry.
func (r *Redis) Enabled(ctx context.Context, name string) bool {
	val, err := r.client.Get(ctx, keyPrefix+name).Result()
	if err == redis.Nil {
		return r.defaults[name]
	}
	if err != nil {
		r.logger.WarnContext(ctx, "flag lookup failed, using default",
			"flag", name, "error", err)
		return r.defaults[name]
	}

	enabled, err := strconv.ParseBool(val)
	if err != nil {
		r.logger.WarnContext(ctx, "flag has non-boolean value, using default",
			"flag", name, "value", val)
		return r.defaults[name]
	}
	return enabled
}
