package actorcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ActorContextKey is the request context key for the acting administrator ID.
type ActorContextKey struct{}

// WithAdminID stores the acting admin ID in the context.
func WithAdminID(ctx context.Context, adminID int64) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, adminID)
}

// AdminIDFromContext returns the acting admin ID from context, if set.
func AdminIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(ActorContextKey{})
	if value == nil {
		return 0, false
	}

	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
