package session

import (
	"context"
)

type ctxKey string

const storeKey ctxKey = "session-store"

// Create a new context with the session store of current request
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey, s)
}

// Extract the session store from the context
func FromContext(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(storeKey).(*Store)
	return s, ok && s != nil
}
