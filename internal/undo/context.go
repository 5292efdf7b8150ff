package undo

import "context"

type ctxKey struct{}

// WithMutation attaches m to ctx so handlers can Track the item they wrote.
func WithMutation(ctx context.Context, m *Mutation) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

// MutationFrom returns the mutation attached to ctx, if any.
func MutationFrom(ctx context.Context) *Mutation {
	m, _ := ctx.Value(ctxKey{}).(*Mutation)
	return m
}

// Track records on the request's mutation which item was written. It is a
// no-op outside a tracked request.
func Track(ctx context.Context, resource, resourceID string) {
	MutationFrom(ctx).Track(resource, resourceID)
}
