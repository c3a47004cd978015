package testutil

import "context"

type worldKey struct{}

// WithWorld attaches w to the scenario context.
func WithWorld(ctx context.Context, w *World) context.Context {
	return context.WithValue(ctx, worldKey{}, w)
}

// GetWorld returns the world attached by WithWorld. Steps run only inside
// a scenario, so a missing world is a broken suite setup.
func GetWorld(ctx context.Context) *World {
	w, ok := ctx.Value(worldKey{}).(*World)
	if !ok {
		panic("testutil: scenario context carries no world")
	}
	return w
}
