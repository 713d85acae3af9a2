package app

import "context"

type key string

const appKey key = "xploit.app"

// WithContext stores the App on ctx.
func WithContext(ctx context.Context, a *App) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, appKey, a)
}

// FromContext retrieves the App stored by WithContext.
func FromContext(ctx context.Context) (*App, bool) {
	if ctx == nil {
		return nil, false
	}
	a, ok := ctx.Value(appKey).(*App)
	return a, ok && a != nil
}
