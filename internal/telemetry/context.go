package telemetry

import "context"

// ClientInfo describes the caller of the current request.
type ClientInfo struct {
	IP        string
	UserAgent string
	Path      string
}

type clientKey struct{}
type userKey struct{}

// WithClient attaches caller details to ctx.
func WithClient(ctx context.Context, c ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFrom returns the caller details stored in ctx, if any.
func ClientFrom(ctx context.Context) ClientInfo {
	c, _ := ctx.Value(clientKey{}).(ClientInfo)
	return c
}

// WithUserID attaches the authenticated user id to ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userKey{}, id)
}

// UserIDFrom returns the authenticated user id, or "" when anonymous.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}
