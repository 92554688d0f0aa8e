package services

import "context"

type requestMetaKey struct{}

// RequestMeta describes the HTTP request an operation runs for. It ends up in
// audit rows.
type RequestMeta struct {
	IPAddress string
	RequestID string
}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	if meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return meta
	}
	return RequestMeta{}
}
