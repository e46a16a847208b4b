package upload

import "context"

type resultKey struct{}

// WithResult binds a stored upload to the request context.
func WithResult(ctx context.Context, res *Result) context.Context {
	return context.WithValue(ctx, resultKey{}, res)
}

// FromContext returns the upload bound by the pipeline middleware, if any.
func FromContext(ctx context.Context) (*Result, bool) {
	res, ok := ctx.Value(resultKey{}).(*Result)
	return res, ok && res != nil && res.URL != ""
}
