package services

import "context"

// RequestInfo carries the transport details attached to audit records.
type RequestInfo struct {
	IPAddress string
	UserAgent string
	Method    string
	Path      string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the details stored by WithRequestInfo, or the zero value.
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}
