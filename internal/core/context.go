package core

import "context"

type contextKey string

const ctxKeyRequestInfo contextKey = "request_info"

// RequestInfo identifies who triggered an operation. The web layer attaches
// it so write logs name the client; CLI and terminal calls leave it empty.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// ContextWithRequestInfo adds info to ctx.
func ContextWithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKeyRequestInfo, info)
}

// RequestInfoFromContext extracts the RequestInfo stored in ctx, if any.
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(ctxKeyRequestInfo).(RequestInfo)
	return info
}

// logAttrs returns slog key/value pairs for the non-empty fields.
func (i RequestInfo) logAttrs() []any {
	var attrs []any
	if i.IPAddress != "" {
		attrs = append(attrs, "ip", i.IPAddress)
	}
	if i.UserAgent != "" {
		attrs = append(attrs, "user_agent", i.UserAgent)
	}
	return attrs
}
