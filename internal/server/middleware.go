package server

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
)

// ApiSecretMiddleware returns a Kratos middleware that requires the API
// secret in the X-API-Key header or as an "Authorization: Bearer" token.
// An empty secret disables authentication.
func ApiSecretMiddleware(secret string) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			if secret == "" {
				return handler(ctx, req)
			}

			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return nil, errors.InternalServer("TRANSPORT", "no transport in context")
			}

			key := requestKey(tr.RequestHeader())
			if key == "" {
				return nil, errors.Unauthorized("UNAUTHORIZED", "missing X-API-Key header")
			}

			if subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
				return nil, errors.Unauthorized("UNAUTHORIZED", "invalid API key")
			}

			return handler(ctx, req)
		}
	}
}

func requestKey(h transport.Header) string {
	if key := h.Get("X-API-Key"); key != "" {
		return key
	}
	auth := h.Get("Authorization")
	if len(auth) > len("Bearer ") && strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return ""
}
