// Package sender submits snapshots to a remote cpucaps server over HTTP.
package sender

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"

	_ "github.com/go-tangra/go-tangra-cpucaps/internal/codec"
	"github.com/go-tangra/go-tangra-cpucaps/internal/snapshot"
)

// SubmitPath is the server route that ingests a snapshot.
const SubmitPath = "/v1/snapshots/submit"

// SubmitReply is the server's answer to a submitted snapshot.
type SubmitReply struct {
	ID       int64     `json:"id" cbor:"id"`
	UUID     string    `json:"uuid" cbor:"uuid"`
	StoredAt time.Time `json:"stored_at" cbor:"stored_at"`
}

// Client sends snapshots to one server. It implements daemon.Sink.
type Client struct {
	cc *kratoshttp.Client
}

// New connects to the server at addr. When secret is non-empty it is sent
// as the X-API-Key header.
func New(ctx context.Context, addr, secret string) (*Client, error) {
	cc, err := kratoshttp.NewClient(ctx,
		kratoshttp.WithEndpoint(addr),
		kratoshttp.WithTimeout(30*time.Second),
		kratoshttp.WithMiddleware(apiKey(secret)),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to server: %w", err)
	}
	return &Client{cc: cc}, nil
}

// Save submits snap as CBOR and returns the server-assigned record ID.
func (c *Client) Save(ctx context.Context, snap *snapshot.Snapshot) (int64, time.Time, error) {
	var reply SubmitReply
	err := c.cc.Invoke(ctx, http.MethodPost, SubmitPath, snap, &reply,
		kratoshttp.ContentType("application/cbor"))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("submit snapshot: %w", err)
	}
	return reply.ID, reply.StoredAt, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.cc.Close()
}

func apiKey(secret string) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			if secret != "" {
				if tr, ok := transport.FromClientContext(ctx); ok {
					tr.RequestHeader().Set("X-API-Key", secret)
				}
			}
			return handler(ctx, req)
		}
	}
}
