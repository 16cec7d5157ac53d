package connect

import (
	"context"
	"crypto/subtle"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/flashread/internal/infra/config"
)

const (
	// ReaderTokenHeader is the header name for the reader authentication token.
	ReaderTokenHeader = "X-Reader-Token"
)

var errInvalidToken = errors.New("missing or invalid reader token")

// NewTokenInterceptor creates an interceptor that validates the reader token
// from request metadata on unary and streaming calls.
// Every call is accepted when no token is configured.
func NewTokenInterceptor(cfg *config.Config) connect.Interceptor {
	return &tokenInterceptor{token: cfg.Server.Token}
}

type tokenInterceptor struct {
	token string
}

func (i *tokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err := i.validate(req.Header()); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *tokenInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *tokenInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := i.validate(conn.RequestHeader()); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

func (i *tokenInterceptor) validate(header http.Header) error {
	if i.token == "" {
		return nil
	}

	// Extract token from metadata
	token := header.Get(ReaderTokenHeader)
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(i.token)) != 1 {
		return connect.NewError(connect.CodeUnauthenticated, errInvalidToken)
	}
	return nil
}

// NewTokenClientInterceptor creates a client interceptor that attaches the
// reader token to every outgoing call.
func NewTokenClientInterceptor(token string) connect.Interceptor {
	return &tokenClientInterceptor{token: token}
}

type tokenClientInterceptor struct {
	token string
}

func (i *tokenClientInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			req.Header().Set(ReaderTokenHeader, i.token)
		}
		return next(ctx, req)
	}
}

func (i *tokenClientInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set(ReaderTokenHeader, i.token)
		return conn
	}
}

func (i *tokenClientInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
