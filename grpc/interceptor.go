package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/authflow/authflow"
)

// SessionResolver turns a session token into a user. *authflow.Coordinator
// implements it.
type SessionResolver interface {
	DeserializeSession(ctx context.Context, token string) (*authflow.User, error)
}

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Config holds the metadata key configuration.
	*Config

	Resolver SessionResolver

	// RequireAuth when true rejects requests without a resolvable session.
	RequireAuth bool

	// PublicMethods skip the RequireAuth check. Keys are full method names
	// like "/package.Service/Method".
	PublicMethods map[string]bool

	Logger *slog.Logger
}

// DefaultInterceptorConfig returns a config that requires auth for all methods.
func DefaultInterceptorConfig(resolver SessionResolver) *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		Resolver:      resolver,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
}

// NewPublicMethodsConfig creates a config with the specified public methods.
func NewPublicMethodsConfig(resolver SessionResolver, publicMethods ...string) *InterceptorConfig {
	config := DefaultInterceptorConfig(resolver)
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated requests.
func OptionalAuthConfig(resolver SessionResolver) *InterceptorConfig {
	config := DefaultInterceptorConfig(resolver)
	config.RequireAuth = false
	return config
}

func (c *InterceptorConfig) ensureDefaults() {
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	c.Config.EnsureDefaults()
	if c.PublicMethods == nil {
		c.PublicMethods = make(map[string]bool)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// authenticate resolves the session and returns the context handlers should see
func (c *InterceptorConfig) authenticate(ctx context.Context, method string) (context.Context, error) {
	var user *authflow.User
	if token := SessionTokenFromContextWithConfig(ctx, c.Config); token != "" && c.Resolver != nil {
		var err error
		user, err = c.Resolver.DeserializeSession(ctx, token)
		if errors.Is(err, authflow.ErrNotFound) {
			user = nil
		} else if err != nil {
			c.Logger.Error("error resolving session", "method", method, "err", err)
			return nil, status.Error(codes.Internal, "internal error")
		}
	}

	if user == nil {
		if c.RequireAuth && !c.PublicMethods[method] {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		return ctx, nil
	}
	return authflow.ContextWithUser(ctx, user), nil
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that resolves the
// session token into a user on the handler's context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	if config == nil {
		config = DefaultInterceptorConfig(nil)
	}
	config.ensureDefaults()

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := config.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor is the streaming counterpart of UnaryAuthInterceptor.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	if config == nil {
		config = DefaultInterceptorConfig(nil)
	}
	config.ensureDefaults()

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := config.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context {
	return s.ctx
}
