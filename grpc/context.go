// Package grpc carries authflow sessions across gRPC calls. An HTTP frontend
// forwards the session token in metadata; the interceptors on the gRPC side
// turn it back into a user on the context.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"

	"github.com/authflow/authflow"
)

// DefaultMetadataKeySession is the gRPC metadata key holding the session token
const DefaultMetadataKeySession = "x-session-token"

// Config holds the metadata key configuration.
type Config struct {
	// MetadataKeySession defaults to "x-session-token".
	MetadataKeySession string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{MetadataKeySession: DefaultMetadataKeySession}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeySession == "" {
		c.MetadataKeySession = DefaultMetadataKeySession
	}
}

// SessionTokenFromContext returns the session token from incoming metadata,
// or "" when there is none.
func SessionTokenFromContext(ctx context.Context) string {
	return SessionTokenFromContextWithConfig(ctx, nil)
}

func SessionTokenFromContextWithConfig(ctx context.Context, config *Config) string {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(config.MetadataKeySession); len(values) > 0 {
		return values[0]
	}
	return ""
}

// SessionTokenToOutgoingContext adds the session token to outgoing metadata.
// Pass authflow.Coordinator.SerializeSession(user) as the token.
func SessionTokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return SessionTokenToOutgoingContextWithKey(ctx, token, DefaultMetadataKeySession)
}

func SessionTokenToOutgoingContextWithKey(ctx context.Context, token string, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, key, token)
}

// UserFromContext returns the user resolved by the interceptors, or nil.
// It reads the same context slot as authflow.UserFromContext.
func UserFromContext(ctx context.Context) *authflow.User {
	return authflow.UserFromContext(ctx)
}

// IsAuthenticated returns true if the interceptors resolved a user.
func IsAuthenticated(ctx context.Context) bool {
	return UserFromContext(ctx) != nil
}
