package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/logging"
	"github.com/bily-amin/habitica/internal/rpc"
	"github.com/bily-amin/habitica/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newTestServer(secret string) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop{}, &fakeChallenges{}, secret)
}

func withToken(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(),
		metadata.New(map[string]string{common.AccessTokenHeaderName: token}))
}

func TestInterceptor_HealthPassesWithoutToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	called := false
	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return "ok", nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodJoinChallenge)}

	_, err := s.accessTokenInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	})
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "missing token", status.Convert(err).Message())
}

func TestInterceptor_InvalidToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodGetChallenge)}

	_, err := s.accessTokenInterceptor(withToken("not-a-valid-jwt"), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called with invalid token")
		return nil, nil
	})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, common.ErrInvalidToken.Error(), status.Convert(err).Message())
}

func TestInterceptor_ExpiredToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodGetChallenge)}

	tok, err := auth.GenerateToken("u1", []byte("secret"), -time.Minute)
	require.NoError(t, err)

	_, err = s.accessTokenInterceptor(withToken(tok), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called with expired token")
		return nil, nil
	})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, common.ErrTokenExpired.Error(), status.Convert(err).Message())
}

func TestInterceptor_ValidTokenInjectsUserID(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodDeleteChallenge)}

	tok, err := auth.GenerateToken("user-42", []byte("secret"), time.Minute)
	require.NoError(t, err)

	var got string
	_, err = s.accessTokenInterceptor(withToken(tok), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		got, _ = UserIDFromContext(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "user-42", got)
}
