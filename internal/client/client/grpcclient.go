package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bily-amin/habitica/internal/apperr"
	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	accessToken string
	timeout     time.Duration
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewChallengeClient prepares a client for endpointURL. The connection is
// established lazily on the first call.
func NewChallengeClient(endpointURL, accessToken string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken, timeout: timeout}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// call sends req to method and decodes the reply into resp (which may be nil).
func (s *GRPCClient) call(ctx context.Context, method string, req, resp any) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	in, err := rpc.Encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, rpc.FullMethod(method), in, out); err != nil {
		return s.mapError(err)
	}
	if resp == nil {
		return nil
	}
	return rpc.Decode(out, resp)
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrUnavailable
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound, codes.PermissionDenied, codes.InvalidArgument:
		return apperr.FromGRPCStatus(err)
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func (s *GRPCClient) CreateChallenge(ctx context.Context, req rpc.CreateChallengeRequest) (*rpc.Challenge, error) {
	var c rpc.Challenge
	if err := s.call(ctx, rpc.MethodCreateChallenge, req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GRPCClient) GetChallenge(ctx context.Context, challengeID string) (*rpc.Challenge, error) {
	var c rpc.Challenge
	if err := s.call(ctx, rpc.MethodGetChallenge, rpc.ChallengeRequest{ChallengeID: challengeID}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GRPCClient) ListUserChallenges(ctx context.Context, page int) ([]rpc.Challenge, error) {
	var list rpc.ChallengeList
	if err := s.call(ctx, rpc.MethodListUserChallenges, rpc.ListUserChallengesRequest{Page: page}, &list); err != nil {
		return nil, err
	}
	return list.Challenges, nil
}

func (s *GRPCClient) ListGroupChallenges(ctx context.Context, groupID string) ([]rpc.Challenge, error) {
	var list rpc.ChallengeList
	if err := s.call(ctx, rpc.MethodListGroupChallenges, rpc.ListGroupChallengesRequest{GroupID: groupID}, &list); err != nil {
		return nil, err
	}
	return list.Challenges, nil
}

func (s *GRPCClient) UpdateChallenge(ctx context.Context, req rpc.UpdateChallengeRequest) (*rpc.Challenge, error) {
	var c rpc.Challenge
	if err := s.call(ctx, rpc.MethodUpdateChallenge, req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GRPCClient) AddChallengeTask(ctx context.Context, challengeID string, task rpc.TaskSpec) (*rpc.Task, error) {
	var t rpc.Task
	req := rpc.AddChallengeTaskRequest{ChallengeID: challengeID, Task: task}
	if err := s.call(ctx, rpc.MethodAddChallengeTask, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GRPCClient) JoinChallenge(ctx context.Context, challengeID string) (*rpc.Challenge, error) {
	var c rpc.Challenge
	if err := s.call(ctx, rpc.MethodJoinChallenge, rpc.ChallengeRequest{ChallengeID: challengeID}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GRPCClient) LeaveChallenge(ctx context.Context, challengeID, keep string) (*rpc.Challenge, error) {
	var c rpc.Challenge
	req := rpc.LeaveChallengeRequest{ChallengeID: challengeID, Keep: keep}
	if err := s.call(ctx, rpc.MethodLeaveChallenge, req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GRPCClient) DeleteChallenge(ctx context.Context, challengeID string) error {
	return s.call(ctx, rpc.MethodDeleteChallenge, rpc.ChallengeRequest{ChallengeID: challengeID}, nil)
}

func (s *GRPCClient) SelectChallengeWinner(ctx context.Context, challengeID, winnerID string) error {
	req := rpc.SelectChallengeWinnerRequest{ChallengeID: challengeID, WinnerID: winnerID}
	return s.call(ctx, rpc.MethodSelectChallengeWinner, req, nil)
}

func (s *GRPCClient) ExportChallengeMembers(ctx context.Context, challengeID string) (string, error) {
	var resp rpc.ExportResponse
	if err := s.call(ctx, rpc.MethodExportChallengeMembers, rpc.ChallengeRequest{ChallengeID: challengeID}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}
