package grpc

import (
	"context"

	"github.com/bily-amin/habitica/internal/apperr"
	"github.com/bily-amin/habitica/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ChallengeServiceServer is the typed handler set behind challengeServiceDesc.
type ChallengeServiceServer interface {
	CreateChallenge(context.Context, *rpc.CreateChallengeRequest) (*rpc.Challenge, error)
	GetChallenge(context.Context, *rpc.ChallengeRequest) (*rpc.Challenge, error)
	ListUserChallenges(context.Context, *rpc.ListUserChallengesRequest) (*rpc.ChallengeList, error)
	ListGroupChallenges(context.Context, *rpc.ListGroupChallengesRequest) (*rpc.ChallengeList, error)
	UpdateChallenge(context.Context, *rpc.UpdateChallengeRequest) (*rpc.Challenge, error)
	AddChallengeTask(context.Context, *rpc.AddChallengeTaskRequest) (*rpc.Task, error)
	JoinChallenge(context.Context, *rpc.ChallengeRequest) (*rpc.Challenge, error)
	LeaveChallenge(context.Context, *rpc.LeaveChallengeRequest) (*rpc.Challenge, error)
	DeleteChallenge(context.Context, *rpc.ChallengeRequest) (*rpc.Empty, error)
	SelectChallengeWinner(context.Context, *rpc.SelectChallengeWinnerRequest) (*rpc.Empty, error)
	ExportChallengeMembers(context.Context, *rpc.ChallengeRequest) (*rpc.ExportResponse, error)
}

var challengeServiceDesc = grpc.ServiceDesc{
	ServiceName: rpc.ServiceName,
	HandlerType: (*ChallengeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(rpc.MethodCreateChallenge, ChallengeServiceServer.CreateChallenge),
		unary(rpc.MethodGetChallenge, ChallengeServiceServer.GetChallenge),
		unary(rpc.MethodListUserChallenges, ChallengeServiceServer.ListUserChallenges),
		unary(rpc.MethodListGroupChallenges, ChallengeServiceServer.ListGroupChallenges),
		unary(rpc.MethodUpdateChallenge, ChallengeServiceServer.UpdateChallenge),
		unary(rpc.MethodAddChallengeTask, ChallengeServiceServer.AddChallengeTask),
		unary(rpc.MethodJoinChallenge, ChallengeServiceServer.JoinChallenge),
		unary(rpc.MethodLeaveChallenge, ChallengeServiceServer.LeaveChallenge),
		unary(rpc.MethodDeleteChallenge, ChallengeServiceServer.DeleteChallenge),
		unary(rpc.MethodSelectChallengeWinner, ChallengeServiceServer.SelectChallengeWinner),
		unary(rpc.MethodExportChallengeMembers, ChallengeServiceServer.ExportChallengeMembers),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "habitica/challenges/v1/challenges.proto",
}

// unary adapts a typed handler to a Struct-in, Struct-out gRPC method.
// Domain errors are converted to statuses inside the interceptor chain so
// interceptors observe the final status.
func unary[Req, Resp any](name string, call func(ChallengeServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				r := new(Req)
				if err := rpc.Decode(req.(*structpb.Struct), r); err != nil {
					return nil, status.Error(codes.InvalidArgument, "malformed request")
				}
				out, err := call(srv.(ChallengeServiceServer), ctx, r)
				if err != nil {
					return nil, errorStatus(ctx, srv, name, err)
				}
				return rpc.Encode(out)
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: rpc.FullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func errorStatus(ctx context.Context, srv any, method string, err error) error {
	if s, ok := srv.(*GRPCServer); ok && apperr.KindOf(err) == apperr.KindInternal {
		s.logger.Error(ctx, "request failed", "method", method, "error", err)
	}
	return apperr.ToGRPCStatus(err)
}
