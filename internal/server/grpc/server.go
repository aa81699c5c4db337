// Package grpc exposes the challenge service over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/bily-amin/habitica/internal/logging"
	"github.com/bily-amin/habitica/internal/rpc"
	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/bily-amin/habitica/internal/server/services"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Challenges is the service surface the transport calls into.
type Challenges interface {
	CreateChallenge(ctx context.Context, actorID string, in services.CreateChallengeInput) (*models.Challenge, error)
	GetChallenge(ctx context.Context, actorID, challengeID string) (*models.Challenge, error)
	ListUserChallenges(ctx context.Context, actorID string, page int) ([]*models.Challenge, error)
	ListGroupChallenges(ctx context.Context, actorID, groupID string) ([]*models.Challenge, error)
	UpdateChallenge(ctx context.Context, actorID, challengeID string, in services.UpdateChallengeInput) (*models.Challenge, error)
	AddChallengeTask(ctx context.Context, actorID, challengeID string, in services.TaskInput) (*models.Task, error)
	JoinChallenge(ctx context.Context, actorID, challengeID string) (*models.Challenge, error)
	LeaveChallenge(ctx context.Context, actorID, challengeID string, keep services.KeepPolicy) (*models.Challenge, error)
	DeleteChallenge(ctx context.Context, actorID, challengeID string) error
	SelectChallengeWinner(ctx context.Context, actorID, challengeID, winnerID string) error
	ExportChallengeMembers(ctx context.Context, actorID, challengeID string) (string, error)
}

type GRPCServer struct {
	address    string
	challenges Challenges
	logger     logging.Logger
	jwtSecret  []byte
	health     *health.Server
}

func NewGRPCServer(a string, l logging.Logger, cs Challenges, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		challenges: cs,
		jwtSecret:  []byte(secretKey),
		health:     health.NewServer(),
	}
}

// newServer builds the gRPC server with tracing, authentication, the
// challenge service and the standard health service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
	)
	srv.RegisterService(&challengeServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()
	s.health.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
