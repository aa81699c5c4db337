package client

import (
	"context"

	"github.com/bily-amin/habitica/internal/rpc"
)

// Client is the challenge API as seen by the command-line tool.
type Client interface {
	Close() error
	CreateChallenge(ctx context.Context, req rpc.CreateChallengeRequest) (*rpc.Challenge, error)
	GetChallenge(ctx context.Context, challengeID string) (*rpc.Challenge, error)
	ListUserChallenges(ctx context.Context, page int) ([]rpc.Challenge, error)
	ListGroupChallenges(ctx context.Context, groupID string) ([]rpc.Challenge, error)
	UpdateChallenge(ctx context.Context, req rpc.UpdateChallengeRequest) (*rpc.Challenge, error)
	AddChallengeTask(ctx context.Context, challengeID string, task rpc.TaskSpec) (*rpc.Task, error)
	JoinChallenge(ctx context.Context, challengeID string) (*rpc.Challenge, error)
	LeaveChallenge(ctx context.Context, challengeID, keep string) (*rpc.Challenge, error)
	DeleteChallenge(ctx context.Context, challengeID string) error
	SelectChallengeWinner(ctx context.Context, challengeID, winnerID string) error
	ExportChallengeMembers(ctx context.Context, challengeID string) (string, error)
}
