package grpc

import (
	"context"

	"github.com/bily-amin/habitica/internal/apperr"
	"github.com/bily-amin/habitica/internal/rpc"
	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/bily-amin/habitica/internal/server/services"
)

func (s *GRPCServer) actor(ctx context.Context) (string, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return "", apperr.Internal("no authenticated user in context", nil)
	}
	return id, nil
}

func (s *GRPCServer) CreateChallenge(ctx context.Context, req *rpc.CreateChallengeRequest) (*rpc.Challenge, error) {
	actorID, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	in := services.CreateChallengeInput{
		GroupID:     req.GroupID,
		Name:        req.Name,
		ShortName:   req.ShortName,
		Summary:     req.Summary,
		Description: req.Description,
		Prize:       req.Prize,
		Official:    req.Official,
	}
	for _, t := range req.Tasks {
		in.Tasks = append(in.Tasks, taskInput(t))
	}

	c, err := s.challenges.CreateChallenge(ctx, actorID, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "challenge created", "challenge_id", c.ID, "group_id", c.GroupID, "user_id", actorID)
	return toChallenge(c), nil
}

func (s *GRPCServer) GetChallenge(ctx context.Context, req *rpc.ChallengeRequest) (*rpc.Challenge, error) {
	actorID, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.challenges.GetChallenge(ctx, actorID, req.ChallengeID)
	if err != nil {
		return nil, err
	}
	return toChallenge(c), nil
}

func (s *GRPCServer) ListUserChallenges(ctx context.Context, req *rpc.ListUserChallengesRequest) (*rpc.ChallengeList, error) {
	actorID, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.challenges.ListUserChallenges(ctx, actorID, req.Page)
	if err != nil {
		return nil, err
	}
	return toChallengeList(list), nil
}

func (s *GRPCServer) ListGroupChallenges(ctx context.Context, req *rpc.ListGroupChallengesRequest) (*rpc.ChallengeList, error) {
	actorID, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.challenges.ListGroupChallenges(ctx, actorID, req.GroupID)
	if err != nil {
		return nil, err
	}
	return toChallengeList(list), nil
}

func (s *GRPCServer) UpdateChallenge(ctx context.Context, req *rpc.UpdateChallengeRequest) (*rpc.Challenge, error) {
	actorID, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.challenges.UpdateChallenge(ctx, actorID, req.ChallengeID, services.UpdateChallengeInput{
		Name:        req.Name,
		ShortName:   req.ShortName,
		Summary:     req.Summary,
		Description: req.Description,
	})
	if err != nil {
		return nil, err
	}
	return toChallenge(c), nil
}

func (s *GRPCServer) AddChallengeTask(ctx context.Context, req *rpc.AddChallengeTaskRequest) (*rpc.Task, error) {
	actorID, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.challenges.AddChallengeTask(ctx, actorID, req.ChallengeID, taskInput(req.Task))
	if err != nil {
		return nil, err
	}
	return &rpc.Task{
		ID:          t.ID,
		Type:        string(t.Type),
		Text:        t.Text,
		Notes:       t.Notes,
		Value:       t.Value,
		ChallengeID: t.Challenge.ID,
	}, nil
}

func (s *GRPCServer) JoinChallenge(ctx context.Context, req *rpc.ChallengeRequest) (*rpc.Challenge, error) {
	actorID, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.challenges.JoinChallenge(ctx, actorID, req.ChallengeID)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "challenge joined", "challenge_id", c.ID, "user_id", actorID)
	return toChallenge(c), nil
}

func (s *GRPCServer) LeaveChallenge(ctx context.Context, req *rpc.LeaveChallengeRequest) (*rpc.Challenge, error) {
	actorID, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	keep, err := services.ParseKeepPolicy(req.Keep)
	if err != nil {
		return nil, err
	}
	c, err := s.challenges.LeaveChallenge(ctx, actorID, req.ChallengeID, keep)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "challenge left", "challenge_id", c.ID, "user_id", actorID, "keep", string(keep))
	return toChallenge(c), nil
}

func (s *GRPCServer) DeleteChallenge(ctx context.Context, req *rpc.ChallengeRequest) (*rpc.Empty, error) {
	actorID, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.challenges.DeleteChallenge(ctx, actorID, req.ChallengeID); err != nil {
		return nil, err
	}
	return &rpc.Empty{}, nil
}

func (s *GRPCServer) SelectChallengeWinner(ctx context.Context, req *rpc.SelectChallengeWinnerRequest) (*rpc.Empty, error) {
	actorID, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.challenges.SelectChallengeWinner(ctx, actorID, req.ChallengeID, req.WinnerID); err != nil {
		return nil, err
	}
	return &rpc.Empty{}, nil
}

func (s *GRPCServer) ExportChallengeMembers(ctx context.Context, req *rpc.ChallengeRequest) (*rpc.ExportResponse, error) {
	actorID, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	url, err := s.challenges.ExportChallengeMembers(ctx, actorID, req.ChallengeID)
	if err != nil {
		return nil, err
	}
	return &rpc.ExportResponse{URL: url}, nil
}

func taskInput(t rpc.TaskSpec) services.TaskInput {
	return services.TaskInput{
		Type:  models.TaskType(t.Type),
		Text:  t.Text,
		Notes: t.Notes,
		Value: t.Value,
	}
}

func toChallenge(c *models.Challenge) *rpc.Challenge {
	return &rpc.Challenge{
		ID:          c.ID,
		Name:        c.Name,
		ShortName:   c.ShortName,
		Summary:     c.Summary,
		Description: c.Description,
		GroupID:     c.GroupID,
		LeaderID:    c.LeaderID,
		Prize:       c.Prize,
		MemberCount: c.MemberCount,
		Official:    c.Official,
		TasksOrder: rpc.TasksOrder{
			Habits:  c.TasksOrder.Habits,
			Dailys:  c.TasksOrder.Dailys,
			Todos:   c.TasksOrder.Todos,
			Rewards: c.TasksOrder.Rewards,
		},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toChallengeList(list []*models.Challenge) *rpc.ChallengeList {
	out := &rpc.ChallengeList{Challenges: make([]rpc.Challenge, 0, len(list))}
	for _, c := range list {
		out.Challenges = append(out.Challenges, *toChallenge(c))
	}
	return out
}
