package services

import (
	"context"
	"strings"

	"github.com/bily-amin/habitica/internal/apperr"
	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/bily-amin/habitica/internal/server/policy"
	"github.com/shopspring/decimal"
)

const (
	minShortNameLen = 3
	// balanceScale is the number of decimal places stored for balances and prizes.
	balanceScale = 4
)

type TaskInput struct {
	Type  models.TaskType
	Text  string
	Notes string
	Value float64
}

func (t TaskInput) validate() error {
	if !t.Type.Valid() {
		return apperr.Validation("unknown task type")
	}
	if strings.TrimSpace(t.Text) == "" {
		return apperr.Validation("task text is required")
	}
	return nil
}

type CreateChallengeInput struct {
	GroupID     string
	Name        string
	ShortName   string
	Summary     string
	Description string
	Prize       decimal.Decimal
	Official    bool
	Tasks       []TaskInput
}

func validateNames(name, shortName string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("name is required")
	}
	if len([]rune(strings.TrimSpace(shortName))) < minShortNameLen {
		return apperr.Validation("short name must be at least 3 characters")
	}
	return nil
}

func (in *CreateChallengeInput) validate() error {
	if !validID(in.GroupID) {
		return apperr.Validation("invalid group id")
	}
	if err := validateNames(in.Name, in.ShortName); err != nil {
		return err
	}
	if in.Prize.IsNegative() {
		return apperr.Validation("prize must not be negative")
	}
	if cost := models.FundingCost(in.Prize); !cost.Equal(cost.Truncate(balanceScale)) {
		return apperr.Validation("prize must be a multiple of 0.0004")
	}
	for _, t := range in.Tasks {
		if err := t.validate(); err != nil {
			return err
		}
	}
	return nil
}

// CreateChallenge funds and stores a new challenge with its template tasks.
// Funding is decided before anything is written; debits, the challenge,
// its tasks and the group counter are committed together.
func (s *ChallengeService) CreateChallenge(ctx context.Context, actorID string, in CreateChallengeInput) (_ *models.Challenge, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.CreateChallenge", "group_id", in.GroupID)
	defer end(&err)

	if err := in.validate(); err != nil {
		return nil, err
	}

	actor, err := s.actor(ctx, s.db, actorID)
	if err != nil {
		return nil, err
	}
	group, err := s.lookupGroup(ctx, s.db, actor, in.GroupID, policy.MustBeMember)
	if err != nil {
		return nil, err
	}
	if group.LeaderOnlyChallenges && group.LeaderID != actor.ID {
		return nil, apperr.Authorization("only the group leader can create challenges")
	}
	if in.Official && !actor.IsAdmin {
		return nil, apperr.Authorization("only admins can create official challenges")
	}

	plan, err := PlanFunding(FundingRequest{
		Prize:        in.Prize,
		Public:       group.ID == s.publicGroupID,
		GroupBalance: group.Balance,
		GroupUsable:  group.LeaderID == actor.ID,
		UserBalance:  actor.Balance,
	})
	if err != nil {
		return nil, err
	}

	c := &models.Challenge{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		ShortName:   strings.TrimSpace(in.ShortName),
		Summary:     in.Summary,
		Description: in.Description,
		GroupID:     group.ID,
		LeaderID:    actor.ID,
		Prize:       in.Prize,
		Official:    in.Official,
	}
	templates := make([]*models.Task, 0, len(in.Tasks))
	for _, t := range in.Tasks {
		task := s.newTemplate(c.ID, t)
		c.TasksOrder.Append(task.Type, task.ID)
		templates = append(templates, task)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.applyFunding(ctx, tx, plan, group.ID, actor.ID); err != nil {
			return err
		}
		if err := s.repomanager.Challenges(tx).Create(ctx, c); err != nil {
			return err
		}
		if len(templates) > 0 {
			if err := s.repomanager.Tasks(tx).Create(ctx, templates...); err != nil {
				return err
			}
		}
		return notFoundAs(s.repomanager.Groups(tx).AdjustChallengeCount(ctx, group.ID, 1), "group not found")
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "challenge created", "challenge_id", c.ID, "group_id", group.ID,
		"cost", plan.Cost.String(), "from_group", plan.FromGroup.String(), "from_user", plan.FromUser.String())
	return c, nil
}

func (s *ChallengeService) newTemplate(challengeID string, in TaskInput) *models.Task {
	return &models.Task{
		ID:        s.newID(),
		Type:      in.Type,
		Text:      strings.TrimSpace(in.Text),
		Notes:     in.Notes,
		Value:     in.Value,
		Challenge: models.TaskChallenge{ID: challengeID},
	}
}

// GetChallenge returns a challenge the actor can view.
func (s *ChallengeService) GetChallenge(ctx context.Context, actorID, challengeID string) (_ *models.Challenge, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.GetChallenge", "challenge_id", challengeID)
	defer end(&err)

	v, err := s.loadChallenge(ctx, s.db, actorID, challengeID)
	if err != nil {
		return nil, err
	}
	return v.challenge, nil
}

// ListUserChallenges returns one page of the challenges visible to the
// actor, official ones first, then newest.
func (s *ChallengeService) ListUserChallenges(ctx context.Context, actorID string, page int) (_ []*models.Challenge, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.ListUserChallenges")
	defer end(&err)

	if page < 0 {
		return nil, apperr.Validation("page must not be negative")
	}
	actor, err := s.actor(ctx, s.db, actorID)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Challenges(s.db).ListForUser(ctx, actor.ID, s.publicGroupID, page*common.PageSize, common.PageSize)
}

// ListGroupChallenges returns the challenges of a group the actor can see.
func (s *ChallengeService) ListGroupChallenges(ctx context.Context, actorID, groupID string) (_ []*models.Challenge, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.ListGroupChallenges", "group_id", groupID)
	defer end(&err)

	actor, err := s.actor(ctx, s.db, actorID)
	if err != nil {
		return nil, err
	}
	group, err := s.lookupGroup(ctx, s.db, actor, groupID, policy.Default)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Challenges(s.db).ListByGroup(ctx, group.ID)
}

// UpdateChallengeInput carries the editable fields; nil leaves a field as is.
type UpdateChallengeInput struct {
	Name        *string
	ShortName   *string
	Summary     *string
	Description *string
}

// UpdateChallenge edits the descriptive fields. Prize and group are fixed
// once the challenge is funded.
func (s *ChallengeService) UpdateChallenge(ctx context.Context, actorID, challengeID string, in UpdateChallengeInput) (_ *models.Challenge, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.UpdateChallenge", "challenge_id", challengeID)
	defer end(&err)

	v, err := s.loadChallenge(ctx, s.db, actorID, challengeID)
	if err != nil {
		return nil, err
	}
	if !v.caps.Has(policy.Modify) {
		return nil, apperr.Authorization("only the leader or an admin can update a challenge")
	}

	c := v.challenge
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.ShortName != nil {
		c.ShortName = strings.TrimSpace(*in.ShortName)
	}
	if in.Summary != nil {
		c.Summary = *in.Summary
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if err := validateNames(c.Name, c.ShortName); err != nil {
		return nil, err
	}

	if err := s.repomanager.Challenges(s.db).Update(ctx, c); err != nil {
		return nil, notFoundAs(err, "challenge not found")
	}
	return c, nil
}

// AddChallengeTask adds a template task and mirrors it to every current member.
func (s *ChallengeService) AddChallengeTask(ctx context.Context, actorID, challengeID string, in TaskInput) (_ *models.Task, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.AddChallengeTask", "challenge_id", challengeID)
	defer end(&err)

	if err := in.validate(); err != nil {
		return nil, err
	}
	v, err := s.loadChallenge(ctx, s.db, actorID, challengeID)
	if err != nil {
		return nil, err
	}
	if !v.caps.Has(policy.Modify) {
		return nil, apperr.Authorization("only the leader or an admin can add tasks")
	}

	c := v.challenge
	template := s.newTemplate(c.ID, in)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		taskRepo := s.repomanager.Tasks(tx)
		if err := taskRepo.Create(ctx, template); err != nil {
			return err
		}

		order, err := s.repomanager.Challenges(tx).AppendTaskOrder(ctx, c.ID, template.Type, template.ID)
		if err != nil {
			return notFoundAs(err, "challenge not found")
		}
		c.TasksOrder = order

		memberIDs, err := s.repomanager.Members(tx).ListUserIDs(ctx, c.ID)
		if err != nil {
			return err
		}
		if len(memberIDs) == 0 {
			return nil
		}
		mirrors := make([]*models.Task, 0, len(memberIDs))
		for _, userID := range memberIDs {
			mirrors = append(mirrors, template.MirrorFor(userID, s.newID()))
		}
		return taskRepo.Create(ctx, mirrors...)
	})
	if err != nil {
		return nil, err
	}
	return template, nil
}
