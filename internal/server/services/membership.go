package services

import (
	"context"
	"errors"

	"github.com/bily-amin/habitica/internal/apperr"
	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/bily-amin/habitica/internal/server/policy"
)

// KeepPolicy decides what happens to a member's task copies on leave.
type KeepPolicy string

const (
	// KeepAll detaches the copies and leaves them as ordinary tasks.
	KeepAll KeepPolicy = "keep-all"
	// RemoveAll deletes the copies.
	RemoveAll KeepPolicy = "remove-all"
)

// ParseKeepPolicy maps the wire value to a policy; empty means KeepAll.
func ParseKeepPolicy(s string) (KeepPolicy, error) {
	switch KeepPolicy(s) {
	case "", KeepAll:
		return KeepAll, nil
	case RemoveAll:
		return RemoveAll, nil
	}
	return "", apperr.Validation("keep must be keep-all or remove-all")
}

// JoinChallenge adds the actor to the challenge and mirrors every template
// task into the actor's task list. Challenges the actor may not join are
// reported as not found.
func (s *ChallengeService) JoinChallenge(ctx context.Context, actorID, challengeID string) (_ *models.Challenge, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.JoinChallenge", "challenge_id", challengeID)
	defer end(&err)

	v, err := s.loadChallenge(ctx, s.db, actorID, challengeID)
	if err != nil {
		return nil, err
	}
	if !v.caps.Has(policy.Join) {
		return nil, apperr.NotFound("challenge not found")
	}
	if v.rel.IsMember {
		return nil, apperr.Authorization("user already in challenge")
	}

	c, userID := v.challenge, v.actor.ID
	var mirrored int

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Members(tx).Add(ctx, c.ID, userID); err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return apperr.Authorization("user already in challenge")
			}
			return err
		}
		count, err := s.repomanager.Challenges(tx).AdjustMemberCount(ctx, c.ID, 1)
		if err != nil {
			return notFoundAs(err, "challenge not found")
		}
		c.MemberCount = count

		taskRepo := s.repomanager.Tasks(tx)
		templates, err := taskRepo.ListTemplates(ctx, c.ID)
		if err != nil {
			return err
		}
		if len(templates) > 0 {
			mirrors := make([]*models.Task, 0, len(templates))
			for _, t := range templates {
				mirrors = append(mirrors, t.MirrorFor(userID, s.newID()))
			}
			if err := taskRepo.Create(ctx, mirrors...); err != nil {
				return err
			}
		}
		mirrored = len(templates)

		return s.repomanager.Tags(tx).Upsert(ctx, &models.Tag{
			ID: c.ID, UserID: userID, Name: c.ShortName, Challenge: true,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "challenge joined", "challenge_id", c.ID, "user_id", userID, "mirrored_tasks", mirrored)
	return c, nil
}

// LeaveChallenge removes the actor from the challenge and keeps or deletes
// the actor's task copies according to keep.
func (s *ChallengeService) LeaveChallenge(ctx context.Context, actorID, challengeID string, keep KeepPolicy) (_ *models.Challenge, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.LeaveChallenge", "challenge_id", challengeID, "keep", string(keep))
	defer end(&err)

	if keep, err = ParseKeepPolicy(string(keep)); err != nil {
		return nil, err
	}
	v, err := s.loadChallenge(ctx, s.db, actorID, challengeID)
	if err != nil {
		return nil, err
	}
	if !v.rel.IsMember {
		return nil, apperr.Authorization("not a member")
	}

	c, userID := v.challenge, v.actor.ID
	var affected int64

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Members(tx).Remove(ctx, c.ID, userID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return apperr.Authorization("not a member")
			}
			return err
		}
		count, err := s.repomanager.Challenges(tx).AdjustMemberCount(ctx, c.ID, -1)
		if err != nil {
			return notFoundAs(err, "challenge not found")
		}
		c.MemberCount = count

		taskRepo := s.repomanager.Tasks(tx)
		if keep == RemoveAll {
			affected, err = taskRepo.DeleteMirrors(ctx, c.ID, userID)
		} else {
			affected, err = taskRepo.DetachMirrors(ctx, c.ID, userID)
		}
		if err != nil {
			return err
		}

		return s.repomanager.Tags(tx).SetChallenge(ctx, userID, c.ID, false)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "challenge left", "challenge_id", c.ID, "user_id", userID, "keep", string(keep), "tasks", affected)
	return c, nil
}
