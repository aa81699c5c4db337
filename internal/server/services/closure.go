package services

import (
	"context"
	"errors"

	"github.com/bily-amin/habitica/internal/apperr"
	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/server/cleanup"
	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/bily-amin/habitica/internal/server/notify"
	"github.com/bily-amin/habitica/internal/server/policy"
	"go.uber.org/multierr"
)

// Closure is how a challenge ends: DeleteClosure or WinnerClosure.
type Closure interface {
	Reason() models.ClosureReason
}

// DeleteClosure removes the challenge and refunds its leader.
type DeleteClosure struct{}

func (DeleteClosure) Reason() models.ClosureReason { return models.ReasonChallengeDeleted }

// WinnerClosure pays the prize to a member and removes the challenge.
type WinnerClosure struct {
	WinnerID string
}

func (WinnerClosure) Reason() models.ClosureReason { return models.ReasonChallengeClosed }

// closed is what a committed closure leaves for cleanup and notification.
type closed struct {
	challenge *models.Challenge
	memberIDs []string
	winner    *models.User
}

// DeleteChallenge closes the challenge without a winner.
func (s *ChallengeService) DeleteChallenge(ctx context.Context, actorID, challengeID string) error {
	return s.CloseChallenge(ctx, actorID, challengeID, DeleteClosure{})
}

// SelectChallengeWinner closes the challenge in favour of winnerID.
func (s *ChallengeService) SelectChallengeWinner(ctx context.Context, actorID, challengeID, winnerID string) error {
	return s.CloseChallenge(ctx, actorID, challengeID, WinnerClosure{WinnerID: winnerID})
}

// CloseChallenge deletes the challenge, settles its prize and decrements the
// group counter in one transaction. Template removal, member release and
// breaking of task copies are handed to the cleanup dispatcher and may
// complete after CloseChallenge returns. Closing an already closed
// challenge is reported as not found and moves no funds.
func (s *ChallengeService) CloseChallenge(ctx context.Context, actorID, challengeID string, closure Closure) (err error) {
	ctx, end := startSpan(ctx, "ChallengeService.CloseChallenge",
		"challenge_id", challengeID, "reason", string(closure.Reason()))
	defer end(&err)

	if w, ok := closure.(WinnerClosure); ok && !validID(w.WinnerID) {
		return apperr.Validation("invalid winner id")
	}

	v, err := s.loadChallenge(ctx, s.db, actorID, challengeID)
	if err != nil {
		return err
	}
	if !v.caps.Has(policy.Modify) {
		return apperr.Authorization("only the leader or an admin can close a challenge")
	}
	if w, ok := closure.(WinnerClosure); ok {
		isMember, err := s.repomanager.Members(s.db).IsMember(ctx, challengeID, w.WinnerID)
		if err != nil {
			return err
		}
		if !isMember {
			return apperr.NotFound("winner not found")
		}
	}

	var out closed
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		c, err := s.repomanager.Challenges(tx).Delete(ctx, challengeID)
		if err != nil {
			return notFoundAs(err, "challenge not found")
		}
		out.challenge = c

		if out.memberIDs, err = s.repomanager.Members(tx).ListUserIDs(ctx, c.ID); err != nil {
			return err
		}

		switch cl := closure.(type) {
		case DeleteClosure:
			err = s.refundLeader(ctx, tx, c)
		case WinnerClosure:
			out.winner, err = s.payWinner(ctx, tx, c, cl.WinnerID)
		default:
			err = apperr.Internal("unknown closure", nil)
		}
		if err != nil {
			return err
		}

		err = s.repomanager.Groups(tx).AdjustChallengeCount(ctx, c.GroupID, -1)
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "challenge group missing on close", "challenge_id", c.ID, "group_id", c.GroupID)
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "challenge closed", "challenge_id", challengeID,
		"reason", string(closure.Reason()), "members", len(out.memberIDs))

	s.dispatchCleanup(ctx, out, closure.Reason())
	if out.winner != nil {
		s.notifyWinner(ctx, out.winner, out.challenge)
	}
	return nil
}

// refundLeader returns the funding cost to the leader unless the challenge
// lived in the public group.
func (s *ChallengeService) refundLeader(ctx context.Context, tx dbx.DBTX, c *models.Challenge) error {
	cost := c.FundingCost()
	if c.GroupID == s.publicGroupID || !cost.IsPositive() {
		return nil
	}
	if err := s.repomanager.Users(tx).CreditBalance(ctx, c.LeaderID, cost); err != nil {
		return notFoundAs(err, "leader not found")
	}
	return nil
}

// payWinner credits the funding cost and records the achievement. Membership
// is checked again inside the transaction in case the winner just left.
func (s *ChallengeService) payWinner(ctx context.Context, tx dbx.DBTX, c *models.Challenge, winnerID string) (*models.User, error) {
	isMember, err := s.repomanager.Members(tx).IsMember(ctx, c.ID, winnerID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperr.NotFound("winner not found")
	}

	userRepo := s.repomanager.Users(tx)
	winner, err := userRepo.GetByID(ctx, winnerID)
	if err != nil {
		return nil, notFoundAs(err, "winner not found")
	}

	if cost := c.FundingCost(); cost.IsPositive() {
		if err := userRepo.CreditBalance(ctx, winner.ID, cost); err != nil {
			return nil, notFoundAs(err, "winner not found")
		}
		winner.Balance = winner.Balance.Add(cost)
	}
	if err := userRepo.AddAchievement(ctx, winner.ID, c.Name); err != nil {
		return nil, err
	}
	return winner, nil
}

func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.UserName
}

func (s *ChallengeService) dispatchCleanup(ctx context.Context, out closed, reason models.ClosureReason) {
	id := out.challenge.ID
	winnerName := displayName(out.winner)

	job := cleanup.Job{
		Name:  "close_challenge",
		Attrs: []any{"challenge_id", id, "reason", string(reason)},
		Steps: []cleanup.Step{
			{Name: "delete_templates", Run: func(ctx context.Context) error {
				_, err := s.repomanager.Tasks(s.db).DeleteTemplates(ctx, id)
				return err
			}},
			{Name: "release_members", Run: func(ctx context.Context) error {
				return s.releaseMembers(ctx, id, out.memberIDs)
			}},
			{Name: "break_mirrors", Run: func(ctx context.Context) error {
				_, err := s.repomanager.Tasks(s.db).BreakMirrors(ctx, id, reason, winnerName)
				return err
			}},
		},
	}

	if err := s.cleanup.Submit(job); err != nil {
		s.log.Error(ctx, "cleanup not scheduled", "alert", true, "challenge_id", id, "error", err)
	}
}

// releaseMembers drops the challenge from every member's set and turns the
// matching tag into a plain tag. Members already released are skipped.
func (s *ChallengeService) releaseMembers(ctx context.Context, challengeID string, userIDs []string) error {
	memberRepo := s.repomanager.Members(s.db)
	tagRepo := s.repomanager.Tags(s.db)

	var result error
	for _, userID := range userIDs {
		if err := memberRepo.Remove(ctx, challengeID, userID); err != nil && !errors.Is(err, common.ErrorNotFound) {
			result = multierr.Append(result, err)
			continue
		}
		result = multierr.Append(result, tagRepo.SetChallenge(ctx, userID, challengeID, false))
	}
	return result
}

// notifyWinner is best effort; failures are logged and never fail the closure.
func (s *ChallengeService) notifyWinner(ctx context.Context, winner *models.User, c *models.Challenge) {
	var channels []notify.Channel
	if winner.Preferences.EmailWonChallenge {
		channels = append(channels, notify.ChannelEmail)
	}
	if winner.Preferences.PushWonChallenge {
		channels = append(channels, notify.ChannelPush)
	}

	for _, ch := range channels {
		err := s.notifier.Notify(ctx, notify.Notification{
			Kind:          notify.KindWonChallenge,
			Channel:       ch,
			UserID:        winner.ID,
			ChallengeID:   c.ID,
			ChallengeName: c.Name,
		})
		if err != nil {
			s.log.Warn(ctx, "winner notification failed", "channel", string(ch), "user_id", winner.ID, "error", err)
		}
	}
}
