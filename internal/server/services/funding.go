package services

import (
	"context"
	"errors"

	"github.com/bily-amin/habitica/internal/apperr"
	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/shopspring/decimal"
)

var minPublicPrize = decimal.NewFromInt(1)

// FundingPlan splits a challenge's funding cost between the group and the
// creator. FromGroup + FromUser == Cost.
type FundingPlan struct {
	Cost      decimal.Decimal
	FromGroup decimal.Decimal
	FromUser  decimal.Decimal
}

// FundingRequest is everything the allocator needs to decide.
type FundingRequest struct {
	Prize        decimal.Decimal
	Public       bool
	GroupBalance decimal.Decimal
	// GroupUsable is true when the creator leads the group and may spend its funds.
	GroupUsable bool
	UserBalance decimal.Decimal
}

// PlanFunding computes how a prize is paid for. The group pays first and
// the creator covers the rest. It never mutates anything.
func PlanFunding(req FundingRequest) (FundingPlan, error) {
	if req.Prize.IsNegative() {
		return FundingPlan{}, apperr.Validation("prize must not be negative")
	}
	if req.Public && req.Prize.LessThan(minPublicPrize) {
		return FundingPlan{}, apperr.Authorization("public challenges need a prize of at least 1 gem")
	}

	cost := models.FundingCost(req.Prize)
	plan := FundingPlan{Cost: cost, FromGroup: decimal.Zero, FromUser: decimal.Zero}
	if cost.IsZero() {
		return plan, nil
	}

	usable := decimal.Zero
	if req.GroupUsable && req.GroupBalance.IsPositive() {
		usable = req.GroupBalance
	}
	if cost.GreaterThan(req.UserBalance.Add(usable)) {
		return FundingPlan{}, apperr.Authorization("not enough gems")
	}

	plan.FromGroup = decimal.Min(cost, usable)
	plan.FromUser = cost.Sub(plan.FromGroup)
	return plan, nil
}

// applyFunding debits the group, then the user. A concurrent spend that
// leaves either balance short surfaces as not enough gems.
func (s *ChallengeService) applyFunding(ctx context.Context, tx dbx.DBTX, plan FundingPlan, groupID, userID string) error {
	if plan.FromGroup.IsPositive() {
		if err := s.repomanager.Groups(tx).DebitBalance(ctx, groupID, plan.FromGroup); err != nil {
			return fundingError(err)
		}
	}
	if plan.FromUser.IsPositive() {
		if err := s.repomanager.Users(tx).DebitBalance(ctx, userID, plan.FromUser); err != nil {
			return fundingError(err)
		}
	}
	return nil
}

func fundingError(err error) error {
	if errors.Is(err, common.ErrorInsufficientBalance) {
		return apperr.Authorization("not enough gems")
	}
	return err
}
