// Package models defines server-side data models persisted in the database.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Challenge is a group-scoped, prize-funded set of template tasks that
// users join and that is closed by deletion or by selecting a winner.
type Challenge struct {
	ID          string
	Name        string
	ShortName   string
	Summary     string
	Description string
	GroupID     string
	LeaderID    string
	// Prize is expressed in gems; the funding cost is a quarter of it.
	Prize       decimal.Decimal
	MemberCount int
	Official    bool
	TasksOrder  TasksOrder
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FundingCost returns the balance amount backing the prize (Prize / 4).
func (c *Challenge) FundingCost() decimal.Decimal {
	return FundingCost(c.Prize)
}

// FundingCost converts a prize into the balance amount that pays for it.
func FundingCost(prize decimal.Decimal) decimal.Decimal {
	return prize.Div(decimal.NewFromInt(4))
}

// TasksOrder partitions a challenge's template task ids by task type.
type TasksOrder struct {
	Habits  []string `json:"habits"`
	Dailys  []string `json:"dailys"`
	Todos   []string `json:"todos"`
	Rewards []string `json:"rewards"`
}

// Append adds id to the partition of the given task type.
func (o *TasksOrder) Append(t TaskType, id string) {
	switch t {
	case TaskHabit:
		o.Habits = append(o.Habits, id)
	case TaskDaily:
		o.Dailys = append(o.Dailys, id)
	case TaskTodo:
		o.Todos = append(o.Todos, id)
	case TaskReward:
		o.Rewards = append(o.Rewards, id)
	}
}

// All returns every id in partition order: habits, dailys, todos, rewards.
func (o TasksOrder) All() []string {
	out := make([]string, 0, len(o.Habits)+len(o.Dailys)+len(o.Todos)+len(o.Rewards))
	out = append(out, o.Habits...)
	out = append(out, o.Dailys...)
	out = append(out, o.Todos...)
	return append(out, o.Rewards...)
}

// Value implements driver.Valuer (stored as JSONB).
func (o TasksOrder) Value() (driver.Value, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (o *TasksOrder) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*o = TasksOrder{}
		return nil
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return errors.New("unsupported tasks_order type")
	}
}

// ClosureReason is recorded on member task copies when a challenge closes.
type ClosureReason string

const (
	ReasonChallengeDeleted ClosureReason = "CHALLENGE_DELETED"
	ReasonChallengeClosed  ClosureReason = "CHALLENGE_CLOSED"
)
