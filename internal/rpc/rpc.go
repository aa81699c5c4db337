// Package rpc describes the ChallengeService wire contract shared by the
// server and the command-line client. Messages travel as
// google.protobuf.Struct values; Encode and Decode convert them to and from
// the typed Go messages below.
package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "habitica.challenges.v1.ChallengeService"

const (
	MethodCreateChallenge        = "CreateChallenge"
	MethodGetChallenge           = "GetChallenge"
	MethodListUserChallenges     = "ListUserChallenges"
	MethodListGroupChallenges    = "ListGroupChallenges"
	MethodUpdateChallenge        = "UpdateChallenge"
	MethodAddChallengeTask       = "AddChallengeTask"
	MethodJoinChallenge          = "JoinChallenge"
	MethodLeaveChallenge         = "LeaveChallenge"
	MethodDeleteChallenge        = "DeleteChallenge"
	MethodSelectChallengeWinner  = "SelectChallengeWinner"
	MethodExportChallengeMembers = "ExportChallengeMembers"
)

// FullMethod returns the gRPC method path, e.g.
// "/habitica.challenges.v1.ChallengeService/JoinChallenge".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type TaskSpec struct {
	Type  string  `json:"type"`
	Text  string  `json:"text"`
	Notes string  `json:"notes,omitempty"`
	Value float64 `json:"value,omitempty"`
}

type CreateChallengeRequest struct {
	GroupID     string          `json:"group_id"`
	Name        string          `json:"name"`
	ShortName   string          `json:"short_name"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Prize       decimal.Decimal `json:"prize"`
	Official    bool            `json:"official,omitempty"`
	Tasks       []TaskSpec      `json:"tasks,omitempty"`
}

// ChallengeRequest addresses a single challenge (get, join, delete, export).
type ChallengeRequest struct {
	ChallengeID string `json:"challenge_id"`
}

type ListUserChallengesRequest struct {
	Page int `json:"page"`
}

type ListGroupChallengesRequest struct {
	GroupID string `json:"group_id"`
}

// UpdateChallengeRequest leaves nil fields unchanged.
type UpdateChallengeRequest struct {
	ChallengeID string  `json:"challenge_id"`
	Name        *string `json:"name,omitempty"`
	ShortName   *string `json:"short_name,omitempty"`
	Summary     *string `json:"summary,omitempty"`
	Description *string `json:"description,omitempty"`
}

type AddChallengeTaskRequest struct {
	ChallengeID string   `json:"challenge_id"`
	Task        TaskSpec `json:"task"`
}

type LeaveChallengeRequest struct {
	ChallengeID string `json:"challenge_id"`
	// Keep is "keep-all" (default) or "remove-all".
	Keep string `json:"keep,omitempty"`
}

type SelectChallengeWinnerRequest struct {
	ChallengeID string `json:"challenge_id"`
	WinnerID    string `json:"winner_id"`
}

type TasksOrder struct {
	Habits  []string `json:"habits"`
	Dailys  []string `json:"dailys"`
	Todos   []string `json:"todos"`
	Rewards []string `json:"rewards"`
}

type Challenge struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ShortName   string          `json:"short_name"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	GroupID     string          `json:"group_id"`
	LeaderID    string          `json:"leader_id"`
	Prize       decimal.Decimal `json:"prize"`
	MemberCount int             `json:"member_count"`
	Official    bool            `json:"official"`
	TasksOrder  TasksOrder      `json:"tasks_order"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ChallengeList struct {
	Challenges []Challenge `json:"challenges"`
}

type Task struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Text        string  `json:"text"`
	Notes       string  `json:"notes,omitempty"`
	Value       float64 `json:"value"`
	ChallengeID string  `json:"challenge_id"`
}

type ExportResponse struct {
	URL string `json:"url"`
}

type Empty struct{}

// Encode converts a message into its Struct form.
func Encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := s.UnmarshalJSON(b); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

// Decode fills v from s. A nil Struct decodes as an empty message.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
