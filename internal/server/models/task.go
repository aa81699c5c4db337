package models

import "time"

type TaskType string

const (
	TaskHabit  TaskType = "habit"
	TaskDaily  TaskType = "daily"
	TaskTodo   TaskType = "todo"
	TaskReward TaskType = "reward"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskHabit, TaskDaily, TaskTodo, TaskReward:
		return true
	}
	return false
}

// OrderKey returns the tasks order partition that holds tasks of type t.
func (t TaskType) OrderKey() string {
	return string(t) + "s"
}

// Task is either a challenge template (UserID empty) or a member's copy.
type Task struct {
	ID        string
	Type      TaskType
	Text      string
	Notes     string
	Value     float64
	Completed bool
	// UserID is empty for challenge templates.
	UserID    string
	Challenge TaskChallenge
	CreatedAt time.Time
}

// TaskChallenge links a task to the challenge it belongs to or came from.
type TaskChallenge struct {
	ID string
	// TaskID is the template a member copy was mirrored from.
	TaskID string
	// Broken is set once the challenge is closed and never changes afterwards.
	Broken ClosureReason
	Winner string
}

// IsTemplate reports whether t is a challenge master copy.
func (t *Task) IsTemplate() bool {
	return t.UserID == "" && t.Challenge.ID != ""
}

// MirrorFor returns the member copy of template t for userID.
func (t *Task) MirrorFor(userID, id string) *Task {
	return &Task{
		ID:     id,
		Type:   t.Type,
		Text:   t.Text,
		Notes:  t.Notes,
		Value:  t.Value,
		UserID: userID,
		Challenge: TaskChallenge{
			ID:     t.Challenge.ID,
			TaskID: t.ID,
		},
	}
}
