package model

import (
	"errors"
	"slices"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrSubtaskIndex = errors.New("subtask index out of range")
)

type Task struct {
	ID          int64     `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Subject     string    `json:"subject" yaml:"subject"`
	Deadline    int64     `json:"deadline" yaml:"deadline"` // epoch ms
	IsFinished  bool      `json:"isFinished" yaml:"isFinished"`
	LogTime     int64     `json:"logTime" yaml:"logTime"` // minutes
	Subtasks    []Subtask `json:"subtasks" yaml:"subtasks"`
	UserID      string    `json:"userId" yaml:"userId"`
	UpdatedAt   int64     `json:"updatedAt" yaml:"updatedAt"` // epoch ms
}

type Subtask struct {
	Title      string `json:"title" yaml:"title"`
	IsFinished bool   `json:"isFinished" yaml:"isFinished"`
	LogTime    int64  `json:"logTime" yaml:"logTime"`
}

// Clone returns a copy that shares no subtask storage with t.
func (t Task) Clone() Task {
	t.Subtasks = slices.Clone(t.Subtasks)
	if t.Subtasks == nil {
		t.Subtasks = []Subtask{}
	}
	return t
}
