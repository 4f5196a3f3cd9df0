package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrTitleRequired    = fmt.Errorf("%w: title is required", ErrValidation)
	ErrDeadlineRequired = fmt.Errorf("%w: deadline is required", ErrValidation)
	ErrDeadlineFormat   = fmt.Errorf("%w: deadline must be M/D/YYYY or YYYY-MM-DD", ErrValidation)
)

// Layouts accepted for the deadline field. The first is what the date picker produces.
var deadlineLayouts = []string{"1/2/2006", "2006-01-02"}

// NewTaskForm is the create-task form as submitted by the client.
type NewTaskForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
	Deadline    string `json:"deadline"`
}

// Validate reports every missing field at once.
func (f NewTaskForm) Validate() error {
	var errs []error
	if strings.TrimSpace(f.Title) == "" {
		errs = append(errs, ErrTitleRequired)
	}
	if strings.TrimSpace(f.Deadline) == "" {
		errs = append(errs, ErrDeadlineRequired)
	}
	return errors.Join(errs...)
}

// Task builds an unsaved task. The deadline is midnight of the given day in loc.
func (f NewTaskForm) Task(loc *time.Location) (Task, error) {
	if err := f.Validate(); err != nil {
		return Task{}, err
	}
	deadline, err := ParseDeadline(f.Deadline, loc)
	if err != nil {
		return Task{}, err
	}
	return Task{
		Title:       f.Title,
		Description: f.Description,
		Subject:     f.Subject,
		Deadline:    deadline,
		Subtasks:    []Subtask{},
	}, nil
}

func ParseDeadline(s string, loc *time.Location) (int64, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		if d, err := time.ParseInLocation(layout, s, loc); err == nil {
			return d.UnixMilli(), nil
		}
	}
	return 0, ErrDeadlineFormat
}
