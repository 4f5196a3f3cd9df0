package model

import (
	"fmt"
	"slices"
	"strings"
)

// The helpers below never touch the receiver's subtask storage: a task is
// always written back whole, so every edit produces a fresh copy.

func ToggleFinished(t Task) Task {
	out := t.Clone()
	out.IsFinished = !t.IsFinished
	return out
}

func LogMinutes(t Task, minutes int64) (Task, error) {
	if minutes <= 0 {
		return t, fmt.Errorf("%w: minutes must be positive", ErrValidation)
	}
	out := t.Clone()
	out.LogTime += minutes
	return out, nil
}

func AddSubtask(t Task, title string) (Task, error) {
	if strings.TrimSpace(title) == "" {
		return t, fmt.Errorf("%w: subtask title is required", ErrValidation)
	}
	out := t.Clone()
	out.Subtasks = append(out.Subtasks, Subtask{Title: title})
	return out, nil
}

func ToggleSubtask(t Task, index int) (Task, error) {
	return replaceSubtask(t, index, func(s Subtask) Subtask {
		s.IsFinished = !s.IsFinished
		return s
	})
}

func SetSubtaskFinished(t Task, index int, finished bool) (Task, error) {
	return replaceSubtask(t, index, func(s Subtask) Subtask {
		s.IsFinished = finished
		return s
	})
}

func LogSubtaskMinutes(t Task, index int, minutes int64) (Task, error) {
	if minutes <= 0 {
		return t, fmt.Errorf("%w: minutes must be positive", ErrValidation)
	}
	return replaceSubtask(t, index, func(s Subtask) Subtask {
		s.LogTime += minutes
		return s
	})
}

func RenameSubtask(t Task, index int, title string) (Task, error) {
	if strings.TrimSpace(title) == "" {
		return t, fmt.Errorf("%w: subtask title is required", ErrValidation)
	}
	return replaceSubtask(t, index, func(s Subtask) Subtask {
		s.Title = title
		return s
	})
}

func RemoveSubtask(t Task, index int) (Task, error) {
	if index < 0 || index >= len(t.Subtasks) {
		return t, ErrSubtaskIndex
	}
	out := t.Clone()
	out.Subtasks = slices.Delete(out.Subtasks, index, index+1)
	return out, nil
}

func replaceSubtask(t Task, index int, edit func(Subtask) Subtask) (Task, error) {
	if index < 0 || index >= len(t.Subtasks) {
		return t, ErrSubtaskIndex
	}
	out := t.Clone()
	out.Subtasks[index] = edit(out.Subtasks[index])
	return out, nil
}
