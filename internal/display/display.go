// Package display derives what the task list shows from the full task
// stream: the open/closed filter, the search box and the summary counters.
package display

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/BuzzLyutic/study-planner/internal/model"
)

type Filter string

const (
	FilterAll    Filter = "All"
	FilterOpen   Filter = "Open"
	FilterClosed Filter = "Closed"
)

// ParseFilter accepts the filter names in any case. Empty means All.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "open":
		return FilterOpen, nil
	case "closed":
		return FilterClosed, nil
	}
	return "", fmt.Errorf("%w: unknown filter %q", model.ErrValidation, s)
}

func (f Filter) keep(t model.Task) bool {
	switch f {
	case FilterOpen:
		return !t.IsFinished
	case FilterClosed:
		return t.IsFinished
	}
	return true
}

// Apply filters by completion, then by query against title or description.
// A blank query matches everything. The result is never nil.
func Apply(tasks []model.Task, f Filter, query string) []model.Task {
	fold := cases.Fold()
	needle := fold.String(query)
	search := strings.TrimSpace(query) != ""

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if !f.keep(t) {
			continue
		}
		if search &&
			!strings.Contains(fold.String(t.Title), needle) &&
			!strings.Contains(fold.String(t.Description), needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// View is a rendered task list. Empty marks the empty state.
type View struct {
	Filter Filter       `json:"filter"`
	Query  string       `json:"query"`
	Tasks  []model.Task `json:"tasks"`
	Empty  bool         `json:"empty"`
}

func Render(tasks []model.Task, f Filter, query string) View {
	shown := Apply(tasks, f, query)
	return View{
		Filter: f,
		Query:  query,
		Tasks:  shown,
		Empty:  len(shown) == 0,
	}
}

type Stats struct {
	Total    int   `json:"total"`
	Resolved int   `json:"resolved"`
	Minutes  int64 `json:"minutes"`
}

// Summarize counts tasks, finished tasks and minutes logged on the tasks
// themselves. Subtask minutes are not added in.
func Summarize(tasks []model.Task) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.IsFinished {
			s.Resolved++
		}
		s.Minutes += t.LogTime
	}
	return s
}
