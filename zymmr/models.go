package zymmr

import (
	"strings"
	"time"
)

// Project is a typed view of a Project document
type Project struct {
	Document
}

// Key returns the project key, e.g. "ZMR"
func (p Project) Key() string { return p.String("key") }

// Title returns the project title
func (p Project) Title() string { return p.String("title") }

// Status returns the project status
func (p Project) Status() string { return p.String("status") }

// Lead returns the User name of the project lead
func (p Project) Lead() string { return p.String("lead") }

// Description returns the project description
func (p Project) Description() string { return p.String("description") }

// StartDate returns the planned start date
func (p Project) StartDate() (time.Time, bool) { return p.Date("start_date") }

// EndDate returns the planned end date
func (p Project) EndDate() (time.Time, bool) { return p.Date("end_date") }

// IsActive checks if the project status is Active
func (p Project) IsActive() bool {
	return strings.EqualFold(p.Status(), "active")
}

// WorkItem is a typed view of a Work Item document (story, task, bug, ...)
type WorkItem struct {
	Document
}

// Key returns the user-facing key, e.g. "ZMR-42"
func (w WorkItem) Key() string { return w.String("key") }

// Title returns the work item title
func (w WorkItem) Title() string { return w.String("title") }

// Status returns the work item status
func (w WorkItem) Status() string { return w.String("status") }

// Priority returns the work item priority
func (w WorkItem) Priority() string { return w.String("priority") }

// Type returns the work item type (Story, Task, Bug, ...)
func (w WorkItem) Type() string { return w.String("type") }

// PrimaryAssignee returns the passignee field
func (w WorkItem) PrimaryAssignee() string { return w.String("passignee") }

// SecondaryAssignee returns the sassignee field
func (w WorkItem) SecondaryAssignee() string { return w.String("sassignee") }

// Description returns the work item description
func (w WorkItem) Description() string { return w.String("description") }

// StoryPoint returns the story point estimate, if set
func (w WorkItem) StoryPoint() (int64, bool) { return w.Int("story_point") }

// Project returns the name of the owning project
func (w WorkItem) Project() string { return w.String("project") }

// Sprint returns the sprint the work item is planned in
func (w WorkItem) Sprint() string { return w.String("sprint") }

// Reporter returns the work item reporter
func (w WorkItem) Reporter() string { return w.String("reporter") }

// StartDate returns the planned start date
func (w WorkItem) StartDate() (time.Time, bool) { return w.Date("start_date") }

// EndDate returns the planned end date
func (w WorkItem) EndDate() (time.Time, bool) { return w.Date("end_date") }

// ActualStartDate returns the date work actually started
func (w WorkItem) ActualStartDate() (time.Time, bool) { return w.Date("actual_start_date") }

// CompletionDate returns the date the work item was completed
func (w WorkItem) CompletionDate() (time.Time, bool) { return w.Date("completion_date") }

// IsCompleted checks if the status is one of Done, Completed or Closed
func (w WorkItem) IsCompleted() bool {
	switch strings.ToLower(w.Status()) {
	case "done", "completed", "closed":
		return true
	}
	return false
}

// IsBlocked checks if the work item is blocked
func (w WorkItem) IsBlocked() bool {
	return strings.EqualFold(w.Status(), "blocked")
}

// IsInProgress checks if the work item is in progress
func (w WorkItem) IsInProgress() bool {
	return strings.EqualFold(w.Status(), "in progress")
}

// Projects converts documents into Project views
func (l DocumentList) Projects() []Project {
	out := make([]Project, len(l))
	for i, d := range l {
		out[i] = Project{Document: d}
	}
	return out
}

// WorkItems converts documents into WorkItem views
func (l DocumentList) WorkItems() []WorkItem {
	out := make([]WorkItem, len(l))
	for i, d := range l {
		out[i] = WorkItem{Document: d}
	}
	return out
}
