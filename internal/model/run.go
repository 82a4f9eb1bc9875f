package model

import "strings"

// Step identifies one pipeline stage.
type Step string

const (
	StepSubcats   Step = "subcats"
	StepFilms     Step = "films"
	StepQIDs      Step = "qids"
	StepMetadata  Step = "metadata"
	StepSummaries Step = "summaries"
	StepCSV       Step = "csv"
	StepClean     Step = "clean"
)

// AllSteps lists every step in dependency order.
func AllSteps() []Step {
	return []Step{StepSubcats, StepFilms, StepQIDs, StepMetadata, StepSummaries, StepCSV, StepClean}
}

// ParseSteps validates a list of step names from the CLI.
func ParseSteps(names []string) ([]Step, error) {
	valid := make(map[Step]bool, len(AllSteps()))
	for _, s := range AllSteps() {
		valid[s] = true
	}
	steps := make([]Step, 0, len(names))
	for _, n := range names {
		s := Step(strings.ToLower(strings.TrimSpace(n)))
		if !valid[s] {
			return nil, &UnknownStepError{Name: n}
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// UnknownStepError reports an unrecognized --steps value.
type UnknownStepError struct {
	Name string
}

func (e *UnknownStepError) Error() string {
	return "unknown step: " + e.Name
}

// StepStatus is the terminal outcome of one (group, step) cell.
type StepStatus string

const (
	// StepCompleted means the step ran and every item succeeded.
	StepCompleted StepStatus = "completed"
	// StepPartial means the step ran, some items failed, and the checkpoint
	// was still written.
	StepPartial StepStatus = "completed-with-partial-failures"
	// StepSkipped means an existing checkpoint was reused.
	StepSkipped StepStatus = "skipped"
	// StepAborted means a fatal failure stopped the step; no checkpoint was
	// written for it beyond any persisted partial results.
	StepAborted StepStatus = "aborted"
)

// ItemFailure records a single title's failure within a stage. Failures never
// abort the stage; they are accumulated and reported at the end.
type ItemFailure struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// StepOutcome is the driver's record of one executed (group, step) cell.
type StepOutcome struct {
	Step     Step       `json:"step"`
	Status   StepStatus `json:"status"`
	Failures int        `json:"failures"`
	Error    string     `json:"error,omitempty"`
}

// GroupResult summarizes one category group's run.
type GroupResult struct {
	RunID string        `json:"run_id"`
	Group string        `json:"group"`
	Steps []StepOutcome `json:"steps"`
}

// Aborted reports whether any step of the group ended in StepAborted.
func (g GroupResult) Aborted() bool {
	for _, s := range g.Steps {
		if s.Status == StepAborted {
			return true
		}
	}
	return false
}

// Failures sums the per-item failure counts across all steps.
func (g GroupResult) Failures() int {
	n := 0
	for _, s := range g.Steps {
		n += s.Failures
	}
	return n
}
