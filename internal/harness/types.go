package harness

// StepRecord is the outcome of one executed step.
type StepRecord struct {
	Index int    `json:"index"`
	Op    string `json:"op"`
	Alias string `json:"alias,omitempty"`
	ID    int64  `json:"id,omitempty"`
	// Code is the store error code the step failed with, if any.
	Code string `json:"code,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion held.
	Pass bool `json:"pass"`

	// Steps records each executed step in order.
	Steps []StepRecord `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the rendered final graph.
	Snapshot string `json:"snapshot"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepRecord{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
