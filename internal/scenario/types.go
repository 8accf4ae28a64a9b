package scenario

// Driver is a catalog entry available to attach steps.
type Driver struct {
	Name      string `yaml:"name"`
	Command   string `yaml:"command"`
	Condition uint32 `yaml:"condition"`
}

// Step is one channel operation and its expected outcome.
//
// Op is one of precheck, invalidate, validate, attach, detach, send or
// close. Expect is "ok" (the default) or an error kind such as
// outflow_exceeded; validate steps expect "ok" or "invalid".
type Step struct {
	Op        string `yaml:"op"`
	ID        int64  `yaml:"id,omitempty"`
	Check     int64  `yaml:"check,omitempty"`
	Packet    string `yaml:"packet,omitempty"`
	Driver    string `yaml:"driver,omitempty"`
	Mode      string `yaml:"mode,omitempty"`
	Command   string `yaml:"command,omitempty"`
	Condition uint32 `yaml:"condition,omitempty"`
	Expect    string `yaml:"expect,omitempty"`

	// Optional assertions checked after the step runs.
	Outflow *int64 `yaml:"outflow,omitempty"`
	State   string `yaml:"state,omitempty"`
}

// Scenario drives one channel through a sequence of steps.
type Scenario struct {
	Name          string          `yaml:"name"`
	Width         int             `yaml:"width"`
	MaxOutflow    int64           `yaml:"max_outflow,omitempty"`
	Algorithm     string          `yaml:"algorithm,omitempty"`
	Preconditions map[string]bool `yaml:"preconditions,omitempty"`
	Drivers       []Driver        `yaml:"drivers,omitempty"`
	Steps         []Step          `yaml:"steps"`
}

// StepResult is the outcome of running one step.
type StepResult struct {
	Index    int    `json:"index"`
	Op       string `json:"op"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Outflow  int64  `json:"outflow"`
	State    string `json:"state"`
	Detail   string `json:"detail,omitempty"`
}

// RunResult is the outcome of running all steps in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Steps  []StepResult `json:"steps"`
}
