package domain

// TimelineStep is a 0-based position on the 5-step application timeline.
type TimelineStep int

const (
	StepApplied     TimelineStep = 0
	StepUnderReview TimelineStep = 1
	StepVerified    TimelineStep = 2
	StepDecision    TimelineStep = 3
	StepDisbursed   TimelineStep = 4
)

var stepLabels = map[TimelineStep]string{
	StepApplied:     "Applied",
	StepUnderReview: "Under Review",
	StepVerified:    "Verified",
	StepDecision:    "Approved/Rejected",
	StepDisbursed:   "Disbursed",
}

func (s TimelineStep) Label() string {
	return stepLabels[s]
}

// PresentationState is the plain view state consumed by status displays.
// Rejected applications stop at the decision step; steps after it are
// never reachable for them.
type PresentationState struct {
	Step     TimelineStep `json:"step"`
	Label    string       `json:"label"`
	Rejected bool         `json:"rejected"`
}
