package models

import "time"

// Step is a position in the wizard. Values are persisted; do not reorder.
type Step int

const (
	StepProductSource Step = iota
	StepBranding
	StepImages
	StepSEO
	StepShipping
	StepPreview
	StepDone
)

var stepNames = [...]string{
	"ProductSource", "Branding", "Images", "SEO", "Shipping", "Preview", "Done",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "Unknown"
	}
	return stepNames[s]
}

// Valid reports whether s is a step a session can point at.
func (s Step) Valid() bool { return s >= StepProductSource && s <= StepDone }

// WizardState is the per-user session pointer. Version changes on every
// write; StepVersion only when the pointer moves.
type WizardState struct {
	UserID      string     `json:"userId"`
	ProjectID   string     `json:"projectId"`
	Step        Step       `json:"step"`
	StepName    string     `json:"stepName"`
	Version     int64      `json:"version"`
	StepVersion int64      `json:"stepVersion"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// MoveTo points the session at step, even when it is the step it was on.
func (w *WizardState) MoveTo(step Step) {
	w.Step = step
	w.Version++
	w.StepVersion = w.Version
}

// Done reports whether Complete has run.
func (w WizardState) Done() bool { return w.Step == StepDone }
