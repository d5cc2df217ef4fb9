package models

// StepKind identifies the executor responsible for a step.
type StepKind string

const (
	StepSendEmail     StepKind = "send_email"
	StepSendSMS       StepKind = "send_sms"
	StepAddTag        StepKind = "add_tag"
	StepRemoveTag     StepKind = "remove_tag"
	StepWait          StepKind = "wait"
	StepCreateTask    StepKind = "create_task"
	StepUpdateContact StepKind = "update_contact"
	StepCondition     StepKind = "condition"
	StepWebhook       StepKind = "webhook"
	StepMoveDeal      StepKind = "move_deal"
)

// Kinds lists every step kind the engine can execute.
func Kinds() []StepKind {
	return []StepKind{
		StepSendEmail, StepSendSMS, StepAddTag, StepRemoveTag, StepWait,
		StepCreateTask, StepUpdateContact, StepCondition, StepWebhook, StepMoveDeal,
	}
}

// IsValid reports whether the step kind is one of the known executors.
func (k StepKind) IsValid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}

	return false
}

// Step is one ordered unit of an automation. Position is 1-based and unique
// within the automation. TrueBranch/FalseBranch are only meaningful for
// condition steps and name the position to jump to for each outcome.
type Step struct {
	ID           string         `json:"id"`
	AutomationID string         `json:"automation_id"`
	Position     int            `json:"position"     validate:"required,min=1"`
	Kind         StepKind       `json:"kind"         validate:"required"`
	Config       map[string]any `json:"config"`
	TrueBranch   *int           `json:"true_branch,omitempty"`
	FalseBranch  *int           `json:"false_branch,omitempty"`
}
