package wizard

import "fmt"

// Step identifies one of the four fixed wizard steps. The conversation graph
// is closed: every dispatch over Step must be exhaustive, so adding a step is
// a compile-time change, not a runtime registration.
type Step int

const (
	StepEventInfo Step = iota + 1
	StepGuestList
	StepMenu
	StepSchedule
)

// lastStep is the final step before the session completes.
const lastStep = StepSchedule

// completeIndex is the watermark value one past the final step; reaching it
// marks the session completed.
const completeIndex = int(lastStep) + 1

func (s Step) String() string {
	switch s {
	case StepEventInfo:
		return "event-info"
	case StepGuestList:
		return "guest-list"
	case StepMenu:
		return "menu"
	case StepSchedule:
		return "schedule"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Index is the 1-based position of the step in the plan.
func (s Step) Index() int {
	return int(s)
}

// Next returns the step after s; ok is false for the final step.
func (s Step) Next() (Step, bool) {
	if s >= lastStep {
		return s, false
	}
	return s + 1, true
}

// Valid reports whether s is one of the four known steps.
func (s Step) Valid() bool {
	return s >= StepEventInfo && s <= StepSchedule
}

// ParseStep resolves a persisted step name.
func ParseStep(name string) (Step, error) {
	switch name {
	case "event-info":
		return StepEventInfo, nil
	case "guest-list":
		return StepGuestList, nil
	case "menu":
		return StepMenu, nil
	case "schedule":
		return StepSchedule, nil
	}
	return 0, fmt.Errorf("unrecognized step %q", name)
}
