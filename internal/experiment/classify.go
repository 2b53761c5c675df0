package experiment

import "github.com/landaudiogo/cc-assignment-2023/internal/envelope"

// Stage is the experiment's current phase in its linear state machine.
type Stage int

const (
	StageUninitialized Stage = iota
	StageConfiguration
	StageStabilization
	StageCarryOut
	StageTerminated
)

func (s Stage) String() string {
	switch s {
	case StageConfiguration:
		return "Configuration"
	case StageStabilization:
		return "Stabilization"
	case StageCarryOut:
		return "CarryOut"
	case StageTerminated:
		return "Terminated"
	default:
		return "Uninitialized"
	}
}

// Classify implements the notification-classification edge trigger. prev is
// nil for the first tick of a stage (there is no previous sample yet); the
// nil case defaults to out-of-range under Stabilization and in-range under
// CarryOut, so a spurious Stabilized can fire on stabilization's very first
// tick when the starting sample happens to already be in range.
func Classify(stage Stage, prev *Sample, curr Sample) envelope.NotificationType {
	currOutOfRange := curr.OutOfRange()

	switch stage {
	case StageStabilization:
		// "out-of-range (or none)" -> a missing previous sample counts as
		// out-of-range, so the edge trigger can fire on the very first tick.
		prevOutOfRange := true
		if prev != nil {
			prevOutOfRange = prev.OutOfRange()
		}
		if prevOutOfRange && !currOutOfRange {
			return envelope.NotificationStabilized
		}
	case StageCarryOut:
		// "in-range (or none)" -> a missing previous sample counts as
		// in-range here, the opposite default from the Stabilization row.
		prevOutOfRange := false
		if prev != nil {
			prevOutOfRange = prev.OutOfRange()
		}
		if !prevOutOfRange && currOutOfRange {
			return envelope.NotificationOutOfRange
		}
	}
	return envelope.NotificationNone
}
