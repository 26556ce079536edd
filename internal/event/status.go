package event

import "fmt"

// InstructionStatus is the execution status of a single instruction.
type InstructionStatus int

const (
	StatusNotStarted InstructionStatus = iota
	StatusNotFinished
	StatusRunning
	StatusSuccess
	StatusFailure
)

func (s InstructionStatus) String() string {
	switch s {
	case StatusNotStarted:
		return "Not started"
	case StatusNotFinished:
		return "Not finished"
	case StatusRunning:
		return "Running"
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// IsFinished reports whether the instruction completed, successfully or not.
func (s InstructionStatus) IsFinished() bool {
	return s == StatusSuccess || s == StatusFailure
}

// JobState is the state of a whole job.
type JobState int

const (
	JobInitial JobState = iota
	JobPaused
	JobStepping
	JobRunning
	JobSucceeded
	JobFailed
	JobHalted
)

func (s JobState) String() string {
	switch s {
	case JobInitial:
		return "Initial"
	case JobPaused:
		return "Paused"
	case JobStepping:
		return "Stepping"
	case JobRunning:
		return "Running"
	case JobSucceeded:
		return "Succeeded"
	case JobFailed:
		return "Failed"
	case JobHalted:
		return "Halted"
	default:
		return fmt.Sprintf("JobState(%d)", int(s))
	}
}

// IsTerminal reports whether no further transitions can happen.
func (s JobState) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobHalted
}

// Severity follows syslog ordering: lower values are more severe.
type Severity int

const (
	SeverityEmergency Severity = iota
	SeverityAlert
	SeverityCritical
	SeverityError
	SeverityWarning
	SeverityNotice
	SeverityInfo
	SeverityDebug
	SeverityTrace
)

var severityNames = []string{
	"EMERGENCY", "ALERT", "CRITICAL", "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG", "TRACE",
}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("SEVERITY(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity maps a case-sensitive upper-case name back to a Severity.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}
