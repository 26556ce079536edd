// Package model holds the presentation items the monitor displays: the job,
// its instruction tree, workspace variables and the append-only job log.
//
// Items are owned by the UI goroutine. The engine never touches them; all
// mutations happen inside dispatched callbacks. Setters publish a Change on
// the job's broker so views can refresh.
package model

// ChangeKind identifies what part of a job changed.
type ChangeKind int

const (
	ItemChanged ChangeKind = iota
	JobStatusChanged
	LogChanged
	NextLeavesChanged
	VariableChanged
	BreakpointChanged
)

func (k ChangeKind) String() string {
	switch k {
	case ItemChanged:
		return "item"
	case JobStatusChanged:
		return "job_status"
	case LogChanged:
		return "log"
	case NextLeavesChanged:
		return "next_leaves"
	case VariableChanged:
		return "variable"
	case BreakpointChanged:
		return "breakpoint"
	default:
		return "unknown"
	}
}

// Change is the notification payload published by model setters.
type Change struct {
	Kind    ChangeKind
	JobID   string
	ItemID  string   // ItemChanged, BreakpointChanged
	ItemIDs []string // NextLeavesChanged
	Name    string   // VariableChanged
	Value   string   // new status / job status
	LogSize int      // LogChanged
}
