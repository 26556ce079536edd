package tracing

// Span attribute keys.
const (
	AttrJobID         = "job.id"
	AttrJobName       = "job.name"
	AttrJobState      = "job.state"
	AttrEventKind     = "event.kind"
	AttrInstruction   = "instruction.ref"
	AttrStatus        = "instruction.status"
	AttrVariable      = "variable.name"
	AttrConnected     = "variable.connected"
	AttrSeverity      = "log.severity"
	AttrLogSource     = "log.source"
	AttrNextLeafCount = "next_leaves.count"
)

// Span names.
const (
	SpanJobRun   = "job.run"
	SpanDispatch = "dispatch."
)
