package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_MatchesVariant(t *testing.T) {
	cases := []struct {
		ev   Event
		kind Kind
	}{
		{Empty{}, KindEmpty},
		{InstructionStatusChanged{Ref: 1, Status: StatusRunning}, KindInstructionStatusChanged},
		{VariableUpdated{Name: "x", Value: 1, Connected: true}, KindVariableUpdated},
		{JobStateChanged{State: JobRunning}, KindJobStateChanged},
		{LogEvent{Severity: SeverityInfo, Message: "hi"}, KindLog},
		{NextLeavesChanged{Refs: []InstructionRef{2, 3}}, KindNextLeavesChanged},
		{BreakpointHit{Ref: 4}, KindBreakpointHit},
	}
	require.Len(t, cases, len(AllKinds()), "every kind needs a case")
	for _, tc := range cases {
		assert.Equal(t, tc.kind, tc.ev.Kind())
	}
}

func TestEvent_StructuralEquality(t *testing.T) {
	a := NextLeavesChanged{Refs: []InstructionRef{1, 2}}
	b := NextLeavesChanged{Refs: []InstructionRef{1, 2}}
	require.Equal(t, Event(a), Event(b))

	require.NotEqual(t, Event(JobStateChanged{State: JobRunning}), Event(JobStateChanged{State: JobPaused}))
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "job_state_changed", KindJobStateChanged.String())
	require.Equal(t, "kind(99)", Kind(99).String())
}

func TestInstructionStatus_String(t *testing.T) {
	require.Equal(t, "Not started", StatusNotStarted.String())
	require.Equal(t, "Not finished", StatusNotFinished.String())
	require.Equal(t, "Running", StatusRunning.String())
	require.Equal(t, "Success", StatusSuccess.String())
	require.Equal(t, "Failure", StatusFailure.String())
	require.True(t, StatusFailure.IsFinished())
	require.False(t, StatusRunning.IsFinished())
}

func TestJobState_Terminal(t *testing.T) {
	for _, s := range []JobState{JobSucceeded, JobFailed, JobHalted} {
		require.True(t, s.IsTerminal(), s.String())
	}
	for _, s := range []JobState{JobInitial, JobPaused, JobStepping, JobRunning} {
		require.False(t, s.IsTerminal(), s.String())
	}
	require.Equal(t, "Succeeded", JobSucceeded.String())
}

func TestSeverity_RoundTrip(t *testing.T) {
	for s := SeverityEmergency; s <= SeverityTrace; s++ {
		parsed, err := ParseSeverity(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}
	_, err := ParseSeverity("LOUD")
	require.Error(t, err)
	require.Equal(t, "SEVERITY(42)", Severity(42).String())
}
