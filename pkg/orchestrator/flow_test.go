package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x1swap/pkg/types"
)

func TestFlowHappyPath(t *testing.T) {
	f := NewFlow()
	assert.Equal(t, types.FlowIdle, f.State())

	type edge struct{ from, to types.FlowState }
	var seen []edge
	f.OnTransition(func(from, to types.FlowState) { seen = append(seen, edge{from, to}) })

	path := []types.FlowState{
		types.FlowQuotePending,
		types.FlowQuotePending,
		types.FlowQuoteReady,
		types.FlowSubmitting,
		types.FlowApproving,
		types.FlowSubmitting,
		types.FlowConfirming,
		types.FlowSucceeded,
		types.FlowIdle,
	}
	for _, next := range path {
		require.NoError(t, f.Transition(next), "to %s", next)
	}

	require.Len(t, seen, len(path))
	assert.Equal(t, edge{types.FlowIdle, types.FlowQuotePending}, seen[0])
	assert.Equal(t, edge{types.FlowSucceeded, types.FlowIdle}, seen[len(seen)-1])
}

func TestFlowRejectsInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		walk []types.FlowState
		next types.FlowState
	}{
		{"confirm without submitting", nil, types.FlowConfirming},
		{"succeed from idle", nil, types.FlowSucceeded},
		{"submit without a ready quote", []types.FlowState{types.FlowQuotePending, types.FlowQuoteUnavailable}, types.FlowSubmitting},
		{"requote mid-submission", []types.FlowState{types.FlowSubmitting}, types.FlowQuotePending},
		{"resubmit a settled swap", []types.FlowState{types.FlowSubmitting, types.FlowFailed}, types.FlowSubmitting},
		{"approve while confirming", []types.FlowState{types.FlowSubmitting, types.FlowConfirming}, types.FlowApproving},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFlow()
			for _, s := range tt.walk {
				require.NoError(t, f.Transition(s))
			}
			before := f.State()

			err := f.Transition(tt.next)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, before, f.State(), "state unchanged after a rejected transition")
		})
	}
}

func TestFlowBusy(t *testing.T) {
	f := NewFlow()
	assert.False(t, f.Busy())

	require.NoError(t, f.Transition(types.FlowSubmitting))
	assert.True(t, f.Busy())
	require.NoError(t, f.Transition(types.FlowApproving))
	assert.True(t, f.Busy())
	require.NoError(t, f.Transition(types.FlowFailed))
	assert.False(t, f.Busy())
	assert.True(t, f.State().Terminal())
}
