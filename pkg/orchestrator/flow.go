package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"x1swap/pkg/types"
)

var ErrInvalidTransition = errors.New("invalid flow transition")

var transitions = map[types.FlowState][]types.FlowState{
	types.FlowIdle:             {types.FlowQuotePending, types.FlowSubmitting},
	types.FlowQuotePending:     {types.FlowQuotePending, types.FlowQuoteReady, types.FlowQuoteUnavailable, types.FlowIdle},
	types.FlowQuoteReady:       {types.FlowQuotePending, types.FlowSubmitting, types.FlowIdle},
	types.FlowQuoteUnavailable: {types.FlowQuotePending, types.FlowIdle},
	types.FlowSubmitting:       {types.FlowApproving, types.FlowConfirming, types.FlowFailed},
	types.FlowApproving:        {types.FlowSubmitting, types.FlowFailed},
	types.FlowConfirming:       {types.FlowSucceeded, types.FlowFailed},
	types.FlowSucceeded:        {types.FlowIdle, types.FlowQuotePending},
	types.FlowFailed:           {types.FlowIdle, types.FlowQuotePending},
}

// Listener observes every accepted transition
type Listener func(from, to types.FlowState)

// Flow is the lifecycle of one quote-and-execute session
type Flow struct {
	mu        sync.Mutex
	state     types.FlowState
	listeners []Listener
}

func NewFlow() *Flow {
	return &Flow{state: types.FlowIdle}
}

func (f *Flow) State() types.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// OnTransition adds a listener; listeners run synchronously in registration order
func (f *Flow) OnTransition(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

// Transition moves to next or fails with ErrInvalidTransition
func (f *Flow) Transition(next types.FlowState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	from := f.state
	if !allowed(from, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}
	f.state = next
	for _, l := range f.listeners {
		l(from, next)
	}
	return nil
}

// Busy reports whether a transaction is between submission and settlement
func (f *Flow) Busy() bool {
	switch f.State() {
	case types.FlowSubmitting, types.FlowApproving, types.FlowConfirming:
		return true
	}
	return false
}

func allowed(from, to types.FlowState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
