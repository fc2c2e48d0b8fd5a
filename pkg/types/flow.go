package types

// FlowState is a step of the quote -> execute lifecycle
type FlowState string

const (
	FlowIdle             FlowState = "idle"
	FlowQuotePending     FlowState = "quote_pending"
	FlowQuoteReady       FlowState = "quote_ready"
	FlowQuoteUnavailable FlowState = "quote_unavailable"
	FlowSubmitting       FlowState = "submitting"
	FlowApproving        FlowState = "approving"
	FlowConfirming       FlowState = "confirming"
	FlowSucceeded        FlowState = "succeeded"
	FlowFailed           FlowState = "failed"
)

// Terminal reports whether the flow has settled
func (s FlowState) Terminal() bool {
	return s == FlowSucceeded || s == FlowFailed
}

// FlowStateForQuote maps a quote outcome onto the lifecycle
func FlowStateForQuote(q Quote) FlowState {
	switch q.State {
	case QuoteReady:
		return FlowQuoteReady
	case QuoteUnavailable, QuoteInvalid:
		return FlowQuoteUnavailable
	default:
		return FlowIdle
	}
}
