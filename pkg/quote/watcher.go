package quote

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"x1swap/pkg/logging"
	"x1swap/pkg/types"
	"x1swap/pkg/units"
)

// DefaultDebounce is the quiet period after the last input change before a query is sent
const DefaultDebounce = 500 * time.Millisecond

// Quoter is satisfied by *Engine
type Quoter interface {
	Quote(ctx context.Context, pair types.TokenPair, amountText string) types.Quote
}

// Input is the editable state a quote depends on
type Input struct {
	Pair   types.TokenPair
	Amount string
}

// Event is delivered to observers on every state change
type Event struct {
	State types.FlowState
	Quote types.Quote
}

// Watcher debounces input changes into router queries. Every scheduled query
// takes the next sequence number and a response is only published while its
// number is still the latest issued, so a slow answer for old input can never
// overwrite a newer one.
type Watcher struct {
	quoter Quoter
	delay  time.Duration
	logger zerolog.Logger

	mu        sync.Mutex
	seq       uint64
	input     Input
	latest    types.Quote
	timer     *time.Timer
	pending   bool
	cancel    context.CancelFunc
	observers []observer
	nextObs   int
	closed    bool
	wg        sync.WaitGroup
}

type observer struct {
	id int
	fn func(Event)
}

// NewWatcher returns an idle watcher. A negative delay means DefaultDebounce.
func NewWatcher(quoter Quoter, delay time.Duration) *Watcher {
	if delay < 0 {
		delay = DefaultDebounce
	}
	return &Watcher{
		quoter: quoter,
		delay:  delay,
		logger: logging.For("quote-watcher"),
	}
}

// Subscribe registers fn for every subsequent event. Observers are called
// synchronously in event order, in subscription order, and must not call back
// into the Watcher.
func (w *Watcher) Subscribe(fn func(Event)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextObs
	w.nextObs++
	w.observers = append(w.observers, observer{id: id, fn: fn})
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, o := range w.observers {
			if o.id == id {
				w.observers = append(w.observers[:i:i], w.observers[i+1:]...)
				return
			}
		}
	}
}

// Set records a new input. A blank or zero amount clears the quote at once;
// anything else schedules a query after the debounce delay.
func (w *Watcher) Set(in Input) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.input = in
	w.scheduleLocked()
}

// Refresh re-queries the current input without waiting for the debounce delay
func (w *Watcher) Refresh() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.seq++
	w.stopLocked()
	if units.IsZero(w.input.Amount) {
		w.clearLocked()
		return
	}
	w.publishLocked(Event{State: types.FlowQuotePending, Quote: w.latest})
	w.launchLocked(w.seq)
}

// Latest returns the most recent published quote
func (w *Watcher) Latest() types.Quote {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest
}

// Flush sends a query still waiting out the debounce delay at once and
// waits until every in-flight query has returned and been published.
func (w *Watcher) Flush() {
	w.mu.Lock()
	if !w.closed && w.pending {
		w.pending = false
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.launchLocked(w.seq)
	}
	w.mu.Unlock()

	w.wg.Wait()
}

// Close stops pending work and waits for in-flight queries to return
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	w.seq++
	w.stopLocked()
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) scheduleLocked() {
	w.seq++
	w.stopLocked()

	if units.IsZero(w.input.Amount) {
		w.clearLocked()
		return
	}

	w.publishLocked(Event{State: types.FlowQuotePending, Quote: w.latest})

	seq := w.seq
	w.pending = true
	w.timer = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if seq != w.seq || w.closed || !w.pending {
			return
		}
		w.pending = false
		w.launchLocked(seq)
	})
}

func (w *Watcher) launchLocked(seq uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	in := w.input

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cancel()

		q := w.quoter.Quote(ctx, in.Pair, in.Amount)
		q.Seq = seq

		w.mu.Lock()
		defer w.mu.Unlock()
		if seq != w.seq {
			w.logger.Debug().Uint64("seq", seq).Uint64("latest", w.seq).Msg("discarding superseded quote")
			return
		}
		w.latest = q
		w.publishLocked(Event{State: types.FlowStateForQuote(q), Quote: q})
	}()
}

// stopLocked cancels the pending timer and any in-flight query
func (w *Watcher) stopLocked() {
	w.pending = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *Watcher) clearLocked() {
	w.latest = types.Quote{
		Seq:      w.seq,
		Pair:     w.input.Pair,
		AmountIn: w.input.Amount,
		State:    types.QuoteEmpty,
	}
	w.publishLocked(Event{State: types.FlowIdle, Quote: w.latest})
}

func (w *Watcher) publishLocked(ev Event) {
	for _, o := range w.observers {
		o.fn(ev)
	}
}
