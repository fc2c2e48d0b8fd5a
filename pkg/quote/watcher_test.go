package quote

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x1swap/pkg/types"
)

// scriptedQuoter answers with amount*2 and can hold individual amounts until released
type scriptedQuoter struct {
	calls   atomic.Int32
	mu      sync.Mutex
	seen    []string
	hold    map[string]chan struct{}
	entered map[string]chan struct{}
}

func newScriptedQuoter(held ...string) *scriptedQuoter {
	q := &scriptedQuoter{hold: map[string]chan struct{}{}, entered: map[string]chan struct{}{}}
	for _, amount := range held {
		q.hold[amount] = make(chan struct{})
		q.entered[amount] = make(chan struct{})
	}
	return q
}

func (s *scriptedQuoter) Quote(ctx context.Context, pair types.TokenPair, amount string) types.Quote {
	s.calls.Add(1)
	s.mu.Lock()
	s.seen = append(s.seen, amount)
	hold, entered := s.hold[amount], s.entered[amount]
	s.mu.Unlock()

	if hold != nil {
		close(entered)
		<-hold
	}

	in, _ := new(big.Int).SetString(amount, 10)
	out := new(big.Int).Mul(in, big.NewInt(2))
	return types.Quote{Pair: pair, AmountIn: amount, AmountOut: out, OutText: out.String(), State: types.QuoteReady}
}

func (s *scriptedQuoter) Seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) readyFor(amount string) bool {
	for _, ev := range r.Events() {
		if ev.State == types.FlowQuoteReady && ev.Quote.AmountIn == amount {
			return true
		}
	}
	return false
}

var pair = types.TokenPair{In: tka, Out: tkb}

func TestWatcherDebouncesBursts(t *testing.T) {
	quoter := newScriptedQuoter()
	w := NewWatcher(quoter, 50*time.Millisecond)
	defer w.Close()

	rec := &recorder{}
	w.Subscribe(rec.record)

	for _, amount := range []string{"1", "12", "123"} {
		w.Set(Input{Pair: pair, Amount: amount})
	}

	require.Eventually(t, func() bool { return rec.readyFor("123") }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, []string{"123"}, quoter.Seen())
	assert.Equal(t, "246", w.Latest().OutText)
	assert.Equal(t, types.FlowQuotePending, rec.Events()[0].State)
}

func TestWatcherDiscardsSupersededResponse(t *testing.T) {
	quoter := newScriptedQuoter("1")
	w := NewWatcher(quoter, 0)
	defer w.Close()

	rec := &recorder{}
	w.Subscribe(rec.record)

	w.Set(Input{Pair: pair, Amount: "1"})
	select {
	case <-quoter.entered["1"]:
	case <-time.After(time.Second):
		t.Fatal("query for 1 never started")
	}

	w.Set(Input{Pair: pair, Amount: "2"})
	require.Eventually(t, func() bool { return rec.readyFor("2") }, time.Second, 5*time.Millisecond)

	// the slow answer for the old input lands last
	close(quoter.hold["1"])
	time.Sleep(50 * time.Millisecond)

	latest := w.Latest()
	assert.Equal(t, "2", latest.AmountIn)
	assert.Equal(t, "4", latest.OutText)
	assert.False(t, rec.readyFor("1"), "superseded quote must not be published")

	var seqs []uint64
	for _, ev := range rec.Events() {
		if ev.State == types.FlowQuoteReady {
			seqs = append(seqs, ev.Quote.Seq)
		}
	}
	require.Len(t, seqs, 1)
	assert.Equal(t, latest.Seq, seqs[0])
}

func TestWatcherClearsOnZeroAmount(t *testing.T) {
	quoter := newScriptedQuoter()
	w := NewWatcher(quoter, 0)
	defer w.Close()

	rec := &recorder{}
	w.Subscribe(rec.record)

	w.Set(Input{Pair: pair, Amount: "5"})
	require.Eventually(t, func() bool { return rec.readyFor("5") }, time.Second, 5*time.Millisecond)

	calls := quoter.calls.Load()
	w.Set(Input{Pair: pair, Amount: "0"})

	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, types.FlowIdle, last.State)
	assert.Equal(t, types.QuoteEmpty, w.Latest().State)
	assert.Equal(t, "", w.Latest().Display())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, quoter.calls.Load(), "zero amount never reaches the router")
}

func TestWatcherRefresh(t *testing.T) {
	quoter := newScriptedQuoter()
	w := NewWatcher(quoter, time.Hour)
	defer w.Close()

	rec := &recorder{}
	w.Subscribe(rec.record)

	w.Set(Input{Pair: pair, Amount: "7"})
	w.Refresh()

	require.Eventually(t, func() bool { return rec.readyFor("7") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), quoter.calls.Load())
}

func TestWatcherUnsubscribeAndClose(t *testing.T) {
	quoter := newScriptedQuoter()
	w := NewWatcher(quoter, 0)

	rec := &recorder{}
	unsubscribe := w.Subscribe(rec.record)
	unsubscribe()

	w.Set(Input{Pair: pair, Amount: "3"})
	require.Eventually(t, func() bool { return w.Latest().State == types.QuoteReady }, time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.Events())

	w.Close()
	w.Set(Input{Pair: pair, Amount: "4"})
	assert.Equal(t, "3", w.Latest().AmountIn, "closed watcher ignores input")
}

func TestWatcherObserversInSubscriptionOrder(t *testing.T) {
	w := NewWatcher(newScriptedQuoter(), time.Hour)
	defer w.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		w.Subscribe(func(Event) { order = append(order, i) })
	}
	unsubscribe := w.Subscribe(func(Event) { order = append(order, 99) })
	unsubscribe()

	for round := 0; round < 10; round++ {
		order = nil
		w.Set(Input{Pair: pair, Amount: "0"})
		assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	}
}

func TestWatcherFlushSendsPendingQuery(t *testing.T) {
	quoter := newScriptedQuoter()
	w := NewWatcher(quoter, time.Hour)
	defer w.Close()

	rec := &recorder{}
	w.Subscribe(rec.record)

	w.Set(Input{Pair: pair, Amount: "8"})
	w.Flush()

	assert.True(t, rec.readyFor("8"))
	assert.Equal(t, "16", w.Latest().OutText)
	assert.Equal(t, int32(1), quoter.calls.Load())

	// nothing pending; a second flush is a no-op
	w.Flush()
	assert.Equal(t, int32(1), quoter.calls.Load())
}

func TestWatcherFlushWaitsForInFlightQuery(t *testing.T) {
	quoter := newScriptedQuoter("9")
	w := NewWatcher(quoter, 0)
	defer w.Close()

	rec := &recorder{}
	w.Subscribe(rec.record)

	w.Set(Input{Pair: pair, Amount: "9"})
	select {
	case <-quoter.entered["9"]:
	case <-time.After(time.Second):
		t.Fatal("query for 9 never started")
	}

	done := make(chan struct{})
	go func() {
		w.Flush()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("flush returned before the query answered")
	case <-time.After(20 * time.Millisecond):
	}

	close(quoter.hold["9"])
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flush never returned")
	}
	assert.True(t, rec.readyFor("9"))
}
