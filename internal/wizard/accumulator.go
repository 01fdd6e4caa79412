package wizard

import (
	"sync"
)

// Turn event types streamed to the caller alongside text chunks.
const (
	EventConfirmationRequest   = "confirmation-request"
	EventConfirmationConfirmed = "confirmation-confirmed"
	EventRecipeExtracted       = "recipe-extracted"
	EventScheduleGenerated     = "schedule-generated"
)

// TurnEvent is a structured data event emitted during a turn.
type TurnEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Accumulator is the turn-scoped working state threaded from the resolver
// through the executors and the fallback engine. It wraps a deep copy of the
// session; the orchestrator writes the final state back in one call at the
// end of the turn. The mutex serializes writes from concurrently executed
// tool calls.
type Accumulator struct {
	mu      sync.Mutex
	Session *Session
	events  []TurnEvent
}

func NewAccumulator(s *Session) *Accumulator {
	return &Accumulator{Session: s.Clone()}
}

func (a *Accumulator) Emit(ev TurnEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *Accumulator) Events() []TurnEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]TurnEvent(nil), a.events...)
}

// turnstile releases waiters strictly in invocation order, so concurrent
// tool-call executions append to shared lists in the order the model issued
// them rather than the order they happened to finish.
type turnstile struct {
	mu   sync.Mutex
	cond *sync.Cond
	next int
}

func newTurnstile() *turnstile {
	t := &turnstile{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// enter blocks until it is seq's turn.
func (t *turnstile) enter(seq int) {
	t.mu.Lock()
	for t.next != seq {
		t.cond.Wait()
	}
	t.mu.Unlock()
}

// leave releases the next waiter.
func (t *turnstile) leave() {
	t.mu.Lock()
	t.next++
	t.mu.Unlock()
	t.cond.Broadcast()
}
