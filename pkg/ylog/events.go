package ylog

import (
	"time"

	"github.com/bft-labs/ylog/internal/app"
)

// State represents the lifecycle state of a Server.
type State int

// States mirror the relay lifecycle; see the package documentation.
const (
	StateStopped  = State(app.StateStopped)
	StateStarting = State(app.StateStarting)
	StateRunning  = State(app.StateRunning)
	StateStopping = State(app.StateStopping)
	StateDraining = State(app.StateDraining)
	StateCrashed  = State(app.StateCrashed)
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string

	// LastSequence is the last sequence id handed out when the state changed.
	LastSequence uint64
	Timestamp    time.Time
}

// PersistedEvent is emitted after a batch of contacts was appended to the logsheet.
type PersistedEvent struct {
	Records      int
	LastSequence uint64
	Duration     time.Duration
}

// PersistErrorEvent is emitted when a batch could not be appended.
type PersistErrorEvent struct {
	Error   error
	Records int
}

// EventHandler receives server events.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnPersisted(event PersistedEvent)
	OnPersistError(event PersistErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only the events you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)    {}
func (BaseEventHandler) OnPersisted(PersistedEvent)        {}
func (BaseEventHandler) OnPersistError(PersistErrorEvent) {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(tr app.Transition) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous:     State(tr.From),
		Current:      State(tr.To),
		Reason:       tr.Reason,
		LastSequence: tr.LastSequence,
		Timestamp:    tr.At,
	})
}

func (e *eventEmitterWrapper) OnPersisted(records int, lastSequence uint64, d time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnPersisted(PersistedEvent{Records: records, LastSequence: lastSequence, Duration: d})
}

func (e *eventEmitterWrapper) OnPersistError(err error, records int) {
	if e.handler == nil {
		return
	}
	e.handler.OnPersistError(PersistErrorEvent{Error: err, Records: records})
}
