package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/internal/ports"
)

// ShutdownTimeout is the default maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// State is the phase a relay server is in.
type State int

const (
	// StateStopped: no listener, no hub.
	StateStopped State = iota
	// StateStarting: restoring relay state, starting plugins, binding the listener.
	StateStarting
	// StateRunning: stations may connect and submit.
	StateRunning
	// StateStopping: the listener is closed and stations are being disconnected.
	StateStopping
	// StateDraining: the hub persists what is still queued before exiting.
	StateDraining
	// StateCrashed: startup failed, a worker failed, or draining timed out.
	StateCrashed
)

var stateNames = map[State]string{
	StateStopped:  "Stopped",
	StateStarting: "Starting",
	StateRunning:  "Running",
	StateStopping: "Stopping",
	StateDraining: "Draining",
	StateCrashed:  "Crashed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// accepting reports whether stations can still be served in s.
func (s State) accepting() bool {
	return s == StateStarting || s == StateRunning
}

// next lists the allowed transitions. A server can be stopped while still
// starting, and any phase that owns workers can crash.
var next = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateDraining, StateCrashed},
	StateDraining: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// Transition describes one state change.
type Transition struct {
	From   State
	To     State
	Reason string

	// LastSequence is the hub's last assigned id at the time of the change.
	LastSequence uint64

	At time.Time
}

// EventEmitter is told about every transition.
type EventEmitter interface {
	OnStateChange(Transition)
}

// SequenceSource reports the last sequence id handed out; the Hub is one.
type SequenceSource interface {
	LastSequence() uint64
}

// Lifecycle tracks a relay server's phase and the named workers (hub
// consumer, listener) it runs. A worker failing while the server accepts
// stations crashes the server.
type Lifecycle struct {
	logger  ports.Logger
	emitter EventEmitter

	mu      sync.Mutex
	state   State
	seq     SequenceSource
	cancel  context.CancelFunc
	running map[string]struct{}
	failure error

	wg sync.WaitGroup
}

// NewLifecycle returns a lifecycle in StateStopped. emitter may be nil.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		logger:  logger,
		emitter: emitter,
		state:   StateStopped,
		running: make(map[string]struct{}),
	}
}

// State returns the current phase.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Begin starts a new run: it moves to Starting, clears the previous
// run's failure and remembers cancel for Crash and Drain.
func (l *Lifecycle) Begin(cancel context.CancelFunc) error {
	l.mu.Lock()
	if l.state != StateStopped && l.state != StateCrashed {
		st := l.state
		l.mu.Unlock()
		return fmt.Errorf("start from %s: %w", st, domain.ErrAlreadyRunning)
	}
	l.cancel = cancel
	l.failure = nil
	l.seq = nil
	l.mu.Unlock()
	return l.TransitionTo(StateStarting, "start requested")
}

// Attach sets where transitions read the last sequence id from.
func (l *Lifecycle) Attach(src SequenceSource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq = src
}

// TransitionTo moves to to, failing with ErrNotRunning when the server has
// no run to change and ErrAlreadyRunning otherwise.
func (l *Lifecycle) TransitionTo(to State, reason string) error {
	l.mu.Lock()
	from := l.state
	if !allowed(from, to) {
		l.mu.Unlock()
		if from == StateStopped || from == StateCrashed {
			return fmt.Errorf("%s -> %s: %w", from, to, domain.ErrNotRunning)
		}
		return fmt.Errorf("%s -> %s: %w", from, to, domain.ErrAlreadyRunning)
	}
	l.state = to
	tr := Transition{From: from, To: to, Reason: reason, At: time.Now().UTC()}
	if l.seq != nil {
		tr.LastSequence = l.seq.LastSequence()
	}
	l.mu.Unlock()

	l.logger.Info("relay state changed",
		ports.String("from", from.String()),
		ports.String("to", to.String()),
		ports.String("reason", reason),
		ports.Uint64("last_sequence", tr.LastSequence),
	)
	if l.emitter != nil {
		l.emitter.OnStateChange(tr)
	}
	return nil
}

func allowed(from, to State) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Accepting reports whether the server is starting or running.
func (l *Lifecycle) Accepting() bool {
	return l.State().accepting()
}

// Go runs fn as the worker called name. A worker returning an error other
// than context.Canceled while the server is accepting crashes it.
func (l *Lifecycle) Go(name string, fn func() error) {
	l.mu.Lock()
	l.running[name] = struct{}{}
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		err := fn()

		l.mu.Lock()
		delete(l.running, name)
		l.mu.Unlock()

		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		l.Crash(fmt.Errorf("%s: %w", name, err))
	}()
}

// Crash records err, cancels the run and moves to Crashed if the server
// was still accepting stations. During shutdown the error is only kept
// for Failure.
func (l *Lifecycle) Crash(err error) {
	l.mu.Lock()
	if l.failure == nil {
		l.failure = err
	}
	cancel := l.cancel
	accepting := l.state.accepting()
	l.mu.Unlock()

	l.logger.Error("relay worker failed", ports.Err(err))
	if cancel != nil {
		cancel()
	}
	if accepting {
		_ = l.TransitionTo(StateCrashed, err.Error())
	}
}

// Failure returns the first worker error of the current run.
func (l *Lifecycle) Failure() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failure
}

// Drain cancels the run, moves to Draining and waits up to timeout for the
// workers. It ends in Stopped, or in Crashed when a worker is still busy
// or failed; the error names the reason. A crashed run is drained too, so
// its workers are gone before the server is started again.
func (l *Lifecycle) Drain(timeout time.Duration) error {
	l.mu.Lock()
	cancel := l.cancel
	crashed := l.state == StateCrashed
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if !crashed {
		if err := l.TransitionTo(StateDraining, "stations disconnected"); err != nil {
			return err
		}
	}

	crash := func(err error) error {
		if !crashed {
			_ = l.TransitionTo(StateCrashed, err.Error())
		}
		return err
	}
	if busy := l.wait(timeout); len(busy) > 0 {
		err := fmt.Errorf("%w: still running: %s", domain.ErrShutdownTimeout, strings.Join(busy, ", "))
		l.logger.Warn("drain timed out", ports.Duration("timeout", timeout), ports.Err(err))
		return crash(err)
	}
	if err := l.Failure(); err != nil {
		return crash(err)
	}
	if crashed {
		return nil
	}
	return l.TransitionTo(StateStopped, "drained")
}

// wait blocks until every worker returned or timeout passed, and returns
// the names of workers still running.
func (l *Lifecycle) wait(timeout time.Duration) []string {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	busy := make([]string, 0, len(l.running))
	for name := range l.running {
		busy = append(busy, name)
	}
	sort.Strings(busy)
	return busy
}
