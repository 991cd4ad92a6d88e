package element

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/xid"
)

type (
	// Stage implements element-specific behaviour: one stage per element.
	// Initialize is called once before the work loop, DoWork performs one
	// unit of processing per call and must return promptly. Both receive
	// a context which is cancelled when the element is terminated.
	//
	// DoWork error conventions:
	// 		- nil if the unit of work succeeded;
	// 		- io.EOF if the stage is exhausted and no work is left.
	// io.EOF pauses the element, any other error fails it.
	Stage interface {
		Initialize(ctx context.Context) error
		DoWork(ctx context.Context) error
	}

	// Flusher is an optional stage capability: cleanup executed during
	// element flush, after all pins were flushed.
	Flusher interface {
		Flush() error
	}

	// StateChanger is an optional stage capability: reaction to play state
	// changes. It is invoked from the goroutine that called SetState,
	// after the new state was stored and before the worker is woken.
	StateChanger interface {
		ChangeState(oldState, newState PlayState)
	}

	// doner is an optional stage capability: completion signal, closed
	// when the stage has no more work.
	doner interface {
		Done() <-chan struct{}
	}

	// Logger is a global interface for element loggers.
	Logger interface {
		Debug(...interface{})
		Info(...interface{})
	}

	// Element is an autonomous processing stage. It owns one worker
	// goroutine, a play state, an execution state and its pin
	// collections. All exported methods are safe for concurrent use.
	Element struct {
		uid   string
		name  string
		log   Logger
		stage Stage

		inputs  InPins
		outputs OutPins

		// mu guards status, play, started and err. cond is broadcast on
		// every status change so that waiters can re-check.
		mu      sync.Mutex
		cond    *sync.Cond
		status  ExecutionState
		play    PlayState
		started bool
		err     error

		waker  waker
		cancel context.CancelFunc
		done   chan struct{}
	}

	// Option provides a way to set functional parameters to element.
	Option func(e *Element) error
)

// newUID returns new unique id value.
func newUID() string {
	return xid.New().String()
}

// New creates a new element driven by the given stage and applies provided
// options. Returned element is in WaitingForExecute state.
func New(stage Stage, options ...Option) (*Element, error) {
	e := &Element{
		uid:   newUID(),
		log:   defaultLogger,
		stage: stage,
		done:  make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	e.waker.init()
	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// WithName sets name to element.
func WithName(n string) Option {
	return func(e *Element) error {
		e.name = n
		return nil
	}
}

// WithLogger sets logger to element. If this option is not provided,
// silent logger is used.
func WithLogger(logger Logger) Option {
	return func(e *Element) error {
		e.log = logger
		return nil
	}
}

// WithInputs adds input pins to element.
func WithInputs(pins ...InPin) Option {
	return func(e *Element) error {
		for _, pin := range pins {
			if err := e.AddInput(pin); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithOutputs adds output pins to element.
func WithOutputs(pins ...OutPin) Option {
	return func(e *Element) error {
		for _, pin := range pins {
			if err := e.AddOutput(pin); err != nil {
				return err
			}
		}
		return nil
	}
}

// AddInput appends pin to the element's input collection. Pins must be
// added before Execute is called.
func (e *Element) AddInput(pin InPin) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("add input to %v: %w", e.label(), ErrInvalidState)
	}
	e.inputs.add(pin)
	if n, ok := pin.(notifier); ok {
		n.SetNotify(e.Wake)
	}
	return nil
}

// AddOutput appends pin to the element's output collection. Pins must be
// added before Execute is called.
func (e *Element) AddOutput(pin OutPin) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("add output to %v: %w", e.label(), ErrInvalidState)
	}
	e.outputs.add(pin)
	if n, ok := pin.(notifier); ok {
		n.SetNotify(e.Wake)
	}
	return nil
}

// ClearInputs empties the element's input collection, invalidating all
// indices. Must not be called after Execute.
func (e *Element) ClearInputs() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("clear inputs of %v: %w", e.label(), ErrInvalidState)
	}
	e.inputs.clear()
	return nil
}

// ClearOutputs empties the element's output collection, invalidating all
// indices. Must not be called after Execute.
func (e *Element) ClearOutputs() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("clear outputs of %v: %w", e.label(), ErrInvalidState)
	}
	e.outputs.clear()
	return nil
}

// Inputs returns the element's input pin collection.
func (e *Element) Inputs() *InPins {
	return &e.inputs
}

// Outputs returns the element's output pin collection.
func (e *Element) Outputs() *OutPins {
	return &e.outputs
}

// Name returns the element's human-readable name.
func (e *Element) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

// SetName sets the element's human-readable name.
func (e *Element) SetName(n string) {
	e.mu.Lock()
	e.name = n
	e.mu.Unlock()
}

// Convert element to string. Name is used if set.
func (e *Element) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.label()
}

// label formats the element for messages. Callers must hold e.mu.
func (e *Element) label() string {
	if e.name == "" {
		return e.uid
	}
	return fmt.Sprintf("%v %v", e.name, e.uid)
}

// Status returns the last published execution state. It never blocks.
func (e *Element) Status() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// State returns the element's play state.
func (e *Element) State() PlayState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.play
}

// Err returns the error that moved the element into Failed state, if any.
func (e *Element) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Done returns the stage completion channel or nil if the stage does not
// signal completion.
func (e *Element) Done() <-chan struct{} {
	if d, ok := e.stage.(doner); ok {
		return d.Done()
	}
	return nil
}

// Execute starts the element's worker. The worker initializes the stage,
// then loops doing work while playing until the element is terminated.
// Execute fails with ErrInvalidState if the worker was already started,
// including the case when it already finished: elements are not
// re-executable.
func (e *Element) Execute() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.status != WaitingForExecute {
		return fmt.Errorf("execute %v: %w", e.label(), ErrInvalidState)
	}
	e.started = true
	var ctx context.Context
	ctx, e.cancel = context.WithCancel(context.Background())
	go e.work(ctx)
	e.log.Debug(fmt.Sprintf("%v execute", e.label()))
	return nil
}

// Wake prompts a sleeping worker to re-evaluate its work loop. Wake is a
// level signal: concurrent and repeated calls coalesce, the only guarantee
// is at least one more loop evaluation after the call returns.
func (e *Element) Wake() {
	e.waker.wake()
	e.log.Debug(fmt.Sprintf("%v wake", e))
}

// SetState changes the element's play state. If the state actually
// changes, the stage's ChangeState capability is invoked and the worker is
// woken up.
func (e *Element) SetState(state PlayState) {
	e.mu.Lock()
	oldState := e.play
	if oldState == state {
		e.mu.Unlock()
		return
	}
	e.play = state
	e.mu.Unlock()
	if c, ok := e.stage.(StateChanger); ok {
		c.ChangeState(oldState, state)
	}
	e.Wake()
	e.log.Debug(fmt.Sprintf("%v state %v", e, state))
}

// Terminate tears the element down: publishes Terminating, flushes the
// element, cancels the stage context, wakes the worker and joins it. It
// fails with ErrInvalidState if the element is not Executing. The returned
// error aggregates pin and stage flush failures; after a nil return no
// further DoWork invocation occurs and the element is back in
// WaitingForExecute.
func (e *Element) Terminate() error {
	e.mu.Lock()
	if e.status != Executing {
		e.mu.Unlock()
		return fmt.Errorf("terminate %v: %w", e.label(), ErrInvalidState)
	}
	e.status = Terminating
	e.cond.Broadcast()
	e.mu.Unlock()

	err := e.Flush()
	e.cancel()
	e.waker.wake()
	<-e.done
	e.log.Debug(fmt.Sprintf("%v terminated", e))
	return err
}

// Flush discards in-flight data: every input pin, then every output pin,
// in insertion order, then the stage's Flusher capability. Pin failures do
// not stop the flush: all errors are collected and returned together.
func (e *Element) Flush() error {
	var errs execErrors
	if err := e.inputs.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := e.outputs.Flush(); err != nil {
		errs = append(errs, err)
	}
	if f, ok := e.stage.(Flusher); ok {
		if err := f.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush stage %v: %w", e, err))
		}
	}
	e.log.Debug(fmt.Sprintf("%v flushed", e))
	return errs.ret()
}

// WaitForExecutionState blocks the calling goroutine until the element
// publishes the given state. It returns immediately if the element is in
// that state already and blocks indefinitely if the state is never
// reached.
func (e *Element) WaitForExecutionState(state ExecutionState) {
	e.mu.Lock()
	for e.status != state {
		e.cond.Wait()
	}
	e.mu.Unlock()
}

// waitExecuting blocks until the worker either reached the work loop or
// failed to, and returns the failure cause.
func (e *Element) waitExecuting() error {
	e.mu.Lock()
	for e.status != Executing && e.status != Failed {
		e.cond.Wait()
	}
	err := e.err
	e.mu.Unlock()
	return err
}

// publish stores the new execution state and broadcasts the change so
// that no waiter can miss a transition.
func (e *Element) publish(state ExecutionState) {
	e.mu.Lock()
	e.status = state
	e.cond.Broadcast()
	e.mu.Unlock()
	e.log.Debug(fmt.Sprintf("%v is %v", e, state))
}

// fail records the terminal error and publishes Failed. It reports false
// without failing the element if termination already started: the error
// is then a side effect of teardown and the worker exits normally.
func (e *Element) fail(err error) bool {
	e.mu.Lock()
	if e.status == Terminating {
		e.mu.Unlock()
		return false
	}
	e.err = err
	e.status = Failed
	e.cond.Broadcast()
	e.mu.Unlock()
	e.log.Info(fmt.Sprintf("%v failed: %v", e, err))
	return true
}

// work is the element's worker loop. It is the only goroutine that moves
// the element forward through its lifecycle; termination is the one
// transition requested externally.
func (e *Element) work(ctx context.Context) {
	defer close(e.done)

	e.publish(Initializing)
	if err := e.stage.Initialize(ctx); err != nil {
		e.fail(fmt.Errorf("initialize %v: %w", e, err))
		return
	}

	e.publish(Executing)
	for e.Status() == Executing {
		if e.State() == Play {
			switch err := e.stage.DoWork(ctx); {
			case err == nil:
			case errors.Is(err, io.EOF):
				// stage exhausted: idle until terminated
				e.SetState(Pause)
			case errors.Is(err, context.Canceled):
				// termination interrupted the work unit, loop re-checks
			default:
				if e.fail(fmt.Errorf("work %v: %w", e, err)) {
					return
				}
			}
		}
		e.waker.sleep()
	}

	e.publish(WaitingForExecute)
}

type silentLogger struct{}

func (silentLogger) Debug(args ...interface{}) {}

func (silentLogger) Info(args ...interface{}) {}

var defaultLogger silentLogger
