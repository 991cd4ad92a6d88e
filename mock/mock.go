// Package mock provides mocks for element stages and pins. It is used in
// tests of this module and can be used by stage implementations.
package mock

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pipelined/element"
)

// Stage is a mock implementation of the element.Stage interface. It counts
// hook invocations and can be configured to fail, to hang until cancelled
// or to run out of work after a limit.
type Stage struct {
	// ErrorOnInitialize is returned by Initialize when set.
	ErrorOnInitialize error
	// ErrorOnWork is returned by DoWork when set.
	ErrorOnWork error
	// ErrorOnFlush is returned by Flush when set.
	ErrorOnFlush error
	// Limit is the number of DoWork calls after which io.EOF is returned.
	// Zero means no limit.
	Limit int
	// Hang makes DoWork block until the context is done.
	Hang bool
	// ErrorOnHang is returned by a hanging DoWork instead of the
	// context error when set.
	ErrorOnHang error
	// WorkDelay is slept through on every DoWork call.
	WorkDelay time.Duration

	mu          sync.Mutex
	initialized int
	work        int
	flushed     int
	changes     []element.PlayState

	once   sync.Once
	done   chan struct{}
	worked chan struct{}
	wonce  sync.Once
}

// New returns a new mock stage.
func New() *Stage {
	return &Stage{
		done:   make(chan struct{}),
		worked: make(chan struct{}),
	}
}

// Initialize implements element.Stage.
func (s *Stage) Initialize(context.Context) error {
	s.mu.Lock()
	s.initialized++
	s.mu.Unlock()
	return s.ErrorOnInitialize
}

// DoWork implements element.Stage.
func (s *Stage) DoWork(ctx context.Context) error {
	if s.Hang {
		<-ctx.Done()
		if s.ErrorOnHang != nil {
			return s.ErrorOnHang
		}
		return ctx.Err()
	}
	if s.WorkDelay > 0 {
		time.Sleep(s.WorkDelay)
	}
	if s.ErrorOnWork != nil {
		return s.ErrorOnWork
	}
	s.mu.Lock()
	s.work++
	work := s.work
	s.mu.Unlock()
	s.wonce.Do(func() {
		close(s.worked)
	})
	if s.Limit > 0 && work >= s.Limit {
		s.once.Do(func() {
			close(s.done)
		})
		return io.EOF
	}
	return nil
}

// Flush implements the element.Flusher capability.
func (s *Stage) Flush() error {
	s.mu.Lock()
	s.flushed++
	s.mu.Unlock()
	return s.ErrorOnFlush
}

// ChangeState implements the element.StateChanger capability.
func (s *Stage) ChangeState(oldState, newState element.PlayState) {
	s.mu.Lock()
	s.changes = append(s.changes, newState)
	s.mu.Unlock()
}

// Done returns the channel closed when the stage hit its work limit.
func (s *Stage) Done() <-chan struct{} {
	return s.done
}

// Worked returns the channel closed on the first DoWork call.
func (s *Stage) Worked() <-chan struct{} {
	return s.worked
}

// Initialized returns the number of Initialize calls.
func (s *Stage) Initialized() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Work returns the number of successful DoWork calls.
func (s *Stage) Work() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.work
}

// Flushed returns the number of Flush calls.
func (s *Stage) Flushed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushed
}

// Changes returns the play states the stage was switched through.
func (s *Stage) Changes() []element.PlayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]element.PlayState{}, s.changes...)
}

// FlushLog records the order in which pins were flushed.
type FlushLog struct {
	mu    sync.Mutex
	names []string
}

// Names returns the recorded flush order.
func (l *FlushLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.names...)
}

func (l *FlushLog) record(name string) {
	l.mu.Lock()
	l.names = append(l.names, name)
	l.mu.Unlock()
}

// Pin is a mock pin which records flushes. It can belong to input and
// output collections alike.
type Pin struct {
	// PinName is returned by Name.
	PinName string
	// ErrorOnFlush is returned by Flush when set.
	ErrorOnFlush error
	// Log records flush order across pins when set.
	Log *FlushLog

	mu      sync.Mutex
	flushed int
	notify  func()
}

// Name implements element.Pin.
func (p *Pin) Name() string {
	return p.PinName
}

// Flush implements element.Pin.
func (p *Pin) Flush() error {
	p.mu.Lock()
	p.flushed++
	p.mu.Unlock()
	if p.Log != nil {
		p.Log.record(p.PinName)
	}
	return p.ErrorOnFlush
}

// SetNotify implements the notification capability picked up by elements.
func (p *Pin) SetNotify(fn func()) {
	p.mu.Lock()
	p.notify = fn
	p.mu.Unlock()
}

// Notify invokes the wired notification callback, if any.
func (p *Pin) Notify() {
	p.mu.Lock()
	notify := p.notify
	p.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// Flushed returns the number of Flush calls.
func (p *Pin) Flushed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushed
}
