/*
Package pin implements the connect/push protocol between elements.

A connected pin pair exchanges buffers in a push model:

	out.Connect(in)
	out.Push(ctx, buffer)           ->  in.ProcessBuffer(ctx, buffer)
	                                    in.NextBuffer() by the sink stage
	out.AcceptProcessedBuffer() <-      in.Return(buffer)
	out.Connect(nil)                    disconnects

The in-flight budget between a pair is explicit: WithInFlight sets how
many buffers may be pushed before one is returned, default is one. Within
the budget Push never blocks; beyond it Push blocks until the sink returns
a buffer or the context is done, which gives the source natural
backpressure.

Both pin types satisfy the element core's Pin contract and report buffer
availability through SetNotify, so the owning element's worker is woken
when there is something to do.
*/
package pin

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrConnected is returned on connect to an already connected pin.
	ErrConnected = errors.New("pin is already connected")
	// ErrNotConnected is returned on push through a disconnected pin.
	ErrNotConnected = errors.New("pin is not connected")
)

type (
	// link is the shared channel pair of one connection: pushed buffers
	// travel over data, processed buffers come back over free.
	link[T any] struct {
		data chan T
		free chan T
	}

	// Out is an output pin: the source endpoint of a connection.
	Out[T any] struct {
		name     string
		inflight int

		mu     sync.Mutex
		sink   *In[T]
		link   *link[T]
		notify func()
	}

	// In is an input pin: the sink endpoint of a connection.
	In[T any] struct {
		name string

		mu     sync.Mutex
		source *Out[T]
		link   *link[T]
		notify func()
	}

	// Option provides a way to set functional parameters to an output pin.
	Option func(*config)

	config struct {
		inflight int
	}
)

// WithInFlight sets the number of buffers that may be in flight between
// the connected pair before Push blocks.
func WithInFlight(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.inflight = n
		}
	}
}

// NewOut creates a new output pin.
func NewOut[T any](name string, options ...Option) *Out[T] {
	c := config{inflight: 1}
	for _, option := range options {
		option(&c)
	}
	return &Out[T]{name: name, inflight: c.inflight}
}

// NewIn creates a new input pin.
func NewIn[T any](name string) *In[T] {
	return &In[T]{name: name}
}

// Name returns the pin name.
func (o *Out[T]) Name() string {
	return o.name
}

// Name returns the pin name.
func (i *In[T]) Name() string {
	return i.name
}

// SetNotify sets the callback invoked when a processed buffer is returned
// to this pin. The owning element wires it to Wake.
func (o *Out[T]) SetNotify(fn func()) {
	o.mu.Lock()
	o.notify = fn
	o.mu.Unlock()
}

// SetNotify sets the callback invoked when a buffer arrives on this pin.
// The owning element wires it to Wake.
func (i *In[T]) SetNotify(fn func()) {
	i.mu.Lock()
	i.notify = fn
	i.mu.Unlock()
}

// Connect connects the pin to the sink and triggers the sink's side of
// the handshake. Connect(nil) disconnects. Connecting an already
// connected pin fails with ErrConnected.
func (o *Out[T]) Connect(sink *In[T]) error {
	if sink == nil {
		return o.disconnect()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sink != nil {
		return fmt.Errorf("connect %v: %w", o.name, ErrConnected)
	}
	l := &link[T]{
		data: make(chan T, o.inflight),
		free: make(chan T, o.inflight),
	}
	if err := sink.acceptConnection(o, l); err != nil {
		return err
	}
	o.sink = sink
	o.link = l
	return nil
}

// acceptConnection is the sink side of the connect handshake.
func (i *In[T]) acceptConnection(source *Out[T], l *link[T]) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.source != nil {
		return fmt.Errorf("accept connection %v: %w", i.name, ErrConnected)
	}
	i.source = source
	i.link = l
	return nil
}

// disconnect breaks the connection and drains leftover buffers.
func (o *Out[T]) disconnect() error {
	o.mu.Lock()
	sink, l := o.sink, o.link
	o.sink, o.link = nil, nil
	o.mu.Unlock()
	if sink != nil {
		sink.disconnected()
	}
	drain(l)
	return nil
}

// disconnected is the sink side of the disconnect handshake.
func (i *In[T]) disconnected() {
	i.mu.Lock()
	i.source, i.link = nil, nil
	i.mu.Unlock()
}

// Push delivers the buffer to the connected sink via its ProcessBuffer.
func (o *Out[T]) Push(ctx context.Context, buffer T) error {
	o.mu.Lock()
	sink := o.sink
	o.mu.Unlock()
	if sink == nil {
		return fmt.Errorf("push %v: %w", o.name, ErrNotConnected)
	}
	return sink.ProcessBuffer(ctx, buffer)
}

// ProcessBuffer accepts a buffer pushed by the source. Within the
// in-flight budget it returns immediately, beyond it it blocks until the
// sink stage returns a buffer or ctx is done.
func (i *In[T]) ProcessBuffer(ctx context.Context, buffer T) error {
	i.mu.Lock()
	l, notify := i.link, i.notify
	i.mu.Unlock()
	if l == nil {
		return fmt.Errorf("process buffer %v: %w", i.name, ErrNotConnected)
	}
	select {
	case l.data <- buffer:
	case <-ctx.Done():
		return ctx.Err()
	}
	if notify != nil {
		notify()
	}
	return nil
}

// NextBuffer returns the next pushed buffer without blocking. It is meant
// to be called by the owning sink stage from DoWork.
func (i *In[T]) NextBuffer() (T, bool) {
	var zero T
	i.mu.Lock()
	l := i.link
	i.mu.Unlock()
	if l == nil {
		return zero, false
	}
	select {
	case buffer := <-l.data:
		return buffer, true
	default:
		return zero, false
	}
}

// Return hands the processed buffer back to the source for reuse.
func (i *In[T]) Return(buffer T) {
	i.mu.Lock()
	l, source := i.link, i.source
	i.mu.Unlock()
	if l == nil {
		return
	}
	select {
	case l.free <- buffer:
	default:
		// over budget, drop
		return
	}
	if source != nil {
		source.notifyReturned()
	}
}

// AcceptProcessedBuffer reclaims a buffer returned by the sink, without
// blocking. It is meant to be called by the owning source stage to reuse
// buffers instead of allocating.
func (o *Out[T]) AcceptProcessedBuffer() (T, bool) {
	var zero T
	o.mu.Lock()
	l := o.link
	o.mu.Unlock()
	if l == nil {
		return zero, false
	}
	select {
	case buffer := <-l.free:
		return buffer, true
	default:
		return zero, false
	}
}

func (o *Out[T]) notifyReturned() {
	o.mu.Lock()
	notify := o.notify
	o.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// Flush discards in-flight buffers in both directions. Idempotent.
func (o *Out[T]) Flush() error {
	o.mu.Lock()
	l := o.link
	o.mu.Unlock()
	drain(l)
	return nil
}

// Flush discards in-flight buffers in both directions. Idempotent.
func (i *In[T]) Flush() error {
	i.mu.Lock()
	l := i.link
	i.mu.Unlock()
	drain(l)
	return nil
}

func drain[T any](l *link[T]) {
	if l == nil {
		return
	}
	for {
		select {
		case <-l.data:
		case <-l.free:
		default:
			return
		}
	}
}
