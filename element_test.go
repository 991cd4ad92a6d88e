package element_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pipelined/element"
	"github.com/pipelined/element/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// waitFor polls the condition until it holds or the deadline is reached.
func waitFor(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestExecuteReachesExecuting(t *testing.T) {
	stage := mock.New()
	e, err := element.New(stage, element.WithName("test"))
	require.NoError(t, err)
	assert.Equal(t, element.WaitingForExecute, e.Status())

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Executing)
	assert.Equal(t, element.Executing, e.Status())
	assert.Equal(t, 1, stage.Initialized())

	require.NoError(t, e.Terminate())
	assert.Equal(t, element.WaitingForExecute, e.Status())
}

func TestExecuteTwice(t *testing.T) {
	stage := mock.New()
	e, err := element.New(stage)
	require.NoError(t, err)

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Executing)

	err = e.Execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, element.ErrInvalidState))
	assert.Equal(t, element.Executing, e.Status())
	assert.Equal(t, 1, stage.Initialized())

	require.NoError(t, e.Terminate())

	// the element is not re-executable
	err = e.Execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, element.ErrInvalidState))
}

func TestTerminateNotExecuting(t *testing.T) {
	stage := mock.New()
	pin := &mock.Pin{PinName: "in"}
	e, err := element.New(stage, element.WithInputs(pin))
	require.NoError(t, err)

	err = e.Terminate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, element.ErrInvalidState))
	assert.Equal(t, element.WaitingForExecute, e.Status())
	assert.Equal(t, 0, pin.Flushed())
	assert.Equal(t, 0, stage.Flushed())
}

func TestTerminateJoinsWorker(t *testing.T) {
	stage := mock.New()
	e, err := element.New(stage)
	require.NoError(t, err)

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Executing)
	e.SetState(element.Play)
	<-stage.Worked()

	require.NoError(t, e.Terminate())
	assert.Equal(t, element.WaitingForExecute, e.Status())

	// no DoWork invocation happens after Terminate returned
	work := stage.Work()
	e.Wake()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, work, stage.Work())
	assert.Equal(t, 1, stage.Flushed())
}

func TestFlushOrder(t *testing.T) {
	flushLog := &mock.FlushLog{}
	in1 := &mock.Pin{PinName: "in1", Log: flushLog}
	in2 := &mock.Pin{PinName: "in2", Log: flushLog}
	out1 := &mock.Pin{PinName: "out1", Log: flushLog}
	out2 := &mock.Pin{PinName: "out2", Log: flushLog}
	stage := mock.New()
	e, err := element.New(stage,
		element.WithInputs(in1, in2),
		element.WithOutputs(out1, out2),
	)
	require.NoError(t, err)

	require.NoError(t, e.Flush())
	require.NoError(t, e.Flush())
	assert.Equal(t,
		[]string{"in1", "in2", "out1", "out2", "in1", "in2", "out1", "out2"},
		flushLog.Names(),
	)
	assert.Equal(t, 2, stage.Flushed())
}

func TestFlushCollectsErrors(t *testing.T) {
	errFlush := errors.New("flush failed")
	in := &mock.Pin{PinName: "in", ErrorOnFlush: errFlush}
	out := &mock.Pin{PinName: "out"}
	e, err := element.New(mock.New(),
		element.WithInputs(in),
		element.WithOutputs(out),
	)
	require.NoError(t, err)

	err = e.Flush()
	require.Error(t, err)
	// the failing pin did not prevent the remaining flushes
	assert.Equal(t, 1, out.Flushed())
}

func TestPauseGating(t *testing.T) {
	stage := mock.New()
	e, err := element.New(stage)
	require.NoError(t, err)

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Executing)
	assert.Equal(t, element.Pause, e.State())

	for i := 0; i < 5; i++ {
		e.Wake()
	}
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, stage.Work())

	e.SetState(element.Play)
	<-stage.Worked()
	assert.Equal(t, []element.PlayState{element.Play}, stage.Changes())

	require.NoError(t, e.Terminate())
}

func TestWakeCoalescing(t *testing.T) {
	stage := mock.New()
	e, err := element.New(stage)
	require.NoError(t, err)

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Executing)
	e.SetState(element.Play)
	<-stage.Worked()

	// let the worker go back to sleep
	time.Sleep(10 * time.Millisecond)
	before := stage.Work()

	k := 5
	for i := 0; i < k; i++ {
		e.Wake()
	}
	waitFor(t, time.Second, func() bool {
		return stage.Work() > before
	})
	time.Sleep(10 * time.Millisecond)
	after := stage.Work()
	assert.True(t, after > before)
	assert.True(t, after <= before+k)

	require.NoError(t, e.Terminate())
}

func TestFailedInitialize(t *testing.T) {
	errInit := errors.New("init failed")
	stage := mock.New()
	stage.ErrorOnInitialize = errInit
	e, err := element.New(stage)
	require.NoError(t, err)

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Failed)
	assert.True(t, errors.Is(e.Err(), errInit))

	err = e.Terminate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, element.ErrInvalidState))
}

func TestFailedWork(t *testing.T) {
	errWork := errors.New("work failed")
	stage := mock.New()
	stage.ErrorOnWork = errWork
	e, err := element.New(stage)
	require.NoError(t, err)

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Executing)
	e.SetState(element.Play)

	e.WaitForExecutionState(element.Failed)
	assert.True(t, errors.Is(e.Err(), errWork))
}

func TestEOFPausesElement(t *testing.T) {
	stage := mock.New()
	stage.Limit = 3
	e, err := element.New(stage)
	require.NoError(t, err)

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Executing)
	e.SetState(element.Play)

	<-e.Done()
	waitFor(t, time.Second, func() bool {
		return e.State() == element.Pause
	})
	assert.Equal(t, 3, stage.Work())
	assert.Equal(t, element.Executing, e.Status())

	require.NoError(t, e.Terminate())
	assert.Equal(t, 3, stage.Work())
}

func TestHangingWorkIsCancelled(t *testing.T) {
	stage := mock.New()
	stage.Hang = true
	e, err := element.New(stage)
	require.NoError(t, err)

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Executing)
	e.SetState(element.Play)

	// the worker is blocked inside DoWork, Terminate must still join it
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, e.Terminate())
	assert.Equal(t, element.WaitingForExecute, e.Status())
}

func TestTerminateDuringFailingWork(t *testing.T) {
	stage := mock.New()
	stage.Hang = true
	// cancellation unblocks the stage, but it surfaces a wrapped error
	// instead of the context error
	stage.ErrorOnHang = errors.New("stream closed")
	e, err := element.New(stage)
	require.NoError(t, err)

	require.NoError(t, e.Execute())
	e.WaitForExecutionState(element.Executing)
	e.SetState(element.Play)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, e.Terminate())
	assert.Equal(t, element.WaitingForExecute, e.Status())
	assert.NoError(t, e.Err())
}

func TestStringConcurrentRename(t *testing.T) {
	e, err := element.New(mock.New(), element.WithName("first"))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			e.SetName("renamed")
		}
		close(done)
	}()
	for i := 0; i < 1000; i++ {
		_ = e.String()
	}
	<-done
	assert.Contains(t, e.String(), "renamed")
}

func TestWaitForExecutionStateConcurrent(t *testing.T) {
	stage := mock.New()
	e, err := element.New(stage)
	require.NoError(t, err)

	waiters := 5
	reached := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			e.WaitForExecutionState(element.Executing)
			reached <- struct{}{}
		}()
	}

	require.NoError(t, e.Execute())
	for i := 0; i < waiters; i++ {
		select {
		case <-reached:
		case <-time.After(time.Second):
			t.Fatal("waiter missed the transition")
		}
	}

	require.NoError(t, e.Terminate())
}
