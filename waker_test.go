package element

import (
	"testing"
	"time"
)

func TestWakerWakeBeforeSleep(t *testing.T) {
	var w waker
	w.init()

	w.wake()
	done := make(chan struct{})
	go func() {
		w.sleep()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleep did not consume pending wake")
	}
}

func TestWakerCoalescing(t *testing.T) {
	var w waker
	w.init()

	// multiple wakes collapse into a single pending signal
	w.wake()
	w.wake()
	w.wake()
	w.sleep()

	slept := make(chan struct{})
	go func() {
		w.sleep()
		close(slept)
	}()
	select {
	case <-slept:
		t.Fatal("sleep consumed a wake that should have been coalesced")
	case <-time.After(10 * time.Millisecond):
	}

	// release the sleeper
	w.wake()
	select {
	case <-slept:
	case <-time.After(time.Second):
		t.Fatal("sleeper was not woken")
	}
}

func TestWakerConcurrentWakers(t *testing.T) {
	var w waker
	w.init()

	iterations := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		for {
			w.sleep()
			select {
			case iterations <- struct{}{}:
			case <-stop:
				return
			}
		}
	}()

	for i := 0; i < 10; i++ {
		go w.wake()
	}
	select {
	case <-iterations:
	case <-time.After(time.Second):
		t.Fatal("no iteration after wake")
	}
	close(stop)
	w.wake()
}
