/*
Package element provides the execution core for pipelines of
independently-running processing stages.

# Concept

An Element is an autonomous stage of a pipeline: a decoder, a filter, a
sink. Every element owns exactly one worker goroutine for its whole
lifetime and moves through a fixed lifecycle:

	WaitingForExecute -> Initializing -> Executing -> Terminating -> WaitingForExecute

Execute starts the worker. The worker runs the stage's Initialize hook
once, then loops: while the element is playing it calls DoWork to perform
one unit of processing, then sleeps until woken. Terminate flushes the
element, cancels the stage context, wakes the worker and joins it.

# Stages

Element behaviour is provided by a Stage implementation. A stage performs
one unit of processing per DoWork call and must return promptly; blocking
calls inside DoWork should observe the provided context, which is
cancelled on Terminate. Optional capabilities are picked up when present:
Flusher for resource cleanup during flush and StateChanger for reacting to
play state changes.

# Waking

Wake is a level signal, not a counter. Any goroutine may call it any
number of times; calls made while the worker is already awake coalesce
into a single subsequent work iteration. The only guarantee is that at
least one more DoWork evaluation happens after Wake returns.

# Pins

Data moves between elements through pins. The core owns only the pin
collections and the flush discipline; the connect/push protocol lives in
the pin package. Pins added to an element are wired to its Wake, so buffer
arrival wakes a sleeping worker.

# Pipelines

Pipeline drives a set of elements as one unit: it executes all of them,
waits until every worker is running, toggles play state and terminates in
reverse order, aggregating errors.
*/
package element
