package element

import "fmt"

// Pipeline drives a set of elements as one unit. Elements self-initialize
// independently, so execution order carries no meaning; termination runs
// in reverse order so that downstream elements outlive their upstream.
//
// Pipeline does not serialize concurrent calls to its own methods: it is
// a controller owned by a single goroutine.
type Pipeline struct {
	elements []*Element
}

// NewPipeline creates a pipeline of provided elements.
func NewPipeline(elements ...*Element) *Pipeline {
	return &Pipeline{elements: elements}
}

// Add appends elements to the pipeline. Must not be called after Execute.
func (p *Pipeline) Add(elements ...*Element) {
	p.elements = append(p.elements, elements...)
}

// Elements returns the pipeline's elements in execution order.
func (p *Pipeline) Elements() []*Element {
	return p.elements
}

// Execute starts every element and waits until all workers reached the
// work loop. If any element fails to start or initialize, successfully
// started elements are terminated before the error is returned.
func (p *Pipeline) Execute() error {
	for i, e := range p.elements {
		if err := e.Execute(); err != nil {
			return p.abort(i, fmt.Errorf("error executing elements: %w", err))
		}
	}
	for _, e := range p.elements {
		if err := e.waitExecuting(); err != nil {
			return p.abort(len(p.elements), fmt.Errorf("error executing elements: %w", err))
		}
	}
	return nil
}

// abort tears down the first started elements after a failed start.
func (p *Pipeline) abort(started int, cause error) error {
	var errs execErrors
	for i := started - 1; i >= 0; i-- {
		e := p.elements[i]
		if e.waitExecuting() != nil {
			// failed on its own, nothing to terminate
			continue
		}
		if err := e.Terminate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errs.ret(); err != nil {
		return fmt.Errorf("error terminating elements: %w during start error: %v", err, cause)
	}
	return cause
}

// Play starts data flow: every element's play state is set to Play.
func (p *Pipeline) Play() {
	for _, e := range p.elements {
		e.SetState(Play)
	}
}

// Pause halts data flow without tearing elements down.
func (p *Pipeline) Pause() {
	for _, e := range p.elements {
		e.SetState(Pause)
	}
}

// WaitFor blocks until every element published the given state.
func (p *Pipeline) WaitFor(state ExecutionState) {
	for _, e := range p.elements {
		e.WaitForExecutionState(state)
	}
}

// Terminate tears all elements down in reverse order, collecting errors
// without stopping on the first failure.
func (p *Pipeline) Terminate() error {
	var errs execErrors
	for i := len(p.elements) - 1; i >= 0; i-- {
		if err := p.elements[i].Terminate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.ret()
}
