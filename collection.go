package element

import "fmt"

type (
	// Pins is an insertion-ordered collection of pins of one direction,
	// owned exclusively by its element. Pins are added during element
	// construction; indices are stable until clear.
	Pins[P Pin] struct {
		pins []P
	}

	// InPins is a collection of input pins.
	InPins = Pins[InPin]

	// OutPins is a collection of output pins.
	OutPins = Pins[OutPin]
)

func (c *Pins[P]) add(pin P) {
	c.pins = append(c.pins, pin)
}

func (c *Pins[P]) clear() {
	c.pins = nil
}

// Count returns the number of pins in the collection.
func (c *Pins[P]) Count() int {
	return len(c.pins)
}

// Item returns the pin added at position index. Index outside of
// [0, Count) fails with ErrOutOfRange.
func (c *Pins[P]) Item(index int) (P, error) {
	var zero P
	if index < 0 || index >= len(c.pins) {
		return zero, fmt.Errorf("pin %d of %d: %w", index, len(c.pins), ErrOutOfRange)
	}
	return c.pins[index], nil
}

// Flush flushes every pin in insertion order. A failing pin does not stop
// the remaining pins from being flushed: all errors are collected and
// returned together.
func (c *Pins[P]) Flush() error {
	var errs execErrors
	for _, pin := range c.pins {
		if err := pin.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush pin %v: %w", pin.Name(), err))
		}
	}
	return errs.ret()
}
