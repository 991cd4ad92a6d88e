package element

// Pin is a named data endpoint of an element. Concrete pin types own the
// connect/push protocol; the core only requires flushing.
type Pin interface {
	Name() string
	// Flush discards buffered in-flight data. Must be idempotent.
	Flush() error
}

// InPin is a pin which receives buffers from an upstream element.
type InPin interface {
	Pin
}

// OutPin is a pin which pushes buffers to a downstream element.
type OutPin interface {
	Pin
}

// notifier is implemented by pins that can report buffer availability.
// Such pins are wired to the owning element's Wake when added.
type notifier interface {
	SetNotify(func())
}
