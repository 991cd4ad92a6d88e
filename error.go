package element

import (
	"errors"
	"strings"
	"sync"
)

var (
	// ErrInvalidState is returned if element method cannot be executed at this moment.
	ErrInvalidState = errors.New("invalid state")
	// ErrOutOfRange is returned on pin collection access with an invalid index.
	ErrOutOfRange = errors.New("pin index out of range")
	// ErrSingleUseReused is returned when single-use stage is used more than once.
	ErrSingleUseReused = errors.New("single use stage is reused")
)

// execErrors wraps errors that might occure when multiple pins or elements
// are failing.
type execErrors []error

func (e execErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// ret returns untyped nil if error list is empty.
func (e execErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}

// SingleUse is designed to be used in stages to ensure that the stage is
// initialized only once.
func SingleUse(once *sync.Once) error {
	err := ErrSingleUseReused
	once.Do(func() {
		err = nil
	})
	return err
}
