package vm

import "fmt"

// FatalKind classifies conditions the runtime cannot recover from.
type FatalKind int

const (
	// ClassResolutionFailure: an exception class or a catch type could not
	// be resolved.
	ClassResolutionFailure FatalKind = iota + 1
	// AllocationFailure: no memory for a new exception object.
	AllocationFailure
	// UnhandledException: the call stack ran out without a handler.
	UnhandledException
)

func (k FatalKind) String() string {
	switch k {
	case ClassResolutionFailure:
		return "class resolution failure"
	case AllocationFailure:
		return "allocation failure"
	case UnhandledException:
		return "unhandled exception"
	}
	return fmt.Sprintf("FatalKind(%d)", int(k))
}

// FatalError is returned when an exception cannot be raised or delivered.
// The VM stops; the process driver reports Error() and exits non-zero.
type FatalError struct {
	Kind FatalKind
	// ClassName is the exception class involved.
	ClassName string
	// CatchType names the exception table entry whose catch type could not
	// be resolved, as "#index in frame". Empty when the exception class
	// itself failed.
	CatchType string
	// Message is the thrown object's detail message, if it had one.
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	switch e.Kind {
	case UnhandledException:
		if e.Message != "" {
			return fmt.Sprintf("No handler for exception %s: %s", e.ClassName, e.Message)
		}
		return fmt.Sprintf("No handler for exception %s!", e.ClassName)
	case AllocationFailure:
		return fmt.Sprintf("OOM when creating exception %s: %v", e.ClassName, e.Err)
	default:
		if e.CatchType != "" {
			return fmt.Sprintf("cannot resolve catch type %s while dispatching %s: %v", e.CatchType, e.ClassName, e.Err)
		}
		return fmt.Sprintf("cannot resolve exception class %s: %v", e.ClassName, e.Err)
	}
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
