package vm

import (
	"errors"
	"fmt"
)

// NewException resolves the class for kind and allocates an instance with
// every field at its default. No constructor runs, so the message is null.
func (d *Dispatcher) NewException(kind ExceptionKind) (*Object, error) {
	name := kind.ClassName()
	cls, err := d.Classes.ResolveClass(name)
	if err != nil {
		d.log.Error().Err(err).Str("exception", name).Msg("cannot resolve exception class")
		return nil, &FatalError{Kind: ClassResolutionFailure, ClassName: name, Err: err}
	}
	ref, err := d.Heap.Allocate(cls)
	if err != nil {
		d.log.Error().Err(err).Str("exception", name).Msg("cannot allocate exception")
		return nil, &FatalError{Kind: AllocationFailure, ClassName: name, Err: err}
	}
	return ref, nil
}

// NewExceptionWithMessage is NewException with the message slot set to a
// new String holding msg.
func (d *Dispatcher) NewExceptionWithMessage(kind ExceptionKind, msg string) (*Object, error) {
	ref, err := d.NewException(kind)
	if err != nil {
		return nil, err
	}
	str, err := NewString(d.Classes, d.Heap, d.Layout, msg)
	if err != nil {
		fatal := &FatalError{Kind: ClassResolutionFailure, ClassName: ref.ClassName(), Err: err}
		if errors.Is(err, ErrOutOfMemory) {
			fatal.Kind = AllocationFailure
		}
		return nil, fatal
	}
	if d.Layout.MessageSlot >= len(ref.Fields) {
		return nil, &FatalError{
			Kind:      ClassResolutionFailure,
			ClassName: ref.ClassName(),
			Err:       fmt.Errorf("no message slot %d: %w", d.Layout.MessageSlot, ErrLayoutMismatch),
		}
	}
	ref.Fields[d.Layout.MessageSlot] = RefValue(str)
	return ref, nil
}

// CreateAndThrow raises a fresh exception of kind on t.
func (d *Dispatcher) CreateAndThrow(t *Thread, kind ExceptionKind) (*Object, error) {
	ref, err := d.NewException(kind)
	if err != nil {
		return nil, err
	}
	return d.Throw(t, ref)
}

// CreateAndThrowMessage raises a fresh exception of kind carrying msg.
func (d *Dispatcher) CreateAndThrowMessage(t *Thread, kind ExceptionKind, msg string) (*Object, error) {
	ref, err := d.NewExceptionWithMessage(kind, msg)
	if err != nil {
		return nil, err
	}
	return d.Throw(t, ref)
}
