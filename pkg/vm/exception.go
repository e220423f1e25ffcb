package vm

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
)

// JavaException carries a thrown object out of an instruction. The
// interpreter hands it to the Dispatcher.
type JavaException struct {
	Object *Object
}

func (e *JavaException) Error() string {
	return fmt.Sprintf("JavaException: %s", e.Object.ClassName())
}

// runtimeFault is an exception detected by the interpreter itself, raised
// through the factory.
type runtimeFault struct {
	Kind    ExceptionKind
	Message string
}

func (e *runtimeFault) Error() string {
	if e.Message == "" {
		return e.Kind.ClassName()
	}
	return e.Kind.ClassName() + ": " + e.Message
}

func fault(kind ExceptionKind, format string, args ...any) error {
	return &runtimeFault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ClassResolver is what dispatch needs from class loading and linking.
type ClassResolver interface {
	Hierarchy
	ResolveClass(name string) (*Class, error)
	ResolveConstantClassName(index uint16, cls *Class) (string, error)
}

// Dispatcher delivers exceptions to handlers on a thread's call stack.
type Dispatcher struct {
	Classes ClassResolver
	Heap    Allocator
	Layout  MessageLayout
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher using the well-known message layout.
func NewDispatcher(classes ClassResolver, heap Allocator, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Classes: classes,
		Heap:    heap,
		Layout:  WellKnownLayout,
		log:     log.With().Str("component", "dispatch").Logger(),
	}
}

// Throw delivers ref to the nearest handler on t's call stack.
//
// Frames are searched top down. In each frame the exception table is scanned
// in order and the first entry covering the frame's PC that is a catch-all,
// or whose catch type is ref's class or a superclass of it, wins: the frame's
// PC is set to the handler and the delivered object is returned. Frames
// without a match are popped. An exhausted stack yields a FatalError of kind
// UnhandledException.
//
// A nil ref raises a NullPointerException instead.
func (d *Dispatcher) Throw(t *Thread, ref *Object) (*Object, error) {
	if ref == nil {
		return d.CreateAndThrow(t, ExcNullPointer)
	}

	for frame := t.CurrentFrame(); frame != nil; frame = t.CurrentFrame() {
		handler, found, err := d.findHandler(frame, ref.Class)
		if err != nil {
			return nil, err
		}
		if found {
			d.log.Debug().
				Str("exception", ref.ClassName()).
				Stringer("frame", frame).
				Uint16("handler_pc", handler.HandlerPC).
				Msg("handler installed")
			frame.PC = int(handler.HandlerPC)
			return ref, nil
		}
		d.log.Debug().
			Str("exception", ref.ClassName()).
			Stringer("frame", frame).
			Msg("frame unwound")
		t.PopFrame()
	}

	msg, _ := d.Layout.Extract(ref)
	d.log.Error().
		Int("thread", t.ID).
		Str("exception", ref.ClassName()).
		Str("message", msg).
		Msg("no handler for exception")
	return nil, &FatalError{Kind: UnhandledException, ClassName: ref.ClassName(), Message: msg}
}

func (d *Dispatcher) findHandler(frame *Frame, thrown *Class) (classfile.ExceptionHandler, bool, error) {
	for _, h := range frame.ExceptionTable() {
		if !h.Covers(frame.PC) {
			continue
		}
		if h.IsCatchAll() {
			return h, true, nil
		}
		target, err := d.Classes.ResolveConstantClassName(h.CatchType, frame.Class)
		if err != nil {
			return h, false, &FatalError{
				Kind:      ClassResolutionFailure,
				ClassName: thrown.Name,
				CatchType: fmt.Sprintf("#%d in %s", h.CatchType, frame),
				Err:       err,
			}
		}
		if IsClassOrSubclass(d.Classes, thrown, target) {
			return h, true, nil
		}
	}
	return classfile.ExceptionHandler{}, false, nil
}
