package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
	"github.com/daimatz/gojvm-throw/pkg/native"
)

// DefaultMaxFrameDepth is the default maximum number of nested method calls.
const DefaultMaxFrameDepth = 1024

// Config holds VM settings.
type Config struct {
	// ClassPath lists user class directories, separated by os.PathListSeparator.
	ClassPath string
	// MaxObjects bounds heap allocations; 0 means unbounded.
	MaxObjects int
	// MaxFrameDepth bounds call stack depth; 0 means DefaultMaxFrameDepth.
	MaxFrameDepth int
	Stdout        io.Writer
	Logger        zerolog.Logger
}

// DefaultConfig returns a Config writing to os.Stdout with logging disabled.
func DefaultConfig() Config {
	return Config{
		MaxFrameDepth: DefaultMaxFrameDepth,
		Stdout:        os.Stdout,
		Logger:        zerolog.Nop(),
	}
}

// VM is the virtual machine that executes Java bytecode.
type VM struct {
	Classes    *ClassArea
	Heap       *Heap
	Dispatcher *Dispatcher
	Stdout     io.Writer

	maxFrameDepth int
	threads       int
	systemOut     *Object
	printer       *native.PrintStream
	log           zerolog.Logger
}

// New creates a VM that loads user classes from cfg.ClassPath on top of the
// bootstrap library.
func New(cfg Config) (*VM, error) {
	return NewWithLoader(NewUserClassLoader(cfg.ClassPath, NewBootstrapClassLoader()), cfg)
}

// NewWithLoader creates a VM over an arbitrary class loader. The loader must
// define java/lang/Throwable and java/lang/String in the well-known layout.
func NewWithLoader(loader ClassLoader, cfg Config) (*VM, error) {
	if cfg.MaxFrameDepth <= 0 {
		cfg.MaxFrameDepth = DefaultMaxFrameDepth
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	classes := NewClassArea(loader, cfg.Logger)
	heap := NewHeap(cfg.MaxObjects)
	vm := &VM{
		Classes:       classes,
		Heap:          heap,
		Dispatcher:    NewDispatcher(classes, heap, cfg.Logger),
		Stdout:        cfg.Stdout,
		maxFrameDepth: cfg.MaxFrameDepth,
		printer:       &native.PrintStream{Writer: cfg.Stdout},
		log:           cfg.Logger.With().Str("component", "vm").Logger(),
	}

	throwable, err := classes.ResolveClass("java/lang/Throwable")
	if err != nil {
		return nil, fmt.Errorf("loading core classes: %w", err)
	}
	str, err := classes.ResolveClass("java/lang/String")
	if err != nil {
		return nil, fmt.Errorf("loading core classes: %w", err)
	}
	if err := ValidateMessageLayout(throwable, str, vm.Dispatcher.Layout); err != nil {
		return nil, fmt.Errorf("validating exception message layout: %w", err)
	}
	return vm, nil
}

// NewThread creates a thread with an empty call stack.
func (vm *VM) NewThread() *Thread {
	vm.threads++
	return NewThread(vm.threads)
}

// Execute finds and executes the main method of the class.
func (vm *VM) Execute(className string) error {
	cls, err := vm.Classes.ResolveClass(className)
	if err != nil {
		return fmt.Errorf("loading main class: %w", err)
	}
	_, method := cls.FindMethod("main", "([Ljava/lang/String;)V")
	if method == nil {
		return fmt.Errorf("main method not found")
	}
	if method.Code == nil {
		return fmt.Errorf("main method has no Code attribute")
	}

	// main(String[] args) — pass null for args
	_, err = vm.invokeOnNewThread(cls, method, []Value{NullValue()})
	return err
}

// InvokeStatic runs a static method to completion on a new thread and
// returns its result.
func (vm *VM) InvokeStatic(className, name, descriptor string, args ...Value) (Value, error) {
	cls, err := vm.Classes.ResolveClass(className)
	if err != nil {
		return Value{}, err
	}
	declaring, method := cls.FindMethod(name, descriptor)
	if method == nil || method.Code == nil || !method.IsStatic() {
		return Value{}, fmt.Errorf("%s.%s%s is not a static bytecode method", className, name, descriptor)
	}
	return vm.invokeOnNewThread(declaring, method, args)
}

func (vm *VM) invokeOnNewThread(cls *Class, method *classfile.MethodInfo, args []Value) (Value, error) {
	t := vm.NewThread()
	frame := NewFrame(cls, method)
	for i, arg := range args {
		frame.SetLocal(i, arg)
	}
	t.PushFrame(frame)
	return vm.Run(t)
}

// Run executes t until its call stack is empty and returns the value
// returned by the bottom frame. Exceptions are delivered through the
// Dispatcher; a *FatalError ends the run.
//
// While a call is in progress the caller's PC stays on the invoke
// instruction, so a callee's exception is matched against the caller's
// handlers by the invoke's own pc.
func (vm *VM) Run(t *Thread) (Value, error) {
	var result Value
	for t.Depth() > 0 {
		frame := t.CurrentFrame()
		if frame.PC >= len(frame.Code) {
			// Fell off the end of the method (implicit return for void methods)
			result = vm.returnFrom(t, frame, Value{})
			continue
		}

		start := frame.PC
		opcode := frame.ReadU8()
		retVal, hasReturn, err := vm.executeInstruction(t, frame, opcode)
		if err != nil {
			// Handlers are looked up by the faulting instruction's own pc.
			frame.PC = start
			if err := vm.raise(t, err); err != nil {
				return Value{}, err
			}
			continue
		}
		if t.CurrentFrame() != frame {
			frame.resumePC, frame.PC = frame.PC, start
			continue
		}
		if hasReturn {
			result = vm.returnFrom(t, frame, retVal)
		}
	}
	return result, nil
}

// returnFrom pops frame and resumes its caller after the invoke, pushing
// retVal for non-void methods. Without a caller retVal is the thread's
// result.
func (vm *VM) returnFrom(t *Thread, frame *Frame, retVal Value) Value {
	t.PopFrame()
	caller := t.CurrentFrame()
	if caller == nil {
		return retVal
	}
	caller.PC = caller.resumePC
	if !isVoidReturn(frame.Method.Descriptor) {
		caller.Push(retVal)
	}
	return Value{}
}

// raise hands an exception signalled by an instruction to the Dispatcher
// and sets up the handler frame: empty operand stack, exception on top.
// Errors that are not Java exceptions pass through unchanged.
func (vm *VM) raise(t *Thread, err error) error {
	var (
		jex       *JavaException
		rf        *runtimeFault
		delivered *Object
	)
	switch {
	case errors.As(err, &jex):
		delivered, err = vm.Dispatcher.Throw(t, jex.Object)
	case errors.As(err, &rf):
		vm.log.Debug().Str("exception", rf.Kind.ClassName()).Str("message", rf.Message).Msg("runtime fault")
		if rf.Message != "" {
			delivered, err = vm.Dispatcher.CreateAndThrowMessage(t, rf.Kind, rf.Message)
		} else {
			delivered, err = vm.Dispatcher.CreateAndThrow(t, rf.Kind)
		}
	default:
		return err
	}
	if err != nil {
		return err
	}

	handler := t.CurrentFrame()
	handler.ClearStack()
	handler.Push(RefValue(delivered))
	return nil
}

// invoke calls method on cls with args (receiver first for instance
// methods). Bytecode methods get a new frame; native methods run inline and
// push their result onto caller.
func (vm *VM) invoke(t *Thread, caller *Frame, cls *Class, method *classfile.MethodInfo, args []Value) error {
	if method.Code == nil {
		var this *Object
		if !method.IsStatic() && len(args) > 0 {
			this, args = args[0].Ref, args[1:]
		}
		ret, err := vm.invokeNative(cls, method, this, args)
		if err != nil {
			return err
		}
		if !isVoidReturn(method.Descriptor) {
			caller.Push(ret)
		}
		return nil
	}

	if t.Depth() >= vm.maxFrameDepth {
		return fmt.Errorf("stack overflow: frame depth exceeded %d", vm.maxFrameDepth)
	}
	frame := NewFrame(cls, method)
	for i, arg := range args {
		frame.SetLocal(i, arg)
	}
	t.PushFrame(frame)
	return nil
}

// countParams counts the number of parameters in a method descriptor.
func countParams(descriptor string) (int, error) {
	// Parse between ( and )
	start := strings.Index(descriptor, "(")
	end := strings.Index(descriptor, ")")
	if start == -1 || end == -1 {
		return 0, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}

	params := descriptor[start+1 : end]
	count := 0
	for i := 0; i < len(params); {
		for i < len(params) && params[i] == '[' {
			i++
		}
		if i >= len(params) {
			return 0, fmt.Errorf("invalid method descriptor: %s", descriptor)
		}
		switch params[i] {
		case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
			i++
		case 'L':
			semi := strings.IndexByte(params[i:], ';')
			if semi == -1 {
				return 0, fmt.Errorf("unterminated class type in %s", descriptor)
			}
			i += semi + 1
		default:
			return 0, fmt.Errorf("invalid type descriptor char '%c' in %s", params[i], descriptor)
		}
		count++
	}
	return count, nil
}

// isVoidReturn checks if a method descriptor has void return type.
func isVoidReturn(descriptor string) bool {
	return strings.HasSuffix(descriptor, ")V")
}
