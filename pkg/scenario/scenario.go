// Package scenario drives the exception dispatcher from a declarative
// description of classes, a call stack and a throw, without bytecode.
package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
	"github.com/daimatz/gojvm-throw/pkg/vm"
)

// Scenario describes one dispatch.
type Scenario struct {
	// Classes declares user classes, typically exception subclasses.
	Classes []ClassSpec `yaml:"classes"`
	// Frames is the call stack, bottom (oldest) first.
	Frames []FrameSpec `yaml:"frames"`
	Throw  ThrowSpec   `yaml:"throw"`
	// MaxObjects bounds the heap; 0 means unbounded.
	MaxObjects int `yaml:"max_objects"`
}

// ClassSpec declares a class and its superclass (default java/lang/Object).
type ClassSpec struct {
	Name  string `yaml:"name"`
	Super string `yaml:"super"`
}

// FrameSpec is one activation. Method defaults to "run". A method that
// appears in several frames (recursion) is defined by its first frame.
type FrameSpec struct {
	Class    string        `yaml:"class"`
	Method   string        `yaml:"method"`
	PC       int           `yaml:"pc"`
	Handlers []HandlerSpec `yaml:"handlers"`
}

// HandlerSpec is an exception table entry. An empty Catch or "*" is a
// catch-all.
type HandlerSpec struct {
	Start   int    `yaml:"start"`
	End     int    `yaml:"end"`
	Handler int    `yaml:"handler"`
	Catch   string `yaml:"catch"`
}

// ThrowSpec selects what is thrown: exactly one of Class (a new instance of
// that class, as athrow would see it), Kind (a runtime fault, classified by
// substring) or NullRef. The key is null_ref because a bare null key
// decodes as the YAML null scalar.
type ThrowSpec struct {
	Class   string `yaml:"class"`
	Kind    string `yaml:"kind"`
	NullRef bool   `yaml:"null_ref"`
	Message string `yaml:"message"`
}

// Outcome reports where dispatch ended.
type Outcome struct {
	Exception string
	Message   string
	Handled   bool
	// Frame and HandlerPC identify the installed handler when Handled.
	Frame     string
	HandlerPC int
	// Unwound is the number of frames popped.
	Unwound int
	// Fatal is set when no handler could be installed.
	Fatal error
}

// Load reads a YAML scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a YAML scenario and validates it.
func Decode(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate reports every structural problem in s.
func (s *Scenario) Validate() error {
	var result *multierror.Error
	declared := make(map[string]bool)
	for i, c := range s.Classes {
		if c.Name == "" {
			result = multierror.Append(result, fmt.Errorf("classes[%d]: missing name", i))
		}
		if declared[c.Name] {
			result = multierror.Append(result, fmt.Errorf("classes[%d]: %s declared twice", i, c.Name))
		}
		declared[c.Name] = true
	}
	methods := make(map[string]int)
	for i, f := range s.Frames {
		key := f.Class + "." + methodName(f)
		if first, seen := methods[key]; seen && len(f.Handlers) > 0 {
			result = multierror.Append(result, fmt.Errorf("frames[%d]: handlers for %s belong on its first frame, frames[%d]", i, key, first))
		} else if !seen {
			methods[key] = i
		}
		if f.Class == "" {
			result = multierror.Append(result, fmt.Errorf("frames[%d]: missing class", i))
		}
		if f.PC < 0 {
			result = multierror.Append(result, fmt.Errorf("frames[%d]: negative pc %d", i, f.PC))
		}
		for j, h := range f.Handlers {
			if h.Start < 0 || h.End < h.Start || h.End > 0xFFFF {
				result = multierror.Append(result, fmt.Errorf("frames[%d].handlers[%d]: bad range [%d, %d)", i, j, h.Start, h.End))
			}
			if h.Handler < 0 || h.Handler > 0xFFFF {
				result = multierror.Append(result, fmt.Errorf("frames[%d].handlers[%d]: bad handler pc %d", i, j, h.Handler))
			}
		}
	}
	selected := 0
	for _, set := range []bool{s.Throw.Class != "", s.Throw.Kind != "", s.Throw.NullRef} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		result = multierror.Append(result, errors.New("throw: set exactly one of class, kind, null_ref"))
	}
	return result.ErrorOrNil()
}

// Run builds the classes and call stack of s, performs the throw and
// reports the outcome. A fatal dispatch result is reported in
// Outcome.Fatal; the returned error covers setup failures only.
func Run(s *Scenario, log zerolog.Logger) (*Outcome, error) {
	loader, err := newLoader(s)
	if err != nil {
		return nil, err
	}
	cfg := vm.DefaultConfig()
	cfg.MaxObjects = s.MaxObjects
	cfg.Stdout = io.Discard
	cfg.Logger = log
	machine, err := vm.NewWithLoader(loader, cfg)
	if err != nil {
		return nil, err
	}

	t := machine.NewThread()
	for i, fs := range s.Frames {
		cls, err := machine.Classes.ResolveClass(fs.Class)
		if err != nil {
			return nil, fmt.Errorf("frames[%d]: %w", i, err)
		}
		_, method := cls.FindMethod(methodName(fs), "()V")
		if method == nil {
			return nil, fmt.Errorf("frames[%d]: %s.%s is not defined by the scenario", i, fs.Class, methodName(fs))
		}
		frame := vm.NewFrame(cls, method)
		frame.PC = fs.PC
		t.PushFrame(frame)
	}

	depth := t.Depth()
	delivered, err := throw(machine, t, s.Throw)
	out := &Outcome{Unwound: depth - t.Depth()}
	if err != nil {
		var fatal *vm.FatalError
		if !errors.As(err, &fatal) {
			return nil, err
		}
		out.Fatal = fatal
		out.Exception = fatal.ClassName
		out.Message = fatal.Message
		return out, nil
	}

	top := t.CurrentFrame()
	out.Handled = true
	out.Exception = delivered.ClassName()
	out.Message, _ = machine.Dispatcher.Layout.Extract(delivered)
	out.Frame = top.Class.Name + "." + top.Method.Name
	out.HandlerPC = top.PC
	return out, nil
}

func throw(machine *vm.VM, t *vm.Thread, ts ThrowSpec) (*vm.Object, error) {
	d := machine.Dispatcher
	switch {
	case ts.NullRef:
		return d.Throw(t, nil)
	case ts.Kind != "":
		kind, ok := vm.ClassifyException(ts.Kind)
		if !ok {
			return nil, fmt.Errorf("throw: %q matches no exception kind", ts.Kind)
		}
		if ts.Message != "" {
			return d.CreateAndThrowMessage(t, kind, ts.Message)
		}
		return d.CreateAndThrow(t, kind)
	}

	cls, err := machine.Classes.ResolveClass(ts.Class)
	if err != nil {
		return nil, fmt.Errorf("throw: %w", err)
	}
	obj, err := machine.Heap.Allocate(cls)
	if err != nil {
		return nil, fmt.Errorf("throw: %w", err)
	}
	if ts.Message != "" {
		str, err := vm.NewString(machine.Classes, machine.Heap, d.Layout, ts.Message)
		if err != nil {
			return nil, fmt.Errorf("throw: %w", err)
		}
		if d.Layout.MessageSlot >= len(obj.Fields) {
			return nil, fmt.Errorf("throw: %s has no message slot", ts.Class)
		}
		obj.Fields[d.Layout.MessageSlot] = vm.RefValue(str)
	}
	return d.Throw(t, obj)
}

func methodName(fs FrameSpec) string {
	if fs.Method == "" {
		return "run"
	}
	return fs.Method
}

// loader defines the scenario's classes on top of the bootstrap library.
type loader struct {
	classes map[string]*classfile.ClassFile
	parent  vm.ClassLoader
}

func newLoader(s *Scenario) (*loader, error) {
	bootstrap := vm.NewBootstrapClassLoader()
	builders := make(map[string]*classfile.Builder)
	builder := func(name string) (*classfile.Builder, error) {
		if b, ok := builders[name]; ok {
			return b, nil
		}
		if _, err := bootstrap.LoadClass(name); err == nil {
			return nil, fmt.Errorf("%s is a core class and cannot be redefined", name)
		}
		super := "java/lang/Object"
		for _, c := range s.Classes {
			if c.Name == name && c.Super != "" {
				super = c.Super
			}
		}
		b := classfile.NewBuilder(name, super)
		builders[name] = b
		return b, nil
	}

	for _, c := range s.Classes {
		if _, err := builder(c.Name); err != nil {
			return nil, err
		}
	}
	defined := make(map[string]bool)
	for i, fs := range s.Frames {
		b, err := builder(fs.Class)
		if err != nil {
			return nil, fmt.Errorf("frames[%d]: %w", i, err)
		}
		key := fs.Class + "." + methodName(fs)
		if defined[key] {
			continue
		}
		defined[key] = true
		codeLen := fs.PC + 1
		code := &classfile.CodeAttribute{MaxStack: 1, MaxLocals: 1}
		for _, h := range fs.Handlers {
			catchType := uint16(classfile.CatchAll)
			if h.Catch != "" && h.Catch != "*" {
				catchType = b.Class(h.Catch)
			}
			code.ExceptionHandlers = append(code.ExceptionHandlers, classfile.ExceptionHandler{
				StartPC:   uint16(h.Start),
				EndPC:     uint16(h.End),
				HandlerPC: uint16(h.Handler),
				CatchType: catchType,
			})
			codeLen = max(codeLen, h.End, h.Handler+1)
		}
		code.Code = make([]byte, codeLen) // nops
		b.Method(classfile.AccPublic, methodName(fs), "()V", code)
	}

	l := &loader{classes: make(map[string]*classfile.ClassFile), parent: bootstrap}
	for name, b := range builders {
		l.classes[name] = b.Build()
	}
	return l, nil
}

func (l *loader) LoadClass(name string) (*classfile.ClassFile, error) {
	if cf, err := l.parent.LoadClass(name); err == nil {
		return cf, nil
	}
	if cf, ok := l.classes[name]; ok {
		return cf, nil
	}
	return nil, fmt.Errorf("scenario: %s: %w", name, vm.ErrClassNotFound)
}
