package vm

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
)

// mapLoader serves in-memory class files on top of the bootstrap library.
type mapLoader struct {
	classes map[string]*classfile.ClassFile
	parent  ClassLoader
}

func (l *mapLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if cf, err := l.parent.LoadClass(name); err == nil {
		return cf, nil
	}
	if cf, ok := l.classes[name]; ok {
		return cf, nil
	}
	return nil, fmt.Errorf("test: %s: %w", name, ErrClassNotFound)
}

type testEnv struct {
	loader *mapLoader
	vm     *VM
	out    *bytes.Buffer
}

// newTestEnv creates a VM over in-memory classes. maxObjects 0 leaves the
// heap unbounded.
func newTestEnv(t *testing.T, maxObjects int, classes ...*classfile.Builder) *testEnv {
	t.Helper()
	env := &testEnv{
		loader: &mapLoader{classes: make(map[string]*classfile.ClassFile), parent: NewBootstrapClassLoader()},
		out:    &bytes.Buffer{},
	}
	for _, b := range classes {
		env.define(t, b)
	}
	cfg := DefaultConfig()
	cfg.MaxObjects = maxObjects
	cfg.Stdout = env.out
	cfg.Logger = zerolog.Nop()
	v, err := NewWithLoader(env.loader, cfg)
	require.NoError(t, err)
	env.vm = v
	return env
}

func (e *testEnv) define(t *testing.T, b *classfile.Builder) {
	t.Helper()
	cf := b.Build()
	name, err := cf.ClassName()
	require.NoError(t, err)
	e.loader.classes[name] = cf
}

// handler describes an exception table entry; an empty catch is a catch-all.
type handler struct {
	start, end, target uint16
	catch              string
}

// frame defines class with a single run()V method carrying handlers, links
// it and returns a frame of run positioned at pc.
func (e *testEnv) frame(t *testing.T, class string, pc int, handlers ...handler) *Frame {
	t.Helper()
	b := classfile.NewBuilder(class, "java/lang/Object")
	code := &classfile.CodeAttribute{MaxStack: 2, MaxLocals: 1, Code: make([]byte, 64)}
	for _, h := range handlers {
		catchType := uint16(classfile.CatchAll)
		if h.catch != "" {
			catchType = b.Class(h.catch)
		}
		code.ExceptionHandlers = append(code.ExceptionHandlers, classfile.ExceptionHandler{
			StartPC: h.start, EndPC: h.end, HandlerPC: h.target, CatchType: catchType,
		})
	}
	b.Method(classfile.AccPublic, "run", "()V", code)
	e.define(t, b)

	cls, err := e.vm.Classes.ResolveClass(class)
	require.NoError(t, err)
	_, method := cls.FindMethod("run", "()V")
	require.NotNil(t, method)
	f := NewFrame(cls, method)
	f.PC = pc
	return f
}

// instance allocates an object of the named class.
func (e *testEnv) instance(t *testing.T, class string) *Object {
	t.Helper()
	cls, err := e.vm.Classes.ResolveClass(class)
	require.NoError(t, err)
	obj, err := e.vm.Heap.Allocate(cls)
	require.NoError(t, err)
	return obj
}

func subclass(name, super string) *classfile.Builder {
	return classfile.NewBuilder(name, super)
}

// assemble lays out bytecode. int parts are single bytes (opcodes and u1
// operands), uint16 parts are big-endian u2 operands and int16 parts are
// branch offsets.
func assemble(parts ...any) []byte {
	var code []byte
	for _, p := range parts {
		switch v := p.(type) {
		case int:
			code = append(code, byte(v))
		case uint16:
			code = append(code, byte(v>>8), byte(v))
		case int16:
			code = append(code, byte(uint16(v)>>8), byte(v))
		default:
			panic(fmt.Sprintf("assemble: unsupported part %T", p))
		}
	}
	return code
}
