package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewException(t *testing.T) {
	env := newTestEnv(t, 0)
	d := env.vm.Dispatcher

	for _, kind := range ExceptionKinds() {
		if kind == ExcIncompatibleClassChange || kind == ExcFileNotFound {
			continue
		}
		t.Run(kind.String(), func(t *testing.T) {
			exc, err := d.NewException(kind)
			require.NoError(t, err)
			assert.Equal(t, kind.ClassName(), exc.ClassName())
			assert.True(t, exc.Field(d.Layout.MessageSlot).IsNull())
			assert.True(t, IsClassOrSubclass(env.vm.Classes, exc.Class, "java/lang/Throwable"))
		})
	}
}

func TestNewExceptionUnqualifiedNamesAreFatal(t *testing.T) {
	env := newTestEnv(t, 0)
	th := env.vm.NewThread()
	th.PushFrame(env.frame(t, "app/Main", 0, handler{start: 0, end: 4, target: 8}))

	for _, kind := range []ExceptionKind{ExcIncompatibleClassChange, ExcFileNotFound} {
		t.Run(kind.String(), func(t *testing.T) {
			_, err := env.vm.Dispatcher.CreateAndThrow(th, kind)
			var fatal *FatalError
			require.ErrorAs(t, err, &fatal)
			assert.Equal(t, ClassResolutionFailure, fatal.Kind)
			assert.Equal(t, kind.ClassName(), fatal.ClassName)
			assert.ErrorIs(t, err, ErrClassNotFound)
			assert.Equal(t, 1, th.Depth(), "no frame is popped when creation fails")
			assert.Zero(t, th.CurrentFrame().PC)
		})
	}
}

func TestNewExceptionAllocationFailure(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		env := newTestEnv(t, 1)
		_, err := env.vm.Heap.Allocate(env.instance(t, "java/lang/Object").Class)
		require.ErrorIs(t, err, ErrOutOfMemory)

		_, err = env.vm.Dispatcher.NewException(ExcArithmetic)
		var fatal *FatalError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, AllocationFailure, fatal.Kind)
		assert.ErrorIs(t, err, ErrOutOfMemory)
	})

	t.Run("message", func(t *testing.T) {
		// Room for the exception but not its char array.
		env := newTestEnv(t, 1)
		_, err := env.vm.Dispatcher.NewExceptionWithMessage(ExcArithmetic, "/ by zero")
		var fatal *FatalError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, AllocationFailure, fatal.Kind)
	})
}

func TestCreateAndThrowMessage(t *testing.T) {
	env := newTestEnv(t, 0)
	th := env.vm.NewThread()
	f := env.frame(t, "app/Main", 2, handler{start: 0, end: 4, target: 8, catch: "java/lang/IndexOutOfBoundsException"})
	th.PushFrame(f)

	exc, err := env.vm.Dispatcher.CreateAndThrowMessage(th, ExcArrayIndexOutOfBounds, "Index 5 out of bounds for length 2")
	require.NoError(t, err)
	assert.Equal(t, "java/lang/ArrayIndexOutOfBoundsException", exc.ClassName())
	assert.Equal(t, 8, f.PC)

	msg, ok := env.vm.Dispatcher.Layout.Extract(exc)
	require.True(t, ok)
	assert.Equal(t, "Index 5 out of bounds for length 2", msg)
}
