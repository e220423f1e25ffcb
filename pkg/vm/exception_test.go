package vm

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrowCatchAllInCurrentFrame(t *testing.T) {
	env := newTestEnv(t, 0)
	th := env.vm.NewThread()
	f := env.frame(t, "app/Main", 3, handler{start: 0, end: 10, target: 20})
	th.PushFrame(f)

	exc := env.instance(t, "java/lang/RuntimeException")
	got, err := env.vm.Dispatcher.Throw(th, exc)
	require.NoError(t, err)

	assert.Same(t, exc, got)
	assert.Equal(t, 1, th.Depth())
	assert.Same(t, f, th.CurrentFrame())
	assert.Equal(t, 20, f.PC)
}

func TestThrowUnwindsToOuterHandler(t *testing.T) {
	env := newTestEnv(t, 0)
	th := env.vm.NewThread()
	outer := env.frame(t, "app/Outer", 5, handler{start: 0, end: 10, target: 30, catch: "java/lang/RuntimeException"})
	middle := env.frame(t, "app/Middle", 2)
	inner := env.frame(t, "app/Inner", 7, handler{start: 0, end: 10, target: 40, catch: "java/io/IOException"})
	th.PushFrame(outer)
	th.PushFrame(middle)
	th.PushFrame(inner)

	_, err := env.vm.Dispatcher.Throw(th, env.instance(t, "java/lang/ArithmeticException"))
	require.NoError(t, err)

	assert.Equal(t, 1, th.Depth())
	assert.Same(t, outer, th.CurrentFrame())
	assert.Equal(t, 30, outer.PC)
}

func TestThrowFirstMatchingEntryWins(t *testing.T) {
	env := newTestEnv(t, 0)
	th := env.vm.NewThread()
	// Entry 0 misses the pc, entry 1 the type; entry 2 is the first match.
	f := env.frame(t, "app/Main", 4,
		handler{start: 0, end: 3, target: 10},
		handler{start: 0, end: 8, target: 20, catch: "java/io/IOException"},
		handler{start: 2, end: 8, target: 30, catch: "java/lang/Exception"},
		handler{start: 0, end: 8, target: 40, catch: "java/lang/ArithmeticException"},
		handler{start: 0, end: 8, target: 50},
	)
	th.PushFrame(f)

	_, err := env.vm.Dispatcher.Throw(th, env.instance(t, "java/lang/ArithmeticException"))
	require.NoError(t, err)
	assert.Equal(t, 30, f.PC)
}

func TestThrowRangeIsHalfOpen(t *testing.T) {
	tests := []struct {
		name    string
		pc      int
		handled bool
	}{
		{"before start", 3, false},
		{"at start", 4, true},
		{"inside", 6, true},
		{"last covered", 7, true},
		{"at end", 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 0)
			th := env.vm.NewThread()
			th.PushFrame(env.frame(t, "app/Main", tt.pc, handler{start: 4, end: 8, target: 12}))

			_, err := env.vm.Dispatcher.Throw(th, env.instance(t, "java/lang/RuntimeException"))
			if tt.handled {
				require.NoError(t, err)
				assert.Equal(t, 12, th.CurrentFrame().PC)
				return
			}
			var fatal *FatalError
			require.ErrorAs(t, err, &fatal)
			assert.Equal(t, UnhandledException, fatal.Kind)
			assert.Zero(t, th.Depth())
		})
	}
}

func TestThrowMatchesUserSubclass(t *testing.T) {
	env := newTestEnv(t, 0,
		subclass("app/AppError", "java/lang/RuntimeException"),
		subclass("app/DiskError", "app/AppError"),
	)
	th := env.vm.NewThread()
	f := env.frame(t, "app/Main", 1, handler{start: 0, end: 5, target: 9, catch: "app/AppError"})
	th.PushFrame(f)

	_, err := env.vm.Dispatcher.Throw(th, env.instance(t, "app/DiskError"))
	require.NoError(t, err)
	assert.Equal(t, 9, f.PC)
}

func TestThrowNullRaisesNullPointerException(t *testing.T) {
	env := newTestEnv(t, 0)
	th := env.vm.NewThread()
	th.PushFrame(env.frame(t, "app/Main", 0, handler{start: 0, end: 4, target: 8, catch: "java/lang/NullPointerException"}))

	got, err := env.vm.Dispatcher.Throw(th, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "java/lang/NullPointerException", got.ClassName())
	assert.Equal(t, 8, th.CurrentFrame().PC)

	_, ok := env.vm.Dispatcher.Layout.Extract(got)
	assert.False(t, ok, "factory-made exceptions carry no message")
}

func TestThrowUnhandled(t *testing.T) {
	t.Run("empty stack", func(t *testing.T) {
		env := newTestEnv(t, 0)
		th := env.vm.NewThread()

		_, err := env.vm.Dispatcher.Throw(th, env.instance(t, "java/lang/IllegalArgumentException"))
		var fatal *FatalError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, UnhandledException, fatal.Kind)
		assert.Equal(t, "java/lang/IllegalArgumentException", fatal.ClassName)
		assert.Equal(t, "No handler for exception java/lang/IllegalArgumentException!", err.Error())
	})

	t.Run("with message", func(t *testing.T) {
		env := newTestEnv(t, 0)
		th := env.vm.NewThread()
		th.PushFrame(env.frame(t, "app/Main", 0, handler{start: 0, end: 4, target: 8, catch: "java/io/IOException"}))

		exc, err := env.vm.Dispatcher.NewExceptionWithMessage(ExcArithmetic, "/ by zero")
		require.NoError(t, err)
		_, err = env.vm.Dispatcher.Throw(th, exc)

		var fatal *FatalError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, "/ by zero", fatal.Message)
		assert.Equal(t, "No handler for exception java/lang/ArithmeticException: / by zero", err.Error())
		assert.Zero(t, th.Depth())
	})
}

func TestThrowComparesCatchTypesByName(t *testing.T) {
	env := newTestEnv(t, 0)
	th := env.vm.NewThread()
	f := env.frame(t, "app/Main", 2,
		handler{start: 0, end: 4, target: 8, catch: "app/NeverLoaded"},
		handler{start: 0, end: 4, target: 9},
	)
	th.PushFrame(f)
	exc := env.instance(t, "java/lang/RuntimeException")
	loaded := env.vm.Classes.Loaded()

	_, err := env.vm.Dispatcher.Throw(th, exc)
	require.NoError(t, err)
	assert.Equal(t, 9, f.PC)
	assert.Equal(t, loaded, env.vm.Classes.Loaded(), "catch types are not loaded")
}

func TestThrowBadCatchTypeIndex(t *testing.T) {
	env := newTestEnv(t, 0)
	th := env.vm.NewThread()
	f := env.frame(t, "app/Main", 0, handler{start: 0, end: 4, target: 8, catch: "java/lang/Exception"})
	f.Method.Code.ExceptionHandlers[0].CatchType = 999
	th.PushFrame(f)

	_, err := env.vm.Dispatcher.Throw(th, env.instance(t, "java/lang/RuntimeException"))
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, ClassResolutionFailure, fatal.Kind)
	assert.Equal(t, "#999 in app/Main.run()V@0", fatal.CatchType)
	assert.True(t, strings.HasPrefix(err.Error(),
		"cannot resolve catch type #999 in app/Main.run()V@0 while dispatching java/lang/RuntimeException: "), err.Error())
	assert.Equal(t, 1, th.Depth(), "the frame is kept when dispatch fails")
}

func TestFatalErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&FatalError{Kind: AllocationFailure, ClassName: "java/lang/OutOfMemoryError", Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "OOM when creating exception java/lang/OutOfMemoryError: boom", err.Error())
	assert.Equal(t, "allocation failure", AllocationFailure.String())
}
