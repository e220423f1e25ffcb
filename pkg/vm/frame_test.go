package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
)

func newBareFrame(maxLocals, maxStack uint16, code []byte) *Frame {
	return NewFrame(nil, &classfile.MethodInfo{
		Name:       "test",
		Descriptor: "()V",
		Code:       &classfile.CodeAttribute{MaxLocals: maxLocals, MaxStack: maxStack, Code: code},
	})
}

func TestFramePushPop(t *testing.T) {
	f := newBareFrame(0, 3, nil)

	f.Push(IntValue(1))
	f.Push(IntValue(2))
	f.Push(NullValue())
	assert.Equal(t, 3, f.SP)
	assert.True(t, f.Peek(0).IsNull())
	assert.Equal(t, int32(2), f.Peek(1).Int)

	assert.True(t, f.Pop().IsNull())
	assert.Equal(t, int32(2), f.Pop().Int)
	assert.Equal(t, int32(1), f.Pop().Int)
	assert.Zero(t, f.SP)

	assert.Panics(t, func() { f.Pop() })
	f.Push(IntValue(1))
	f.Push(IntValue(1))
	f.Push(IntValue(1))
	assert.Panics(t, func() { f.Push(IntValue(1)) })
}

func TestFrameClearStack(t *testing.T) {
	f := newBareFrame(0, 2, nil)
	f.Push(IntValue(7))
	f.Push(IntValue(8))

	f.ClearStack()
	assert.Zero(t, f.SP)
	f.Push(NullValue())
	assert.Equal(t, 1, f.SP)
}

func TestFrameLocals(t *testing.T) {
	f := newBareFrame(2, 0, nil)
	f.SetLocal(0, IntValue(42))
	f.SetLocal(1, IntValue(-1))
	assert.Equal(t, int32(42), f.GetLocal(0).Int)
	assert.Equal(t, int32(-1), f.GetLocal(1).Int)
	assert.Panics(t, func() { f.GetLocal(2) })
	assert.Panics(t, func() { f.SetLocal(-1, IntValue(0)) })
}

func TestFrameOperands(t *testing.T) {
	f := newBareFrame(0, 0, []byte{0xFF, 0x12, 0x34, 0xFF, 0xFE})
	assert.Equal(t, int8(-1), f.ReadI8())
	assert.Equal(t, uint16(0x1234), f.ReadU16())
	assert.Equal(t, int16(-2), f.ReadI16())
	assert.Equal(t, 5, f.PC)
}

func TestFrameString(t *testing.T) {
	f := newBareFrame(0, 0, nil)
	f.PC = 4
	assert.Equal(t, "?.test()V@4", f.String())
	assert.Empty(t, f.ExceptionTable())
}

func TestRefValue(t *testing.T) {
	assert.True(t, RefValue(nil).IsNull())
	assert.False(t, RefValue(&Object{}).IsNull())
	assert.False(t, IntValue(0).IsNull())
}

func TestThreadFrames(t *testing.T) {
	th := NewThread(7)
	assert.Equal(t, 7, th.ID)
	assert.Nil(t, th.CurrentFrame())
	assert.Nil(t, th.PopFrame())

	a, b := newBareFrame(0, 0, nil), newBareFrame(0, 0, nil)
	th.PushFrame(a)
	th.PushFrame(b)
	require.Equal(t, 2, th.Depth())
	assert.Same(t, b, th.CurrentFrame())

	assert.Same(t, b, th.PopFrame())
	assert.Same(t, a, th.CurrentFrame())
	assert.Same(t, a, th.PopFrame())
	assert.Zero(t, th.Depth())
}

func TestObjectFields(t *testing.T) {
	obj := &Object{Fields: []Value{IntValue(3)}}
	assert.Equal(t, int32(3), obj.Field(0).Int)
	assert.True(t, obj.Field(1).IsNull())
	assert.True(t, obj.Field(-1).IsNull())

	var null *Object
	assert.True(t, null.Field(0).IsNull())
	assert.Empty(t, null.ClassName())
}
