package vm

import (
	"fmt"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
)

// ValueType represents the type of a Value on the stack or in local variables.
type ValueType int

const (
	TypeInt ValueType = iota
	TypeRef
	TypeNull
)

// Value represents a value on the operand stack or in local variables.
type Value struct {
	Type ValueType
	Int  int32
	Ref  *Object
}

// IntValue creates an integer Value.
func IntValue(v int32) Value {
	return Value{Type: TypeInt, Int: v}
}

// RefValue creates a reference Value. A nil object yields the null value.
func RefValue(ref *Object) Value {
	if ref == nil {
		return NullValue()
	}
	return Value{Type: TypeRef, Ref: ref}
}

// NullValue creates a null reference Value.
func NullValue() Value {
	return Value{Type: TypeNull}
}

// IsNull reports whether v is a null reference.
func (v Value) IsNull() bool {
	return v.Type == TypeNull || (v.Type == TypeRef && v.Ref == nil)
}

// Frame is one method activation on a Thread's call stack.
type Frame struct {
	LocalVars    []Value
	OperandStack []Value
	SP           int
	PC           int
	Code         []byte
	Method       *classfile.MethodInfo
	Class        *Class

	// resumePC is where execution continues after a pending call returns.
	resumePC int
}

// NewFrame creates a frame for method defined by class. A method without a
// Code attribute gets an empty frame.
func NewFrame(class *Class, method *classfile.MethodInfo) *Frame {
	f := &Frame{Method: method, Class: class}
	if method != nil && method.Code != nil {
		f.LocalVars = make([]Value, method.Code.MaxLocals)
		f.OperandStack = make([]Value, method.Code.MaxStack)
		f.Code = method.Code.Code
	}
	return f
}

// ExceptionTable returns the handlers of the frame's method in table order.
func (f *Frame) ExceptionTable() []classfile.ExceptionHandler {
	return f.Method.ExceptionTable()
}

func (f *Frame) String() string {
	cls, method := "?", "?"
	if f.Class != nil {
		cls = f.Class.Name
	}
	if f.Method != nil {
		method = f.Method.Name + f.Method.Descriptor
	}
	return fmt.Sprintf("%s.%s@%d", cls, method, f.PC)
}

// Push pushes a value onto the operand stack.
func (f *Frame) Push(v Value) {
	if f.SP >= len(f.OperandStack) {
		panic(fmt.Sprintf("operand stack overflow: SP=%d, max=%d", f.SP, len(f.OperandStack)))
	}
	f.OperandStack[f.SP] = v
	f.SP++
}

// Pop pops a value from the operand stack.
func (f *Frame) Pop() Value {
	if f.SP <= 0 {
		panic("operand stack underflow: SP=0")
	}
	f.SP--
	return f.OperandStack[f.SP]
}

// Peek returns the value n slots below the top without popping it.
func (f *Frame) Peek(n int) Value {
	if f.SP-1-n < 0 {
		panic(fmt.Sprintf("operand stack underflow: peek %d with SP=%d", n, f.SP))
	}
	return f.OperandStack[f.SP-1-n]
}

// ClearStack empties the operand stack, as on entry to an exception handler.
func (f *Frame) ClearStack() {
	clear(f.OperandStack[:f.SP])
	f.SP = 0
}

// GetLocal returns the value at the given local variable index.
func (f *Frame) GetLocal(index int) Value {
	if index < 0 || index >= len(f.LocalVars) {
		panic(fmt.Sprintf("local variable index out of range: index=%d, max=%d", index, len(f.LocalVars)))
	}
	return f.LocalVars[index]
}

// SetLocal sets the value at the given local variable index.
func (f *Frame) SetLocal(index int, v Value) {
	if index < 0 || index >= len(f.LocalVars) {
		panic(fmt.Sprintf("local variable index out of range: index=%d, max=%d", index, len(f.LocalVars)))
	}
	f.LocalVars[index] = v
}

// ReadU8 reads a uint8 operand and advances PC.
func (f *Frame) ReadU8() uint8 {
	val := f.Code[f.PC]
	f.PC++
	return val
}

// ReadI8 reads an int8 operand and advances PC.
func (f *Frame) ReadI8() int8 {
	return int8(f.ReadU8())
}

// ReadU16 reads a uint16 operand (big-endian) and advances PC by 2.
func (f *Frame) ReadU16() uint16 {
	val := uint16(f.Code[f.PC])<<8 | uint16(f.Code[f.PC+1])
	f.PC += 2
	return val
}

// ReadI16 reads an int16 operand (big-endian) and advances PC by 2.
func (f *Frame) ReadI16() int16 {
	return int16(f.ReadU16())
}
