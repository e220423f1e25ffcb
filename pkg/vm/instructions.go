package vm

import (
	"errors"
	"fmt"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
)

// Opcodes
const (
	OpNop           = 0x00
	OpAconstNull    = 0x01
	OpIconstM1      = 0x02
	OpIconst0       = 0x03
	OpIconst5       = 0x08
	OpBipush        = 0x10
	OpSipush        = 0x11
	OpLdc           = 0x12
	OpLdcW          = 0x13
	OpIload         = 0x15
	OpAload         = 0x19
	OpIload0        = 0x1A
	OpIload3        = 0x1D
	OpAload0        = 0x2A
	OpAload3        = 0x2D
	OpIaload        = 0x2E
	OpAaload        = 0x32
	OpCaload        = 0x34
	OpIstore        = 0x36
	OpAstore        = 0x3A
	OpIstore0       = 0x3B
	OpIstore3       = 0x3E
	OpAstore0       = 0x4B
	OpAstore3       = 0x4E
	OpIastore       = 0x4F
	OpAastore       = 0x53
	OpCastore       = 0x55
	OpPop           = 0x57
	OpDup           = 0x59
	OpSwap          = 0x5F
	OpIadd          = 0x60
	OpIsub          = 0x64
	OpImul          = 0x68
	OpIdiv          = 0x6C
	OpIrem          = 0x70
	OpIneg          = 0x74
	OpIinc          = 0x84
	OpIfeq          = 0x99
	OpIfne          = 0x9A
	OpIflt          = 0x9B
	OpIfge          = 0x9C
	OpIfgt          = 0x9D
	OpIfle          = 0x9E
	OpIfIcmpeq      = 0x9F
	OpIfIcmpne      = 0xA0
	OpIfIcmplt      = 0xA1
	OpIfIcmpge      = 0xA2
	OpIfIcmpgt      = 0xA3
	OpIfIcmple      = 0xA4
	OpIfAcmpeq      = 0xA5
	OpIfAcmpne      = 0xA6
	OpGoto          = 0xA7
	OpIreturn       = 0xAC
	OpAreturn       = 0xB0
	OpReturn        = 0xB1
	OpGetstatic     = 0xB2
	OpGetfield      = 0xB4
	OpPutfield      = 0xB5
	OpInvokevirtual = 0xB6
	OpInvokespecial = 0xB7
	OpInvokestatic  = 0xB8
	OpNew           = 0xBB
	OpNewarray      = 0xBC
	OpAnewarray     = 0xBD
	OpArraylength   = 0xBE
	OpAthrow        = 0xBF
	OpIfnull        = 0xC6
	OpIfnonnull     = 0xC7
)

// newarray element types
const (
	TChar = 5
	TInt  = 10
)

// executeInstruction executes one instruction whose opcode has already been
// read. It reports a method return through the bool result; exceptions come
// back as *JavaException or runtime fault errors.
func (vm *VM) executeInstruction(t *Thread, frame *Frame, opcode byte) (Value, bool, error) {
	switch {
	case opcode >= OpIconstM1 && opcode <= OpIconst5:
		frame.Push(IntValue(int32(opcode) - OpIconst0))
		return Value{}, false, nil
	case opcode >= OpIload0 && opcode <= OpIload3:
		frame.Push(frame.GetLocal(int(opcode - OpIload0)))
		return Value{}, false, nil
	case opcode >= OpAload0 && opcode <= OpAload3:
		frame.Push(frame.GetLocal(int(opcode - OpAload0)))
		return Value{}, false, nil
	case opcode >= OpIstore0 && opcode <= OpIstore3:
		frame.SetLocal(int(opcode-OpIstore0), frame.Pop())
		return Value{}, false, nil
	case opcode >= OpAstore0 && opcode <= OpAstore3:
		frame.SetLocal(int(opcode-OpAstore0), frame.Pop())
		return Value{}, false, nil
	case opcode >= OpIfeq && opcode <= OpIfle:
		return vm.branch(frame, compareZero(opcode, frame.Pop().Int))
	case opcode >= OpIfIcmpeq && opcode <= OpIfIcmple:
		b, a := frame.Pop().Int, frame.Pop().Int
		return vm.branch(frame, compareInts(opcode, a, b))
	}

	switch opcode {
	case OpNop:
	case OpAconstNull:
		frame.Push(NullValue())
	case OpBipush:
		frame.Push(IntValue(int32(frame.ReadI8())))
	case OpSipush:
		frame.Push(IntValue(int32(frame.ReadI16())))
	case OpLdc:
		return vm.executeLdc(frame, uint16(frame.ReadU8()))
	case OpLdcW:
		return vm.executeLdc(frame, frame.ReadU16())
	case OpIload, OpAload:
		frame.Push(frame.GetLocal(int(frame.ReadU8())))
	case OpIstore, OpAstore:
		frame.SetLocal(int(frame.ReadU8()), frame.Pop())
	case OpPop:
		frame.Pop()
	case OpDup:
		frame.Push(frame.Peek(0))
	case OpSwap:
		a, b := frame.Pop(), frame.Pop()
		frame.Push(a)
		frame.Push(b)

	case OpIadd, OpIsub, OpImul, OpIdiv, OpIrem:
		b, a := frame.Pop().Int, frame.Pop().Int
		v, err := intArith(opcode, a, b)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(IntValue(v))
	case OpIneg:
		frame.Push(IntValue(-frame.Pop().Int))
	case OpIinc:
		index := int(frame.ReadU8())
		delta := int32(frame.ReadI8())
		frame.SetLocal(index, IntValue(frame.GetLocal(index).Int+delta))

	case OpIfAcmpeq, OpIfAcmpne:
		b, a := frame.Pop(), frame.Pop()
		return vm.branch(frame, (a.Ref == b.Ref) == (opcode == OpIfAcmpeq))
	case OpIfnull, OpIfnonnull:
		return vm.branch(frame, frame.Pop().IsNull() == (opcode == OpIfnull))
	case OpGoto:
		return vm.branch(frame, true)

	case OpIreturn, OpAreturn:
		return frame.Pop(), true, nil
	case OpReturn:
		return Value{}, true, nil

	case OpGetstatic:
		return vm.executeGetstatic(frame)
	case OpGetfield:
		return vm.executeGetfield(frame)
	case OpPutfield:
		return vm.executePutfield(frame)
	case OpInvokevirtual, OpInvokespecial, OpInvokestatic:
		return Value{}, false, vm.executeInvoke(t, frame, opcode)
	case OpNew:
		return vm.executeNew(frame)
	case OpNewarray:
		return vm.executeNewarray(frame)
	case OpAnewarray:
		name, err := classfile.GetClassName(frame.Class.File.ConstantPool, frame.ReadU16())
		if err != nil {
			return Value{}, false, fmt.Errorf("anewarray: %w", err)
		}
		if name[0] != '[' {
			name = "L" + name + ";"
		}
		return Value{}, false, vm.newArray(frame, "["+name)

	case OpArraylength:
		arr := frame.Pop()
		if arr.IsNull() {
			return Value{}, false, fault(ExcNullPointer, "")
		}
		frame.Push(IntValue(int32(arr.Ref.Length())))
	case OpIaload, OpAaload, OpCaload:
		index := frame.Pop().Int
		arr, err := checkedArray(frame.Pop(), index)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(arr.Fields[index])
	case OpIastore, OpAastore, OpCastore:
		value := frame.Pop()
		index := frame.Pop().Int
		arr, err := checkedArray(frame.Pop(), index)
		if err != nil {
			return Value{}, false, err
		}
		if opcode == OpCastore {
			value = IntValue(int32(uint16(value.Int)))
		}
		arr.Fields[index] = value

	case OpAthrow:
		return Value{}, false, &JavaException{Object: frame.Pop().Ref}

	default:
		return Value{}, false, fmt.Errorf("unsupported opcode 0x%02X at PC=%d", opcode, frame.PC-1)
	}
	return Value{}, false, nil
}

// branch reads a 16-bit offset and jumps relative to the branch opcode when
// taken.
func (vm *VM) branch(frame *Frame, taken bool) (Value, bool, error) {
	offset := frame.ReadI16()
	if taken {
		frame.PC = frame.PC - 3 + int(offset)
	}
	return Value{}, false, nil
}

func compareZero(opcode byte, v int32) bool {
	return compareInts(opcode-OpIfeq+OpIfIcmpeq, v, 0)
}

func compareInts(opcode byte, a, b int32) bool {
	switch opcode {
	case OpIfIcmpeq:
		return a == b
	case OpIfIcmpne:
		return a != b
	case OpIfIcmplt:
		return a < b
	case OpIfIcmpge:
		return a >= b
	case OpIfIcmpgt:
		return a > b
	default: // OpIfIcmple
		return a <= b
	}
}

func intArith(opcode byte, a, b int32) (int32, error) {
	switch opcode {
	case OpIadd:
		return a + b, nil
	case OpIsub:
		return a - b, nil
	case OpImul:
		return a * b, nil
	}
	if b == 0 {
		return 0, fault(ExcArithmetic, "/ by zero")
	}
	if opcode == OpIdiv {
		return a / b, nil
	}
	return a % b, nil
}

func checkedArray(ref Value, index int32) (*Object, error) {
	if ref.IsNull() {
		return nil, fault(ExcNullPointer, "")
	}
	if index < 0 || int(index) >= ref.Ref.Length() {
		return nil, fault(ExcArrayIndexOutOfBounds, "Index %d out of bounds for length %d", index, ref.Ref.Length())
	}
	return ref.Ref, nil
}

// executeLdc handles the ldc instruction.
func (vm *VM) executeLdc(frame *Frame, index uint16) (Value, bool, error) {
	pool := frame.Class.File.ConstantPool
	if int(index) >= len(pool) || pool[index] == nil {
		return Value{}, false, fmt.Errorf("ldc: invalid constant pool index %d", index)
	}

	switch c := pool[index].(type) {
	case *classfile.ConstantInteger:
		frame.Push(IntValue(c.Value))
	case *classfile.ConstantString:
		s, err := classfile.GetUtf8(pool, c.StringIndex)
		if err != nil {
			return Value{}, false, fmt.Errorf("ldc: resolving string: %w", err)
		}
		str, err := NewString(vm.Classes, vm.Heap, vm.Dispatcher.Layout, s)
		if err != nil {
			return Value{}, false, allocFault(err)
		}
		frame.Push(RefValue(str))
	default:
		return Value{}, false, fmt.Errorf("ldc: unsupported constant pool entry type at index %d (tag=%d)", index, c.Tag())
	}
	return Value{}, false, nil
}

// allocFault turns heap exhaustion into an OutOfMemoryError.
func allocFault(err error) error {
	if errors.Is(err, ErrOutOfMemory) {
		return fault(ExcOutOfMemory, "")
	}
	return err
}

// executeGetstatic handles the getstatic instruction.
func (vm *VM) executeGetstatic(frame *Frame) (Value, bool, error) {
	ref, err := classfile.ResolveFieldref(frame.Class.File.ConstantPool, frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("getstatic: %w", err)
	}

	// Handle java/lang/System.out
	if ref.ClassName == "java/lang/System" && ref.Name == "out" {
		out, err := vm.stdoutObject()
		if err != nil {
			return Value{}, false, allocFault(err)
		}
		frame.Push(RefValue(out))
		return Value{}, false, nil
	}
	return Value{}, false, fault(ExcNoSuchField, "%s", ref)
}

func (vm *VM) stdoutObject() (*Object, error) {
	if vm.systemOut != nil {
		return vm.systemOut, nil
	}
	cls, err := vm.Classes.ResolveClass("java/io/PrintStream")
	if err != nil {
		return nil, err
	}
	if vm.systemOut, err = vm.Heap.Allocate(cls); err != nil {
		return nil, err
	}
	return vm.systemOut, nil
}

// instanceField pops the receiver for getfield/putfield and locates the slot.
func (vm *VM) instanceField(frame *Frame, ref *classfile.MemberRefInfo) (*Object, int, error) {
	recv := frame.Pop()
	if recv.IsNull() {
		return nil, 0, fault(ExcNullPointer, "")
	}
	slot, ok := recv.Ref.Class.SlotOf(ref.Name, ref.Descriptor)
	if !ok {
		return nil, 0, fault(ExcNoSuchField, "%s", ref)
	}
	return recv.Ref, slot, nil
}

// executeGetfield handles the getfield instruction.
func (vm *VM) executeGetfield(frame *Frame) (Value, bool, error) {
	ref, err := classfile.ResolveFieldref(frame.Class.File.ConstantPool, frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("getfield: %w", err)
	}
	obj, slot, err := vm.instanceField(frame, ref)
	if err != nil {
		return Value{}, false, err
	}
	frame.Push(obj.Fields[slot])
	return Value{}, false, nil
}

// executePutfield handles the putfield instruction.
func (vm *VM) executePutfield(frame *Frame) (Value, bool, error) {
	ref, err := classfile.ResolveFieldref(frame.Class.File.ConstantPool, frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("putfield: %w", err)
	}
	value := frame.Pop()
	obj, slot, err := vm.instanceField(frame, ref)
	if err != nil {
		return Value{}, false, err
	}
	obj.Fields[slot] = value
	return Value{}, false, nil
}

// executeInvoke handles invokevirtual, invokespecial and invokestatic.
func (vm *VM) executeInvoke(t *Thread, frame *Frame, opcode byte) error {
	ref, err := classfile.ResolveMethodref(frame.Class.File.ConstantPool, frame.ReadU16())
	if err != nil {
		return fmt.Errorf("invoke: %w", err)
	}
	paramCount, err := countParams(ref.Descriptor)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", ref, err)
	}

	static := opcode == OpInvokestatic
	argc := paramCount
	if !static {
		argc++
	}
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}

	var lookup *Class
	switch {
	case static || opcode == OpInvokespecial:
		if lookup, err = vm.Classes.ResolveClass(ref.ClassName); err != nil {
			return classFault(err, ref.ClassName)
		}
		if !static && args[0].IsNull() {
			return fault(ExcNullPointer, "")
		}
	default:
		if args[0].IsNull() {
			return fault(ExcNullPointer, "")
		}
		// virtual dispatch on the receiver's runtime class
		lookup = args[0].Ref.Class
	}

	declaring, method := lookup.FindMethod(ref.Name, ref.Descriptor)
	if method == nil {
		return fault(ExcNoSuchMethod, "%s", ref)
	}
	if method.IsStatic() != static {
		return fault(ExcIncompatibleClassChange, "%s", ref)
	}
	return vm.invoke(t, frame, declaring, method, args)
}

func classFault(err error, name string) error {
	if errors.Is(err, ErrClassNotFound) {
		return fault(ExcClassNotFound, "%s", name)
	}
	return err
}

// executeNew handles the new instruction.
func (vm *VM) executeNew(frame *Frame) (Value, bool, error) {
	name, err := classfile.GetClassName(frame.Class.File.ConstantPool, frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("new: %w", err)
	}
	cls, err := vm.Classes.ResolveClass(name)
	if err != nil {
		return Value{}, false, classFault(err, name)
	}
	obj, err := vm.Heap.Allocate(cls)
	if err != nil {
		return Value{}, false, allocFault(err)
	}
	frame.Push(RefValue(obj))
	return Value{}, false, nil
}

// executeNewarray handles the newarray instruction.
func (vm *VM) executeNewarray(frame *Frame) (Value, bool, error) {
	switch atype := frame.ReadU8(); atype {
	case TInt:
		return Value{}, false, vm.newArray(frame, "[I")
	case TChar:
		return Value{}, false, vm.newArray(frame, "[C")
	default:
		return Value{}, false, fmt.Errorf("newarray: unsupported element type %d", atype)
	}
}

func (vm *VM) newArray(frame *Frame, descriptor string) error {
	count := frame.Pop().Int
	if count < 0 {
		return fault(ExcNegativeArraySize, "%d", count)
	}
	cls, err := vm.Classes.ResolveClass(descriptor)
	if err != nil {
		return classFault(err, descriptor)
	}
	arr, err := vm.Heap.AllocateArray(cls, int(count))
	if err != nil {
		return allocFault(err)
	}
	frame.Push(RefValue(arr))
	return nil
}
