package vm

import (
	"fmt"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
)

// nativeMethod implements a bootstrap method without bytecode. this is nil
// for static methods.
type nativeMethod func(vm *VM, this *Object, args []Value) (Value, error)

var natives = map[string]nativeMethod{
	"java/lang/Object.<init>()V":    func(*VM, *Object, []Value) (Value, error) { return Value{}, nil },
	"java/lang/Throwable.<init>()V": func(*VM, *Object, []Value) (Value, error) { return Value{}, nil },
	"java/lang/Throwable.<init>(Ljava/lang/String;)V": func(vm *VM, this *Object, args []Value) (Value, error) {
		this.Fields[vm.Dispatcher.Layout.MessageSlot] = args[0]
		return Value{}, nil
	},
	"java/lang/Throwable.getMessage()Ljava/lang/String;": func(vm *VM, this *Object, _ []Value) (Value, error) {
		return this.Field(vm.Dispatcher.Layout.MessageSlot), nil
	},
	"java/io/PrintStream.println()V": func(vm *VM, _ *Object, _ []Value) (Value, error) {
		return Value{}, vm.printer.Println()
	},
	"java/io/PrintStream.println(I)V": func(vm *VM, _ *Object, args []Value) (Value, error) {
		return Value{}, vm.printer.PrintlnInt(args[0].Int)
	},
	"java/io/PrintStream.println(Ljava/lang/String;)V": func(vm *VM, _ *Object, args []Value) (Value, error) {
		s, ok := vm.Dispatcher.Layout.StringValue(args[0].Ref)
		return Value{}, vm.printer.PrintlnString(s, ok)
	},
}

func (vm *VM) invokeNative(cls *Class, method *classfile.MethodInfo, this *Object, args []Value) (Value, error) {
	key := cls.Name + "." + method.Name + method.Descriptor
	impl, ok := natives[key]
	if !ok {
		return Value{}, fmt.Errorf("no native implementation for %s", key)
	}
	return impl(vm, this, args)
}
