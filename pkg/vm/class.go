package vm

import (
	"fmt"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
)

// Class is a linked runtime class.
type Class struct {
	Name  string
	Super *Class
	File  *classfile.ClassFile

	// Fields is the instance slot layout: inherited slots first, then the
	// class's own instance fields in declaration order.
	Fields []classfile.FieldInfo

	// Array classes have no class file; their elements live in Object.Fields.
	Array bool
}

// SlotOf returns the slot index of the instance field name with descriptor.
// Subclass fields shadow inherited ones of the same name.
func (c *Class) SlotOf(name, descriptor string) (int, bool) {
	for i := len(c.Fields) - 1; i >= 0; i-- {
		if c.Fields[i].Name == name && c.Fields[i].Descriptor == descriptor {
			return i, true
		}
	}
	return -1, false
}

// FindMethod looks up name+descriptor on c and then its superclasses. It
// returns the declaring class alongside the method.
func (c *Class) FindMethod(name, descriptor string) (*Class, *classfile.MethodInfo) {
	for cls := c; cls != nil; cls = cls.Super {
		if cls.File == nil {
			continue
		}
		if m := cls.File.FindMethod(name, descriptor); m != nil {
			return cls, m
		}
	}
	return nil, nil
}

// ConstantClassName resolves a CONSTANT_Class index in c's constant pool.
func (c *Class) ConstantClassName(index uint16) (string, error) {
	if c == nil || c.File == nil {
		return "", fmt.Errorf("class %v has no constant pool", c)
	}
	name, err := classfile.GetClassName(c.File.ConstantPool, index)
	if err != nil {
		return "", fmt.Errorf("class %s: %w", c.Name, err)
	}
	return name, nil
}

// zeroFields returns default-initialised slots: 0 for primitives, null for
// references.
func (c *Class) zeroFields() []Value {
	values := make([]Value, len(c.Fields))
	for i, f := range c.Fields {
		if f.IsReference() {
			values[i] = NullValue()
		} else {
			values[i] = IntValue(0)
		}
	}
	return values
}

func (c *Class) String() string {
	if c == nil {
		return "<nil>"
	}
	return c.Name
}
