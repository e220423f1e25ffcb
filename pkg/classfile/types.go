package classfile

import "strings"

// Access flags
const (
	AccPublic = 0x0001
	AccStatic = 0x0008
	AccSuper  = 0x0020
	AccNative = 0x0100
)

// CatchAll is the catch_type of an exception table entry that handles any
// throwable (finally blocks, synchronized exits).
const CatchAll = 0

// ClassFile represents a parsed .class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool []ConstantPoolEntry
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo
}

// SuperClassName returns the fully qualified name of the super class.
// Returns "" if this is java/lang/Object (SuperClass == 0).
func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, err := GetClassName(cf.ConstantPool, cf.SuperClass)
	if err != nil {
		return ""
	}
	return name
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// InstanceFields returns the non-static fields in declaration order.
func (cf *ClassFile) InstanceFields() []FieldInfo {
	var out []FieldInfo
	for _, f := range cf.Fields {
		if f.AccessFlags&AccStatic == 0 {
			out = append(out, f)
		}
	}
	return out
}

// ConstantPoolEntry is an interface implemented by all constant pool types.
type ConstantPoolEntry interface {
	Tag() uint8
}

type ConstantUtf8 struct {
	Value string
}

func (c *ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct {
	Value int32
}

func (c *ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantClass struct {
	NameIndex uint16
}

func (c *ConstantClass) Tag() uint8 { return TagClass }

type ConstantString struct {
	StringIndex uint16
}

func (c *ConstantString) Tag() uint8 { return TagString }

// ConstantMemberref covers Fieldref, Methodref and InterfaceMethodref; they
// share a layout and differ only by tag.
type ConstantMemberref struct {
	tag              uint8
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantMemberref) Tag() uint8 { return c.tag }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndType) Tag() uint8 { return TagNameAndType }

// MethodInfo represents a method in a class file.
type MethodInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Code        *CodeAttribute
}

// IsStatic reports whether the method has ACC_STATIC.
func (m *MethodInfo) IsStatic() bool { return m.AccessFlags&AccStatic != 0 }

// ExceptionTable returns the method's exception table, or nil for methods
// without a Code attribute.
func (m *MethodInfo) ExceptionTable() []ExceptionHandler {
	if m == nil || m.Code == nil {
		return nil
	}
	return m.Code.ExceptionHandlers
}

// FieldInfo represents a field in a class file.
type FieldInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
}

// IsReference reports whether the field holds an object or array reference.
func (f FieldInfo) IsReference() bool {
	return strings.HasPrefix(f.Descriptor, "L") || strings.HasPrefix(f.Descriptor, "[")
}

// ExceptionHandler represents an entry in the exception table.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// Covers reports whether pc lies in the half-open range [StartPC, EndPC).
func (h ExceptionHandler) Covers(pc int) bool {
	return int(h.StartPC) <= pc && pc < int(h.EndPC)
}

// IsCatchAll reports whether the entry handles every exception class.
func (h ExceptionHandler) IsCatchAll() bool {
	return h.CatchType == CatchAll
}

// CodeAttribute represents the Code attribute of a method.
type CodeAttribute struct {
	MaxStack          uint16
	MaxLocals         uint16
	Code              []byte
	ExceptionHandlers []ExceptionHandler
}
