package classfile

// Builder assembles a ClassFile in memory. The bootstrap class loader uses it
// to define core library classes without a JDK on disk.
type Builder struct {
	cf    *ClassFile
	utf8  map[string]uint16
	class map[string]uint16
}

// NewBuilder starts a class named name extending super ("" for a root class).
func NewBuilder(name, super string) *Builder {
	b := &Builder{
		cf: &ClassFile{
			MajorVersion: 52,
			AccessFlags:  AccPublic | AccSuper,
			ConstantPool: []ConstantPoolEntry{nil},
		},
		utf8:  make(map[string]uint16),
		class: make(map[string]uint16),
	}
	b.cf.ThisClass = b.Class(name)
	if super != "" {
		b.cf.SuperClass = b.Class(super)
	}
	return b
}

func (b *Builder) add(e ConstantPoolEntry) uint16 {
	b.cf.ConstantPool = append(b.cf.ConstantPool, e)
	return uint16(len(b.cf.ConstantPool) - 1)
}

// Utf8 interns s and returns its constant pool index.
func (b *Builder) Utf8(s string) uint16 {
	if idx, ok := b.utf8[s]; ok {
		return idx
	}
	idx := b.add(&ConstantUtf8{Value: s})
	b.utf8[s] = idx
	return idx
}

// Class interns a CONSTANT_Class for name.
func (b *Builder) Class(name string) uint16 {
	if idx, ok := b.class[name]; ok {
		return idx
	}
	idx := b.add(&ConstantClass{NameIndex: b.Utf8(name)})
	b.class[name] = idx
	return idx
}

// String adds a CONSTANT_String for s.
func (b *Builder) String(s string) uint16 {
	return b.add(&ConstantString{StringIndex: b.Utf8(s)})
}

// Integer adds a CONSTANT_Integer.
func (b *Builder) Integer(v int32) uint16 {
	return b.add(&ConstantInteger{Value: v})
}

// Methodref adds a CONSTANT_Methodref.
func (b *Builder) Methodref(class, name, descriptor string) uint16 {
	return b.memberref(TagMethodref, class, name, descriptor)
}

// Fieldref adds a CONSTANT_Fieldref.
func (b *Builder) Fieldref(class, name, descriptor string) uint16 {
	return b.memberref(TagFieldref, class, name, descriptor)
}

func (b *Builder) memberref(tag uint8, class, name, descriptor string) uint16 {
	classIndex := b.Class(class)
	nat := b.add(&ConstantNameAndType{NameIndex: b.Utf8(name), DescriptorIndex: b.Utf8(descriptor)})
	return b.add(&ConstantMemberref{tag: tag, ClassIndex: classIndex, NameAndTypeIndex: nat})
}

// Field declares a field.
func (b *Builder) Field(flags uint16, name, descriptor string) *Builder {
	b.Utf8(name)
	b.Utf8(descriptor)
	b.cf.Fields = append(b.cf.Fields, FieldInfo{AccessFlags: flags, Name: name, Descriptor: descriptor})
	return b
}

// Method declares a method. A nil code declares a method implemented
// natively by the runtime.
func (b *Builder) Method(flags uint16, name, descriptor string, code *CodeAttribute) *Builder {
	b.Utf8(name)
	b.Utf8(descriptor)
	if code != nil {
		b.Utf8("Code")
	} else {
		flags |= AccNative
	}
	b.cf.Methods = append(b.cf.Methods, MethodInfo{AccessFlags: flags, Name: name, Descriptor: descriptor, Code: code})
	return b
}

// Build returns the assembled class file.
func (b *Builder) Build() *ClassFile {
	return b.cf
}
