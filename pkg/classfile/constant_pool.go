package classfile

import "fmt"

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// parseConstantPool reads constant_pool_count-1 entries.
// The returned slice is 1-indexed: index 0 is nil.
func parseConstantPool(r *reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		tag := r.u1()
		switch tag {
		case TagUtf8:
			raw := r.bytes(int(r.u2()))
			if r.err != nil {
				break
			}
			value, err := decodeModifiedUTF8(raw)
			if err != nil {
				return nil, fmt.Errorf("constant pool entry %d: %w", i, err)
			}
			pool[i] = &ConstantUtf8{Value: value}
		case TagInteger:
			pool[i] = &ConstantInteger{Value: int32(r.u4())}
		case TagFloat:
			r.skip(4)
			pool[i] = &constantPlaceholder{tag: tag}
		case TagLong, TagDouble:
			r.skip(8)
			pool[i] = &constantPlaceholder{tag: tag}
			i++ // 8-byte constants take two slots
		case TagClass:
			pool[i] = &ConstantClass{NameIndex: r.u2()}
		case TagString:
			pool[i] = &ConstantString{StringIndex: r.u2()}
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			pool[i] = &ConstantMemberref{tag: tag, ClassIndex: r.u2(), NameAndTypeIndex: r.u2()}
		case TagNameAndType:
			pool[i] = &ConstantNameAndType{NameIndex: r.u2(), DescriptorIndex: r.u2()}
		case TagMethodHandle:
			r.skip(3)
			pool[i] = &constantPlaceholder{tag: tag}
		case TagMethodType:
			r.skip(2)
			pool[i] = &constantPlaceholder{tag: tag}
		case TagDynamic, TagInvokeDynamic:
			r.skip(4)
			pool[i] = &constantPlaceholder{tag: tag}
		default:
			if r.err != nil {
				return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, r.err)
			}
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
		if r.err != nil {
			return nil, fmt.Errorf("reading constant pool entry %d (tag=%d): %w", i, tag, r.err)
		}
	}

	return pool, nil
}

// constantPlaceholder is used for constant pool entries we don't fully parse.
type constantPlaceholder struct {
	tag uint8
}

func (c *constantPlaceholder) Tag() uint8 { return c.tag }

func entryAt(pool []ConstantPoolEntry, index uint16) (ConstantPoolEntry, error) {
	if index == 0 || int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	return pool[index], nil
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	entry, err := entryAt(pool, index)
	if err != nil {
		return "", err
	}
	utf8, ok := entry.(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, entry.Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	entry, err := entryAt(pool, classIndex)
	if err != nil {
		return "", err
	}
	class, ok := entry.(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class (tag=%d)", classIndex, entry.Tag())
	}
	return GetUtf8(pool, class.NameIndex)
}

// MemberRefInfo holds a resolved field or method reference.
type MemberRefInfo struct {
	ClassName  string
	Name       string
	Descriptor string
}

func (m *MemberRefInfo) String() string {
	return m.ClassName + "." + m.Name + ":" + m.Descriptor
}

// ResolveMethodref resolves a CONSTANT_Methodref or
// CONSTANT_InterfaceMethodref entry.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MemberRefInfo, error) {
	return resolveMemberref(pool, index, TagMethodref, TagInterfaceMethodref)
}

// ResolveFieldref resolves a CONSTANT_Fieldref entry.
func ResolveFieldref(pool []ConstantPoolEntry, index uint16) (*MemberRefInfo, error) {
	return resolveMemberref(pool, index, TagFieldref)
}

func resolveMemberref(pool []ConstantPoolEntry, index uint16, tags ...uint8) (*MemberRefInfo, error) {
	entry, err := entryAt(pool, index)
	if err != nil {
		return nil, err
	}
	ref, ok := entry.(*ConstantMemberref)
	if !ok || !hasTag(ref.tag, tags) {
		return nil, fmt.Errorf("constant pool index %d has tag %d, want one of %v", index, entry.Tag(), tags)
	}

	className, err := GetClassName(pool, ref.ClassIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member class: %w", err)
	}

	natEntry, err := entryAt(pool, ref.NameAndTypeIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving NameAndType: %w", err)
	}
	nat, ok := natEntry.(*ConstantNameAndType)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not NameAndType", ref.NameAndTypeIndex)
	}

	name, err := GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member name: %w", err)
	}
	descriptor, err := GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member descriptor: %w", err)
	}

	return &MemberRefInfo{ClassName: className, Name: name, Descriptor: descriptor}, nil
}

func hasTag(tag uint8, tags []uint8) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
