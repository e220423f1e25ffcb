package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Write encodes cf in class file format. Every name and descriptor used by
// fields, methods and attributes must already be interned in the constant
// pool, as Builder does.
func Write(w io.Writer, cf *ClassFile) error {
	index := make(map[string]uint16)
	for i, e := range cf.ConstantPool {
		if u, ok := e.(*ConstantUtf8); ok {
			if _, seen := index[u.Value]; !seen {
				index[u.Value] = uint16(i)
			}
		}
	}
	lookup := func(s string) (uint16, error) {
		idx, ok := index[s]
		if !ok {
			return 0, fmt.Errorf("%q is not in the constant pool", s)
		}
		return idx, nil
	}

	be := binary.BigEndian
	out := be.AppendUint32(nil, classMagic)
	out = be.AppendUint16(out, cf.MinorVersion)
	out = be.AppendUint16(out, cf.MajorVersion)
	out = be.AppendUint16(out, uint16(len(cf.ConstantPool)))
	for i := 1; i < len(cf.ConstantPool); i++ {
		switch c := cf.ConstantPool[i].(type) {
		case *ConstantUtf8:
			data := encodeModifiedUTF8(c.Value)
			if len(data) > 0xFFFF {
				return fmt.Errorf("constant pool entry %d: string of %d bytes is too long", i, len(data))
			}
			out = append(be.AppendUint16(append(out, TagUtf8), uint16(len(data))), data...)
		case *ConstantInteger:
			out = be.AppendUint32(append(out, TagInteger), uint32(c.Value))
		case *ConstantClass:
			out = be.AppendUint16(append(out, TagClass), c.NameIndex)
		case *ConstantString:
			out = be.AppendUint16(append(out, TagString), c.StringIndex)
		case *ConstantMemberref:
			out = be.AppendUint16(be.AppendUint16(append(out, c.tag), c.ClassIndex), c.NameAndTypeIndex)
		case *ConstantNameAndType:
			out = be.AppendUint16(be.AppendUint16(append(out, TagNameAndType), c.NameIndex), c.DescriptorIndex)
		default:
			return fmt.Errorf("cannot encode constant pool entry %d (%T)", i, c)
		}
	}

	out = be.AppendUint16(out, cf.AccessFlags)
	out = be.AppendUint16(out, cf.ThisClass)
	out = be.AppendUint16(out, cf.SuperClass)
	out = be.AppendUint16(out, uint16(len(cf.Interfaces)))
	for _, iface := range cf.Interfaces {
		out = be.AppendUint16(out, iface)
	}

	out = be.AppendUint16(out, uint16(len(cf.Fields)))
	for _, f := range cf.Fields {
		name, err := lookup(f.Name)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		desc, err := lookup(f.Descriptor)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		out = be.AppendUint16(out, f.AccessFlags)
		out = be.AppendUint16(out, name)
		out = be.AppendUint16(out, desc)
		out = be.AppendUint16(out, 0)
	}

	out = be.AppendUint16(out, uint16(len(cf.Methods)))
	for _, m := range cf.Methods {
		name, err := lookup(m.Name)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		desc, err := lookup(m.Descriptor)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		out = be.AppendUint16(out, m.AccessFlags)
		out = be.AppendUint16(out, name)
		out = be.AppendUint16(out, desc)
		if m.Code == nil {
			out = be.AppendUint16(out, 0)
			continue
		}
		codeName, err := lookup("Code")
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		body := encodeCode(m.Code)
		out = be.AppendUint16(out, 1)
		out = be.AppendUint16(out, codeName)
		out = be.AppendUint32(out, uint32(len(body)))
		out = append(out, body...)
	}

	out = be.AppendUint16(out, 0) // class attributes

	_, err := w.Write(out)
	return err
}

func encodeCode(code *CodeAttribute) []byte {
	be := binary.BigEndian
	out := be.AppendUint16(nil, code.MaxStack)
	out = be.AppendUint16(out, code.MaxLocals)
	out = be.AppendUint32(out, uint32(len(code.Code)))
	out = append(out, code.Code...)
	out = be.AppendUint16(out, uint16(len(code.ExceptionHandlers)))
	for _, h := range code.ExceptionHandlers {
		out = be.AppendUint16(out, h.StartPC)
		out = be.AppendUint16(out, h.EndPC)
		out = be.AppendUint16(out, h.HandlerPC)
		out = be.AppendUint16(out, h.CatchType)
	}
	return be.AppendUint16(out, 0) // Code attributes
}
