package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// reader decodes big-endian class file items. The first error sticks; later
// reads return zero values so callers check r.err once per structure.
type reader struct {
	r   io.Reader
	err error
	buf [8]byte
}

func (r *reader) fill(n int) []byte {
	if r.err != nil {
		return r.buf[:n]
	}
	if _, err := io.ReadFull(r.r, r.buf[:n]); err != nil {
		r.err = err
		clear(r.buf[:n])
	}
	return r.buf[:n]
}

func (r *reader) u1() uint8  { return r.fill(1)[0] }
func (r *reader) u2() uint16 { return binary.BigEndian.Uint16(r.fill(2)) }
func (r *reader) u4() uint32 { return binary.BigEndian.Uint32(r.fill(4)) }

func (r *reader) bytes(n int) []byte {
	data := make([]byte, n)
	if r.err == nil {
		_, r.err = io.ReadFull(r.r, data)
	}
	return data
}

func (r *reader) skip(n int) { r.bytes(n) }

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(in io.Reader) (*ClassFile, error) {
	r := &reader{r: in}
	cf := &ClassFile{}

	if magic := r.u4(); r.err != nil {
		return nil, fmt.Errorf("reading magic number: %w", r.err)
	} else if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	cf.MinorVersion = r.u2()
	cf.MajorVersion = r.u2()
	cpCount := r.u2()
	if r.err != nil {
		return nil, fmt.Errorf("reading header: %w", r.err)
	}

	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	cf.AccessFlags = r.u2()
	cf.ThisClass = r.u2()
	cf.SuperClass = r.u2()
	cf.Interfaces = make([]uint16, r.u2())
	for i := range cf.Interfaces {
		cf.Interfaces[i] = r.u2()
	}
	if r.err != nil {
		return nil, fmt.Errorf("reading class header: %w", r.err)
	}

	if cf.Fields, err = parseFields(r, pool); err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}
	if cf.Methods, err = parseMethods(r, pool); err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	// Class-level attributes carry nothing the runtime uses.
	if _, err := parseAttributes(r, pool); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

type attribute struct {
	name string
	data []byte
}

func parseAttributes(r *reader, pool []ConstantPoolEntry) ([]attribute, error) {
	attrs := make([]attribute, r.u2())
	for i := range attrs {
		nameIndex := r.u2()
		data := r.bytes(int(r.u4()))
		if r.err != nil {
			return nil, fmt.Errorf("reading attribute %d: %w", i, r.err)
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs[i] = attribute{name: name, data: data}
	}
	return attrs, r.err
}

// memberHeader reads the access_flags/name/descriptor prefix shared by
// field_info and method_info.
func memberHeader(r *reader, pool []ConstantPoolEntry) (uint16, string, string, error) {
	flags, nameIndex, descIndex := r.u2(), r.u2(), r.u2()
	if r.err != nil {
		return 0, "", "", r.err
	}
	name, err := GetUtf8(pool, nameIndex)
	if err != nil {
		return 0, "", "", fmt.Errorf("resolving name: %w", err)
	}
	desc, err := GetUtf8(pool, descIndex)
	if err != nil {
		return 0, "", "", fmt.Errorf("resolving descriptor: %w", err)
	}
	return flags, name, desc, nil
}

func parseFields(r *reader, pool []ConstantPoolEntry) ([]FieldInfo, error) {
	fields := make([]FieldInfo, r.u2())
	for i := range fields {
		flags, name, desc, err := memberHeader(r, pool)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		if _, err := parseAttributes(r, pool); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		fields[i] = FieldInfo{AccessFlags: flags, Name: name, Descriptor: desc}
	}
	return fields, r.err
}

func parseMethods(r *reader, pool []ConstantPoolEntry) ([]MethodInfo, error) {
	methods := make([]MethodInfo, r.u2())
	for i := range methods {
		flags, name, desc, err := memberHeader(r, pool)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		attrs, err := parseAttributes(r, pool)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", name, err)
		}

		m := MethodInfo{AccessFlags: flags, Name: name, Descriptor: desc}
		for _, attr := range attrs {
			if attr.name != "Code" {
				continue
			}
			if m.Code, err = parseCodeAttribute(attr.data); err != nil {
				return nil, fmt.Errorf("parsing Code attribute for method %s: %w", name, err)
			}
			break
		}
		methods[i] = m
	}
	return methods, r.err
}

func parseCodeAttribute(data []byte) (*CodeAttribute, error) {
	r := &reader{r: bytes.NewReader(data)}

	code := &CodeAttribute{MaxStack: r.u2(), MaxLocals: r.u2()}
	code.Code = r.bytes(int(r.u4()))
	if r.err != nil {
		return nil, fmt.Errorf("Code attribute truncated: %w", r.err)
	}

	code.ExceptionHandlers = make([]ExceptionHandler, r.u2())
	for i := range code.ExceptionHandlers {
		code.ExceptionHandlers[i] = ExceptionHandler{
			StartPC:   r.u2(),
			EndPC:     r.u2(),
			HandlerPC: r.u2(),
			CatchType: r.u2(),
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("exception table truncated: %w", r.err)
	}
	return code, nil
}
