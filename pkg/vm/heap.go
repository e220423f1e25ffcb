package vm

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is returned when the heap's object budget is exhausted.
var ErrOutOfMemory = errors.New("heap exhausted")

// Allocator creates default-initialised heap records.
type Allocator interface {
	Allocate(cls *Class) (*Object, error)
	AllocateArray(cls *Class, length int) (*Object, error)
}

// Heap is a counting allocator. Objects are reclaimed by the Go collector;
// the budget only bounds how many the program may create.
type Heap struct {
	// MaxObjects bounds the number of allocations; 0 means unbounded.
	MaxObjects int
	allocated  int
}

// NewHeap creates a heap that allows maxObjects allocations.
func NewHeap(maxObjects int) *Heap {
	return &Heap{MaxObjects: maxObjects}
}

func (h *Heap) reserve(what string) error {
	if h.MaxObjects > 0 && h.allocated >= h.MaxObjects {
		return fmt.Errorf("allocating %s: %w (%d objects)", what, ErrOutOfMemory, h.MaxObjects)
	}
	h.allocated++
	return nil
}

// Allocate returns a new instance of cls with every field at its default.
func (h *Heap) Allocate(cls *Class) (*Object, error) {
	if cls.Array {
		return nil, fmt.Errorf("allocating %s: array classes need a length", cls.Name)
	}
	if err := h.reserve(cls.Name); err != nil {
		return nil, err
	}
	return &Object{Class: cls, Fields: cls.zeroFields()}, nil
}

// AllocateArray returns a new array of cls with length elements. Reference
// arrays start out null, primitive arrays zero.
func (h *Heap) AllocateArray(cls *Class, length int) (*Object, error) {
	if !cls.Array {
		return nil, fmt.Errorf("allocating array of non-array class %s", cls.Name)
	}
	if length < 0 {
		return nil, fmt.Errorf("allocating %s: negative length %d", cls.Name, length)
	}
	if err := h.reserve(cls.Name); err != nil {
		return nil, err
	}
	zero := IntValue(0)
	if len(cls.Name) > 1 && (cls.Name[1] == 'L' || cls.Name[1] == '[') {
		zero = NullValue()
	}
	elems := make([]Value, length)
	for i := range elems {
		elems[i] = zero
	}
	return &Object{Class: cls, Fields: elems, Array: true}, nil
}

// Allocated returns the number of objects allocated so far.
func (h *Heap) Allocated() int {
	return h.allocated
}

// NewString creates a java/lang/String whose value slot holds a char array
// with the UTF-16 code units of s.
func NewString(classes ClassResolver, heap Allocator, layout MessageLayout, s string) (*Object, error) {
	strClass, err := classes.ResolveClass("java/lang/String")
	if err != nil {
		return nil, err
	}
	charsClass, err := classes.ResolveClass("[C")
	if err != nil {
		return nil, err
	}
	units := utf16Units(s)
	chars, err := heap.AllocateArray(charsClass, len(units))
	if err != nil {
		return nil, err
	}
	for i, u := range units {
		chars.Fields[i] = IntValue(int32(u))
	}
	str, err := heap.Allocate(strClass)
	if err != nil {
		return nil, err
	}
	if layout.CharsSlot >= len(str.Fields) {
		return nil, fmt.Errorf("java/lang/String has no slot %d: %w", layout.CharsSlot, ErrLayoutMismatch)
	}
	str.Fields[layout.CharsSlot] = RefValue(chars)
	return str, nil
}
