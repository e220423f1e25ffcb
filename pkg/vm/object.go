package vm

// Object is a heap record: its runtime class plus field slots in the class's
// slot order. Arrays keep their elements in Fields.
type Object struct {
	Class  *Class
	Fields []Value
	Array  bool
}

// Length returns the length attribute of an array object.
func (o *Object) Length() int {
	return len(o.Fields)
}

// Field returns the value in slot, or the null value when the slot does not
// exist.
func (o *Object) Field(slot int) Value {
	if o == nil || slot < 0 || slot >= len(o.Fields) {
		return NullValue()
	}
	return o.Fields[slot]
}

// ClassName returns the name of the object's class.
func (o *Object) ClassName() string {
	if o == nil || o.Class == nil {
		return ""
	}
	return o.Class.Name
}
