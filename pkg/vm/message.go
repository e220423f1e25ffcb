package vm

import (
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/hashicorp/go-multierror"
)

// ErrLayoutMismatch reports that a loaded class does not have the field
// shape a MessageLayout expects.
var ErrLayoutMismatch = errors.New("well-known layout mismatch")

// The well-known fields behind an exception's message: Throwable keeps its
// message in detailMessage, String keeps its characters in value.
const (
	messageFieldName       = "detailMessage"
	messageFieldDescriptor = "Ljava/lang/String;"
	charsFieldName         = "value"
	charsFieldDescriptor   = "[C"
)

// MessageLayout locates an exception's message: MessageSlot of the
// exception object refers to a String, and CharsSlot of that String refers
// to a char array.
type MessageLayout struct {
	MessageSlot int
	CharsSlot   int
}

// WellKnownLayout puts the message in slot 0 of the exception and the
// characters in slot 0 of the String.
var WellKnownLayout = MessageLayout{MessageSlot: 0, CharsSlot: 0}

// ValidateMessageLayout checks layout against the linked Throwable and
// String classes and reports every mismatch.
func ValidateMessageLayout(throwable, str *Class, layout MessageLayout) error {
	var result *multierror.Error
	if err := checkSlot(throwable, layout.MessageSlot, messageFieldName, messageFieldDescriptor); err != nil {
		result = multierror.Append(result, err)
	}
	if err := checkSlot(str, layout.CharsSlot, charsFieldName, charsFieldDescriptor); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func checkSlot(cls *Class, slot int, name, descriptor string) error {
	if slot < 0 || slot >= len(cls.Fields) {
		return fmt.Errorf("%s: slot %d out of range (%d slots): %w", cls.Name, slot, len(cls.Fields), ErrLayoutMismatch)
	}
	if f := cls.Fields[slot]; f.Name != name || f.Descriptor != descriptor {
		return fmt.Errorf("%s: slot %d is %s %s, want %s %s: %w",
			cls.Name, slot, f.Name, f.Descriptor, name, descriptor, ErrLayoutMismatch)
	}
	return nil
}

// Extract returns the message of the exception object ref. It reports false
// when ref, its message or the message's character array is null.
func (l MessageLayout) Extract(ref *Object) (string, bool) {
	if ref == nil {
		return "", false
	}
	msg := ref.Field(l.MessageSlot)
	if msg.IsNull() {
		return "", false
	}
	return l.StringValue(msg.Ref)
}

// StringValue returns the contents of a java/lang/String object. The
// returned Go string is a copy; the heap object is not retained.
func (l MessageLayout) StringValue(str *Object) (string, bool) {
	if str == nil {
		return "", false
	}
	chars := str.Field(l.CharsSlot)
	if chars.IsNull() || !chars.Ref.Array {
		return "", false
	}
	units := make([]uint16, chars.Ref.Length())
	for i, c := range chars.Ref.Fields {
		units[i] = uint16(c.Int)
	}
	return string(utf16.Decode(units)), true
}

func utf16Units(s string) []uint16 {
	return utf16.Encode([]rune(s))
}
