package native

import (
	"fmt"
	"io"
)

// PrintStream renders java.io.PrintStream output for the values the VM
// passes in.
type PrintStream struct {
	Writer io.Writer
}

// Println prints an empty line.
func (ps *PrintStream) Println() error {
	_, err := fmt.Fprintln(ps.Writer)
	return err
}

// PrintlnInt prints an int followed by a newline.
func (ps *PrintStream) PrintlnInt(v int32) error {
	_, err := fmt.Fprintln(ps.Writer, v)
	return err
}

// PrintlnString prints a string followed by a newline. A null string (ok ==
// false) prints as "null", as Java does.
func (ps *PrintStream) PrintlnString(s string, ok bool) error {
	if !ok {
		s = "null"
	}
	_, err := fmt.Fprintln(ps.Writer, s)
	return err
}
