package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/daimatz/gojvm-throw/pkg/vm"
)

var red = color.New(color.FgRed).SprintFunc()

// fatal reports err and terminates the process. It is the only place the
// program exits on a VM failure.
func fatal(err error) {
	var fe *vm.FatalError
	if errors.As(err, &fe) {
		log.Error().Stringer("kind", fe.Kind).Str("exception", fe.ClassName).Msg("vm stopped")
	}
	fmt.Fprintf(os.Stderr, "%s\n", red(err.Error()))
	os.Exit(1)
}
