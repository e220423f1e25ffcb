package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daimatz/gojvm-throw/pkg/vm"
)

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [token]",
		Short: "List the exceptions the runtime raises, or classify a token",
		Long: `Without arguments catalog lists every exception kind in table order.

With a token it prints the first kind whose class name contains the token,
which is how runtime faults are mapped to exception classes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, kind := range vm.ExceptionKinds() {
					fmt.Fprintf(out, "%2d  %s\n", int(kind), kind.ClassName())
				}
				return nil
			}

			kind, ok := vm.ClassifyException(args[0])
			if !ok {
				return fmt.Errorf("no exception kind matches %q", args[0])
			}
			fmt.Fprintf(out, "%d  %s\n", int(kind), kind.ClassName())
			return nil
		},
	}
}
