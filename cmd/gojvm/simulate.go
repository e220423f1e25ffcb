package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/daimatz/gojvm-throw/pkg/scenario"
)

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Dispatch an exception through a call stack described in YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			out, err := scenario.Run(s, log.Logger)
			if err != nil {
				return err
			}
			if out.Fatal != nil {
				return out.Fatal
			}

			exception := out.Exception
			if out.Message != "" {
				exception += ": " + out.Message
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n  handled by %s at pc %d, %d frame(s) unwound\n",
				exception, out.Frame, out.HandlerPC, out.Unwound)
			return nil
		},
	}
}
