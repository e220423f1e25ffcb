package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
	"github.com/daimatz/gojvm-throw/pkg/vm"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <Class.class | class-name>",
		Short: "Run the main method of a class",
		Long: `Run loads a class and executes its main method.

The argument is either a .class file, whose classpath root is derived from the
class name it declares, or a class name (app.Main or app/Main) looked up on
the classpath.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := vmConfig(cmd)
			name, root, err := mainClass(args[0])
			if err != nil {
				return err
			}
			if root != "" {
				cfg.ClassPath = strings.Join([]string{root, cfg.ClassPath}, string(os.PathListSeparator))
			}

			machine, err := vm.New(cfg)
			if err != nil {
				return err
			}
			log.Debug().Str("class", name).Str("classpath", cfg.ClassPath).Msg("running")
			return machine.Execute(name)
		},
	}
}

// mainClass resolves the run argument to a class name and, for a .class
// file, the classpath directory holding it.
func mainClass(arg string) (name, root string, err error) {
	if !strings.HasSuffix(arg, ".class") {
		return strings.ReplaceAll(arg, ".", "/"), "", nil
	}

	cf, err := classfile.ParseFile(arg)
	if err != nil {
		return "", "", err
	}
	if name, err = cf.ClassName(); err != nil {
		return "", "", err
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", "", err
	}
	suffix := filepath.FromSlash(name) + ".class"
	if !strings.HasSuffix(abs, string(filepath.Separator)+suffix) {
		return "", "", fmt.Errorf("%s declares class %s; expected it at <root>/%s", arg, name, suffix)
	}
	return name, strings.TrimSuffix(abs, string(filepath.Separator)+suffix), nil
}
