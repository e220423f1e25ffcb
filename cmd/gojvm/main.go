package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daimatz/gojvm-throw/pkg/vm"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gojvm",
		Short:         "A small JVM with exception dispatch and stack unwinding",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml, toml or json)")
	flags.String("classpath", "", "user class directories, separated by the OS path list separator")
	flags.Int("heap-max-objects", 0, "maximum number of heap allocations (0 = unbounded)")
	flags.Int("max-frame-depth", vm.DefaultMaxFrameDepth, "maximum call stack depth")
	flags.String("log-level", "warn", "log level: trace, debug, info, warn, error")

	root.AddCommand(newRunCmd(), newCatalogCmd(), newSimulateCmd())
	return root
}

// initConfig layers the config file and GOJVM_* environment variables under
// the flags and sets up the global logger.
func initConfig(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	viper.SetEnvPrefix("GOJVM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// vmConfig builds the VM settings from the resolved configuration.
func vmConfig(cmd *cobra.Command) vm.Config {
	cfg := vm.DefaultConfig()
	cfg.ClassPath = viper.GetString("classpath")
	cfg.MaxObjects = viper.GetInt("heap-max-objects")
	cfg.MaxFrameDepth = viper.GetInt("max-frame-depth")
	cfg.Stdout = cmd.OutOrStdout()
	cfg.Logger = log.Logger
	return cfg
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fatal(err)
	}
}
