// cmd/flamecore/root.go
// Root command for the `flamecore` CLI. It wires common flags, global
// initialisation (logger, config file) and adds top-level
// sub-commands located in sibling files (profile.go, render.go, replay.go,
// version.go).
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/flamecore/flamecore/internal/config"
	"github.com/flamecore/flamecore/internal/logging"
	"github.com/flamecore/flamecore/pkg/version"
)

var (
	cfgFile string
	logJSON bool
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "flamecore",
		Short: "flamecore – a statistical sampling profiler for Go programs",
		Long:  `flamecore periodically samples a program's live call stacks and renders interactive flame graphs, in the spirit of py-spy/pyflame but for Go.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logging.Initialised() {
				return nil
			}
			return initLogger()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file (YAML/TOML/JSON)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Enable JSON log output (default is human-friendly console)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable verbose debug logging")

	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// argError marks err as an argument-parsing failure, the spec.md §6 exit
// code 2 case, as opposed to a runtime failure (exit code 1).
type argError struct{ err error }

func (a *argError) Error() string { return a.err.Error() }
func (a *argError) Unwrap() error { return a.err }

func newArgError(format string, a ...any) error {
	return &argError{err: fmt.Errorf(format, a...)}
}

// Execute runs the root command and returns the process exit code per
// spec.md §6: 0 success, 1 runtime error, 2 argument error.
func Execute() int {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	applyConfigFileArgs()
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		var ae *argError
		if errors.As(err, &ae) {
			return 2
		}
		return 1
	}
	return 0
}

// applyConfigFileArgs implements spec.md §6's "Configuration file"
// collaborator: a well-known file under the user's home directory carrying
// an `args` key whose tokens are prepended to the effective argv, so later
// CLI tokens on the real command line override earlier ones (cobra/pflag
// resolves conflicting flags last-one-wins).
func applyConfigFileArgs() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	path := config.DefaultFilePath(home)
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return // absent config file is not an error
	}
	cfg := config.Load(path)
	if len(cfg.Args) == 0 || len(os.Args) < 1 {
		return
	}
	os.Args = append([]string{os.Args[0]}, append(cfg.Args, os.Args[1:]...)...)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "flamecore"))
		}
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("FLAMECORE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logging.Sugar().Infof("using config file: %s", viper.ConfigFileUsed())
	}
}

func initLogger() error {
	cfg := zap.NewProductionConfig()
	if !logJSON {
		cfg = zap.NewDevelopmentConfig()
	}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.EncoderConfig.EncodeTime = zap.TimeEncoder(func(t time.Time, enc zap.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(time.RFC3339))
	})

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	logging.Set(logger)
	logging.Sugar().Infow("flamecore starting", "go_version", runtime.Version(), "version", version.String())
	return nil
}
