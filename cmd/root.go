// File: cmd/root.go
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/config"
	"github.com/xkilldash9x/intentcheck/internal/observability"
)

// Exit code contract: 0 PASS, 1 FAIL (a real finding), 2 ERROR (the tooling
// broke), 3 usage or validation error.
const (
	exitPass       = 0
	exitFail       = 1
	exitToolError  = 2
	exitUsageError = 3
)

var (
	cfgFile string
	appCfg  *config.Config
	// preRunDone distinguishes usage/flag errors (before setup) from runtime
	// failures when mapping an error to an exit code.
	preRunDone bool
)

// exitError carries a specific process exit code out of a RunE.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func exitWithCode(code int, msg string) error {
	return &exitError{code: code, msg: msg}
}

var rootCmd = &cobra.Command{
	Use:           "intentcheck",
	Short:         "Exploratory UI verification for content-managed sites",
	Long:          "intentcheck drives a real browser through scripted and fuzzed interactions,\ncaptures evidence at checkpoints, and judges the outcome against declared intent.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return err
		}

		cfg := config.NewDefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "intentcheck"})
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		appCfg = cfg

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Starting intentcheck.", zap.String("version", Version))
		preRunDone = true
		return nil
	}
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	observability.Sync()
	if err == nil {
		return exitPass
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.msg != "" {
			fmt.Fprintln(os.Stderr, exit.msg)
		}
		return exit.code
	}

	fmt.Fprintln(os.Stderr, err)

	var parseErr *schemas.ParseError
	var valErr *schemas.ValidationError
	if errors.As(err, &parseErr) || errors.As(err, &valErr) {
		return exitUsageError
	}
	if !preRunDone {
		// Flag parsing or config loading failed before any work started.
		return exitUsageError
	}
	return exitToolError
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./intentcheck.yaml)")
	rootCmd.PersistentFlags().String("output-dir", "", "directory for run artifacts")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("intentcheck")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("INTENTCHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if flag := rootCmd.PersistentFlags().Lookup("output-dir"); flag != nil && flag.Changed {
		viper.Set("output.dir", flag.Value.String())
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
