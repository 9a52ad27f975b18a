// Package cmd implements the CLI commands for sfbuild.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/symbiflow/sfbuild/internal/config"
	"github.com/symbiflow/sfbuild/internal/observability"
	"github.com/symbiflow/sfbuild/internal/version"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	targetName    string
	platformName  string
	pretend       bool
	infoMode      bool
	explicitPaths string
)

// rootCmd represents the base command: plan and execute a flow.
var rootCmd = &cobra.Command{
	Use:     "sfbuild <flow-path>",
	Short:   "Symbiflow build system",
	Version: version.Short(),
	Long: `sfbuild builds FPGA targets (such as bitstreams) for any supported
platform with one command and a project flow file.

Every tool needed by a platform is wrapped in a "module" which declares its
inputs and outputs. Given a flow definition for the platform, sfbuild
resolves the dependency chain leading to the requested target, decides which
stages are out of date, and runs them.

A basic example:
  sfbuild flow.yaml -p arty_35 -t bitstream`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd, args[0])
	},
}

// Execute runs the root command under a signal-aware context so that an
// operator interrupt aborts the running module and still flushes the cache.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sfbuild.yaml in . or $HOME)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.Flags().StringVarP(&targetName, "target", "t", "", "dependency to produce")
	rootCmd.Flags().StringVarP(&platformName, "platform", "p", "", "target platform name")
	rootCmd.Flags().BoolVarP(&pretend, "pretend", "P", false, "show dependency resolution without executing the flow")
	rootCmd.Flags().BoolVarP(&infoMode, "info", "i", false, "display info about available targets")
	rootCmd.Flags().StringVarP(&explicitPaths, "take-explicit-paths", "T", "",
		"supply stage inputs explicitly as name=path[,name=path...]")

	// Bind flags to viper
	mustBindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in the config file and SFBUILD_* environment variables.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sfbuild")
	}

	viper.SetEnvPrefix("SFBUILD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine: defaults and env vars apply.
	_ = viper.ReadInConfig()
}

// loadToolConfig materialises the tool configuration from viper.
func loadToolConfig() (*config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// sfbuildHome locates the directory sfbuild runs from. Module collections
// and the default platform flow directory live here. A child invocation
// inherits the home its parent exported.
func sfbuildHome() (string, error) {
	if home := os.Getenv("SFBUILD_HOME"); home != "" {
		return home, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating sfbuild home: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// newRunLogger builds the run-scoped logger every component shares. Each
// invocation is tagged with a fresh run id so interleaved logs from nested
// builds stay attributable.
func newRunLogger(cfg *config.Config) *slog.Logger {
	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)
	return logger.With("run_id", uuid.NewString())
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}

var doneStyle = color.New(color.Bold, color.FgGreen).SprintFunc()

// printDone prints the completion banner.
func printDone(cmd *cobra.Command) {
	fmt.Fprintf(cmd.OutOrStdout(), "sfbuild: %s\n", doneStyle("DONE"))
}
