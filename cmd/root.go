// Package cmd provides the maintenance command-line interface of the twig
// support layer.
//
// Configuration System:
//
//	The CLI reads its configuration from multiple sources with clear precedence:
//	1. Command-line flags (--config, --log-level) - highest priority
//	2. TWIG_SUPPORT_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (TWIG_SUPPORT_ENVIRONMENT, etc.)
//	4. Configuration files (.twig-support.yml) - lowest priority
//
// Environment Variables:
//
//	TWIG_SUPPORT_CONFIG_FILE: Path to custom configuration file
//	TWIG_SUPPORT_ENVIRONMENT: prod or dev
//	TWIG_SUPPORT_CACHE_BACKEND: file, sqlite or memory
//	And more following the TWIG_SUPPORT_<SECTION>_<OPTION> pattern
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/config"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/di"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "twig-support",
	Short: "Maintenance tool for the twig template index",
	Long: `twig-support inspects and maintains the twig template index of a project.

It resolves template names the way the front end does, lists template groups,
renders templates and keeps the template cache in sync with the filesystem.

Quick Start:
  twig-support cache:warmup             Build and store the template index
  twig-support resolve ce_text          Show which file renders ce_text
  twig-support list ce_ mod_            List template groups
  twig-support watch                    Clear the cache whenever templates change`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .twig-support.yml, can also use TWIG_SUPPORT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("env", "", "environment (prod or dev)")
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. TWIG_SUPPORT_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .twig-support.yml in current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TWIG_SUPPORT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".twig-support")
	}

	viper.SetEnvPrefix("TWIG_SUPPORT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("environment", rootCmd.PersistentFlags().Lookup("env"))

	// A missing or unreadable file leaves the defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the CLI logger from the log section of the configuration.
func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    out,
		Component: "cli",
	}), nil
}

// newContainer loads the configuration and initializes the service
// container. The returned function shuts the container down.
func newContainer(cmd *cobra.Command) (*di.ServiceContainer, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize service container: %w", err)
	}

	shutdown := func() {
		if err := container.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Error during container shutdown: %v\n", err)
		}
	}
	return container, cfg, shutdown, nil
}
