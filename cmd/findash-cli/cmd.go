package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"findash/internal/cli"
	"findash/internal/config"
)

// rootOptions carries the persistent flags of one command tree.
type rootOptions struct {
	cfgFile string
	debug   bool
	backend string
	output  string
	v       *viper.Viper
}

// newRootCmd builds the command tree. Settings come from flags, then the
// config file, then the environment.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "findash-cli",
		Short: "Personal finance dashboard reports from a spreadsheet",
		Long: `findash reads a transactions sheet and an optional category mapping,
cleans and categorizes the rows, and reports spending by month and category.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.initConfig(); err != nil {
				return err
			}
			log.SetLevel(log.InfoLevel)
			if opts.debug {
				log.SetLevel(log.DebugLevel)
			}
			if !slices.Contains([]string{cli.OutputTable, cli.OutputJSON}, opts.output) {
				return fmt.Errorf("invalid output format: %s (must be one of %v)", opts.output, []string{cli.OutputTable, cli.OutputJSON})
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is ./findash.toml or $HOME/.config/findash/findash.toml)")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.StringVar(&opts.backend, "backend", "", "data backend: memory, csv or sheets")
	flags.StringVarP(&opts.output, "output", "o", cli.OutputTable, "Output format: table or json")

	rootCmd.AddCommand(
		newReportCmd(opts),
		newTransactionsCmd(opts),
		newQualityCmd(opts),
		newOptionsCmd(opts),
		newCheckCmd(opts),
		newRefreshCmd(opts),
		newNarrativeCmd(opts),
		newPolicyCmd(opts),
	)
	return rootCmd
}

// Execute runs the command tree.
func Execute() {
	if err := fang.Execute(context.Background(), newRootCmd()); err != nil {
		os.Exit(1)
	}
}

// initConfig reads the optional TOML config file and exports its keys as
// environment variables, so config.Load sees one source of truth. Variables
// already set in the environment win over the file; flags win over both.
func (o *rootOptions) initConfig() error {
	cli.LoadEnvFile()

	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		o.v.SetConfigName("findash")
		o.v.SetConfigType("toml")
		o.v.AddConfigPath(".")
		if configDir, err := os.UserConfigDir(); err == nil {
			o.v.AddConfigPath(filepath.Join(configDir, "findash"))
		}
	}

	if err := o.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || o.cfgFile != "" {
			return fmt.Errorf("reading config file: %w", err)
		}
		log.Debug("Config file not found", "error", err)
	} else {
		log.Debug("Using config file", "file", o.v.ConfigFileUsed())
	}

	for _, key := range o.v.AllKeys() {
		if strings.Contains(key, ".") {
			continue
		}
		env := strings.ToUpper(key)
		if os.Getenv(env) != "" {
			continue
		}
		if err := os.Setenv(env, o.v.GetString(key)); err != nil {
			return err
		}
	}
	if o.backend != "" {
		if err := os.Setenv("DATA_BACKEND", o.backend); err != nil {
			return err
		}
	}
	if o.debug {
		return os.Setenv("LOG_LEVEL", "debug")
	}
	return nil
}

// loadApp validates the configuration and wires the report stack. Logs go
// to the command's error stream.
func (o *rootOptions) loadApp(cmd *cobra.Command) (*cli.App, error) {
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, cmd.ErrOrStderr())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store := cli.InitSQLite(logger.Logger, cfg.SQLiteDBPath)
	return cli.NewApp(cmd.Context(), cfg, logger, store)
}
