// Package cmd is for command line interactions with the vadr-seed application
package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ncbi/vadr-sub003/config"
)

var (
	// conf is the settings of the running command, set before it runs
	conf *config.Config

	logger = zap.NewNop()
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "vadr-seed",
	Short: "Reconcile seed alignments of viral sequences to their models",
	Long: `Reconcile seed alignments of viral sequences to their models.

A seed is an ungapped or lightly gapped alignment of a sequence to a model's
consensus, from blastn or minimap2. vadr-seed summarizes blastn output,
picks and prunes a seed per sequence, plans which flanks need realigning
and joins those realignments back onto the seed as one alignment of the
whole sequence to the whole model.`,
	Version:                    "0.1.0",
	SuggestionsMinimumDistance: 3,
	SilenceUsage:               true,
	SilenceErrors:              true,
	PersistentPreRunE:          setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func init() {
	config.SetDefaults(viper.GetViper())

	// settings is an optional settings file that overrides the defaults
	RootCmd.PersistentFlags().StringP("settings", "s", "", "settings file, defaults to ./vadr-seed.yaml or ~/vadr-seed.yaml")
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "log per-sequence details")
	RootCmd.PersistentFlags().Bool("progress", false, "show a progress bar on stderr")
	RootCmd.PersistentFlags().IntP("workers", "w", 0, "sequences handled at once (default number of CPUs)")

	viper.BindPFlag("settings", RootCmd.PersistentFlags().Lookup("settings"))
	viper.BindPFlag("verbose", RootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("progress", RootCmd.PersistentFlags().Lookup("progress"))
}

// setup reads settings and builds the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	if err := readSettings(); err != nil {
		return err
	}

	// workers only overrides the settings when given, its zero default means unset
	if cmd.Flags().Changed("workers") {
		n, _ := cmd.Flags().GetInt("workers")
		viper.Set("workers", n)
	}

	c, err := config.New()
	if err != nil {
		return err
	}
	conf = c

	if conf.Verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to build logger: %v", err)
	}
	return nil
}

// readSettings loads the settings file, if any, and the environment into viper.
func readSettings() error {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if path := viper.GetString("settings"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read settings file %s: %v", path, err)
		}
		return nil
	}

	viper.SetConfigName(config.SettingsFile)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read settings: %v", err)
		}
	}
	return nil
}
